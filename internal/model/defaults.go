package model

// Reference durations, in milliseconds.
const (
	MinuteMs = 60 * 1000

	// PinUnlockWindowMs is how long settings stay unlocked after a PIN entry.
	PinUnlockWindowMs = 5 * MinuteMs

	// UnlockPhraseTTLMs is how long a pending unlock phrase stays valid.
	UnlockPhraseTTLMs = 5 * MinuteMs

	DefaultCooldownMinutes  = 60
	DefaultIncrementMinutes = 5
)

// DefaultState returns the state written on first run and used to fill
// fields missing from older stored records.
func DefaultState() *PolicyState {
	return &PolicyState{
		Parental: Parental{
			Enabled: true,
			Categories: Categories{
				Sexual: true,
			},
			TreatMatureAsAdult: true,
			AllowList:          []ListEntry{},
			BlockList:          []ListEntry{},
		},
		SelfLock: SelfLock{
			Scope:            ScopeSexual,
			IgnoreAllowlist:  true,
			RequiresPassword: true,
			AllowEarlyUnlock: true,
			CooldownMinutes:  DefaultCooldownMinutes,
			IncrementMinutes: DefaultIncrementMinutes,
		},
		RecoveryCodesHash: []string{},
		SafeRequestMode: SafeRequestMode{
			AddPreferSafeHeader:          true,
			ApplyInPrivateWindows:        true,
			ForceUnderSelfLock:           true,
			IgnoreAllowlistUnderSelfLock: true,
			BlockUserParamDowngrade:      true,
			PerFrameEnforcement:          FramesAny,
			Providers: Providers{
				Google:  GoogleProvider{Enabled: true, UseParam: true},
				Bing:    BingProvider{Enabled: true, UseParam: true, UsePreferSafeHonor: true},
				Yahoo:   YahooProvider{Enabled: true, UseParam: true},
				DDG:     DDGProvider{Enabled: true, UseParam: true},
				YouTube: YouTubeProvider{Enabled: true, HeaderMode: "strict"},
				Tumblr:  TumblrProvider{Enabled: true, FilterMature: true},
				Reddit:  RedditProvider{Enabled: true, FilterOver18: true},
			},
		},
	}
}
