package model

// StateKey is the storage key the policy record is persisted under.
const StateKey = "state"

// Scope selects which signal categories a self-lock enforces.
type Scope string

const (
	ScopeSexual         Scope = "sexual"
	ScopeSexualViolence Scope = "sexual-violence"
	ScopeAll            Scope = "all"
)

// Valid reports whether s is a known scope.
func (s Scope) Valid() bool {
	switch s {
	case ScopeSexual, ScopeSexualViolence, ScopeAll:
		return true
	default:
		return false
	}
}

// ListKind distinguishes hostname entries from exact-URL entries.
type ListKind string

const (
	ListDomain ListKind = "domain"
	ListExact  ListKind = "exact"
)

// ListEntry is one allow-list or block-list item.
// The wire name "type" is kept for compatibility with stored records.
type ListEntry struct {
	Kind  ListKind `json:"type" yaml:"type"`
	Value string   `json:"value" yaml:"value"`
}

// Categories holds the parental category toggles.
type Categories struct {
	Sexual            bool `json:"sexual"`
	Violence          bool `json:"violence"`
	Profanity         bool `json:"profanity"`
	Drugs             bool `json:"drugs"`
	Gambling          bool `json:"gambling"`
	AgeVerification   bool `json:"ageVerification"`
	AdultProductSales bool `json:"adultProductSales"`
}

// Vendors holds the per-platform toggles for the adult product sales category.
type Vendors struct {
	Etsy      bool `json:"etsy"`
	Redbubble bool `json:"redbubble"`
	TeePublic bool `json:"teepublic"`
	Zazzle    bool `json:"zazzle"`
	ItchIO    bool `json:"itchIo"`
	EBay      bool `json:"ebay"`
	Amazon    bool `json:"amazon"`
	Patreon   bool `json:"patreon"`
	Shopify   bool `json:"shopify"`
}

// Enabled reports whether the toggle for the given platform name is on.
// Platform names are the ones detectors emit in VENDOR:<platform>:... tags.
func (v Vendors) Enabled(platform string) bool {
	switch platform {
	case "etsy":
		return v.Etsy
	case "redbubble":
		return v.Redbubble
	case "teepublic":
		return v.TeePublic
	case "zazzle":
		return v.Zazzle
	case "itch.io", "itchio", "itchIo":
		return v.ItchIO
	case "ebay":
		return v.EBay
	case "amazon":
		return v.Amazon
	case "patreon":
		return v.Patreon
	case "shopify":
		return v.Shopify
	default:
		return false
	}
}

// PlatformSignals toggles platform-native tags such as reddit_nsfw_profile.
type PlatformSignals struct {
	Reddit bool `json:"reddit"`
}

// Parental is the standing administrator-configured policy.
type Parental struct {
	Enabled            bool            `json:"enabled"`
	Categories         Categories      `json:"categories"`
	Vendors            Vendors         `json:"adultProductSalesVendors"`
	PlatformSignals    PlatformSignals `json:"platformSignals"`
	TreatMatureAsAdult bool            `json:"treatMatureAsAdult"`
	AllowList          []ListEntry     `json:"allowList"`
	BlockList          []ListEntry     `json:"blockList"`
	SettingsPINHash    *string         `json:"settingsPINHash"`
}

// SelfLock is the persisted self-lock session. Exactly one exists; an
// inactive session is the zeroed-out record, not a missing one.
type SelfLock struct {
	Active                    bool    `json:"active"`
	Scope                     Scope   `json:"scope"`
	IgnoreAllowlist           bool    `json:"ignoreAllowlist"`
	RequiresPassword          bool    `json:"requiresPassword"`
	PassphraseHash            *string `json:"passphraseHash"`
	AllowEarlyUnlock          bool    `json:"allowEarlyUnlock"`
	CooldownMinutes           int     `json:"cooldownMinutes"`
	StartedAtEpochMs          int64   `json:"startedAtEpochMs"`
	EndsAtEpochMs             int64   `json:"endsAtEpochMs"`
	ElapsedMonotonicMsAtStart int64   `json:"elapsedMonotonicMsAtStart"`
	CooldownUntilEpochMs      int64   `json:"cooldownUntilEpochMs"`
	PendingUnlockPhrase       *string `json:"pendingUnlockPhrase"`
	PendingUnlockPhraseExpiry int64   `json:"pendingUnlockPhraseExpiry"`
	IncrementOnBlock          bool    `json:"incrementOnBlock"`
	IncrementMinutes          int     `json:"incrementMinutes"`
}

// ClearPending drops any pending unlock phrase.
func (s *SelfLock) ClearPending() {
	s.PendingUnlockPhrase = nil
	s.PendingUnlockPhraseExpiry = 0
}

// Deactivate resets the session to inactive. Configuration fields
// (scope, cooldown, passphrase) survive so the next activation form is
// prefilled.
func (s *SelfLock) Deactivate() {
	s.Active = false
	s.CooldownUntilEpochMs = 0
	s.ClearPending()
}

// PinLock is the settings-PIN timed unlock window.
type PinLock struct {
	Locked               bool  `json:"locked"`
	UnlockedUntilEpochMs int64 `json:"unlockedUntilEpochMs"`
}

// PolicyState is the single persisted root aggregate.
type PolicyState struct {
	Parental          Parental        `json:"parental"`
	SelfLock          SelfLock        `json:"selfLock"`
	PinLock           PinLock         `json:"pinLock"`
	RecoveryCodesHash []string        `json:"recoveryCodesHash"`
	SafeRequestMode   SafeRequestMode `json:"safeRequestMode"`
}

// Normalize repairs states that violate session invariants. It reports
// whether anything changed.
func (p *PolicyState) Normalize() bool {
	changed := false
	sl := &p.SelfLock
	if !sl.Active && (sl.PendingUnlockPhrase != nil || sl.PendingUnlockPhraseExpiry != 0 || sl.CooldownUntilEpochMs != 0) {
		sl.Deactivate()
		changed = true
	}
	if !sl.Scope.Valid() {
		sl.Scope = ScopeSexual
		changed = true
	}
	if p.Parental.AllowList == nil {
		p.Parental.AllowList = []ListEntry{}
		changed = true
	}
	if p.Parental.BlockList == nil {
		p.Parental.BlockList = []ListEntry{}
		changed = true
	}
	if p.RecoveryCodesHash == nil {
		p.RecoveryCodesHash = []string{}
		changed = true
	}
	return changed
}

// Clone returns a deep copy of the state.
func (p *PolicyState) Clone() *PolicyState {
	c := *p
	c.Parental.AllowList = append([]ListEntry(nil), p.Parental.AllowList...)
	c.Parental.BlockList = append([]ListEntry(nil), p.Parental.BlockList...)
	c.Parental.SettingsPINHash = cloneString(p.Parental.SettingsPINHash)
	c.SelfLock.PassphraseHash = cloneString(p.SelfLock.PassphraseHash)
	c.SelfLock.PendingUnlockPhrase = cloneString(p.SelfLock.PendingUnlockPhrase)
	c.RecoveryCodesHash = append([]string(nil), p.RecoveryCodesHash...)
	c.SafeRequestMode.Providers = p.SafeRequestMode.Providers
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
