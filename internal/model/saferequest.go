package model

// FrameEnforcement limits which request types the sanitizer rewrites.
type FrameEnforcement string

const (
	FramesAny FrameEnforcement = "any"
	FramesTop FrameEnforcement = "top"
)

// GoogleProvider configures SafeSearch enforcement on Google search hosts.
type GoogleProvider struct {
	Enabled       bool `json:"enabled"`
	UseParam      bool `json:"useParam"`
	EnforceCookie bool `json:"enforceCookie"`
	UseRedirect   bool `json:"useRedirect"`
}

// BingProvider configures strict mode on Bing.
type BingProvider struct {
	Enabled            bool `json:"enabled"`
	UseParam           bool `json:"useParam"`
	UsePreferSafeHonor bool `json:"usePreferSafeHonor"`
	UseRedirect        bool `json:"useRedirect"`
}

// YahooProvider configures the vm=r filter on Yahoo search.
type YahooProvider struct {
	Enabled  bool `json:"enabled"`
	UseParam bool `json:"useParam"`
}

// DDGProvider configures kp=1 on DuckDuckGo.
type DDGProvider struct {
	Enabled     bool `json:"enabled"`
	UseParam    bool `json:"useParam"`
	UseRedirect bool `json:"useRedirect"`
}

// YouTubeProvider configures the YouTube-Restrict header.
type YouTubeProvider struct {
	Enabled                 bool   `json:"enabled"`
	HeaderMode              string `json:"headerMode"`
	UseRestrictHostRedirect bool   `json:"useRestrictHostRedirect"`
}

// TumblrProvider toggles mature-content filtering on Tumblr.
type TumblrProvider struct {
	Enabled      bool `json:"enabled"`
	FilterMature bool `json:"filterMature"`
}

// RedditProvider toggles the over18 preference on Reddit.
type RedditProvider struct {
	Enabled      bool `json:"enabled"`
	FilterOver18 bool `json:"filterOver18"`
}

// Providers is the per-provider enforcement table.
type Providers struct {
	Google  GoogleProvider  `json:"google"`
	Bing    BingProvider    `json:"bing"`
	Yahoo   YahooProvider   `json:"yahoo"`
	DDG     DDGProvider     `json:"ddg"`
	YouTube YouTubeProvider `json:"youtube"`
	Tumblr  TumblrProvider  `json:"tumblr"`
	Reddit  RedditProvider  `json:"reddit"`
}

// SafeRequestMode configures outbound request rewriting.
type SafeRequestMode struct {
	Enabled                      bool             `json:"enabled"`
	AddPreferSafeHeader          bool             `json:"addPreferSafeHeader"`
	ApplyInPrivateWindows        bool             `json:"applyInPrivateWindows"`
	ForceUnderSelfLock           bool             `json:"forceUnderSelfLock"`
	IgnoreAllowlistUnderSelfLock bool             `json:"ignoreAllowlistUnderSelfLock"`
	BlockUserParamDowngrade      bool             `json:"blockUserParamDowngrade"`
	PerFrameEnforcement          FrameEnforcement `json:"perFrameEnforcement"`
	Providers                    Providers        `json:"providers"`
}
