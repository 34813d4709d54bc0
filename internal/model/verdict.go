package model

// Signal tags emitted by detectors.
const (
	TagRTA             = "RTA"
	TagGenericAdult    = "GENERIC:adult"
	TagGenericMature   = "GENERIC:mature"
	TagICRASexual      = "ICRA:sexual"
	TagICRAViolence    = "ICRA:violence"
	TagICRAProfanity   = "ICRA:profanity"
	TagICRADrugs       = "ICRA:drugs"
	TagICRAGambling    = "ICRA:gambling"
	TagICRAAgeVerify   = "ICRA:ageVerification"
	TagRedditProfile   = "reddit_nsfw_profile"
	TagRedditSubreddit = "reddit_nsfw_subreddit"

	// VendorPrefix starts every vendor tag: VENDOR:<platform>:<detail>.
	VendorPrefix = "VENDOR:"
	ICRAPrefix   = "ICRA:"
)

// BlockType names the branch that produced a block.
type BlockType string

const (
	BlockSelfLock BlockType = "self-lock"
	BlockParental BlockType = "parental"
)

// LockInfo describes the running self-lock on a block page.
type LockInfo struct {
	EndsAt                     string `json:"endsAt"`
	EndsAtEpochMs              int64  `json:"endsAtEpochMs"`
	RemainingMs                int64  `json:"remainingMs"`
	RemainingFormatted         string `json:"remainingFormatted"`
	Scope                      Scope  `json:"scope"`
	CanRequestUnlock           bool   `json:"canRequestUnlock"`
	CooldownRemainingMs        int64  `json:"cooldownRemaining"`
	CooldownRemainingFormatted string `json:"cooldownRemainingFormatted"`
}

// BlockData is returned to the content inspector when a page is blocked.
type BlockData struct {
	BlockType BlockType `json:"blockType"`
	URL       string    `json:"url"`
	Reasons   []string  `json:"reasons"`
	LockInfo  *LockInfo `json:"lockInfo,omitempty"`
}

// CheckResult is the verdict for one page.
type CheckResult struct {
	ShouldBlock bool       `json:"shouldBlock"`
	BlockData   *BlockData `json:"blockData,omitempty"`
}
