package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/contentlock/internal/lock"
	"github.com/ppiankov/contentlock/internal/model"
	"github.com/ppiankov/contentlock/internal/service"
)

// --- Input/Output types ---

// CheckInput defines parameters for the contentlock_check tool.
type CheckInput struct {
	URL     string   `json:"url" jsonschema:"page URL"`
	Signals []string `json:"signals,omitempty" jsonschema:"content signal tags such as RTA or ICRA:violence"`
	HTML    string   `json:"html,omitempty" jsonschema:"raw page HTML; meta-tag signals are extracted from it"`
}

// CheckOutput contains the verdict.
type CheckOutput struct {
	ShouldBlock bool            `json:"should_block"`
	BlockType   model.BlockType `json:"block_type,omitempty"`
	Reasons     []string        `json:"reasons,omitempty"`
	LockInfo    *model.LockInfo `json:"lock_info,omitempty"`
}

// StatusInput is empty.
type StatusInput struct{}

// StatusOutput summarizes the self-lock and PIN state.
type StatusOutput struct {
	Phase              string `json:"phase"`
	Active             bool   `json:"active"`
	EndsAt             string `json:"ends_at,omitempty"`
	Remaining          string `json:"remaining,omitempty"`
	Scope              string `json:"scope,omitempty"`
	CanRequestUnlock   bool   `json:"can_request_unlock"`
	CooldownRemaining  string `json:"cooldown_remaining,omitempty"`
	PhraseExpiresAt    string `json:"phrase_expires_at,omitempty"`
	SchedulerRunning   bool   `json:"scheduler_running"`
	SettingsPINSet     bool   `json:"settings_pin_set"`
	SettingsLocked     bool   `json:"settings_locked"`
	SettingsUnlockedMs int64  `json:"settings_unlocked_remaining_ms,omitempty"`
}

// ActivateInput defines parameters for the contentlock_activate tool.
type ActivateInput struct {
	Duration         string `json:"duration" jsonschema:"lock duration, e.g. 2h or 90m"`
	Scope            string `json:"scope,omitempty" jsonschema:"sexual, sexual-violence or all"`
	Passphrase       string `json:"passphrase,omitempty" jsonschema:"passphrase required to request early unlock"`
	CooldownMinutes  int    `json:"cooldown_minutes,omitempty" jsonschema:"minutes between unlock request and confirmation"`
	AllowEarlyUnlock *bool  `json:"allow_early_unlock,omitempty" jsonschema:"whether early unlock is possible at all"`
	IncrementOnBlock bool   `json:"increment_on_block,omitempty" jsonschema:"extend the lock each time a page is blocked"`
	IncrementMinutes int    `json:"increment_minutes,omitempty" jsonschema:"minutes added per blocked page"`
}

// ActivateOutput confirms the new session.
type ActivateOutput struct {
	Active bool   `json:"active"`
	EndsAt string `json:"ends_at,omitempty"`
	Error  string `json:"error,omitempty"`
}

// RequestUnlockInput defines parameters for the contentlock_request_unlock tool.
type RequestUnlockInput struct {
	Passphrase string `json:"passphrase,omitempty" jsonschema:"self-lock passphrase"`
}

// RequestUnlockOutput carries the challenge phrase.
type RequestUnlockOutput struct {
	UnlockPhrase    string `json:"unlock_phrase,omitempty"`
	ConfirmAfter    string `json:"confirm_after,omitempty"`
	PhraseExpiresAt string `json:"phrase_expires_at,omitempty"`
	Error           string `json:"error,omitempty"`
}

// ConfirmUnlockInput defines parameters for the contentlock_confirm_unlock tool.
type ConfirmUnlockInput struct {
	Phrase string `json:"phrase" jsonschema:"unlock phrase, typed back exactly"`
}

// ConfirmUnlockOutput reports the outcome.
type ConfirmUnlockOutput struct {
	Unlocked bool   `json:"unlocked"`
	Error    string `json:"error,omitempty"`
}

// --- Handlers ---

func (s *Server) handleCheck(ctx context.Context, req *mcpsdk.CallToolRequest, input CheckInput) (*mcpsdk.CallToolResult, CheckOutput, error) {
	if strings.TrimSpace(input.URL) == "" {
		return nil, CheckOutput{}, fmt.Errorf("url is required")
	}
	var res model.CheckResult
	err := s.caller.Call(ctx, service.CheckBlockRequest{
		Signals: input.Signals,
		URL:     input.URL,
		HTML:    input.HTML,
	}, &res)
	if err != nil {
		return nil, CheckOutput{}, err
	}

	out := CheckOutput{ShouldBlock: res.ShouldBlock}
	if res.BlockData != nil {
		out.BlockType = res.BlockData.BlockType
		out.Reasons = res.BlockData.Reasons
		out.LockInfo = res.BlockData.LockInfo
	}
	return nil, out, nil
}

func (s *Server) handleStatus(ctx context.Context, req *mcpsdk.CallToolRequest, input StatusInput) (*mcpsdk.CallToolResult, StatusOutput, error) {
	var st service.LockStatusResult
	if err := s.caller.Call(ctx, service.LockStatusRequest{}, &st); err != nil {
		return nil, StatusOutput{}, err
	}
	var pin lock.PinStatus
	if err := s.caller.Call(ctx, service.CheckPinStatusRequest{}, &pin); err != nil {
		return nil, StatusOutput{}, err
	}

	out := StatusOutput{
		Phase:              st.Phase,
		Active:             st.Active,
		SchedulerRunning:   st.SchedulerRunning,
		SettingsPINSet:     pin.HasPIN,
		SettingsLocked:     pin.IsLocked,
		SettingsUnlockedMs: pin.RemainingMs,
	}
	if info := st.LockInfo; info != nil {
		out.EndsAt = info.EndsAt
		out.Remaining = info.RemainingFormatted
		out.Scope = string(info.Scope)
		out.CanRequestUnlock = info.CanRequestUnlock
		out.CooldownRemaining = info.CooldownRemainingFormatted
	}
	if st.PhraseExpiresAtEpochMs > 0 {
		out.PhraseExpiresAt = formatEpoch(st.PhraseExpiresAtEpochMs)
	}
	return nil, out, nil
}

func (s *Server) handleActivate(ctx context.Context, req *mcpsdk.CallToolRequest, input ActivateInput) (*mcpsdk.CallToolResult, ActivateOutput, error) {
	d, err := time.ParseDuration(input.Duration)
	if err != nil || d <= 0 {
		return &mcpsdk.CallToolResult{IsError: true}, ActivateOutput{Error: service.KindInvalidRequest}, nil
	}

	cmd := service.ActivateSelfLockRequest{
		DurationMs:       d.Milliseconds(),
		RequiresPassword: input.Passphrase != "",
		Passphrase:       input.Passphrase,
		CooldownMinutes:  input.CooldownMinutes,
		AllowEarlyUnlock: input.AllowEarlyUnlock,
		IncrementOnBlock: input.IncrementOnBlock,
		IncrementMinutes: input.IncrementMinutes,
		Scope:            model.Scope(input.Scope),
	}
	if cmd.CooldownMinutes == 0 {
		cmd.CooldownMinutes = model.DefaultCooldownMinutes
	}
	if err := s.caller.Call(ctx, cmd, nil); err != nil {
		if kind := errorKind(err); kind != "" {
			return &mcpsdk.CallToolResult{IsError: true}, ActivateOutput{Error: kind}, nil
		}
		return nil, ActivateOutput{}, err
	}

	var st service.LockStatusResult
	if err := s.caller.Call(ctx, service.LockStatusRequest{}, &st); err != nil {
		return nil, ActivateOutput{}, err
	}
	out := ActivateOutput{Active: st.Active}
	if st.LockInfo != nil {
		out.EndsAt = st.LockInfo.EndsAt
	}
	s.logger.Info("self-lock activated via mcp", "duration", d)
	return nil, out, nil
}

func (s *Server) handleRequestUnlock(ctx context.Context, req *mcpsdk.CallToolRequest, input RequestUnlockInput) (*mcpsdk.CallToolResult, RequestUnlockOutput, error) {
	var res service.UnlockRequestResult
	err := s.caller.Call(ctx, service.RequestEarlyUnlockRequest{Passphrase: input.Passphrase}, &res)
	if err != nil {
		if kind := errorKind(err); kind != "" {
			return &mcpsdk.CallToolResult{IsError: true}, RequestUnlockOutput{Error: kind}, nil
		}
		return nil, RequestUnlockOutput{}, err
	}
	return nil, RequestUnlockOutput{
		UnlockPhrase:    res.UnlockPhrase,
		ConfirmAfter:    (time.Duration(res.CooldownMs) * time.Millisecond).String(),
		PhraseExpiresAt: formatEpoch(res.PhraseExpiresAtEpochMs),
	}, nil
}

func (s *Server) handleConfirmUnlock(ctx context.Context, req *mcpsdk.CallToolRequest, input ConfirmUnlockInput) (*mcpsdk.CallToolResult, ConfirmUnlockOutput, error) {
	var res service.SuccessResult
	err := s.caller.Call(ctx, service.ConfirmUnlockRequest{Phrase: input.Phrase}, &res)
	if err != nil {
		if kind := errorKind(err); kind != "" {
			return &mcpsdk.CallToolResult{IsError: true}, ConfirmUnlockOutput{Error: kind}, nil
		}
		return nil, ConfirmUnlockOutput{}, err
	}
	return nil, ConfirmUnlockOutput{Unlocked: res.Success}, nil
}

func formatEpoch(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}
