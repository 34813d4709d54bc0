package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// Command is one request variant. Every *Request type in this package
// implements it.
type Command interface {
	CommandName() string
}

func (CheckBlockRequest) CommandName() string            { return "CheckBlock" }
func (GetStateRequest) CommandName() string              { return "GetState" }
func (UpdateStateRequest) CommandName() string           { return "UpdateState" }
func (ActivateSelfLockRequest) CommandName() string      { return "ActivateSelfLock" }
func (RequestEarlyUnlockRequest) CommandName() string    { return "RequestEarlyUnlock" }
func (ConfirmUnlockRequest) CommandName() string         { return "ConfirmUnlock" }
func (SetPassphraseRequest) CommandName() string         { return "SetSelfLockPassphrase" }
func (SetPINRequest) CommandName() string                { return "SetSettingsPIN" }
func (PinUnlockRequest) CommandName() string             { return "PinUnlock" }
func (CheckPinStatusRequest) CommandName() string        { return "CheckPinStatus" }
func (VerifyPassphraseRequest) CommandName() string      { return "VerifyPassphrase" }
func (NotifyBlockOccurredRequest) CommandName() string   { return "NotifyBlockOccurred" }
func (TickRequest) CommandName() string                  { return "Tick" }
func (LockStatusRequest) CommandName() string            { return "LockStatus" }
func (GenerateRecoveryCodesRequest) CommandName() string { return "GenerateRecoveryCodes" }
func (RedeemRecoveryCodeRequest) CommandName() string    { return "RedeemRecoveryCode" }
func (SafeRequestRequest) CommandName() string           { return "SafeRequestConfig" }

// commands builds an empty request per command name, for decoding.
var commands = map[string]func() Command{}

func init() {
	for _, c := range []func() Command{
		func() Command { return &CheckBlockRequest{} },
		func() Command { return &GetStateRequest{} },
		func() Command { return &UpdateStateRequest{} },
		func() Command { return &ActivateSelfLockRequest{} },
		func() Command { return &RequestEarlyUnlockRequest{} },
		func() Command { return &ConfirmUnlockRequest{} },
		func() Command { return &SetPassphraseRequest{} },
		func() Command { return &SetPINRequest{} },
		func() Command { return &PinUnlockRequest{} },
		func() Command { return &CheckPinStatusRequest{} },
		func() Command { return &VerifyPassphraseRequest{} },
		func() Command { return &NotifyBlockOccurredRequest{} },
		func() Command { return &TickRequest{} },
		func() Command { return &LockStatusRequest{} },
		func() Command { return &GenerateRecoveryCodesRequest{} },
		func() Command { return &RedeemRecoveryCodeRequest{} },
		func() Command { return &SafeRequestRequest{} },
	} {
		commands[c().CommandName()] = c
	}
}

// CommandNames lists every command in sorted order.
func CommandNames() []string {
	names := make([]string, 0, len(commands))
	for n := range commands {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// DecodeCommand builds the named command from a JSON payload. An empty
// payload yields the zero request.
func DecodeCommand(name string, payload []byte) (Command, error) {
	newCmd, ok := commands[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown command %q", ErrInvalidRequest, name)
	}
	cmd := newCmd()
	if len(bytes.TrimSpace(payload)) > 0 {
		if err := json.Unmarshal(payload, cmd); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRequest, name, err)
		}
	}
	return cmd, nil
}

// Dispatch routes a command to its handler. Both value and pointer
// requests are accepted.
func (s *Service) Dispatch(ctx context.Context, cmd Command) (any, error) {
	switch c := cmd.(type) {
	case *CheckBlockRequest:
		return s.CheckBlock(ctx, *c)
	case CheckBlockRequest:
		return s.CheckBlock(ctx, c)
	case *GetStateRequest, GetStateRequest:
		return s.GetState(ctx)
	case *UpdateStateRequest:
		return s.UpdateState(ctx, *c)
	case UpdateStateRequest:
		return s.UpdateState(ctx, c)
	case *ActivateSelfLockRequest:
		return s.ActivateSelfLock(ctx, *c)
	case ActivateSelfLockRequest:
		return s.ActivateSelfLock(ctx, c)
	case *RequestEarlyUnlockRequest:
		return s.RequestEarlyUnlock(ctx, *c)
	case RequestEarlyUnlockRequest:
		return s.RequestEarlyUnlock(ctx, c)
	case *ConfirmUnlockRequest:
		return s.ConfirmUnlock(ctx, *c)
	case ConfirmUnlockRequest:
		return s.ConfirmUnlock(ctx, c)
	case *SetPassphraseRequest:
		return s.SetSelfLockPassphrase(ctx, *c)
	case SetPassphraseRequest:
		return s.SetSelfLockPassphrase(ctx, c)
	case *SetPINRequest:
		return s.SetSettingsPIN(ctx, *c)
	case SetPINRequest:
		return s.SetSettingsPIN(ctx, c)
	case *PinUnlockRequest:
		return s.PinUnlock(ctx, *c)
	case PinUnlockRequest:
		return s.PinUnlock(ctx, c)
	case *CheckPinStatusRequest, CheckPinStatusRequest:
		return s.CheckPinStatus(ctx)
	case *VerifyPassphraseRequest:
		return s.VerifyPassphrase(ctx, *c)
	case VerifyPassphraseRequest:
		return s.VerifyPassphrase(ctx, c)
	case *NotifyBlockOccurredRequest, NotifyBlockOccurredRequest:
		return s.NotifyBlockOccurred(ctx)
	case *TickRequest, TickRequest:
		return s.Tick(ctx)
	case *LockStatusRequest, LockStatusRequest:
		return s.LockStatus(ctx)
	case *GenerateRecoveryCodesRequest:
		return s.GenerateRecoveryCodes(ctx, *c)
	case GenerateRecoveryCodesRequest:
		return s.GenerateRecoveryCodes(ctx, c)
	case *RedeemRecoveryCodeRequest:
		return s.RedeemRecoveryCode(ctx, *c)
	case RedeemRecoveryCodeRequest:
		return s.RedeemRecoveryCode(ctx, c)
	case *SafeRequestRequest:
		return s.SafeRequestConfig(ctx, *c)
	case SafeRequestRequest:
		return s.SafeRequestConfig(ctx, c)
	default:
		return nil, fmt.Errorf("%w: unsupported command %T", ErrInvalidRequest, cmd)
	}
}
