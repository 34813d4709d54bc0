package lock

import (
	"errors"
	"testing"
	"time"

	"github.com/ppiankov/contentlock/internal/clock"
	"github.com/ppiankov/contentlock/internal/model"
)

func TestPinLifecycle(t *testing.T) {
	c := clock.NewMock(1_000_000)
	state := model.DefaultState()

	status, _ := CheckPinStatus(state, c)
	if status.HasPIN || status.IsLocked {
		t.Errorf("expected no PIN and unlocked, got %+v", status)
	}

	until, err := SetSettingsPIN(state, c, "1234")
	if err != nil {
		t.Fatal(err)
	}
	if until != c.NowMs()+model.PinUnlockWindowMs {
		t.Errorf("expected 5 minute window, got until=%d", until)
	}

	status, changed := CheckPinStatus(state, c)
	if changed || !status.HasPIN || status.IsLocked || status.RemainingMs != model.PinUnlockWindowMs {
		t.Errorf("expected unlocked with full window, got %+v changed=%v", status, changed)
	}

	c.Advance(5 * time.Minute)
	status, changed = CheckPinStatus(state, c)
	if !changed || !status.IsLocked || status.RemainingMs != 0 {
		t.Errorf("expected relock after window, got %+v changed=%v", status, changed)
	}
	if state.PinLock.UnlockedUntilEpochMs != 0 {
		t.Error("expected window cleared")
	}

	if _, err := PinUnlock(state, c, "0000"); !errors.Is(err, ErrInvalidPIN) {
		t.Errorf("expected ErrInvalidPIN, got %v", err)
	}
	if _, err := PinUnlock(state, c, "1234"); err != nil {
		t.Fatalf("pin unlock: %v", err)
	}
	if status, _ := CheckPinStatus(state, c); status.IsLocked {
		t.Error("expected unlocked after correct PIN")
	}
}

func TestPinUnlockNoPIN(t *testing.T) {
	if _, err := PinUnlock(model.DefaultState(), clock.NewMock(0), "1234"); !errors.Is(err, ErrNoPINSet) {
		t.Errorf("expected ErrNoPINSet, got %v", err)
	}
}

func TestVerifyPassphraseKinds(t *testing.T) {
	c := clock.NewMock(0)
	state := model.DefaultState()

	if VerifyPassphrase(state, "x", PassSettings) {
		t.Error("missing PIN hash must not verify")
	}
	if _, err := SetSettingsPIN(state, c, "pin"); err != nil {
		t.Fatal(err)
	}
	if err := SetPassphrase(state, "phrase"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		pass string
		kind PassKind
		want bool
	}{
		{"pin", PassSettings, true},
		{"phrase", PassSettings, false},
		{"phrase", PassSelfLock, true},
		{"pin", PassSelfLock, false},
	}
	for _, tt := range tests {
		if got := VerifyPassphrase(state, tt.pass, tt.kind); got != tt.want {
			t.Errorf("VerifyPassphrase(%q, %s) = %v, want %v", tt.pass, tt.kind, got, tt.want)
		}
	}
}

func TestRecoveryCodesSingleUse(t *testing.T) {
	c := clock.NewMock(1_000_000)
	state := model.DefaultState()
	state.PinLock.Locked = true

	codes, err := GenerateRecoveryCodes(state, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(codes) != 3 || len(state.RecoveryCodesHash) != 3 {
		t.Fatalf("expected 3 codes and hashes, got %d/%d", len(codes), len(state.RecoveryCodesHash))
	}

	until, err := RedeemRecoveryCode(state, c, codes[1])
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if until != c.NowMs()+model.PinUnlockWindowMs || state.PinLock.Locked {
		t.Error("expected settings unlock window after redeem")
	}
	if len(state.RecoveryCodesHash) != 2 {
		t.Errorf("expected 2 remaining hashes, got %d", len(state.RecoveryCodesHash))
	}

	if _, err := RedeemRecoveryCode(state, c, codes[1]); !errors.Is(err, ErrInvalidRecoveryCode) {
		t.Errorf("expected reused code rejected, got %v", err)
	}
	if _, err := RedeemRecoveryCode(state, c, "nothex"); !errors.Is(err, ErrInvalidRecoveryCode) {
		t.Errorf("expected unknown code rejected, got %v", err)
	}
}

func TestRecoveryCodeDoesNotEndSelfLock(t *testing.T) {
	c := clock.NewMock(1_000_000)
	state := activeState(t, c, ActivateParams{DurationMs: hour})
	codes, err := GenerateRecoveryCodes(state, 1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := RedeemRecoveryCode(state, c, codes[0]); err != nil {
		t.Fatal(err)
	}
	if !state.SelfLock.Active {
		t.Error("recovery code must not end a self-lock")
	}
}
