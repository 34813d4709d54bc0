package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/ppiankov/contentlock/internal/clock"
	"github.com/ppiankov/contentlock/internal/lock"
	"github.com/ppiankov/contentlock/internal/model"
	"github.com/ppiankov/contentlock/internal/secret"
	"github.com/ppiankov/contentlock/internal/server"
	"github.com/ppiankov/contentlock/internal/service"
	"github.com/ppiankov/contentlock/internal/store"
)

func init() {
	secret.Cost = bcrypt.MinCost
}

// startDaemon runs an in-process gRPC daemon and points --addr at it.
func startDaemon(t *testing.T) (*service.Service, *clock.Mock) {
	t.Helper()
	c := clock.NewMock(100 * 60 * 60 * 1000)
	svc := service.New(service.Options{
		Store: store.New(store.NewMemoryBackend()),
		Clock: c,
	})
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	srv := server.New(server.Config{}, svc, nil)
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go srv.ServeOn(lis)
	t.Cleanup(func() {
		srv.GracefulStop()
		svc.Close()
	})

	prev := daemonAddr
	daemonAddr = lis.Addr().String()
	t.Cleanup(func() { daemonAddr = prev })
	return svc, c
}

func testCommand() (*cobra.Command, *bytes.Buffer) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	return cmd, &buf
}

func resetLockFlags() {
	lockDuration = 0
	lockScope = string(model.ScopeSexual)
	lockPassphrase = ""
	lockCooldown = model.DefaultCooldownMinutes
	lockNoEarlyUnlock = false
	lockIncrementOnBlock = false
	lockIncrementMinutes = 0
	lockStatusFormat = "text"
}

func TestLockFlowAgainstDaemon(t *testing.T) {
	_, c := startDaemon(t)
	resetLockFlags()
	lockDuration = time.Hour
	lockPassphrase = "correct horse"
	lockCooldown = 1

	cmd, out := testCommand()
	if err := runLockStart(cmd, nil); err != nil {
		t.Fatalf("lock start: %v", err)
	}
	if !strings.Contains(out.String(), "Self-lock started.") {
		t.Errorf("expected start confirmation, got %q", out.String())
	}

	cmd, out = testCommand()
	if err := runLockStatus(cmd, nil); err != nil {
		t.Fatalf("lock status: %v", err)
	}
	if !strings.Contains(out.String(), "self-lock:  active") {
		t.Errorf("expected active phase, got %q", out.String())
	}

	cmd, _ = testCommand()
	err := runLockRequestUnlock(cmd, []string{"wrong"})
	if kind := server.ErrorKind(err); kind != service.KindInvalidPassphrase {
		t.Fatalf("expected %s, got %v", service.KindInvalidPassphrase, err)
	}

	cmd, out = testCommand()
	if err := runLockRequestUnlock(cmd, []string{"correct horse"}); err != nil {
		t.Fatalf("request unlock: %v", err)
	}
	phrase := ""
	for _, line := range strings.Split(out.String(), "\n") {
		if p, ok := strings.CutPrefix(line, "Unlock phrase: "); ok {
			phrase = p
		}
	}
	if phrase == "" {
		t.Fatalf("expected unlock phrase in output, got %q", out.String())
	}

	cmd, _ = testCommand()
	err = runLockConfirmUnlock(cmd, []string{phrase})
	if kind := server.ErrorKind(err); kind != service.KindCooldownNotElapsed {
		t.Fatalf("expected %s, got %v", service.KindCooldownNotElapsed, err)
	}

	c.Advance(61 * time.Second)
	cmd, out = testCommand()
	if err := runLockConfirmUnlock(cmd, []string{phrase}); err != nil {
		t.Fatalf("confirm unlock: %v", err)
	}
	if !strings.Contains(out.String(), "Self-lock ended.") {
		t.Errorf("expected end confirmation, got %q", out.String())
	}
}

func TestLockStartRejectsZeroDuration(t *testing.T) {
	resetLockFlags()
	cmd, _ := testCommand()
	if err := runLockStart(cmd, nil); err == nil {
		t.Fatal("expected error for zero duration")
	}
}

func TestLockStatusJSON(t *testing.T) {
	startDaemon(t)
	resetLockFlags()
	lockStatusFormat = "json"

	cmd, out := testCommand()
	if err := runLockStatus(cmd, nil); err != nil {
		t.Fatalf("lock status: %v", err)
	}
	var got struct {
		Lock service.LockStatusResult `json:"lock"`
		Pin  lock.PinStatus           `json:"pin"`
	}
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("expected JSON output: %v\n%s", err, out.String())
	}
	if got.Lock.Phase != "inactive" {
		t.Errorf("expected inactive, got %q", got.Lock.Phase)
	}
	if got.Pin.HasPIN {
		t.Error("expected no PIN on a fresh record")
	}
}

func TestPinCommands(t *testing.T) {
	startDaemon(t)

	cmd, out := testCommand()
	if err := runPinSet(cmd, []string{"2468"}); err != nil {
		t.Fatalf("pin set: %v", err)
	}
	if !strings.Contains(out.String(), "PIN saved.") {
		t.Errorf("expected confirmation, got %q", out.String())
	}

	recoveryCount = 3
	defer func() { recoveryCount = 0 }()
	cmd, out = testCommand()
	if err := runPinRecovery(cmd, nil); err != nil {
		t.Fatalf("recovery codes: %v", err)
	}
	var codes []string
	for _, line := range strings.Split(out.String(), "\n") {
		if strings.HasPrefix(line, "  ") {
			codes = append(codes, strings.TrimSpace(line))
		}
	}
	if len(codes) != 3 {
		t.Fatalf("expected 3 codes, got %d: %q", len(codes), out.String())
	}

	cmd, _ = testCommand()
	if err := runPinUnlock(cmd, []string{"0000"}); server.ErrorKind(err) != service.KindInvalidPIN {
		t.Errorf("expected %s, got %v", service.KindInvalidPIN, err)
	}

	cmd, _ = testCommand()
	if err := runPinRedeem(cmd, []string{codes[0]}); err != nil {
		t.Fatalf("redeem: %v", err)
	}
	cmd, _ = testCommand()
	if err := runPinRedeem(cmd, []string{codes[0]}); server.ErrorKind(err) != service.KindInvalidRecoveryCode {
		t.Errorf("expected second redeem to fail with %s, got %v", service.KindInvalidRecoveryCode, err)
	}

	cmd, out = testCommand()
	if err := runPinStatus(cmd, nil); err != nil {
		t.Fatalf("pin status: %v", err)
	}
	var st lock.PinStatus
	if err := json.Unmarshal(out.Bytes(), &st); err != nil {
		t.Fatalf("expected JSON output: %v", err)
	}
	if !st.HasPIN || st.IsLocked {
		t.Errorf("expected PIN set and settings unlocked, got %+v", st)
	}
}

func TestStateSetAndGet(t *testing.T) {
	startDaemon(t)

	cmd, out := testCommand()
	if err := runStateSet(cmd, []string{`parental={"enabled":false}`}); err != nil {
		t.Fatalf("state set: %v", err)
	}
	if !strings.Contains(out.String(), "Updated 1 key(s).") {
		t.Errorf("unexpected output %q", out.String())
	}

	cmd, out = testCommand()
	if err := runStateGet(cmd, nil); err != nil {
		t.Fatalf("state get: %v", err)
	}
	var st model.PolicyState
	if err := json.Unmarshal(out.Bytes(), &st); err != nil {
		t.Fatalf("expected JSON state: %v", err)
	}
	if st.Parental.Enabled {
		t.Error("expected parental disabled after update")
	}
	if !st.Parental.Categories.Sexual {
		t.Error("expected untouched parental fields to keep their defaults")
	}
}

func TestParseAssignments(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    map[string]any
		wantErr bool
	}{
		{"json object", []string{`parental={"enabled":true}`}, map[string]any{"parental": map[string]any{"enabled": true}}, false},
		{"json bool", []string{"flag=true"}, map[string]any{"flag": true}, false},
		{"plain string", []string{"name=hello world"}, map[string]any{"name": "hello world"}, false},
		{"value with equals", []string{"q=a=b"}, map[string]any{"q": "a=b"}, false},
		{"missing equals", []string{"parental"}, nil, true},
		{"empty key", []string{"=1"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAssignments(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			gotJSON, _ := json.Marshal(got)
			wantJSON, _ := json.Marshal(tt.want)
			if string(gotJSON) != string(wantJSON) {
				t.Errorf("expected %s, got %s", wantJSON, gotJSON)
			}
		})
	}
}

func TestCheckAllowedPage(t *testing.T) {
	startDaemon(t)
	checkSignals = nil
	checkHTMLFile = ""
	checkFormat = "text"

	cmd, out := testCommand()
	if err := runCheck(cmd, []string{"https://example.com/"}); err != nil {
		t.Fatalf("check: %v", err)
	}
	if out.String() != "ALLOW\n" {
		t.Errorf("expected ALLOW, got %q", out.String())
	}
}

func TestFormatVerdict(t *testing.T) {
	got := formatVerdict(model.CheckResult{
		ShouldBlock: true,
		BlockData: &model.BlockData{
			BlockType: model.BlockSelfLock,
			Reasons:   []string{"Gambling"},
			LockInfo:  &model.LockInfo{EndsAt: "5:00 PM", RemainingFormatted: "1h 0m"},
		},
	})
	for _, want := range []string{"BLOCK (self-lock)", "reason: Gambling", "ends 5:00 PM (1h 0m left)"} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in %q", want, got)
		}
	}
	if formatVerdict(model.CheckResult{}) != "ALLOW\n" {
		t.Error("expected ALLOW for an empty verdict")
	}
}

func TestRemotePlannerFollowsLock(t *testing.T) {
	svc, _ := startDaemon(t)
	client, err := server.Dial(daemonAddr)
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()
	p := remotePlanner{client: client}
	ctx := context.Background()

	plan, err := p.SafeRequestConfig(ctx, service.SafeRequestRequest{URL: "https://www.google.com/search?q=x"})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if plan.Apply {
		t.Error("expected no rewrite while unlocked")
	}

	if _, err := svc.ActivateSelfLock(ctx, service.ActivateSelfLockRequest{DurationMs: 3_600_000}); err != nil {
		t.Fatalf("activate: %v", err)
	}
	plan, err = p.SafeRequestConfig(ctx, service.SafeRequestRequest{URL: "https://www.google.com/search?q=x"})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if !plan.Apply || !strings.Contains(plan.RedirectURL, "safe=active") {
		t.Errorf("expected safe-search redirect under self-lock, got %+v", plan)
	}
}
