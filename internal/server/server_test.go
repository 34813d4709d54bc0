package server

import (
	"context"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ppiankov/contentlock/internal/clock"
	"github.com/ppiankov/contentlock/internal/model"
	"github.com/ppiankov/contentlock/internal/secret"
	"github.com/ppiankov/contentlock/internal/service"
	"github.com/ppiankov/contentlock/internal/store"
)

func init() {
	secret.Cost = bcrypt.MinCost
}

const hourMs = int64(60 * 60 * 1000)

type harness struct {
	client *Client
	svc    *service.Service
	clock  *clock.Mock
	addr   string
}

func testServer(t *testing.T) *harness {
	t.Helper()
	c := clock.NewMock(100 * hourMs)
	svc := service.New(service.Options{
		Store: store.New(store.NewMemoryBackend()),
		Clock: c,
	})
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	srv := New(Config{}, svc, nil)
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go srv.ServeOn(lis)

	client, err := Dial(lis.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
		srv.GracefulStop()
		svc.Close()
	})
	return &harness{client: client, svc: svc, clock: c, addr: lis.Addr().String()}
}

func TestCheckBlockOverGRPC(t *testing.T) {
	h := testServer(t)
	ctx := context.Background()

	var allow model.CheckResult
	if err := h.client.Call(ctx, service.CheckBlockRequest{URL: "https://example.com/"}, &allow); err != nil {
		t.Fatalf("CheckBlock: %v", err)
	}
	if allow.ShouldBlock {
		t.Error("expected allow without signals")
	}

	var block model.CheckResult
	req := service.CheckBlockRequest{Signals: []string{model.TagRTA}, URL: "https://adult.example/"}
	if err := h.client.Call(ctx, req, &block); err != nil {
		t.Fatalf("CheckBlock: %v", err)
	}
	if !block.ShouldBlock {
		t.Fatal("expected block for RTA label")
	}
	if block.BlockData == nil || block.BlockData.BlockType != model.BlockParental {
		t.Errorf("expected parental block, got %+v", block.BlockData)
	}
}

func TestSelfLockLifecycleOverGRPC(t *testing.T) {
	h := testServer(t)
	ctx := context.Background()

	activate := service.ActivateSelfLockRequest{
		DurationMs:       hourMs,
		RequiresPassword: true,
		Passphrase:       "hunter2",
		CooldownMinutes:  1,
	}
	if err := h.client.Call(ctx, activate, nil); err != nil {
		t.Fatalf("ActivateSelfLock: %v", err)
	}

	var st service.LockStatusResult
	if err := h.client.Call(ctx, service.LockStatusRequest{}, &st); err != nil {
		t.Fatalf("LockStatus: %v", err)
	}
	if st.Phase != "active" || !st.Active || st.LockInfo == nil {
		t.Fatalf("expected active status with lock info, got %+v", st)
	}
	if st.LockInfo.EndsAtEpochMs != h.clock.NowMs()+hourMs {
		t.Errorf("expected endsAt %d, got %d", h.clock.NowMs()+hourMs, st.LockInfo.EndsAtEpochMs)
	}

	var ch service.UnlockRequestResult
	if err := h.client.Call(ctx, service.RequestEarlyUnlockRequest{Passphrase: "hunter2"}, &ch); err != nil {
		t.Fatalf("RequestEarlyUnlock: %v", err)
	}
	if ch.UnlockPhrase == "" || ch.CooldownMs != 60_000 {
		t.Fatalf("unexpected challenge %+v", ch)
	}

	err := h.client.Call(ctx, service.ConfirmUnlockRequest{Phrase: ch.UnlockPhrase}, nil)
	if ErrorKind(err) != service.KindCooldownNotElapsed {
		t.Fatalf("expected CooldownNotElapsed, got %v", err)
	}

	h.clock.Advance(61 * time.Second)
	var ok service.SuccessResult
	if err := h.client.Call(ctx, service.ConfirmUnlockRequest{Phrase: ch.UnlockPhrase}, &ok); err != nil {
		t.Fatalf("ConfirmUnlock: %v", err)
	}
	if !ok.Success {
		t.Error("expected success")
	}
}

func TestRejectedCommandStatusCodes(t *testing.T) {
	h := testServer(t)
	conn, err := grpc.NewClient(h.addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	pinOnly := func(pin string) *structpb.Struct {
		s, _ := structpb.NewStruct(map[string]any{"pin": pin})
		return s
	}
	empty := &structpb.Struct{}

	tests := []struct {
		method string
		in     *structpb.Struct
		code   codes.Code
		kind   string
	}{
		{"ConfirmUnlock", empty, codes.FailedPrecondition, service.KindNotActive},
		{"PinUnlock", pinOnly("1234"), codes.FailedPrecondition, service.KindNoPINSet},
		{"SetSettingsPIN", pinOnly(""), codes.InvalidArgument, service.KindInvalidRequest},
		{"RedeemRecoveryCode", empty, codes.PermissionDenied, service.KindInvalidRecoveryCode},
		{"ActivateSelfLock", empty, codes.InvalidArgument, service.KindInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			out := new(structpb.Struct)
			err := conn.Invoke(context.Background(), FullMethod(tt.method), tt.in, out)
			st, ok := status.FromError(err)
			if !ok {
				t.Fatalf("expected status error, got %v", err)
			}
			if st.Code() != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, st.Code())
			}
			if st.Message() != tt.kind {
				t.Errorf("expected kind %s, got %s", tt.kind, st.Message())
			}
		})
	}
}

func TestUnknownMethodUnimplemented(t *testing.T) {
	h := testServer(t)
	conn, err := grpc.NewClient(h.addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	err = conn.Invoke(context.Background(), FullMethod("DropTables"), &structpb.Struct{}, new(structpb.Struct))
	if status.Code(err) != codes.Unimplemented {
		t.Errorf("expected Unimplemented, got %v", err)
	}
}

func TestServiceDescCoversEveryCommand(t *testing.T) {
	desc := serviceDesc()
	names := service.CommandNames()
	if len(desc.Methods) != len(names) {
		t.Fatalf("expected %d methods, got %d", len(names), len(desc.Methods))
	}
	for i, m := range desc.Methods {
		if m.MethodName != names[i] {
			t.Errorf("method %d: expected %s, got %s", i, names[i], m.MethodName)
		}
	}
}

func TestGetStateRoundTripsInt64(t *testing.T) {
	h := testServer(t)
	ctx := context.Background()
	if err := h.client.Call(ctx, service.ActivateSelfLockRequest{DurationMs: hourMs}, nil); err != nil {
		t.Fatalf("ActivateSelfLock: %v", err)
	}

	var res service.StateResult
	if err := h.client.Call(ctx, service.GetStateRequest{}, &res); err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if res.State == nil || !res.State.SelfLock.Active {
		t.Fatalf("expected active self-lock, got %+v", res.State)
	}
	if res.State.SelfLock.EndsAtEpochMs != h.clock.NowMs()+hourMs {
		t.Errorf("expected endsAt %d, got %d", h.clock.NowMs()+hourMs, res.State.SelfLock.EndsAtEpochMs)
	}
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestConfigReloaderAppliesLevelAndHash(t *testing.T) {
	h := testServer(t)
	path := writeTempFile(t, "config.yaml", "storage:\n  backend: memory\nlog:\n  level: debug\n")

	level := new(slog.LevelVar)
	r := &ConfigReloader{Path: path, Service: h.svc, Level: level}
	if err := r.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if level.Level() != slog.LevelDebug {
		t.Errorf("expected debug level, got %s", level.Level())
	}
	first := r.Hash()
	if first == "" {
		t.Fatal("expected hash after reload")
	}

	if err := os.WriteFile(path, []byte("storage:\n  backend: memory\nlog:\n  level: error\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := r.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if level.Level() != slog.LevelError {
		t.Errorf("expected error level, got %s", level.Level())
	}
	if r.Hash() == first {
		t.Error("expected hash to change")
	}
}

func TestConfigReloaderKeepsRunningConfigOnError(t *testing.T) {
	h := testServer(t)
	path := writeTempFile(t, "config.yaml", "log:\n  level: warn\nstorage:\n  backend: memory\n")

	level := new(slog.LevelVar)
	r := &ConfigReloader{Path: path, Service: h.svc, Level: level}
	if err := r.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	hash := r.Hash()

	if err := os.WriteFile(path, []byte("storage:\n  backend: floppy\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := r.Reload(); err == nil {
		t.Fatal("expected error for unknown backend")
	}
	if level.Level() != slog.LevelWarn || r.Hash() != hash {
		t.Error("expected running config untouched after failed reload")
	}
}

type countingTarget struct {
	n atomic.Int32
}

func (c *countingTarget) Reload() error {
	c.n.Add(1)
	return nil
}

func TestReloaderTriggersOnWrite(t *testing.T) {
	path := writeTempFile(t, "config.yaml", "log:\n  level: info\n")
	target := &countingTarget{}

	r, err := NewReloader(target, []string{path, "", filepath.Join(t.TempDir(), "missing.yaml")}, nil)
	if err != nil {
		t.Fatalf("NewReloader: %v", err)
	}
	if len(r.Paths()) != 1 {
		t.Errorf("expected 1 watched path, got %v", r.Paths())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	if err := os.WriteFile(path, []byte("log:\n  level: debug\n"), 0600); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for target.n.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if target.n.Load() == 0 {
		t.Error("expected reload after write") // debounce is 500ms
	}
}
