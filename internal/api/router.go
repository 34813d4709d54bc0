// Package api exposes the command surface as HTTP/JSON for the browser
// extension.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ppiankov/contentlock/internal/service"
)

const (
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 5 * time.Second
)

// Router serves the HTTP API on top of a Service.
type Router struct {
	mux    *chi.Mux
	svc    *service.Service
	logger *slog.Logger
}

// NewRouter builds the route table.
func NewRouter(svc *service.Service, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	rt := &Router{mux: chi.NewRouter(), svc: svc, logger: logger}
	rt.setup()
	return rt
}

// ServeHTTP implements http.Handler.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.mux.ServeHTTP(w, r)
}

func (rt *Router) setup() {
	r := rt.mux
	r.Use(chimiddleware.RequestID)
	r.Use(requestLogger(rt.logger))
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", rt.healthz)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/check", handle[service.CheckBlockRequest](rt))
		r.Get("/state", handle[service.GetStateRequest](rt))
		r.Patch("/state", handle[service.UpdateStateRequest](rt))
		r.Post("/verify", handle[service.VerifyPassphraseRequest](rt))
		r.Post("/block-occurred", handle[service.NotifyBlockOccurredRequest](rt))
		r.Post("/safe-request", handle[service.SafeRequestRequest](rt))

		r.Route("/self-lock", func(r chi.Router) {
			r.Get("/", handle[service.LockStatusRequest](rt))
			r.Post("/", handle[service.ActivateSelfLockRequest](rt))
			r.Post("/unlock-request", handle[service.RequestEarlyUnlockRequest](rt))
			r.Post("/unlock-confirm", handle[service.ConfirmUnlockRequest](rt))
			r.Put("/passphrase", handle[service.SetPassphraseRequest](rt))
			r.Post("/tick", handle[service.TickRequest](rt))
		})

		r.Route("/pin", func(r chi.Router) {
			r.Get("/", handle[service.CheckPinStatusRequest](rt))
			r.Put("/", handle[service.SetPINRequest](rt))
			r.Post("/unlock", handle[service.PinUnlockRequest](rt))
		})

		r.Route("/recovery-codes", func(r chi.Router) {
			r.Post("/", handle[service.GenerateRecoveryCodesRequest](rt))
			r.Post("/redeem", handle[service.RedeemRecoveryCodeRequest](rt))
		})

		// Message-style entry point: the extension's background script
		// sends {action, payload} pairs and maps action to a command name.
		r.Post("/commands/{name}", rt.command)
	})
}

func (rt *Router) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"schedulerRunning": rt.svc.SchedulerRunning(),
	})
}

func (rt *Router) command(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		rt.writeError(w, service.ErrInvalidRequest)
		return
	}
	cmd, err := service.DecodeCommand(chi.URLParam(r, "name"), payload)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	rt.dispatch(w, r, cmd)
}

// handle decodes the request body into T and dispatches it. An empty body
// is the zero request.
func handle[T service.Command](rt *Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var cmd T
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err := dec.Decode(&cmd); err != nil && !errors.Is(err, io.EOF) {
			rt.writeError(w, service.ErrInvalidRequest)
			return
		}
		rt.dispatch(w, r, cmd)
	}
}

func (rt *Router) dispatch(w http.ResponseWriter, r *http.Request, cmd service.Command) {
	res, err := rt.svc.Dispatch(r.Context(), cmd)
	if err != nil {
		if !service.IsUserError(err) {
			rt.logger.Error("command failed", "command", cmd.CommandName(), "error", err)
		}
		rt.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ErrorResponse is the body of every failed command.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (rt *Router) writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), ErrorResponse{Error: service.ErrorKind(err)})
}

func statusFor(err error) int {
	switch service.Classify(err) {
	case service.ClassPrecondition:
		return http.StatusConflict
	case service.ClassDenied:
		return http.StatusForbidden
	case service.ClassInvalid:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// ListenAndServe serves h on addr until ctx is cancelled, then shuts down
// gracefully.
func ListenAndServe(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
