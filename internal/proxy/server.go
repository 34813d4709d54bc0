// Package proxy is a forward HTTP proxy that applies the safe-request
// rewrites to browsers that do not run the extension.
package proxy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/ppiankov/contentlock/internal/safereq"
	"github.com/ppiankov/contentlock/internal/service"
)

const (
	dialTimeout     = 10 * time.Second
	maxFilterBytes  = 16 << 20
	shutdownTimeout = 5 * time.Second
)

// Planner decides the rewrite for one request. *service.Service
// satisfies it.
type Planner interface {
	SafeRequestConfig(ctx context.Context, req service.SafeRequestRequest) (safereq.Plan, error)
}

// Config holds proxy server configuration.
type Config struct {
	Port      int
	Planner   Planner
	Transport http.RoundTripper
	Logger    *slog.Logger
}

// Server rewrites plain-HTTP search and video requests and tunnels
// CONNECT unchanged. There is no TLS interception, so HTTPS traffic is
// only protected where the browser honours the extension or DNS-level
// safe-search.
type Server struct {
	planner   Planner
	transport http.RoundTripper
	logger    *slog.Logger
	srv       *http.Server
}

// NewServer creates a proxy server with the given configuration.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Planner == nil {
		return nil, fmt.Errorf("proxy: planner is required")
	}
	if cfg.Transport == nil {
		cfg.Transport = http.DefaultTransport
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Server{
		planner:   cfg.Planner,
		transport: cfg.Transport,
		logger:    cfg.Logger,
	}
	s.srv = &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", cfg.Port),
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Start begins listening for proxy connections. Blocks until context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.srv.Addr, err)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.srv.Shutdown(shutdownCtx)
	}()

	err = s.srv.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.srv.Addr
}

// ServeHTTP dispatches incoming requests to the appropriate handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodConnect {
		s.handleConnect(w, r)
	} else {
		s.handleHTTP(w, r)
	}
}

// handleHTTP plans, rewrites and forwards a plain HTTP proxy request.
func (s *Server) handleHTTP(w http.ResponseWriter, r *http.Request) {
	if !r.URL.IsAbs() {
		http.Error(w, "proxy requests must use an absolute URL", http.StatusBadRequest)
		return
	}
	rawURL := r.URL.String()

	plan, err := s.planner.SafeRequestConfig(r.Context(), service.SafeRequestRequest{
		URL:          rawURL,
		ResourceType: safereq.ResourceTypeFromFetchDest(r.Header.Get("Sec-Fetch-Dest")),
	})
	if err != nil {
		// Fail closed.
		s.logger.Error("safe-request plan failed", "url", rawURL, "error", err)
		http.Error(w, "policy unavailable", http.StatusServiceUnavailable)
		return
	}

	if plan.Apply && plan.RedirectURL != "" && (r.Method == http.MethodGet || r.Method == http.MethodHead) {
		s.logger.Debug("safe-request redirect", "from", rawURL, "to", plan.RedirectURL)
		http.Redirect(w, r, plan.RedirectURL, http.StatusTemporaryRedirect)
		return
	}

	out := r.Clone(r.Context())
	out.RequestURI = ""
	removeHopHeaders(out.Header)
	if plan.Apply {
		for k, v := range plan.Headers {
			out.Header.Set(k, v)
		}
		if plan.Filter != "" {
			// Let the transport negotiate and decode compression so the
			// body can be filtered.
			out.Header.Del("Accept-Encoding")
		}
	}

	resp, err := s.transport.RoundTrip(out)
	if err != nil {
		http.Error(w, fmt.Sprintf("proxy error: %v", err), http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	body := io.Reader(resp.Body)
	if plan.Apply && plan.Filter != "" && resp.StatusCode == http.StatusOK && isJSON(resp.Header.Get("Content-Type")) {
		filtered, err := s.filterBody(plan.Filter, resp)
		if err != nil {
			http.Error(w, fmt.Sprintf("proxy error: %v", err), http.StatusBadGateway)
			return
		}
		body = bytes.NewReader(filtered)
		resp.Header.Set("Content-Length", strconv.Itoa(len(filtered)))
		resp.Header.Del("Content-Encoding")
	}

	removeHopHeaders(resp.Header)
	for k, vv := range resp.Header {
		for _, v := range vv {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, body)
}

func (s *Server) filterBody(filter string, resp *http.Response) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFilterBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxFilterBytes {
		return nil, fmt.Errorf("response too large to filter")
	}
	filtered, removed, err := safereq.FilterJSON(filter, data)
	if err != nil {
		// Not the API shape the filter knows; pass it through.
		s.logger.Debug("response filter skipped", "filter", filter, "error", err)
		return data, nil
	}
	if removed > 0 {
		s.logger.Debug("response filtered", "filter", filter, "removed", removed)
	}
	return filtered, nil
}

// handleConnect tunnels HTTPS unchanged.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	targetConn, err := net.DialTimeout("tcp", r.Host, dialTimeout)
	if err != nil {
		http.Error(w, fmt.Sprintf("tunnel error: %v", err), http.StatusBadGateway)
		return
	}

	hijacker, ok := w.(http.Hijacker)
	if !ok {
		targetConn.Close()
		http.Error(w, "hijacking not supported", http.StatusInternalServerError)
		return
	}

	clientConn, _, err := hijacker.Hijack()
	if err != nil {
		targetConn.Close()
		http.Error(w, fmt.Sprintf("hijack error: %v", err), http.StatusInternalServerError)
		return
	}
	if _, err := io.WriteString(clientConn, "HTTP/1.1 200 Connection Established\r\n\r\n"); err != nil {
		clientConn.Close()
		targetConn.Close()
		return
	}

	// Bidirectional tunnel
	go func() {
		defer targetConn.Close()
		defer clientConn.Close()
		io.Copy(targetConn, clientConn)
	}()
	go func() {
		defer targetConn.Close()
		defer clientConn.Close()
		io.Copy(clientConn, targetConn)
	}()
}

var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

func removeHopHeaders(h http.Header) {
	for _, k := range hopHeaders {
		h.Del(k)
	}
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && (mt == "application/json" || mt == "text/json")
}
