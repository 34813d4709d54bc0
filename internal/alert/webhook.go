package alert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const (
	requestTimeout  = 5 * time.Second
	deliveryTimeout = 30 * time.Second
	maxAttempts     = 3
)

// retryBackoff is multiplied by the attempt number between retries.
var retryBackoff = time.Second

var httpClient = &http.Client{Timeout: requestTimeout}

// errRejected marks a 4xx answer; the endpoint will not accept the
// payload no matter how often it is sent.
var errRejected = errors.New("webhook rejected")

// Send delivers event to the webhook in cfg. Network errors and 5xx
// answers are retried with a linear backoff; 4xx answers are final.
func Send(ctx context.Context, cfg AlertConfig, event AlertEvent) error {
	body, err := FormatPayload(cfg.Format, event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("webhook cancelled: %w", err)
		}
		lastErr = post(ctx, cfg, body)
		if lastErr == nil || errors.Is(lastErr, errRejected) {
			return lastErr
		}
		if attempt == maxAttempts {
			break
		}
		t := time.NewTimer(time.Duration(attempt) * retryBackoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("webhook cancelled: %w", ctx.Err())
		case <-t.C:
		}
	}
	return fmt.Errorf("webhook failed after %d attempts: %w", maxAttempts, lastErr)
}

func post(ctx context.Context, cfg AlertConfig, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", errRejected, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()

	switch code := resp.StatusCode; {
	case code < 300:
		return nil
	case code < 500:
		return fmt.Errorf("%w: HTTP %d", errRejected, code)
	default:
		return fmt.Errorf("webhook server error: HTTP %d", code)
	}
}
