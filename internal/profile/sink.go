// Package profile forwards classified introductions to the external
// profile service. Submissions are best-effort from the pipeline's
// perspective.
package profile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Submission is the payload forwarded for an introduction message.
type Submission struct {
	Name string `json:"name"`
	Bio  string `json:"bio"`
}

// Sink accepts profile submissions.
type Sink interface {
	Submit(ctx context.Context, sub Submission) error
}

// HTTPSink posts submissions to the profile endpoint of the web app.
type HTTPSink struct {
	baseURL string
	client  *http.Client
	log     *slog.Logger
}

// NewHTTPSink creates a sink posting to baseURL + "/api/profile".
func NewHTTPSink(baseURL string, timeout time.Duration, log *slog.Logger) *HTTPSink {
	return &HTTPSink{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		log:     log.With("component", "profile_sink"),
	}
}

// Submit posts the submission. A non-2xx status is an error.
func (s *HTTPSink) Submit(ctx context.Context, sub Submission) error {
	body, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("failed to encode profile submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/profile", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build profile request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("profile request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("profile API returned status %s", resp.Status)
	}

	s.log.DebugContext(ctx, "Profile submitted", "name", sub.Name)
	return nil
}

// NopSink discards submissions; used when no profile endpoint is
// configured.
type NopSink struct{}

// Submit discards the submission.
func (NopSink) Submit(context.Context, Submission) error { return nil }
