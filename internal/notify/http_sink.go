package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const bookingConfirmationPath = "/notify/booking-confirmation"

type HTTPSink struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPSink(baseURL string, timeout time.Duration) *HTTPSink {
	return &HTTPSink{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSink) Send(ctx context.Context, msg BookingConfirmation) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal confirmation: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+bookingConfirmationPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post confirmation: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("post confirmation: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (s *HTTPSink) Close() error {
	s.httpClient.CloseIdleConnections()
	return nil
}
