// Package azure talks to the Azure OpenAI and Azure Speech REST endpoints.
package azure

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"

	"github.com/dskvich/voice-relay-bot/pkg/logger"
)

const (
	userAgent         = "voice-relay-bot"
	maxErrorBodyBytes = 512
)

func newHTTPClient(timeout time.Duration) *http.Client {
	hc := cleanhttp.DefaultPooledClient()
	hc.Timeout = timeout
	return hc
}

func joinURL(endpoint, path string) string {
	return strings.TrimRight(endpoint, "/") + path
}

// post sends body to url and returns the response body of a 2xx reply.
func post(ctx context.Context, hc *http.Client, url string, headers map[string]string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("creating HTTP request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing HTTP request: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if closeErr := Body.Close(); closeErr != nil {
			slog.ErrorContext(ctx, "closing body", logger.Err(closeErr))
		}
	}(resp.Body)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(respBody) > maxErrorBodyBytes {
			respBody = respBody[:maxErrorBodyBytes]
		}
		return nil, fmt.Errorf("unexpected status code: %d, response: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}
