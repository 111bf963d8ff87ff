package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/naffles/nft-staking-rewards/internal/observability/metrics"
	"github.com/rs/zerolog/log"
)

// BaseClientInterface is implemented by every HTTP collaborator client
type BaseClientInterface interface {
	GetBaseURL() string
	GetDefaultRequestTimeout() time.Duration
	GetHttpClient() *http.Client
}

type HttpClientOptions struct {
	// Path is appended to the base url, including any query string
	Path string
	// TemplatePath is the low cardinality path used as metrics label
	TemplatePath string
	Timeout      time.Duration
	Headers      map[string]string
}

// HttpError carries the status code of a non 2xx response
type HttpError struct {
	StatusCode int
	Message    string
}

func (e *HttpError) Error() string {
	if e.StatusCode == http.StatusTooManyRequests {
		return fmt.Sprintf("rate limit exceeded: %s", e.Message)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Message)
}

// IsRetryable reports whether a request may succeed when repeated:
// transport failures, 429 and 5xx responses.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var httpErr *HttpError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= http.StatusInternalServerError
	}
	// a cancelled caller must not be retried
	return !errors.Is(err, context.Canceled)
}

func isAllowedMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodPost
}

func sendRequest[I, R any](
	ctx context.Context, client BaseClientInterface, method string, opts *HttpClientOptions, input *I,
) (*R, error) {
	if !isAllowedMethod(method) {
		return nil, fmt.Errorf("method %s is not allowed", method)
	}

	timeout := client.GetDefaultRequestTimeout()
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := client.GetBaseURL() + opts.Path

	var body io.Reader
	if input != nil {
		payload, err := json.Marshal(input)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	resp, err := client.GetHttpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to %s: %w", opts.TemplatePath, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		log.Ctx(ctx).Debug().
			Int("status", resp.StatusCode).
			Str("path", opts.TemplatePath).
			Msg("collaborator returned an error response")
		return nil, &HttpError{
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
		}
	}

	var output R
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &output); err != nil {
			return nil, fmt.Errorf("failed to decode response from %s: %w", opts.TemplatePath, err)
		}
	}

	return &output, nil
}

// SendRequest performs a JSON request and records its duration under the
// template path.
func SendRequest[I, R any](
	ctx context.Context, client BaseClientInterface, method string, opts *HttpClientOptions, input *I,
) (*R, error) {
	timer := metrics.StartClientRequestDurationTimer(
		client.GetBaseURL(), method, opts.TemplatePath,
	)

	result, err := sendRequest[I, R](ctx, client, method, opts, input)

	statusCode := http.StatusOK
	if err != nil {
		statusCode = http.StatusInternalServerError
		var httpErr *HttpError
		if errors.As(err, &httpErr) {
			statusCode = httpErr.StatusCode
		}
	}
	timer(statusCode)

	return result, err
}
