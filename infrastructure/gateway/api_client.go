package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"potsync/domain/entities"

	log "github.com/sirupsen/logrus"
)

const maxErrorBody = 4096

// APIError is a non-2xx response from a provider
type APIError struct {
	Provider string
	Status   int
	Code     string
	Message  string
	Err      error
}

func (e *APIError) Error() string {
	detail := e.Code
	if e.Message != "" {
		detail = strings.TrimSpace(detail + " " + e.Message)
	}
	return fmt.Sprintf("%s api returned %d (%s): %v", e.Provider, e.Status, detail, e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

type errorBody struct {
	Code             string `json:"code"`
	Error            string `json:"error"`
	Message          string `json:"message"`
	ErrorDescription string `json:"error_description"`
}

// apiClient performs authenticated JSON requests against one provider
type apiClient struct {
	provider      string
	baseURL       string
	http          *http.Client
	maxRetries    int
	retryInterval time.Duration
}

// get decodes the JSON response of a GET request into out
func (c *apiClient) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

// send submits a form-encoded request and decodes the JSON response into out, if non-nil
func (c *apiClient) send(ctx context.Context, method, path string, form url.Values, out any) error {
	return c.do(ctx, method, path, nil, form, out)
}

func (c *apiClient) do(ctx context.Context, method, path string, query, form url.Values, out any) error {
	operation := method + " " + path
	return retryTransient(ctx, c.maxRetries, c.retryInterval, operation, func() error {
		return c.attempt(ctx, method, path, query, form, out)
	})
}

func (c *apiClient) attempt(ctx context.Context, method, path string, query, form url.Values, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", c.provider, err)
	}
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, entities.ErrAuth) {
			return err
		}
		return fmt.Errorf("%w: %s %s: %v", entities.ErrTransientAPI, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := c.statusError(resp.StatusCode, data)
		log.WithFields(log.Fields{
			"provider": c.provider,
			"method":   method,
			"path":     path,
			"status":   resp.StatusCode,
			"code":     apiErr.Code,
		}).Debug("Provider request failed")
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode %s response: %v", entities.ErrAPIRejected, c.provider, err)
	}
	return nil
}

// statusError maps an HTTP status and error body onto the sync error taxonomy
func (c *apiClient) statusError(status int, data []byte) *APIError {
	var parsed errorBody
	_ = json.Unmarshal(data, &parsed)

	code := parsed.Code
	if code == "" {
		code = parsed.Error
	}
	message := parsed.Message
	if message == "" {
		message = parsed.ErrorDescription
	}

	apiErr := &APIError{
		Provider: c.provider,
		Status:   status,
		Code:     code,
		Message:  message,
	}

	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		apiErr.Err = entities.ErrAuth
	case status == http.StatusTooManyRequests, status >= 500:
		apiErr.Err = entities.ErrTransientAPI
	case strings.Contains(strings.ToLower(code+" "+message), "insufficient_funds"):
		apiErr.Err = entities.ErrInsufficientFunds
	default:
		apiErr.Err = entities.ErrAPIRejected
	}

	return apiErr
}
