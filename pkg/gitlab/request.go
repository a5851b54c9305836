package gitlab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type apiRequest struct {
	method string
	path   string // relative to /api/v4, segments already escaped
	query  url.Values
	body   any
}

// execute runs one authenticated API call. It acquires a token (driving
// the handshake when none is live) and a user identity first, then sends
// the request. A 401 triggers exactly one re-authentication and retry;
// a second 401 surfaces as access denied. With ignoreNotFound a 404 is
// treated as success with a nil body, which is how existence checks read
// the answer.
func (c *Client) execute(ctx context.Context, req apiRequest, ignoreNotFound bool) ([]byte, error) {
	failOnAuth := false
	if c.Token() == "" {
		if err := c.Login(ctx); err != nil {
			return nil, err
		}
		failOnAuth = true
	}
	if c.User() == nil {
		reauthed, err := c.updateUser(ctx, failOnAuth)
		if err != nil {
			return nil, err
		}
		// a handshake spent during the pre-flight counts against this
		// call's single re-authentication
		failOnAuth = failOnAuth || reauthed
	}
	data, err := c.do(ctx, req, ignoreNotFound)
	if statusOf(err) != http.StatusUnauthorized {
		return data, err
	}
	if failOnAuth {
		return nil, err
	}
	if err := c.Login(ctx); err != nil {
		return nil, err
	}
	return c.do(ctx, req, ignoreNotFound)
}

// updateUser fetches the current user once per session. Any rejection
// beyond the single re-authentication reads as access denied, matching
// the provider's behavior for disabled tokens. The returned flag tells
// the caller a handshake already happened on its behalf.
func (c *Client) updateUser(ctx context.Context, failOnAuth bool) (bool, error) {
	data, err := c.do(ctx, apiRequest{method: http.MethodGet, path: "/user"}, false)
	if err != nil {
		if statusOf(err) == http.StatusUnauthorized && !failOnAuth {
			c.Logout()
			if err := c.Login(ctx); err != nil {
				return true, err
			}
			_, err := c.updateUser(ctx, true)
			return true, err
		}
		if statusOf(err) != 0 {
			return false, newRequestError(ErrAccessDenied, statusOf(err), "access denied", false)
		}
		return false, err
	}
	var user User
	if err := json.Unmarshal(data, &user); err != nil {
		return false, errors.Wrap(err, "parse user")
	}
	c.setUser(&user)
	return false, nil
}

// do sends a single request with the per-call deadline applied. Once the
// deadline fires the transport abandons the response, so a late reply can
// never be observed as a success.
func (c *Client) do(ctx context.Context, req apiRequest, ignoreNotFound bool) ([]byte, error) {
	tctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	target := c.apiBase + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}
	var body io.Reader
	if req.body != nil {
		raw, err := json.Marshal(req.body)
		if err != nil {
			return nil, errors.Wrap(err, "encode request body")
		}
		body = bytes.NewReader(raw)
	}
	httpReq, err := http.NewRequestWithContext(tctx, req.method, target, body)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	token := c.Token()
	httpReq.Header.Set("Authorization", "Bearer "+token)
	// older self-hosted instances only understand this one
	httpReq.Header.Set("PRIVATE-TOKEN", token)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if errors.Is(tctx.Err(), context.DeadlineExceeded) {
			return nil, newRequestError(ErrTimeout, 0, "request timed out", true)
		}
		return nil, errors.Wrap(err, "send request")
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(tctx.Err(), context.DeadlineExceeded) {
			return nil, newRequestError(ErrTimeout, 0, "request timed out", true)
		}
		return nil, errors.Wrap(err, "read response")
	}
	if resp.StatusCode == http.StatusNotFound && ignoreNotFound {
		return nil, nil
	}
	if err := mapStatus(resp.StatusCode, data); err != nil {
		zap.L().Debug("request failed",
			zap.String("method", req.method),
			zap.String("path", req.path),
			zap.Int("status", resp.StatusCode))
		return nil, err
	}
	return data, nil
}

// mapStatus normalizes every non-2xx answer into the error taxonomy.
func mapStatus(status int, body []byte) error {
	switch {
	case status >= 200 && status <= 299:
		return nil
	case status == http.StatusUnauthorized:
		return newRequestError(ErrAccessDenied, status, "access denied", true)
	case status == http.StatusForbidden:
		if errorCode(body) == "too_large" {
			return newRequestError(ErrTooLarge, status, "drawing too large", false)
		}
		return newRequestError(ErrForbidden, status, "forbidden", false)
	case status == http.StatusNotFound:
		return newRequestError(ErrNotFound, status, errorMessage(body, "file not found"), false)
	case status == http.StatusConflict:
		// structurally silent so the caller can offer overwrite or merge
		return newRequestError(ErrConflict, status, "", false)
	default:
		return &RequestError{Status: status, Message: errorMessage(body, fmt.Sprintf("error %d", status))}
	}
}

func statusOf(err error) int {
	var re *RequestError
	if errors.As(err, &re) {
		return re.Status
	}
	return 0
}

// errorMessage prefers the provider's message; a body that does not parse
// is swallowed and the default substituted.
func errorMessage(body []byte, def string) string {
	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Message != "" {
		return parsed.Message
	}
	return def
}

func errorCode(body []byte) string {
	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err == nil && len(parsed.Errors) > 0 {
		return parsed.Errors[0].Code
	}
	return ""
}
