// Package gateway is the client for the external messaging-automation
// engine. One logical engine session exists per user; every call is
// scoped by the user id in the request path. The gateway translates
// transport conditions into the server's error taxonomy but never
// retries: retry policy belongs to the caller or the engine.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Session status values reported by the engine. The engine owns the
// state machine; the gateway forwards these untouched so a stale or
// missing QR is never masked from callers.
const (
	StatusDisconnected  = "disconnected"
	StatusInitializing  = "initializing"
	StatusQRReady       = "qr_ready"
	StatusAuthenticated = "authenticated"
	StatusConnected     = "connected"
	StatusError         = "error"
)

// Health probe results.
const (
	HealthHealthy     = "healthy"
	HealthUnhealthy   = "unhealthy"
	HealthUnreachable = "unreachable"
)

// Per-call timeouts. Send is generous because delivery on the far
// side can involve real network latency.
const (
	healthTimeout  = 5 * time.Second
	sessionTimeout = 10 * time.Second
	sendTimeout    = 30 * time.Second
)

// ErrServiceUnavailable is returned when the engine is down or
// unhealthy and a call cannot be forwarded.
var ErrServiceUnavailable = errors.New("whatsapp service unavailable")

// ErrQRNotAvailable is returned when the engine has no QR code for the
// session, e.g. already authenticated or not yet initialized.
var ErrQRNotAvailable = errors.New("qr code not available")

// DispatchError reports a send attempt the engine accepted over the
// wire but could not deliver. Reason carries the engine's error text
// for the message log.
type DispatchError struct {
	Reason string
}

func (e *DispatchError) Error() string { return e.Reason }

// SessionStatus is the engine's view of one user's session. When the
// engine is unreachable a synthesized value is returned instead of an
// error so callers can always render state.
type SessionStatus struct {
	Status      string `json:"status"`
	Connected   bool   `json:"connected"`
	QRAvailable bool   `json:"qrAvailable"`
	Error       string `json:"error,omitempty"`
}

// QRCode is the payload of a pending login QR.
type QRCode struct {
	QR     string `json:"qr"`
	Status string `json:"status"`
}

// Client is a stateless HTTP client over the engine's base URL. The
// zero http.Client timeout is intentional: deadlines are applied
// per call via context.
type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string) *Client {
	return &Client{baseURL: baseURL, http: &http.Client{}}
}

// Health probes the engine. It returns one of HealthHealthy,
// HealthUnhealthy or HealthUnreachable and never an error: an
// unreachable engine is a reportable state.
func (c *Client) Health(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return HealthUnreachable
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return HealthUnreachable
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return HealthUnhealthy
	}
	return HealthHealthy
}

// Initialize starts (or restarts) a user's session. It fails fast
// with ErrServiceUnavailable when the health probe does not pass, and
// otherwise returns the engine's response payload verbatim.
func (c *Client) Initialize(ctx context.Context, userID string) (map[string]interface{}, error) {
	if c.Health(ctx) != HealthHealthy {
		return nil, ErrServiceUnavailable
	}
	return c.postJSON(ctx, c.sessionURL(userID, "initialize"), nil, sessionTimeout)
}

// Status reports the session state. On transport failure it does NOT
// raise: it synthesizes an error status so every caller can render
// something.
func (c *Client) Status(ctx context.Context, userID string) SessionStatus {
	ctx, cancel := context.WithTimeout(ctx, sessionTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.sessionURL(userID, "status"), nil)
	if err != nil {
		return SessionStatus{Status: StatusError, Error: err.Error()}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return SessionStatus{Status: StatusError, Error: err.Error()}
	}
	defer resp.Body.Close()

	var s SessionStatus
	if resp.StatusCode != http.StatusOK {
		return SessionStatus{Status: StatusError, Error: fmt.Sprintf("engine returned %d", resp.StatusCode)}
	}
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return SessionStatus{Status: StatusError, Error: err.Error()}
	}
	return s
}

// QR fetches the pending login QR for a session. A 404 from the
// engine means no code exists right now and maps to ErrQRNotAvailable.
func (c *Client) QR(ctx context.Context, userID string) (QRCode, error) {
	ctx, cancel := context.WithTimeout(ctx, sessionTimeout)
	defer cancel()

	var qr QRCode
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.sessionURL(userID, "qr"), nil)
	if err != nil {
		return qr, ErrServiceUnavailable
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return qr, ErrServiceUnavailable
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(&qr); err != nil {
			return qr, ErrServiceUnavailable
		}
		return qr, nil
	case http.StatusNotFound:
		return qr, ErrQRNotAvailable
	default:
		return qr, ErrServiceUnavailable
	}
}

// Disconnect tears down a user's session. The request is forwarded
// regardless of known state; the engine treats it as idempotent and so
// does this client.
func (c *Client) Disconnect(ctx context.Context, userID string) (map[string]interface{}, error) {
	return c.postJSON(ctx, c.sessionURL(userID, "disconnect"), nil, sessionTimeout)
}

// sendResponse is what the engine answers a send with.
type sendResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Send forwards one message through the user's session. A single
// attempt is made. An engine decline or a non-200 answer becomes a
// *DispatchError carrying the engine's reason; transport failures are
// returned as-is so the recorder can log their text.
func (c *Client) Send(ctx context.Context, userID, number, message string) error {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	body, err := json.Marshal(map[string]string{"number": number, "message": message})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.sessionURL(userID, "send"), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var sr sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil && resp.StatusCode == http.StatusOK {
		return err
	}
	if resp.StatusCode != http.StatusOK || !sr.Success {
		reason := sr.Error
		if reason == "" {
			reason = fmt.Sprintf("engine returned %d", resp.StatusCode)
		}
		return &DispatchError{Reason: reason}
	}
	return nil
}

func (c *Client) sessionURL(userID, op string) string {
	return fmt.Sprintf("%s/sessions/%s/%s", c.baseURL, userID, op)
}

func (c *Client) postJSON(ctx context.Context, url string, payload interface{}, timeout time.Duration) (map[string]interface{}, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, ErrServiceUnavailable
	}
	defer resp.Body.Close()

	var out map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, ErrServiceUnavailable
	}
	if resp.StatusCode != http.StatusOK {
		if msg, ok := out["error"].(string); ok && msg != "" {
			return nil, fmt.Errorf("%w: %s", ErrServiceUnavailable, msg)
		}
		return nil, ErrServiceUnavailable
	}
	return out, nil
}
