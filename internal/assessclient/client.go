package assessclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Hamza-Xoho/digital-surveyor/internal/domain"
	"github.com/Hamza-Xoho/digital-surveyor/internal/metrics"
	"github.com/Hamza-Xoho/digital-surveyor/internal/postcode"
)

const maxErrorBody = 64 << 10

// Kind tags how a successful assessment was obtained.
type Kind string

const (
	KindAuthenticated Kind = "authenticated"
	KindAnonymous     Kind = "anonymous"
	KindFellBack      Kind = "fell-back"
)

type Outcome struct {
	Kind   Kind
	Result *domain.AssessmentResult
}

// Error is an upstream failure. Status is 0 when no response was received.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string { return e.Message }

var ErrNotAuthenticated = errors.New("a valid session is required")

// Credentials is the narrow view of the session guard the client needs.
type Credentials interface {
	Token() (string, bool)
	Clear() error
}

type Options struct {
	HTTPClient *http.Client
	Metrics    *metrics.Metrics
}

type Client struct {
	log     zerolog.Logger
	baseURL string
	http    *http.Client
	creds   Credentials
	metrics *metrics.Metrics
}

func New(log zerolog.Logger, baseURL string, creds Credentials, opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid backend url %q", baseURL)
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{
		log:     log,
		baseURL: base,
		http:    hc,
		creds:   creds,
		metrics: opts.Metrics,
	}, nil
}

// Run requests an assessment. With a valid credential the persisting endpoint is tried
// first; a 401/403/404 there clears the credential and falls back once to the anonymous
// endpoint.
func (c *Client) Run(ctx context.Context, pc postcode.Canonical) (Outcome, error) {
	attempted := false
	if token, ok := c.token(); ok {
		attempted = true
		res, status, err := c.postAssessment(ctx, "authenticated", "/assessments/", pc, token)
		if err == nil {
			return Outcome{Kind: KindAuthenticated, Result: res}, nil
		}
		if !isStaleCredential(status) {
			return Outcome{}, err
		}
		c.dropCredential(status)
		c.metrics.IncFallback()
	}

	res, _, err := c.postAssessment(ctx, "quick", "/assessments/quick", pc, "")
	if err != nil {
		return Outcome{}, err
	}
	kind := KindAnonymous
	if attempted {
		kind = KindFellBack
	}
	return Outcome{Kind: kind, Result: res}, nil
}

// UpdateNotes attaches free-text notes to a persisted assessment.
func (c *Client) UpdateNotes(ctx context.Context, id, notes string) error {
	token, ok := c.token()
	if !ok {
		return ErrNotAuthenticated
	}
	body, err := json.Marshal(map[string]string{"notes": notes})
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, "notes", http.MethodPatch, "/assessments/"+url.PathEscape(id)+"/notes", nil, token, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		if isAuthRejected(resp.StatusCode) {
			c.dropCredential(resp.StatusCode)
		}
		return upstreamError(resp, "Notes update failed")
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// ListVehicles returns the built-in vehicle profiles.
func (c *Client) ListVehicles(ctx context.Context) ([]domain.VehicleProfile, error) {
	return c.listProfiles(ctx, "vehicles", "/vehicles/", "")
}

// ListCustomVehicles returns the user-defined profiles; it needs a valid session.
func (c *Client) ListCustomVehicles(ctx context.Context) ([]domain.VehicleProfile, error) {
	token, ok := c.token()
	if !ok {
		return nil, ErrNotAuthenticated
	}
	profiles, err := c.listProfiles(ctx, "vehicles_custom", "/vehicles/custom/list", token)
	var upErr *Error
	if errors.As(err, &upErr) && isAuthRejected(upErr.Status) {
		c.dropCredential(upErr.Status)
	}
	return profiles, err
}

func (c *Client) listProfiles(ctx context.Context, endpoint, path, token string) ([]domain.VehicleProfile, error) {
	resp, err := c.do(ctx, endpoint, http.MethodGet, path, nil, token, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, upstreamError(resp, "Vehicle list failed")
	}
	var out []domain.VehicleProfile
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &Error{Status: resp.StatusCode, Message: fmt.Sprintf("decode vehicle list: %v", err)}
	}
	return out, nil
}

func (c *Client) postAssessment(ctx context.Context, endpoint, path string, pc postcode.Canonical, token string) (*domain.AssessmentResult, int, error) {
	q := url.Values{}
	q.Set("postcode", pc.String())

	resp, err := c.do(ctx, endpoint, http.MethodPost, path, q, token, nil)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, resp.StatusCode, upstreamError(resp, "Assessment failed")
	}

	var res domain.AssessmentResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, resp.StatusCode, &Error{Status: resp.StatusCode, Message: fmt.Sprintf("decode assessment: %v", err)}
	}
	if err := res.Validate(); err != nil {
		return nil, resp.StatusCode, &Error{Status: resp.StatusCode, Message: err.Error()}
	}
	return &res, resp.StatusCode, nil
}

func (c *Client) do(ctx context.Context, endpoint, method, path string, query url.Values, token string, body []byte) (*http.Response, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rdr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveBackendRequest(endpoint, 0, time.Since(start))
		c.log.Warn().Err(err).Str("endpoint", endpoint).Msg("backend request failed")
		return nil, &Error{Message: err.Error()}
	}
	c.metrics.ObserveBackendRequest(endpoint, resp.StatusCode, time.Since(start))
	c.log.Debug().
		Str("endpoint", endpoint).
		Str("method", method).
		Int("status", resp.StatusCode).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("backend_request")
	return resp, nil
}

func (c *Client) token() (string, bool) {
	if c.creds == nil {
		return "", false
	}
	return c.creds.Token()
}

func (c *Client) dropCredential(status int) {
	c.log.Info().Int("status", status).Msg("stale session credential cleared")
	if err := c.creds.Clear(); err != nil {
		c.log.Warn().Err(err).Msg("failed to clear session credential")
	}
}

func isStaleCredential(status int) bool {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return true
	default:
		return false
	}
}

func isAuthRejected(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

// upstreamError prefers the server's {"detail": "..."} message.
func upstreamError(resp *http.Response, prefix string) *Error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body struct {
		Detail *string `json:"detail"`
	}
	if err := json.Unmarshal(b, &body); err == nil && body.Detail != nil && strings.TrimSpace(*body.Detail) != "" {
		return &Error{Status: resp.StatusCode, Message: *body.Detail}
	}
	return &Error{Status: resp.StatusCode, Message: fmt.Sprintf("%s (%d)", prefix, resp.StatusCode)}
}
