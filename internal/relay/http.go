package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"heartx/internal/domain"
)

// HTTP talks to a relay over JSON/HTTP on behalf of one authenticated identity.
type HTTP struct {
	Base  string
	HTTP  *http.Client
	Creds domain.Credentials
}

// NewHTTP returns a client for base; a nil client uses http.DefaultClient.
func NewHTTP(base string, client *http.Client, creds domain.Credentials) *HTTP {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTP{Base: strings.TrimRight(base, "/"), HTTP: client, Creds: creds}
}

func (c *HTTP) PublishKeys(ctx context.Context, reg domain.Registration) error {
	return c.do(ctx, http.MethodPut, PathKeys, reg, nil)
}

func (c *HTTP) FetchKeys(ctx context.Context) (domain.Registration, error) {
	var out domain.Registration
	err := c.do(ctx, http.MethodGet, PathKeys, nil, &out)
	return out, err
}

func (c *HTTP) FetchDirectory(ctx context.Context) (domain.Directory, error) {
	out := domain.Directory{}
	err := c.do(ctx, http.MethodGet, PathDirectory, nil, &out)
	return out, err
}

func (c *HTTP) FetchSlotSet(ctx context.Context) (domain.SlotSet, error) {
	var out domain.SlotSet
	err := c.do(ctx, http.MethodGet, PathSlots, nil, &out)
	return out, err
}

func (c *HTTP) SubmitSlotSet(ctx context.Context, sub domain.SlotSetSubmission) (domain.SlotSet, error) {
	var out domain.SlotSet
	err := c.do(ctx, http.MethodPut, PathSlots, sub, &out)
	return out, err
}

func (c *HTTP) ListClaims(ctx context.Context) ([]domain.ClaimedHeart, error) {
	var out []domain.ClaimedHeart
	err := c.do(ctx, http.MethodGet, PathClaims, nil, &out)
	return out, err
}

func (c *HTTP) ListInbox(ctx context.Context, since time.Time) ([]domain.InboxItem, error) {
	path := PathInbox
	if !since.IsZero() {
		path += "?since=" + url.QueryEscape(since.UTC().Format(time.RFC3339))
	}
	var out []domain.InboxItem
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *HTTP) Claim(ctx context.Context, req domain.ClaimRequest) (domain.ClaimedHeart, error) {
	var out domain.ClaimedHeart
	err := c.do(ctx, http.MethodPost, PathClaims, req, &out)
	return out, err
}

func (c *HTTP) SubmitReturns(ctx context.Context, entries []domain.ReturnEntry) error {
	return c.do(ctx, http.MethodPost, PathReturns, ReturnsBody{Entries: entries}, nil)
}

func (c *HTTP) ListReturnCandidates(ctx context.Context) ([]domain.ReturnCandidate, error) {
	var out []domain.ReturnCandidate
	err := c.do(ctx, http.MethodGet, PathReturns, nil, &out)
	return out, err
}

func (c *HTTP) VerifyMatch(ctx context.Context, req domain.VerifyRequest) (domain.VerifyResult, error) {
	var out domain.VerifyResult
	err := c.do(ctx, http.MethodPost, PathMatches, req, &out)
	return out, err
}

func (c *HTTP) ListMatches(ctx context.Context) ([]domain.MatchRecord, error) {
	var out []domain.MatchRecord
	err := c.do(ctx, http.MethodGet, PathMatches, nil, &out)
	return out, err
}

func (c *HTTP) RegisterRecoveryCapsule(ctx context.Context, capsule domain.RecoveryCapsule) error {
	return c.do(ctx, http.MethodPut, PathRecovery, CapsuleBody{Capsule: capsule}, nil)
}

func (c *HTTP) FetchRecoveryCapsule(ctx context.Context) (domain.RecoveryCapsule, error) {
	var out CapsuleBody
	if err := c.do(ctx, http.MethodGet, PathRecovery, nil, &out); err != nil {
		return nil, err
	}
	return out.Capsule, nil
}

func (c *HTTP) ResetState(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, PathState, nil, nil)
}

// do sends one JSON request and decodes a JSON response into out when non-nil.
func (c *HTTP) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf := new(bytes.Buffer)
		if err := json.NewEncoder(buf).Encode(in); err != nil {
			return errors.Wrapf(err, "relay %s %s: encode", method, path)
		}
		body = buf
	}
	req, err := http.NewRequestWithContext(ctx, method, c.Base+path, body)
	if err != nil {
		return errors.Wrapf(err, "relay %s %s", method, path)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderIdentity, c.Creds.Identity.String())
	if c.Creds.Token != "" {
		req.Header.Set(HeaderAuthorization, "Bearer "+c.Creds.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errors.Wrapf(ctxErr, "relay %s %s", method, path)
		}
		return errors.Wrapf(domain.ErrNetworkFailure, "relay %s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return statusError(method, path, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(domain.ErrNetworkFailure, "relay %s %s: decode: %v", method, path, err)
	}
	return nil
}

// statusError maps a non-2xx response onto the domain taxonomy.
func statusError(method, path string, resp *http.Response) error {
	var eb ErrorBody
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4<<10)).Decode(&eb)
	msg := eb.Error
	if msg == "" {
		msg = resp.Status
	}

	var kind error
	switch {
	case resp.StatusCode == http.StatusNotFound:
		kind = domain.ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		kind = domain.ErrConflict
	case resp.StatusCode == http.StatusUnprocessableEntity:
		kind = domain.ErrCapacityExceeded
	case resp.StatusCode == http.StatusUnauthorized:
		kind = domain.ErrAuthFailure
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		kind = domain.ErrNetworkFailure
	default:
		kind = domain.ErrRejected
	}
	return errors.Wrapf(kind, "relay %s %s: %s", method, path, msg)
}

var _ domain.RelayClient = (*HTTP)(nil)
