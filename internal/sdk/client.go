package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/supportstack/tickets/internal/auth"
)

const (
	// DefaultRefreshWindow is the safety margin before expiry at which the
	// cached token is re-signed, so a request never goes out with a token
	// that expires mid-flight.
	DefaultRefreshWindow = 5 * time.Minute

	requestTimeout = 30 * time.Second
)

// RemoteError reports a request that reached the peer and was rejected. The
// reason is the remote-provided text, useful to operators but not assumed
// machine-parseable.
type RemoteError struct {
	Status int
	Reason string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("sdk: remote error (status %d): %s", e.Status, e.Reason)
}

// NetworkError reports a request that never arrived: DNS, dial, TLS, or a
// connection dropped mid-exchange.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("sdk: network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// remoteReason is the JSON error envelope internal services respond with.
type remoteReason struct {
	Reason string `json:"reason"`
}

// SDK is the per-deployment factory for signed clients against one base URL.
type SDK struct {
	baseURL       *url.URL
	signer        *auth.Config
	gateway       string
	refreshWindow time.Duration
}

// New builds an SDK for the service at baseURL. gateway names the calling
// subsystem and is attached to every request. refreshWindow <= 0 falls back
// to DefaultRefreshWindow.
func New(baseURL string, signer *auth.Config, gateway string, refreshWindow time.Duration) (*SDK, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("sdk: parse base url: %w", err)
	}
	if refreshWindow <= 0 {
		refreshWindow = DefaultRefreshWindow
	}
	return &SDK{baseURL: parsed, signer: signer, gateway: gateway, refreshWindow: refreshWindow}, nil
}

// SignClient signs an initial token for the accessor and returns a client
// that keeps it fresh for the life of the process.
func (s *SDK) SignClient(accessor auth.Accessor, ttl time.Duration) (*SignedClient, error) {
	if ttl <= 0 {
		ttl = auth.DefaultTTL
	}
	token, claim, err := s.signer.Sign(accessor, ttl)
	if err != nil {
		return nil, err
	}
	return &SignedClient{
		baseURL:       s.baseURL,
		http:          &http.Client{Timeout: requestTimeout},
		signer:        s.signer,
		gateway:       s.gateway,
		accessor:      accessor,
		ttl:           ttl,
		refreshWindow: s.refreshWindow,
		token:         token,
		expiresAt:     claim.ExpiresAt,
	}, nil
}

// SignedClient calls declared routes as one authenticated principal. The
// cached token is owned by this client alone and refreshed under an
// exclusive write lock; concurrent callers always observe a whole token.
type SignedClient struct {
	baseURL       *url.URL
	http          *http.Client
	signer        *auth.Config
	gateway       string
	accessor      auth.Accessor
	ttl           time.Duration
	refreshWindow time.Duration

	mu        sync.RWMutex
	token     string
	expiresAt time.Time
}

// EnsureToken returns the cached token while it has more than the refresh
// window of life left, otherwise re-signs. Refresh is idempotent: racing
// callers may each sign a token, but all converge on a valid one.
func (c *SignedClient) EnsureToken() (string, error) {
	c.mu.RLock()
	token, expiresAt := c.token, c.expiresAt
	c.mu.RUnlock()

	if time.Until(expiresAt) > c.refreshWindow {
		return token, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if time.Until(c.expiresAt) > c.refreshWindow {
		return c.token, nil
	}

	token, claim, err := c.signer.Sign(c.accessor, c.ttl)
	if err != nil {
		return "", err
	}
	c.token = token
	c.expiresAt = claim.ExpiresAt
	return token, nil
}

// do performs one signed request. body may be nil; query may be nil.
func (c *SignedClient) do(ctx context.Context, route Route, body any, query url.Values) (*http.Response, error) {
	target := c.baseURL.JoinPath(route.Path)
	if query != nil {
		target.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("sdk: encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, route.Method, target.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("sdk: build request: %w", err)
	}

	token, err := c.EnsureToken()
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(GatewayHeader, c.gateway)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	return resp, nil
}

// decodeRemoteError drains a non-2xx response into a RemoteError.
func decodeRemoteError(resp *http.Response) *RemoteError {
	defer resp.Body.Close()
	remote := &RemoteError{Status: resp.StatusCode}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		remote.Reason = "unreadable error body"
		return remote
	}
	var reason remoteReason
	if json.Unmarshal(raw, &reason) == nil && reason.Reason != "" {
		remote.Reason = reason.Reason
	} else {
		remote.Reason = string(raw)
	}
	return remote
}

// Call invokes a route with no request body and decodes the response into
// Resp. A body that does not match Resp is a decode error, never a silent
// zero value.
func Call[Resp any](ctx context.Context, c *SignedClient, route Route, query url.Values) (Resp, error) {
	return CallWithBody[Resp](ctx, c, route, nil, query)
}

// CallWithBody invokes a route with a JSON body and decodes the response.
func CallWithBody[Resp any](ctx context.Context, c *SignedClient, route Route, body any, query url.Values) (Resp, error) {
	var decoded Resp

	resp, err := c.do(ctx, route, body, query)
	if err != nil {
		return decoded, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decoded, decodeRemoteError(resp)
	}

	defer resp.Body.Close()
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(&decoded); err != nil {
		return decoded, fmt.Errorf("sdk: decode response for %s %s: %w", route.Method, route.Path, err)
	}
	return decoded, nil
}

// Invoke calls a route whose response body is irrelevant and returns the
// status code. Non-2xx responses still surface as RemoteError.
func Invoke(ctx context.Context, c *SignedClient, route Route, body any, query url.Values) (int, error) {
	resp, err := c.do(ctx, route, body, query)
	if err != nil {
		return 0, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, decodeRemoteError(resp)
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}
