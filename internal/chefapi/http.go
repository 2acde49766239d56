// Copyright 2026 Chefops Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package chefapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	jujuhttp "github.com/juju/http/v2"
	"github.com/juju/retry"
)

// MIME represents a MIME type for identifying requests and response bodies.
type MIME = string

const (
	// JSON represents the MIME type for JSON request and response types.
	JSON MIME = "application/json"
)

const (
	// defaultRetryAttempts is how often a request is re-dialled after a
	// connection-level failure before the error is surfaced.
	defaultRetryAttempts = 3
	defaultRetryDelay    = 500 * time.Millisecond
)

// Transport defines a type for making the actual request.
type Transport interface {
	// Do performs the *http.Request and returns a *http.Response or an
	// error if it fails to construct the transport.
	Do(*http.Request) (*http.Response, error)
}

// DefaultHTTPTransport creates the transport used against a live server.
func DefaultHTTPTransport(logger Logger) Transport {
	return jujuhttp.NewClient(
		jujuhttp.WithLogger(logger),
	)
}

// APIRequester creates a wrapper around the transport to allow for better
// error handling and bounded re-dialling of flaky connections.
type APIRequester struct {
	transport Transport
	auth      *Authenticator
	logger    Logger
	clock     clock.Clock
}

// NewAPIRequester creates a new requester for making signed requests to a
// Chef server. The authenticator may be nil, in which case requests are
// sent unsigned.
func NewAPIRequester(transport Transport, auth *Authenticator, logger Logger, clk clock.Clock) *APIRequester {
	return &APIRequester{
		transport: transport,
		auth:      auth,
		logger:    logger,
		clock:     clk,
	}
}

// Do performs the *http.Request and returns a *http.Response or an error
// if the request cannot be satisfied. Connection-level failures are
// retried a fixed number of times; HTTP error statuses are mapped onto
// the juju/errors taxonomy so callers can branch on error class rather
// than status code.
func (t *APIRequester) Do(req *http.Request) (*http.Response, error) {
	if t.auth != nil {
		if err := t.auth.SignRequest(req); err != nil {
			return nil, errors.Annotate(err, "signing request")
		}
	}

	if t.logger.IsTraceEnabled() {
		if data, err := httputil.DumpRequest(req, false); err == nil {
			t.logger.Tracef("%s request %s", req.Method, data)
		}
	}

	var resp *http.Response
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			var err error
			resp, err = t.transport.Do(req)
			return err
		},
		NotifyFunc: func(err error, attempt int) {
			t.logger.Warningf("attempt %d to %s failed: %v", attempt, req.URL, err)
		},
		Attempts: defaultRetryAttempts,
		Delay:    defaultRetryDelay,
		Clock:    t.clock,
	})
	if err != nil {
		return nil, errors.Trace(err)
	}

	if resp.StatusCode >= http.StatusOK && resp.StatusCode <= http.StatusNoContent {
		return resp, nil
	}

	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusNotFound:
		return nil, errors.NotFoundf("%s", req.URL.Path)
	case http.StatusUnauthorized:
		return nil, errors.Unauthorizedf("server rejected the request signature")
	case http.StatusForbidden:
		return nil, errors.Forbiddenf("access to %s denied", req.URL.Path)
	}
	return nil, errors.Errorf("server error %q for %q", resp.Status, req.URL.String())
}

// RESTClient defines a type for making requests to a server.
type RESTClient interface {
	// Get performs a GET request against a path relative to the
	// organization base URL, decoding the JSON response into result.
	// A nil result discards the body.
	Get(ctx context.Context, path string, result interface{}) error

	// GetText performs a GET request against a path relative to the
	// server root (not the organization), returning the body verbatim.
	GetText(ctx context.Context, path string) (string, error)

	// GetFile fetches a pre-signed absolute URL without request signing
	// and copies the body to w, returning the number of bytes written.
	GetFile(ctx context.Context, rawURL string, w io.Writer) (int64, error)
}

// HTTPRESTClient represents a RESTClient that expects to interact with an
// HTTP transport.
type HTTPRESTClient struct {
	base *url.URL
	root *url.URL
	api  Transport
	raw  Transport
}

// NewHTTPRESTClient creates a new HTTPRESTClient. The api transport is
// used for signed organization requests; raw is used for pre-signed
// storage URLs which must not carry signing headers.
func NewHTTPRESTClient(base, root *url.URL, api, raw Transport) *HTTPRESTClient {
	return &HTTPRESTClient{
		base: base,
		root: root,
		api:  api,
		raw:  raw,
	}
}

// Get makes a GET request to the given path under the organization,
// parsing the result as JSON into the given result value.
func (c *HTTPRESTClient) Get(ctx context.Context, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.join(c.base, path), nil)
	if err != nil {
		return errors.Annotate(err, "can not make new request")
	}
	req.Header.Set("Accept", JSON)

	resp, err := c.api.Do(req)
	if err != nil {
		return errors.Trace(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if result == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return errors.Annotatef(err, "decoding response from %s", path)
	}
	return nil
}

// GetText makes a GET request to the given path under the server root and
// returns the raw body.
func (c *HTTPRESTClient) GetText(ctx context.Context, path string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.join(c.root, path), nil)
	if err != nil {
		return "", errors.Annotate(err, "can not make new request")
	}

	resp, err := c.raw.Do(req)
	if err != nil {
		return "", errors.Trace(err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Trace(err)
	}
	return string(data), nil
}

// GetFile fetches a pre-signed URL and streams the body into w.
func (c *HTTPRESTClient) GetFile(ctx context.Context, rawURL string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return 0, errors.Annotate(err, "can not make new request")
	}

	resp, err := c.raw.Do(req)
	if err != nil {
		return 0, errors.Trace(err)
	}
	defer func() { _ = resp.Body.Close() }()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, errors.Trace(err)
	}
	return n, nil
}

// join composes an endpoint path onto a base URL. The endpoint may carry
// a query string, which must stay a query rather than being escaped into
// the final path segment.
func (c *HTTPRESTClient) join(base *url.URL, path string) string {
	path, query, _ := strings.Cut(path, "?")
	u := *base
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.TrimPrefix(path, "/")
	u.RawQuery = query
	return u.String()
}
