// Copyright 2026 Chefops Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package chefapi implements a client for the Chef Infra Server HTTP API,
// covering the endpoints the exporter needs: named entity collections,
// data bags, policy groups, and the versioned cookbook store.
package chefapi

import (
	"context"
	"net/url"

	"github.com/juju/clock"
	"github.com/juju/errors"
)

// Logger is a in place interface to represent a loggo logger.
type Logger interface {
	IsTraceEnabled() bool

	Errorf(string, ...interface{})
	Warningf(string, ...interface{})
	Debugf(string, ...interface{})
	Tracef(string, ...interface{})
}

// Config holds everything needed to construct a Client.
type Config struct {
	// ServerURL is the organization base URL, e.g.
	// https://chef.example.com/organizations/acme
	ServerURL string

	// ClientName and KeyPath identify the API client whose RSA key signs
	// every request.
	ClientName string
	KeyPath    string

	// Transport overrides the HTTP transport, used by tests.
	Transport Transport

	Logger Logger
	Clock  clock.Clock
}

// Client talks to one Chef server organization.
type Client struct {
	rest   RESTClient
	logger Logger
}

// NewClient creates a Client from the given config.
func NewClient(cfg Config) (*Client, error) {
	base, err := url.Parse(cfg.ServerURL)
	if err != nil {
		return nil, errors.Annotatef(err, "parsing server URL %q", cfg.ServerURL)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, errors.NotValidf("server URL %q", cfg.ServerURL)
	}
	root := &url.URL{Scheme: base.Scheme, Host: base.Host}

	clk := cfg.Clock
	if clk == nil {
		clk = clock.WallClock
	}
	transport := cfg.Transport
	if transport == nil {
		transport = DefaultHTTPTransport(cfg.Logger)
	}

	auth, err := NewAuthenticatorFromFile(cfg.ClientName, cfg.KeyPath, clk)
	if err != nil {
		return nil, errors.Trace(err)
	}

	api := NewAPIRequester(transport, auth, cfg.Logger, clk)
	raw := NewAPIRequester(transport, nil, cfg.Logger, clk)
	return &Client{
		rest:   NewHTTPRESTClient(base, root, api, raw),
		logger: cfg.Logger,
	}, nil
}

// NewClientWithREST wires a Client directly onto a RESTClient. Tests use
// this to substitute a fake transport stack.
func NewClientWithREST(rest RESTClient, logger Logger) *Client {
	return &Client{rest: rest, logger: logger}
}

// EntityResource exposes one flat, named entity collection such as
// /nodes or /roles.
type EntityResource struct {
	rest     RESTClient
	endpoint string
}

// Clients returns the registered API clients collection.
func (c *Client) Clients() *EntityResource { return c.entity("clients") }

// Users returns the user collection. Callers should gate use of it on
// SupportsUserExport.
func (c *Client) Users() *EntityResource { return c.entity("users") }

// Nodes returns the node collection.
func (c *Client) Nodes() *EntityResource { return c.entity("nodes") }

// Roles returns the role collection.
func (c *Client) Roles() *EntityResource { return c.entity("roles") }

// Environments returns the environment collection.
func (c *Client) Environments() *EntityResource { return c.entity("environments") }

func (c *Client) entity(endpoint string) *EntityResource {
	return &EntityResource{rest: c.rest, endpoint: endpoint}
}

// List returns the collection as a name to locator-URL mapping.
func (r *EntityResource) List(ctx context.Context) (map[string]string, error) {
	var listing map[string]string
	if err := r.rest.Get(ctx, r.endpoint, &listing); err != nil {
		return nil, errors.Trace(err)
	}
	return listing, nil
}

// Load fetches the named entity document verbatim.
func (r *EntityResource) Load(ctx context.Context, name string) (map[string]interface{}, error) {
	var record map[string]interface{}
	if err := r.rest.Get(ctx, r.endpoint+"/"+name, &record); err != nil {
		return nil, errors.Trace(err)
	}
	return record, nil
}

// DataBagResource exposes the two-level data bag store.
type DataBagResource struct {
	rest RESTClient
}

// DataBags returns the data bag store.
func (c *Client) DataBags() *DataBagResource {
	return &DataBagResource{rest: c.rest}
}

// ListBags returns the bag name to locator-URL mapping.
func (r *DataBagResource) ListBags(ctx context.Context) (map[string]string, error) {
	var listing map[string]string
	if err := r.rest.Get(ctx, "data", &listing); err != nil {
		return nil, errors.Trace(err)
	}
	return listing, nil
}

// ListItems returns the item listing of one bag.
func (r *DataBagResource) ListItems(ctx context.Context, bag string) (map[string]string, error) {
	var listing map[string]string
	if err := r.rest.Get(ctx, "data/"+bag, &listing); err != nil {
		return nil, errors.Trace(err)
	}
	return listing, nil
}

// LoadItemRaw fetches one item document as stored, with no item-level
// decoration applied.
func (r *DataBagResource) LoadItemRaw(ctx context.Context, bag, item string) (map[string]interface{}, error) {
	var record map[string]interface{}
	if err := r.rest.Get(ctx, "data/"+bag+"/"+item, &record); err != nil {
		return nil, errors.Trace(err)
	}
	return record, nil
}
