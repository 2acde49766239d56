// Copyright 2026 Chefops Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package backup exports the full configuration state of a Chef server
// into a local directory tree, one subtree per component. It is a
// one-shot batch operation: components run strictly one at a time, and
// entities within a component are processed sequentially.
package backup

import (
	"context"
	"io"
	"os"

	"github.com/juju/errors"
	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("chefexport.backup")

// EntityStore is a flat named entity collection on the server, such as
// nodes or roles.
type EntityStore interface {
	// List returns the collection as a name to locator mapping.
	List(ctx context.Context) (map[string]string, error)

	// Load fetches the named entity document.
	Load(ctx context.Context, name string) (map[string]interface{}, error)
}

// DataBagStore is the two-level data bag collection.
type DataBagStore interface {
	ListBags(ctx context.Context) (map[string]string, error)
	ListItems(ctx context.Context, bag string) (map[string]string, error)

	// LoadItemRaw fetches an item as stored, bypassing any item-level
	// transformation.
	LoadItemRaw(ctx context.Context, bag, item string) (map[string]interface{}, error)
}

// PolicyStore lists policies and materializes their locked cookbooks.
type PolicyStore interface {
	// PoliciesByGroup returns, per policy group, the policy names pinned
	// in it mapped to their revision ids.
	PoliciesByGroup(ctx context.Context) (map[string]map[string]string, error)

	// ShowRevision writes the resolved lock document of the named policy
	// to w as text.
	ShowRevision(ctx context.Context, w io.Writer, name, group string) error

	// SynchronizeCookbooks materializes every cookbook implied by the
	// policy's dependency resolution under cacheDir, one directory per
	// cookbook under its plain name.
	SynchronizeCookbooks(ctx context.Context, name, group, cacheDir string) error
}

// CookbookStore is the server's versioned cookbook store.
type CookbookStore interface {
	// Versions returns cookbook name to version identifiers, optionally
	// only the latest version per cookbook.
	Versions(ctx context.Context, latestOnly bool) (map[string][]string, error)

	// DownloadVersion fetches one cookbook version into
	// destDir/<name>-<version>, overwriting when force is set, and
	// returns the number of bytes written.
	DownloadVersion(ctx context.Context, name, version, destDir string, force bool) (int64, error)
}

// Capabilities answers structured feature queries against the server.
type Capabilities interface {
	SupportsUserExport(ctx context.Context) (bool, error)
}

// Backend bundles the server-side collaborators the export needs.
type Backend struct {
	Clients      EntityStore
	Users        EntityStore
	Nodes        EntityStore
	Roles        EntityStore
	Environments EntityStore
	DataBags     DataBagStore
	Policies     PolicyStore
	Cookbooks    CookbookStore
	Capabilities Capabilities
}

// Params holds the run-wide configuration of one export.
type Params struct {
	// Dir is the backup root directory, created if absent.
	Dir string

	// LatestOnly restricts the cookbooks component to the newest version
	// of each cookbook.
	LatestOnly bool

	// IgnorePermissionErrors turns access-denied failures during entity
	// load into skip-with-warning instead of aborting the run.
	IgnorePermissionErrors bool
}

// Progress receives the operator-facing per-item message stream. It is
// separate from the package logger so a command context can carry it.
type Progress interface {
	Infof(format string, args ...interface{})
	Warningf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Backup runs one export against a server backend.
type Backup struct {
	backend  Backend
	params   Params
	progress Progress
}

// New creates a Backup. The progress sink must not be nil.
func New(backend Backend, params Params, progress Progress) *Backup {
	return &Backup{
		backend:  backend,
		params:   params,
		progress: progress,
	}
}

// Run exports the given components in order. Individual entity failures
// are reported and skipped per component contract; errors returned here
// are fatal and abort the remainder of the run.
func (b *Backup) Run(ctx context.Context, components []Component) error {
	if err := os.MkdirAll(b.params.Dir, 0755); err != nil {
		return errors.Annotatef(err, "creating backup directory %q", b.params.Dir)
	}
	for _, component := range components {
		logger.Debugf("exporting component %s", component)
		if err := b.export(ctx, component); err != nil {
			return errors.Annotatef(err, "exporting %s", component)
		}
	}
	return nil
}

// export dispatches one component to its exporter. The component set is
// closed; ParseComponents guarantees membership.
func (b *Backup) export(ctx context.Context, component Component) error {
	switch component {
	case Clients:
		return b.exportEntities(ctx, Clients, b.backend.Clients)
	case Users:
		return b.exportUsers(ctx)
	case Nodes:
		return b.exportEntities(ctx, Nodes, b.backend.Nodes)
	case Roles:
		return b.exportEntities(ctx, Roles, b.backend.Roles)
	case DataBags:
		return b.exportDataBags(ctx)
	case Environments:
		return b.exportEntities(ctx, Environments, b.backend.Environments)
	case Policies:
		return b.exportPolicies(ctx)
	case Cookbooks:
		return b.exportCookbooks(ctx)
	}
	return errors.NotValidf("component %q", component)
}

func (b *Backup) exportUsers(ctx context.Context) error {
	supported, err := b.backend.Capabilities.SupportsUserExport(ctx)
	if err != nil {
		return errors.Annotate(err, "querying user export capability")
	}
	if !supported {
		b.progress.Warningf("server does not support user export, skipping users")
		return nil
	}
	return b.exportEntities(ctx, Users, b.backend.Users)
}
