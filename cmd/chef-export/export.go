// Copyright 2026 Chefops Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/juju/cmd/v3"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"

	"github.com/chefops/chef-export/internal/backup"
	"github.com/chefops/chef-export/internal/chefapi"
	"github.com/chefops/chef-export/internal/config"
)

const exportDoc = `
Exports the requested components to the backup directory. With no
component arguments the full set is exported in order: clients, users,
nodes, roles, data_bags, environments, policies, cookbooks.

Individual entities that cannot be loaded are reported and skipped; the
run only aborts on a permission error (unless --ignore-perm-errors is
set) or an unexpected server failure.

Examples:

    chef-export export --config chef-export.yaml
    chef-export export --backup-dir /srv/backups/chef nodes roles
    chef-export export --latest-only cookbooks
`

type exportCommand struct {
	cmd.CommandBase

	components []backup.Component

	configPath string
	serverURL  string
	clientName string
	keyPath    string
	backupDir  string
	latestOnly bool
	ignorePerm bool

	// newBackend is a seam for tests.
	newBackend func(config.Config) (backup.Backend, error)
}

func newExportCommand() cmd.Command {
	return &exportCommand{newBackend: chefBackend}
}

// Info implements cmd.Command.
func (c *exportCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "export",
		Args:    "[component ...]",
		Purpose: "export server state to a local directory tree",
		Doc:     exportDoc,
	}
}

// SetFlags implements cmd.Command.
func (c *exportCommand) SetFlags(f *gnuflag.FlagSet) {
	f.StringVar(&c.configPath, "config", "", "path to a chef-export configuration file")
	f.StringVar(&c.serverURL, "server", "", "organization base URL of the Chef server")
	f.StringVar(&c.clientName, "client-name", "", "API client used to sign requests")
	f.StringVar(&c.keyPath, "key", "", "path to the API client's private key")
	f.StringVar(&c.backupDir, "backup-dir", "", "backup destination directory")
	f.BoolVar(&c.latestOnly, "latest-only", false, "export only the latest version of each cookbook")
	f.BoolVar(&c.ignorePerm, "ignore-perm-errors", false, "skip entities the client may not read instead of aborting")
}

// Init implements cmd.Command. Component validation happens here so an
// invalid name fails before any I/O.
func (c *exportCommand) Init(args []string) error {
	components, err := backup.ParseComponents(args)
	if err != nil {
		return errors.Trace(err)
	}
	c.components = components
	return nil
}

// Run implements cmd.Command.
func (c *exportCommand) Run(ctx *cmd.Context) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return errors.Trace(err)
	}

	backend, err := c.newBackend(cfg)
	if err != nil {
		return errors.Trace(err)
	}

	ctx.Infof("backing up %s to %s", componentList(c.components), cfg.BackupDir)
	b := backup.New(backend, backup.Params{
		Dir:                    ctx.AbsPath(cfg.BackupDir),
		LatestOnly:             cfg.LatestOnly,
		IgnorePermissionErrors: cfg.IgnorePermissionErrors,
	}, contextProgress{ctx})
	return b.Run(context.Background(), c.components)
}

// loadConfig layers the command line over the config file over the
// defaults.
func (c *exportCommand) loadConfig() (config.Config, error) {
	cfg := config.Default()
	if c.configPath != "" {
		loaded, err := config.Load(c.configPath)
		if err != nil {
			return config.Config{}, errors.Trace(err)
		}
		cfg = loaded
	}
	if c.serverURL != "" {
		cfg.ServerURL = c.serverURL
	}
	if c.clientName != "" {
		cfg.ClientName = c.clientName
	}
	if c.keyPath != "" {
		cfg.KeyPath = c.keyPath
	}
	if c.backupDir != "" {
		cfg.BackupDir = c.backupDir
	}
	if c.latestOnly {
		cfg.LatestOnly = true
	}
	if c.ignorePerm {
		cfg.IgnorePermissionErrors = true
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, errors.Trace(err)
	}
	return cfg, nil
}

// chefBackend wires a live API client into the backup backend.
func chefBackend(cfg config.Config) (backup.Backend, error) {
	client, err := chefapi.NewClient(chefapi.Config{
		ServerURL:  cfg.ServerURL,
		ClientName: cfg.ClientName,
		KeyPath:    cfg.KeyPath,
		Logger:     logger,
	})
	if err != nil {
		return backup.Backend{}, errors.Trace(err)
	}
	return backup.Backend{
		Clients:      client.Clients(),
		Users:        client.Users(),
		Nodes:        client.Nodes(),
		Roles:        client.Roles(),
		Environments: client.Environments(),
		DataBags:     client.DataBags(),
		Policies:     client.Policies(),
		Cookbooks:    client.Cookbooks(),
		Capabilities: client,
	}, nil
}

// contextProgress routes the per-item message stream onto the command
// context.
type contextProgress struct {
	ctx *cmd.Context
}

func (p contextProgress) Infof(format string, args ...interface{}) {
	p.ctx.Infof(format, args...)
}

func (p contextProgress) Warningf(format string, args ...interface{}) {
	p.ctx.Warningf(format, args...)
}

func (p contextProgress) Errorf(format string, args ...interface{}) {
	fmt.Fprintf(p.ctx.Stderr, "ERROR "+format+"\n", args...)
}

func componentList(components []backup.Component) string {
	names := make([]string, len(components))
	for i, c := range components {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}
