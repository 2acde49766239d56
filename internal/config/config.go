// Copyright 2026 Chefops Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package config reads the tool configuration file. Every value can be
// overridden from the command line; the file only provides defaults for
// the server connection and the backup destination.
package config

import (
	"os"

	"github.com/juju/errors"
	"gopkg.in/yaml.v3"
)

// DefaultBackupDir is used when neither the config file nor the command
// line name a destination.
const DefaultBackupDir = "chef-backup"

// Config holds the tool configuration.
type Config struct {
	// ServerURL is the organization base URL of the Chef server.
	ServerURL string `yaml:"server-url"`

	// ClientName and KeyPath identify the API client used for request
	// signing.
	ClientName string `yaml:"client-name"`
	KeyPath    string `yaml:"key-path"`

	// BackupDir is the export destination directory.
	BackupDir string `yaml:"backup-dir"`

	// LatestOnly restricts cookbook export to the newest version of
	// each cookbook.
	LatestOnly bool `yaml:"latest-only"`

	// IgnorePermissionErrors tolerates access-denied failures during
	// entity load instead of aborting the run.
	IgnorePermissionErrors bool `yaml:"ignore-permission-errors"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		BackupDir: DefaultBackupDir,
	}
}

// Load reads a configuration file, layering it over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Annotatef(err, "reading config %q", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Annotatef(err, "parsing config %q", path)
	}
	return cfg, nil
}

// Validate checks that the connection settings are complete.
func (c Config) Validate() error {
	if c.ServerURL == "" {
		return errors.NotValidf("missing server URL")
	}
	if c.ClientName == "" {
		return errors.NotValidf("missing client name")
	}
	if c.KeyPath == "" {
		return errors.NotValidf("missing client key path")
	}
	if c.BackupDir == "" {
		return errors.NotValidf("missing backup directory")
	}
	return nil
}
