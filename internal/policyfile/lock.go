// Copyright 2026 Chefops Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package policyfile models the policy lock documents produced by the
// Chef policyfile workflow, as far as the exporter needs to read them.
package policyfile

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/juju/errors"
)

// Lock is a resolved policy revision: a named, versioned pinning of a set
// of cookbook versions and their sources.
type Lock struct {
	Name          string               `json:"name"`
	RevisionID    string               `json:"revision_id"`
	CookbookLocks map[string]LockEntry `json:"cookbook_locks"`
}

// LockEntry pins one cookbook within a policy lock.
type LockEntry struct {
	Version          string                 `json:"version"`
	Identifier       string                 `json:"identifier"`
	DottedIdentifier string                 `json:"dotted_decimal_identifier"`
	CacheKey         string                 `json:"cache_key"`
	Origin           string                 `json:"origin"`
	SourceOptions    map[string]interface{} `json:"source_options"`
}

// PathSourced reports whether the entry resolves from a local filesystem
// path rather than the server's content-addressed store. Such "site
// cookbooks" must never be relocated under their cache key.
func (e LockEntry) PathSourced() bool {
	path, ok := e.SourceOptions["path"].(string)
	return ok && path != ""
}

// Classification is the source classification of a lock's cookbooks,
// computed once so that every later step applies the same split.
type Classification struct {
	// Identity maps each identity-sourced cookbook name to its cache key.
	Identity map[string]string

	// Path holds the path-sourced cookbook names, sorted.
	Path []string
}

// Classify partitions the lock's cookbooks by source.
func Classify(lock *Lock) Classification {
	c := Classification{Identity: make(map[string]string)}
	for name, entry := range lock.CookbookLocks {
		if entry.PathSourced() {
			c.Path = append(c.Path, name)
		} else {
			c.Identity[name] = entry.CacheKey
		}
	}
	sort.Strings(c.Path)
	return c
}

// Parse decodes a lock document.
func Parse(data []byte) (*Lock, error) {
	var lock Lock
	if err := json.Unmarshal(data, &lock); err != nil {
		return nil, errors.Annotate(err, "parsing policy lock")
	}
	return &lock, nil
}

// ReadFile reads and parses a lock document from disk.
func ReadFile(path string) (*Lock, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	lock, err := Parse(data)
	if err != nil {
		return nil, errors.Annotatef(err, "reading %q", path)
	}
	return lock, nil
}
