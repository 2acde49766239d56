// Copyright 2026 Chefops Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package chefapi

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/juju/errors"

	"github.com/chefops/chef-export/internal/chefapi/transport"
	"github.com/chefops/chef-export/internal/policyfile"
)

// PolicyResource exposes policy groups and their pinned revisions.
type PolicyResource struct {
	rest   RESTClient
	logger Logger
}

// Policies returns the policy store.
func (c *Client) Policies() *PolicyResource {
	return &PolicyResource{rest: c.rest, logger: c.logger}
}

// PoliciesByGroup returns, per policy group, the mapping of policy name
// to its pinned revision id.
func (r *PolicyResource) PoliciesByGroup(ctx context.Context) (map[string]map[string]string, error) {
	var groups map[string]transport.PolicyGroup
	if err := r.rest.Get(ctx, "policy_groups", &groups); err != nil {
		return nil, errors.Trace(err)
	}
	result := make(map[string]map[string]string, len(groups))
	for group, entry := range groups {
		policies := make(map[string]string, len(entry.Policies))
		for name, rev := range entry.Policies {
			policies[name] = rev.RevisionID
		}
		result[group] = policies
	}
	return result, nil
}

// ShowRevision writes the resolved lock document of the policy pinned in
// the given group to w as pretty-printed JSON.
func (r *PolicyResource) ShowRevision(ctx context.Context, w io.Writer, name, group string) error {
	var doc map[string]interface{}
	if err := r.rest.Get(ctx, "policy_groups/"+group+"/policies/"+name, &doc); err != nil {
		return errors.Trace(err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Trace(err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return errors.Trace(err)
	}
	return nil
}

// SynchronizeCookbooks materializes every cookbook artifact referenced by
// the policy's lock into cacheDir, one directory per cookbook under its
// plain name. Artifacts are content-addressed by the lock identifier.
func (r *PolicyResource) SynchronizeCookbooks(ctx context.Context, name, group, cacheDir string) error {
	var lock policyfile.Lock
	if err := r.rest.Get(ctx, "policy_groups/"+group+"/policies/"+name, &lock); err != nil {
		return errors.Trace(err)
	}

	cookbooks := make([]string, 0, len(lock.CookbookLocks))
	for cookbook := range lock.CookbookLocks {
		cookbooks = append(cookbooks, cookbook)
	}
	sort.Strings(cookbooks)

	for _, cookbook := range cookbooks {
		entry := lock.CookbookLocks[cookbook]
		var manifest transport.CookbookManifest
		path := "cookbook_artifacts/" + cookbook + "/" + entry.Identifier
		if err := r.rest.Get(ctx, path, &manifest); err != nil {
			return errors.Annotatef(err, "fetching artifact manifest for %q", cookbook)
		}
		if err := r.downloadManifest(ctx, manifest, filepath.Join(cacheDir, cookbook)); err != nil {
			return errors.Annotatef(err, "synchronizing cookbook %q", cookbook)
		}
		r.logger.Tracef("synchronized cookbook %s (%s)", cookbook, entry.Identifier)
	}
	return nil
}

func (r *PolicyResource) downloadManifest(ctx context.Context, manifest transport.CookbookManifest, dir string) error {
	for _, segment := range manifest.Segments() {
		for _, file := range segment {
			if _, err := downloadFile(ctx, r.rest, file, dir); err != nil {
				return errors.Trace(err)
			}
		}
	}
	return nil
}

// downloadFile fetches one manifest file into dir, preserving the
// relative path recorded in the manifest.
func downloadFile(ctx context.Context, rest RESTClient, file transport.ManifestFile, dir string) (int64, error) {
	target := filepath.Join(dir, filepath.FromSlash(file.Path))
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return 0, errors.Trace(err)
	}
	f, err := os.Create(target)
	if err != nil {
		return 0, errors.Trace(err)
	}
	n, err := rest.GetFile(ctx, file.URL, f)
	if cerr := f.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return n, errors.Annotatef(err, "downloading %q", file.Path)
	}
	return n, nil
}
