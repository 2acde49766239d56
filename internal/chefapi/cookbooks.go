// Copyright 2026 Chefops Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package chefapi

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/juju/errors"

	"github.com/chefops/chef-export/internal/chefapi/transport"
)

// CookbookResource exposes the server's versioned cookbook store.
type CookbookResource struct {
	rest   RESTClient
	logger Logger
}

// Cookbooks returns the cookbook store.
func (c *Client) Cookbooks() *CookbookResource {
	return &CookbookResource{rest: c.rest, logger: c.logger}
}

// Versions returns the mapping of cookbook name to the versions the
// server holds, newest first. With latestOnly only the most recent
// version of each cookbook is reported.
func (r *CookbookResource) Versions(ctx context.Context, latestOnly bool) (map[string][]string, error) {
	path := "cookbooks?num_versions=all"
	if latestOnly {
		path = "cookbooks?latest"
	}
	var catalog map[string]transport.CookbookEntry
	if err := r.rest.Get(ctx, path, &catalog); err != nil {
		return nil, errors.Trace(err)
	}
	result := make(map[string][]string, len(catalog))
	for name, entry := range catalog {
		versions := make([]string, 0, len(entry.Versions))
		for _, v := range entry.Versions {
			versions = append(versions, v.Version)
		}
		result[name] = versions
	}
	return result, nil
}

// DownloadVersion fetches one cookbook version into
// destDir/<name>-<version>, returning the number of body bytes written.
// With force an existing copy is replaced, otherwise it is an error.
// On failure the partially written directory is left in place; cleanup
// is the caller's responsibility.
func (r *CookbookResource) DownloadVersion(ctx context.Context, name, version, destDir string, force bool) (int64, error) {
	dir := filepath.Join(destDir, fmt.Sprintf("%s-%s", name, version))
	if _, err := os.Stat(dir); err == nil {
		if !force {
			return 0, errors.AlreadyExistsf("cookbook directory %q", dir)
		}
		if err := os.RemoveAll(dir); err != nil {
			return 0, errors.Trace(err)
		}
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, errors.Trace(err)
	}

	var manifest transport.CookbookManifest
	if err := r.rest.Get(ctx, "cookbooks/"+name+"/"+version, &manifest); err != nil {
		return 0, errors.Trace(err)
	}

	var total int64
	for _, segment := range manifest.Segments() {
		for _, file := range segment {
			n, err := downloadFile(ctx, r.rest, file, dir)
			total += n
			if err != nil {
				return total, errors.Trace(err)
			}
		}
	}
	return total, nil
}
