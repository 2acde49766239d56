// Copyright 2026 Chefops Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/juju/collections/set"
	"github.com/juju/errors"
)

// exportCookbooks downloads every catalogued cookbook version into
// <dir>/cookbooks/<name>-<version>. One version's failure never halts
// the others: the partial directory is removed, a skip is reported, and
// the loop continues.
func (b *Backup) exportCookbooks(ctx context.Context) error {
	dir := filepath.Join(b.params.Dir, string(Cookbooks))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Trace(err)
	}
	catalog, err := b.backend.Cookbooks.Versions(ctx, b.params.LatestOnly)
	if err != nil {
		return errors.Annotate(err, "fetching cookbook catalog")
	}
	names := set.NewStrings()
	for name := range catalog {
		names.Add(name)
	}
	for _, name := range names.SortedValues() {
		for _, version := range catalog[name] {
			n, err := b.backend.Cookbooks.DownloadVersion(ctx, name, version, dir, true)
			if err != nil {
				b.progress.Errorf("skipping cookbook %s %s: %v", name, version, err)
				partial := filepath.Join(dir, fmt.Sprintf("%s-%s", name, version))
				if rerr := os.RemoveAll(partial); rerr != nil {
					b.progress.Warningf("could not remove partial download %q: %v", partial, rerr)
				}
				continue
			}
			b.progress.Infof("backed up cookbook %s %s (%s)", name, version, humanize.Bytes(uint64(n)))
		}
	}
	return nil
}
