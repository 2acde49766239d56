// Copyright 2026 Chefops Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package backup

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/juju/collections/set"
	"github.com/juju/errors"

	"github.com/chefops/chef-export/internal/policyfile"
)

// exportPolicies resolves every policy pinned in every policy group into
// policies/<group>/<name>/{policyfile,cookbooks,site-cookbooks}. Each
// policy gets its own isolated tree, so a cookbook referenced with
// conflicting source options by two policies can never corrupt shared
// state.
func (b *Backup) exportPolicies(ctx context.Context) error {
	dir := filepath.Join(b.params.Dir, string(Policies))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Trace(err)
	}
	byGroup, err := b.backend.Policies.PoliciesByGroup(ctx)
	if err != nil {
		return errors.Annotate(err, "listing policy groups")
	}
	groups := set.NewStrings()
	for group := range byGroup {
		groups.Add(group)
	}
	for _, group := range groups.SortedValues() {
		names := set.NewStrings()
		for name := range byGroup[group] {
			names.Add(name)
		}
		for _, name := range names.SortedValues() {
			if err := b.exportPolicy(ctx, dir, group, name); err != nil {
				return errors.Annotatef(err, "policy %s in group %s", name, group)
			}
			b.progress.Infof("backed up policy %s::%s", group, name)
		}
	}
	return nil
}

// exportPolicy captures one policy's lock document and relocates its
// cookbooks. The source classification is computed once from the parsed
// lock and applied to both the rename and the site-cookbook move.
func (b *Backup) exportPolicy(ctx context.Context, dir, group, name string) error {
	base := filepath.Join(dir, group, name)
	cookbooksDir := filepath.Join(base, "cookbooks")
	siteDir := filepath.Join(base, "site-cookbooks")
	policyfileDir := filepath.Join(base, "policyfile")
	for _, d := range []string{policyfileDir, cookbooksDir, siteDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return errors.Trace(err)
		}
	}

	lockPath := filepath.Join(policyfileDir, name+".lock.json")
	err := captureToFile(lockPath, func(w io.Writer) error {
		return b.backend.Policies.ShowRevision(ctx, w, name, group)
	})
	if err != nil {
		return errors.Annotate(err, "capturing lock document")
	}

	lock, err := policyfile.ReadFile(lockPath)
	if err != nil {
		return errors.Trace(err)
	}
	classified := policyfile.Classify(lock)

	if err := b.backend.Policies.SynchronizeCookbooks(ctx, name, group, cookbooksDir); err != nil {
		return errors.Annotate(err, "synchronizing cookbooks")
	}

	// Identity-sourced cookbooks live under their content-addressed
	// cache key; path-sourced ones keep their plain name but move to the
	// site-cookbooks subtree.
	identity := set.NewStrings()
	for cookbook := range classified.Identity {
		identity.Add(cookbook)
	}
	for _, cookbook := range identity.SortedValues() {
		cacheKey := classified.Identity[cookbook]
		from := filepath.Join(cookbooksDir, cookbook)
		to := filepath.Join(cookbooksDir, cacheKey)
		if err := os.Rename(from, to); err != nil {
			return errors.Annotatef(err, "relocating cookbook %q to cache key %q", cookbook, cacheKey)
		}
	}
	for _, cookbook := range classified.Path {
		from := filepath.Join(cookbooksDir, cookbook)
		to := filepath.Join(siteDir, cookbook)
		if err := os.Rename(from, to); err != nil {
			return errors.Annotatef(err, "relocating site cookbook %q", cookbook)
		}
	}
	return nil
}

// captureToFile routes the output of fn into a file sink with guaranteed
// release: the sink is closed exactly once on every exit path, and an
// error from fn propagates unchanged.
func captureToFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Trace(err)
	}
	return capture(f, fn)
}

func capture(sink io.WriteCloser, fn func(io.Writer) error) error {
	err := fn(sink)
	if cerr := sink.Close(); cerr != nil && err == nil {
		err = errors.Annotate(cerr, "closing capture sink")
	}
	return err
}
