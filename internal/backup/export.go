// Copyright 2026 Chefops Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package backup

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
)

// loadAttempts bounds the retry loop of a single entity load. Retries
// are immediate; the server inconsistency they cover is a listing that
// momentarily names an object the load cannot yet see.
const loadAttempts = 5

// exportEntities writes every entity of a flat collection to
// <dir>/<component>/<name>.json. Individual load failures are reported
// and skipped; the component always completes.
func (b *Backup) exportEntities(ctx context.Context, component Component, store EntityStore) error {
	dir := filepath.Join(b.params.Dir, string(component))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Trace(err)
	}
	listing, err := store.List(ctx)
	if err != nil {
		return errors.Annotatef(err, "listing %s", component)
	}
	for _, name := range sortedNames(listing) {
		if component == Environments && name == defaultEnvironment {
			continue
		}
		record, err := b.loadWithRetry(ctx, component, store, name)
		if err != nil {
			return errors.Trace(err)
		}
		if record == nil {
			b.progress.Errorf("could not load %s %q, skipping", component.label(), name)
			continue
		}
		if err := writeRecord(filepath.Join(dir, name+".json"), record); err != nil {
			return errors.Trace(err)
		}
		b.progress.Infof("backed up %s %s", component.label(), name)
	}
	return nil
}

// loadWithRetry attempts a single entity load, tolerating the error
// classes the run is configured to survive. A nil record with a nil
// error means the entity was skipped; the caller reports it.
func (b *Backup) loadWithRetry(ctx context.Context, component Component, store EntityStore, name string) (map[string]interface{}, error) {
	for attempt := 1; ; attempt++ {
		record, err := store.Load(ctx, name)
		if err == nil {
			return record, nil
		}
		switch {
		case errors.Is(err, errors.NotFound):
			if attempt >= loadAttempts {
				return nil, nil
			}
			b.progress.Warningf("retrying %s %q (attempt %d): %v", component.label(), name, attempt, err)
		case errors.Is(err, errors.Forbidden), errors.Is(err, errors.Unauthorized):
			if b.params.IgnorePermissionErrors {
				b.progress.Warningf("access to %s %q denied, skipping", component.label(), name)
				return nil, nil
			}
			return nil, errors.Trace(err)
		default:
			return nil, errors.Trace(err)
		}
	}
}

// exportDataBags writes every item of every bag to
// <dir>/data_bags/<bag>/<item>.json. Data bag loads are not retried;
// any failure aborts the component.
func (b *Backup) exportDataBags(ctx context.Context) error {
	dir := filepath.Join(b.params.Dir, string(DataBags))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Trace(err)
	}
	bags, err := b.backend.DataBags.ListBags(ctx)
	if err != nil {
		return errors.Annotate(err, "listing data bags")
	}
	for _, bag := range sortedNames(bags) {
		bagDir := filepath.Join(dir, bag)
		if err := os.MkdirAll(bagDir, 0755); err != nil {
			return errors.Trace(err)
		}
		items, err := b.backend.DataBags.ListItems(ctx, bag)
		if err != nil {
			return errors.Annotatef(err, "listing items of data bag %q", bag)
		}
		for _, item := range sortedNames(items) {
			record, err := b.backend.DataBags.LoadItemRaw(ctx, bag, item)
			if err != nil {
				return errors.Annotatef(err, "loading data bag item %s/%s", bag, item)
			}
			if err := writeRecord(filepath.Join(bagDir, item+".json"), record); err != nil {
				return errors.Trace(err)
			}
			b.progress.Infof("backed up data bag item %s/%s", bag, item)
		}
	}
	return nil
}

// writeRecord serializes a record verbatim as pretty-printed JSON,
// overwriting any previous file. MarshalIndent orders keys, so identical
// records always produce identical bytes.
func writeRecord(path string, record map[string]interface{}) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return errors.Trace(err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Trace(err)
	}
	return nil
}

func sortedNames(listing map[string]string) []string {
	names := set.NewStrings()
	for name := range listing {
		names.Add(name)
	}
	return names.SortedValues()
}
