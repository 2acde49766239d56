// Copyright 2026 Chefops Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package backup_test

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/juju/errors"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/chefops/chef-export/internal/backup"
	"github.com/chefops/chef-export/internal/policyfile"
)

const webappLock = `{
  "name": "webapp",
  "revision_id": "6fe753184c8946052d3231bb4212116df28d89a9a5c4df63f357ca387e02f27b",
  "cookbook_locks": {
    "apache2": {
      "version": "8.6.0",
      "identifier": "5c78567c8e1d624e8a49a00245c14b1ceca4a379",
      "cache_key": "apache2-8.6.0-supermarket.chef.io",
      "source_options": {
        "artifactserver": "https://supermarket.chef.io/api/v1/cookbooks/apache2/versions/8.6.0/download",
        "version": "8.6.0"
      }
    },
    "deploycfg": {
      "version": "0.1.0",
      "identifier": "f04cc40faf628253fe7d9566d66a1733fb1afbe9",
      "cache_key": null,
      "source_options": {
        "path": "cookbooks/deploycfg"
      }
    }
  }
}
`

// fakePolicyStore serves one lock document per group/policy and
// materializes plain-named cookbook directories on synchronize, the way
// the policy builder collaborator does.
type fakePolicyStore struct {
	groups  map[string]map[string]string
	locks   map[string]string // "<group>/<name>" -> lock JSON
	showErr error
	syncErr error
	synced  []string
}

func (s *fakePolicyStore) PoliciesByGroup(ctx context.Context) (map[string]map[string]string, error) {
	return s.groups, nil
}

func (s *fakePolicyStore) ShowRevision(ctx context.Context, w io.Writer, name, group string) error {
	if s.showErr != nil {
		// Partial output before the failure, like a broken stream.
		_, _ = io.WriteString(w, `{"name": "`)
		return s.showErr
	}
	_, err := io.WriteString(w, s.locks[group+"/"+name])
	return err
}

func (s *fakePolicyStore) SynchronizeCookbooks(ctx context.Context, name, group, cacheDir string) error {
	if s.syncErr != nil {
		return s.syncErr
	}
	s.synced = append(s.synced, group+"/"+name)
	lock, err := policyfile.Parse([]byte(s.locks[group+"/"+name]))
	if err != nil {
		return err
	}
	for cookbook := range lock.CookbookLocks {
		dir := filepath.Join(cacheDir, cookbook)
		if err := os.MkdirAll(filepath.Join(dir, "recipes"), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, "recipes", "default.rb"), []byte("# stub\n"), 0644); err != nil {
			return err
		}
	}
	return nil
}

type policySuite struct {
	baseSuite
}

var _ = gc.Suite(&policySuite{})

func (s *policySuite) store() *fakePolicyStore {
	return &fakePolicyStore{
		groups: map[string]map[string]string{
			"production": {"webapp": "6fe75318"},
		},
		locks: map[string]string{
			"production/webapp": webappLock,
		},
	}
}

func (s *policySuite) TestExportWritesLockFile(c *gc.C) {
	s.backend.Policies = s.store()

	err := s.run(c, backup.Params{}, backup.Policies)
	c.Assert(err, jc.ErrorIsNil)

	lockPath := filepath.Join(s.dir, "policies", "production", "webapp", "policyfile", "webapp.lock.json")
	c.Check(lockPath, jc.IsNonEmptyFile)
	data, err := os.ReadFile(lockPath)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(string(data), gc.Equals, webappLock)
}

func (s *policySuite) TestClassificationRelocatesCookbooks(c *gc.C) {
	s.backend.Policies = s.store()

	err := s.run(c, backup.Params{}, backup.Policies)
	c.Assert(err, jc.ErrorIsNil)

	base := filepath.Join(s.dir, "policies", "production", "webapp")
	// Identity-sourced: stored under the content-addressed cache key.
	c.Check(filepath.Join(base, "cookbooks", "apache2-8.6.0-supermarket.chef.io"), jc.IsDirectory)
	c.Check(filepath.Join(base, "cookbooks", "apache2"), jc.DoesNotExist)
	// Path-sourced: moved aside under its plain name.
	c.Check(filepath.Join(base, "site-cookbooks", "deploycfg"), jc.IsDirectory)
	c.Check(filepath.Join(base, "cookbooks", "deploycfg"), jc.DoesNotExist)
	c.Check(filepath.Join(base, "site-cookbooks", "deploycfg", "recipes", "default.rb"), jc.IsNonEmptyFile)
}

func (s *policySuite) TestEveryPolicyGetsAnIsolatedTree(c *gc.C) {
	store := s.store()
	store.groups = map[string]map[string]string{
		"production": {"webapp": "6fe75318"},
		"staging":    {"webapp": "6fe75318"},
	}
	store.locks["staging/webapp"] = webappLock
	s.backend.Policies = store

	err := s.run(c, backup.Params{}, backup.Policies)
	c.Assert(err, jc.ErrorIsNil)

	c.Check(store.synced, gc.DeepEquals, []string{"production/webapp", "staging/webapp"})
	for _, group := range []string{"production", "staging"} {
		base := filepath.Join(s.dir, "policies", group, "webapp")
		c.Check(filepath.Join(base, "cookbooks", "apache2-8.6.0-supermarket.chef.io"), jc.IsDirectory)
		c.Check(filepath.Join(base, "site-cookbooks", "deploycfg"), jc.IsDirectory)
	}
}

func (s *policySuite) TestCaptureFailurePropagates(c *gc.C) {
	store := s.store()
	store.showErr = errors.New("stream reset")
	s.backend.Policies = store

	err := s.run(c, backup.Params{}, backup.Policies)
	c.Assert(err, gc.ErrorMatches, ".*capturing lock document: stream reset")
	c.Check(store.synced, gc.HasLen, 0)
}

func (s *policySuite) TestSynchronizeFailurePropagates(c *gc.C) {
	store := s.store()
	store.syncErr = errors.New("depsolver timeout")
	s.backend.Policies = store

	err := s.run(c, backup.Params{}, backup.Policies)
	c.Assert(err, gc.ErrorMatches, ".*synchronizing cookbooks: depsolver timeout")
}

// recordingSink counts Close calls for the capture contract.
type recordingSink struct {
	writes   int
	closes   int
	closeErr error
}

func (s *recordingSink) Write(p []byte) (int, error) {
	s.writes++
	return len(p), nil
}

func (s *recordingSink) Close() error {
	s.closes++
	return s.closeErr
}

type captureSuite struct{}

var _ = gc.Suite(&captureSuite{})

func (s *captureSuite) TestReleasesSinkOnSuccess(c *gc.C) {
	sink := &recordingSink{}
	err := backup.Capture(sink, func(w io.Writer) error {
		_, err := w.Write([]byte("lock"))
		return err
	})
	c.Assert(err, jc.ErrorIsNil)
	c.Check(sink.closes, gc.Equals, 1)
	c.Check(sink.writes, gc.Equals, 1)
}

func (s *captureSuite) TestReleasesSinkExactlyOnceOnFailure(c *gc.C) {
	sink := &recordingSink{}
	boom := errors.New("boom")
	err := backup.Capture(sink, func(w io.Writer) error {
		_, _ = w.Write([]byte("partial"))
		return boom
	})
	// The original error comes back unchanged.
	c.Check(err, gc.Equals, boom)
	c.Check(sink.closes, gc.Equals, 1)
}

func (s *captureSuite) TestCloseErrorSurfacesWhenCaptureSucceeded(c *gc.C) {
	sink := &recordingSink{closeErr: errors.New("flush failed")}
	err := backup.Capture(sink, func(io.Writer) error { return nil })
	c.Assert(err, gc.ErrorMatches, "closing capture sink: flush failed")
	c.Check(sink.closes, gc.Equals, 1)
}
