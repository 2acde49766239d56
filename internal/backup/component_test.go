// Copyright 2026 Chefops Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package backup_test

import (
	"github.com/juju/errors"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/chefops/chef-export/internal/backup"
)

type componentSuite struct{}

var _ = gc.Suite(&componentSuite{})

func (s *componentSuite) TestParseEmptySelectsCanonicalOrder(c *gc.C) {
	components, err := backup.ParseComponents(nil)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(components, gc.DeepEquals, []backup.Component{
		backup.Clients,
		backup.Users,
		backup.Nodes,
		backup.Roles,
		backup.DataBags,
		backup.Environments,
		backup.Policies,
		backup.Cookbooks,
	})
}

func (s *componentSuite) TestParsePreservesOperatorOrder(c *gc.C) {
	components, err := backup.ParseComponents([]string{"cookbooks", "nodes"})
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(components, gc.DeepEquals, []backup.Component{
		backup.Cookbooks,
		backup.Nodes,
	})
}

func (s *componentSuite) TestParseAcceptsAnySubset(c *gc.C) {
	for _, component := range backup.CanonicalOrder {
		components, err := backup.ParseComponents([]string{string(component)})
		c.Assert(err, jc.ErrorIsNil)
		c.Assert(components, gc.DeepEquals, []backup.Component{component})
	}
}

func (s *componentSuite) TestParseReportsAllInvalidNames(c *gc.C) {
	_, err := backup.ParseComponents([]string{"nodes", "bogus", "wibble"})
	c.Assert(err, jc.Satisfies, errors.IsNotValid)
	c.Assert(err, gc.ErrorMatches, `unknown component\(s\) bogus, wibble; choose from .*not valid`)
}

func (s *componentSuite) TestParseRejectsMixedSets(c *gc.C) {
	_, err := backup.ParseComponents([]string{"node"})
	c.Assert(err, jc.Satisfies, errors.IsNotValid)
}
