// Copyright 2026 Chefops Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package chefapi

import (
	"context"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/version/v2"
)

// minUserAPIVersion is the first server release whose /users endpoint is
// scoped the way the exporter expects.
var minUserAPIVersion = version.Number{Major: 12}

// ServerVersion queries the server's version endpoint and parses the
// reported release number. The endpoint serves a short text manifest
// whose first line names the package and its version.
func (c *Client) ServerVersion(ctx context.Context) (version.Number, error) {
	text, err := c.rest.GetText(ctx, "version")
	if err != nil {
		return version.Zero, errors.Trace(err)
	}
	lines := strings.SplitN(strings.TrimSpace(text), "\n", 2)
	if len(lines) == 0 || lines[0] == "" {
		return version.Zero, errors.NotValidf("empty version response")
	}
	fields := strings.Fields(lines[0])
	for i := len(fields) - 1; i >= 0; i-- {
		if num, err := version.Parse(fields[i]); err == nil {
			return num, nil
		}
	}
	return version.Zero, errors.NotValidf("version response %q", lines[0])
}

// SupportsUserExport reports whether the server's user collection can be
// exported. Older releases keep users outside the organization API, so
// the exporter skips the component there.
func (c *Client) SupportsUserExport(ctx context.Context) (bool, error) {
	current, err := c.ServerVersion(ctx)
	if err != nil {
		return false, errors.Trace(err)
	}
	return current.Compare(minUserAPIVersion) >= 0, nil
}
