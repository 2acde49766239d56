// Copyright 2026 Chefops Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package backup

import (
	"strings"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
)

// Component is one of the fixed top-level exportable categories of
// server state. The set is closed and known at compile time.
type Component string

const (
	Clients      Component = "clients"
	Users        Component = "users"
	Nodes        Component = "nodes"
	Roles        Component = "roles"
	DataBags     Component = "data_bags"
	Environments Component = "environments"
	Policies     Component = "policies"
	Cookbooks    Component = "cookbooks"
)

// CanonicalOrder is the order components are exported in when the
// operator does not name any explicitly.
var CanonicalOrder = []Component{
	Clients,
	Users,
	Nodes,
	Roles,
	DataBags,
	Environments,
	Policies,
	Cookbooks,
}

var validComponents = func() set.Strings {
	valid := set.NewStrings()
	for _, c := range CanonicalOrder {
		valid.Add(string(c))
	}
	return valid
}()

// defaultEnvironment is the sentinel environment meaning "no
// environment"; it always exists on the server and is never exported.
const defaultEnvironment = "_default"

// ParseComponents validates the operator-supplied component names,
// preserving their order. All invalid names are reported together. An
// empty argument list selects the full set in canonical order.
func ParseComponents(names []string) ([]Component, error) {
	if len(names) == 0 {
		return append([]Component(nil), CanonicalOrder...), nil
	}
	var invalid []string
	components := make([]Component, 0, len(names))
	for _, name := range names {
		if !validComponents.Contains(name) {
			invalid = append(invalid, name)
			continue
		}
		components = append(components, Component(name))
	}
	if len(invalid) > 0 {
		return nil, errors.NotValidf(
			"unknown component(s) %s; choose from %s",
			strings.Join(invalid, ", "),
			strings.Join(validComponents.SortedValues(), ", "),
		)
	}
	return components, nil
}

// label is the singular operator-facing name for one entity of the
// component.
func (c Component) label() string {
	switch c {
	case DataBags:
		return "data bag"
	default:
		return strings.TrimSuffix(string(c), "s")
	}
}
