// Copyright 2026 Chefops Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// chef-export is a one-shot batch tool that exports the configuration
// state of a Chef Infra Server into a local directory tree, suitable for
// disaster recovery or migration.
package main

import (
	"fmt"
	"os"

	"github.com/juju/cmd/v3"
	"github.com/juju/loggo"
)

const version = "1.0.0"

var logger = loggo.GetLogger("chefexport.cmd")

var doc = `
chef-export reads policy objects, versioned cookbooks, registered nodes,
clients, roles, environments, shared data and users from a Chef server
and writes them to a local backup directory, one subtree per component.
`

func main() {
	ctx, err := cmd.DefaultContext()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
	os.Exit(cmd.Main(newSuperCommand(), ctx, os.Args[1:]))
}

func newSuperCommand() cmd.Command {
	super := cmd.NewSuperCommand(cmd.SuperCommandParams{
		Name:    "chef-export",
		Purpose: "export the configuration state of a Chef server",
		Doc:     doc,
		Version: version,
		Log:     &cmd.Log{},
	})
	super.Register(newExportCommand())
	return super
}
