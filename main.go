// Copyright (c) 2025 BVK Chaitanya

package main

import (
	"context"
	"log"
	"os"

	"github.com/bvk/snipebot/cli"
	"github.com/bvk/snipebot/subcmds"
	"github.com/bvk/snipebot/subcmds/db"
	"github.com/bvk/snipebot/subcmds/pattern"
	"github.com/bvk/snipebot/subcmds/safety"
)

func main() {
	dbCmds := []cli.Command{
		new(db.Get),
		new(db.Set),
		new(db.Delete),
		new(db.List),
	}

	patternCmds := []cli.Command{
		new(pattern.List),
		new(pattern.Check),
		new(pattern.Reload),
	}

	safetyCmds := []cli.Command{
		new(safety.Stop),
		new(safety.Resume),
	}

	cmds := []cli.Command{
		new(subcmds.Run),
		new(subcmds.Status),
		new(subcmds.Positions),
		cli.CommandGroup("pattern", "Inspect/reload transaction patterns", patternCmds...),
		cli.CommandGroup("safety", "Control the emergency stop", safetyCmds...),
		cli.CommandGroup("db", "View/update database directly", dbCmds...),
	}
	if err := cli.Run(context.Background(), cmds, os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}
