// Copyright (c) 2025 BVK Chaitanya

package cli

import (
	"context"
	"flag"
	"log"
	"testing"
)

type TestCmd struct {
	name  string
	flags *flag.FlagSet
	args  []string
}

func newTestCmd(name string) *TestCmd {
	return &TestCmd{
		name:  name,
		flags: flag.NewFlagSet(name, flag.ContinueOnError),
	}
}

func (t *TestCmd) Command() (*flag.FlagSet, CmdFunc) {
	return t.flags, CmdFunc(func(_ context.Context, args []string) error {
		log.Println("running", t.name, "with args", args)
		t.args = args
		return nil
	})
}

func TestRun(t *testing.T) {
	ctx := context.Background()

	run := newTestCmd("run")
	background := run.flags.Bool("background", false, "set to run in background")

	patternList := newTestCmd("list")
	patternList.flags.String("file", "", "path to the pattern file")
	patternCheck := newTestCmd("check")
	patternCheck.flags.Uint64("gas-limit", 0, "transaction gas limit")
	patternReload := newTestCmd("reload")
	pattern := CommandGroup("pattern", "", patternList, patternCheck, patternReload)

	safetyStop := newTestCmd("stop")
	safetyResume := newTestCmd("resume")
	safety := CommandGroup("safety", "", safetyStop, safetyResume)

	dbGet := newTestCmd("get")
	dbSet := newTestCmd("set")
	dbDelete := newTestCmd("delete")
	dbList := newTestCmd("list")
	db := CommandGroup("db", "", dbGet, dbSet, dbDelete, dbList)

	cmds := []Command{run, pattern, safety, db}

	{
		args := []string{"db", "get", "/positions/xyz"}
		if err := Run(ctx, cmds, args); err != nil {
			t.Fatal(err)
		}
		if len(dbGet.args) != 1 || dbGet.args[0] != "/positions/xyz" {
			t.Fatalf("want `/positions/xyz`, got %v", dbGet.args)
		}
	}

	{
		args := []string{"run", "-background", "run-argument"}
		if err := Run(ctx, cmds, args); err != nil {
			t.Fatal(err)
		}
		if len(run.args) != 1 || run.args[0] != "run-argument" {
			t.Fatalf("want `run-argument`, got %v", run.args)
		}
		if *background == false {
			t.Fatalf("want true, got false")
		}
	}

	{
		args := []string{"pattern", "check", "-gas-limit=1514000"}
		if err := Run(ctx, cmds, args); err != nil {
			t.Fatal(err)
		}
		if v := patternCheck.flags.Lookup("gas-limit").Value.String(); v != "1514000" {
			t.Fatalf("want 1514000, got %v", v)
		}
	}
}
