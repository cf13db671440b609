package main

import "testing"

func TestBuildRootHasSubcommands(t *testing.T) {
	root := buildRoot()
	want := []string{"serve", "run", "status", "start", "stop", "restart", "send", "history", "backups", "update", "install", "backup", "version"}
	have := map[string]bool{}
	for _, c := range root.Commands() {
		have[c.Name()] = true
	}
	for _, name := range want {
		if !have[name] {
			t.Fatalf("missing subcommand %q", name)
		}
	}
}
