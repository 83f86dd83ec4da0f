package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestRootCommandWiresSubcommands(t *testing.T) {
	root := newRootCommand()
	for _, path := range [][]string{{"serve"}, {"migrate"}, {"sessions", "list"}, {"sessions", "revoke"}, {"sessions", "revoke-user"}} {
		cmd, _, err := root.Find(path)
		if err != nil || cmd == nil || cmd.Name() != path[len(path)-1] {
			t.Fatalf("expected command %v, got %v (err=%v)", path, cmd, err)
		}
	}
}

func TestSessionsCommandRequiresUser(t *testing.T) {
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"sessions", "list", "--env-file", ""})
	err := root.Execute()
	if err == nil || !strings.Contains(err.Error(), "user") {
		t.Fatalf("expected missing --user error, got %v", err)
	}
}

func TestSessionsRevokeRequiresSession(t *testing.T) {
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"sessions", "revoke", "--user", "1", "--env-file", ""})
	err := root.Execute()
	if err == nil || !strings.Contains(err.Error(), "session") {
		t.Fatalf("expected missing --session error, got %v", err)
	}
}
