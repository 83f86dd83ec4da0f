package ui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestSummaryMarksOutcome(t *testing.T) {
	ok := Summary("migrate", []string{"driver=sqlite"}, nil)
	if !strings.Contains(ok, "✓") || !strings.Contains(ok, "driver=sqlite") {
		t.Fatalf("unexpected success summary: %q", ok)
	}
	failed := Summary("migrate", nil, errors.New("boom"))
	if !strings.Contains(failed, "✗") || !strings.Contains(failed, "boom") {
		t.Fatalf("unexpected failure summary: %q", failed)
	}
}

func TestRunPlainWritesSummary(t *testing.T) {
	var out bytes.Buffer
	details, err := RunPlain(context.Background(), &out, "revoke", func(context.Context) ([]string, error) {
		return []string{"revoked=2"}, nil
	})
	if err != nil || len(details) != 1 {
		t.Fatalf("unexpected result: %v %v", details, err)
	}
	if !strings.Contains(out.String(), "revoked=2") {
		t.Fatalf("expected details in output, got %q", out.String())
	}
}

func TestModelQuitsWhenWorkCompletes(t *testing.T) {
	m := model{title: "work"}
	next, cmd := m.Update(doneMsg{details: []string{"a"}})
	fm := next.(model)
	if !fm.done || len(fm.details) != 1 {
		t.Fatalf("expected finished model, got %+v", fm)
	}
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("expected tea.Quit")
	}

	next, cmd = fm.Update(tickMsg{})
	if cmd != nil {
		t.Fatal("finished model must stop ticking")
	}
	if !strings.Contains(next.View(), "✓ work") {
		t.Fatalf("unexpected view: %q", next.View())
	}
}

func TestModelTicksWhileRunning(t *testing.T) {
	m := model{title: "work"}
	next, cmd := m.Update(tickMsg{})
	if cmd == nil {
		t.Fatal("expected another tick while running")
	}
	if next.(model).frame != 1 {
		t.Fatalf("expected frame to advance, got %d", next.(model).frame)
	}
}

func TestTableRendersHeadersAndRows(t *testing.T) {
	out := Table([]string{"ID", "IP"}, [][]string{{"7", "10.0.0.1"}})
	for _, want := range []string{"ID", "IP", "7", "10.0.0.1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in table:\n%s", want, out)
		}
	}
}
