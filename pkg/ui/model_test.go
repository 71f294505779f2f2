package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/modeltree/pkg/document"
	"github.com/vanderheijden86/modeltree/pkg/modelpath"
	"github.com/vanderheijden86/modeltree/pkg/remote"
	"github.com/vanderheijden86/modeltree/pkg/search"
	"github.com/vanderheijden86/modeltree/pkg/tree"
	"github.com/vanderheijden86/modeltree/pkg/watcher"
)

func newTestModel(t *testing.T) (*document.Document, Model) {
	t.Helper()
	doc := document.MustNew(document.Object{
		{Key: "x", Value: 42},
		{Key: "name", Value: "alpha 42"},
		{Key: "nested", Value: document.Object{
			{Key: "flag", Value: true},
			{Key: "when", Value: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)},
		}},
		{Key: "list", Value: []any{1, 2}},
	})
	tm := tree.New(doc)
	m := New(doc, tm, search.New(tm), WithTitle("sample.json"))
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return doc, updated.(Model)
}

func press(t *testing.T, m Model, keys ...tea.KeyMsg) Model {
	t.Helper()
	for _, k := range keys {
		updated, _ := m.Update(k)
		m = updated.(Model)
	}
	return m
}

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

var (
	enter = tea.KeyMsg{Type: tea.KeyEnter}
	esc   = tea.KeyMsg{Type: tea.KeyEsc}
	clearLine = tea.KeyMsg{Type: tea.KeyCtrlU}
)

func selectedPath(m Model) string {
	sel, ok := m.Tree().Selection()
	if !ok {
		return ""
	}
	return m.Tree().Path(sel).String()
}

func TestNavigation(t *testing.T) {
	_, m := newTestModel(t)
	if got := selectedPath(m); got != "$" {
		t.Fatalf("expected root selected initially, got %s", got)
	}

	m = press(t, m, runes("j"), runes("j"), runes("j"))
	if got := selectedPath(m); got != "nested" {
		t.Fatalf("expected nested, got %s", got)
	}
	m = press(t, m, runes("l"))
	sel, _ := m.Tree().Selection()
	if !m.Tree().Expanded(sel) {
		t.Fatal("expected right to expand nested")
	}
	m = press(t, m, runes("l"))
	if got := selectedPath(m); got != "nested.flag" {
		t.Errorf("expected right on an expanded container to enter it, got %s", got)
	}
	m = press(t, m, runes("h"))
	if got := selectedPath(m); got != "nested" {
		t.Errorf("expected left on a value to select the parent, got %s", got)
	}
	m = press(t, m, runes("G"))
	if got := selectedPath(m); got != "list" {
		t.Errorf("expected bottom to be list, got %s", got)
	}
	m = press(t, m, runes("g"))
	if got := selectedPath(m); got != "$" {
		t.Errorf("expected top to be root, got %s", got)
	}
}

func TestCollapseAllKeepsSelectionVisible(t *testing.T) {
	_, m := newTestModel(t)
	m = press(t, m, runes("E"))
	m = press(t, m, runes("G"))
	if got := selectedPath(m); got != "list[1]" {
		t.Fatalf("expected list[1] after expand all, got %s", got)
	}
	m = press(t, m, runes("C"))
	if got := selectedPath(m); got != "$" {
		t.Errorf("expected the selection to move to the collapsed root, got %s", got)
	}
}

func TestSearchPrompt(t *testing.T) {
	_, m := newTestModel(t)
	m = press(t, m, runes("/"), runes("42"))
	if m.prompt != promptSearch {
		t.Fatal("expected the search prompt open")
	}
	if got := selectedPath(m); got != "x" {
		t.Errorf("expected live search to select the first match, got %s", got)
	}
	m = press(t, m, enter)
	if m.prompt != promptNone {
		t.Error("expected enter to close the prompt")
	}
	if m.Status() != "match 1/2" {
		t.Errorf("expected match 1/2, got %q", m.Status())
	}
	m = press(t, m, runes("n"))
	if got := selectedPath(m); got != "name" {
		t.Errorf("expected next match on name, got %s", got)
	}
	if view := m.View(); !strings.Contains(view, "/42  2/2") {
		t.Errorf("expected the header to show the search position, got:\n%s", view)
	}
	m = press(t, m, esc)
	if m.search.Query() != "" {
		t.Errorf("expected esc to clear the search, got %q", m.search.Query())
	}
}

func TestSearchRevealsCollapsedMatch(t *testing.T) {
	_, m := newTestModel(t)
	m = press(t, m, runes("/"), runes("true"), enter)
	if got := selectedPath(m); got != "nested.flag" {
		t.Fatalf("expected nested.flag, got %s", got)
	}
	nested, _ := m.Tree().NodeAtPath(modelpath.New("nested"))
	if !m.Tree().Expanded(nested) {
		t.Error("expected the match's container expanded")
	}
}

func TestAddStringThenNameIt(t *testing.T) {
	_, m := newTestModel(t)
	m = press(t, m, runes("a"))
	if m.prompt != promptAddKind {
		t.Fatal("expected the kind chooser")
	}
	m = press(t, m, runes("s"))
	if got := selectedPath(m); got != "new" {
		t.Fatalf("expected the new child selected, got %s", got)
	}
	if m.prompt != promptRename {
		t.Fatal("expected a key prompt for the new child")
	}
	m = press(t, m, clearLine, runes("title"), enter)
	if got := selectedPath(m); got != "title" {
		t.Errorf("expected the new child renamed to title, got %s", got)
	}
}

func TestAddRejectedOnValue(t *testing.T) {
	_, m := newTestModel(t)
	m = press(t, m, runes("j"), runes("a"))
	if m.prompt != promptNone || !m.statusErr {
		t.Errorf("expected an error adding under a value, got prompt %v status %q", m.prompt, m.Status())
	}
}

func TestEditValue(t *testing.T) {
	doc, m := newTestModel(t)
	m = press(t, m, runes("j"), runes("e"), clearLine, runes("7"), enter)
	if m.statusErr {
		t.Fatalf("unexpected error: %s", m.Status())
	}
	el, err := doc.Lookup(modelpath.New("x"))
	if err != nil {
		t.Fatal(err)
	}
	if el.Kind() != document.KindNumber || el.Text() != "7" {
		t.Errorf("expected number 7, got %s %q", el.Kind(), el.Text())
	}

	m = press(t, m, runes("j"), runes("e"), clearLine, runes("42"), enter)
	el, _ = doc.Lookup(modelpath.New("name"))
	if el.Kind() != document.KindString {
		t.Errorf("expected strings to stay strings, got %s", el.Kind())
	}
}

func TestDeleteRespectsMode(t *testing.T) {
	_, m := newTestModel(t)
	m = press(t, m, runes("j"), runes("m"))
	if m.Tree().Mode() != tree.ModeView {
		t.Fatal("expected view mode")
	}
	m = press(t, m, runes("d"))
	if !m.statusErr {
		t.Error("expected delete to fail in view mode")
	}
	m = press(t, m, runes("m"), runes("d"))
	if _, err := m.Tree().NodeAtPath(modelpath.New("x")); err == nil {
		t.Error("expected x deleted in edit mode")
	}
	if got := selectedPath(m); got != "$" {
		t.Errorf("expected the selection repaired to the root, got %s", got)
	}
}

func TestCopyPathAndValue(t *testing.T) {
	var copied string
	orig := writeClipboard
	writeClipboard = func(s string) error { copied = s; return nil }
	t.Cleanup(func() { writeClipboard = orig })

	_, m := newTestModel(t)
	m = press(t, m, runes("G"), runes("y"))
	if copied != "list" {
		t.Errorf("expected path list, got %q", copied)
	}
	m = press(t, m, runes("Y"))
	if compact := strings.Join(strings.Fields(copied), ""); compact != "[1,2]" {
		t.Errorf("expected list JSON, got %q", copied)
	}

	writeClipboard = func(string) error { return errors.New("no clipboard") }
	m = press(t, m, runes("y"))
	if !m.statusErr {
		t.Error("expected a clipboard failure in the status line")
	}
}

func TestReloadAndRemoteMessages(t *testing.T) {
	doc, m := newTestModel(t)
	updated, _ := m.Update(ReloadMsg{Reload: watcher.Reload{
		Path:  "sample.json",
		Value: document.Object{{Key: "x", Value: 1}},
	}})
	m = updated.(Model)
	if doc.Root().Size() != 1 {
		t.Fatalf("expected the reload applied, got %d keys", doc.Root().Size())
	}
	if _, err := m.Tree().NodeAtPath(modelpath.New("x")); err != nil {
		t.Errorf("expected x mirrored, got %v", err)
	}

	op := document.NewOp(document.OpSet, modelpath.New("y"))
	op.Value = "remote"
	updated, _ = m.Update(RemoteMsg{Batch: remote.Batch{Origin: "peer", Ops: []document.Op{op}}})
	m = updated.(Model)
	if _, err := m.Tree().NodeAtPath(modelpath.New("y")); err != nil {
		t.Errorf("expected remote key mirrored, got %v", err)
	}

	updated, _ = m.Update(ReloadMsg{Reload: watcher.Reload{Err: errors.New("bad json")}})
	m = updated.(Model)
	if !m.statusErr || doc.Root().Size() != 2 {
		t.Errorf("expected a failed reload to leave the document alone, got %q", m.Status())
	}
}

func TestViewRendersTree(t *testing.T) {
	_, m := newTestModel(t)
	m = press(t, m, runes("E"))
	view := m.View()
	for _, want := range []string{"sample.json", "EDIT", "├── ", "└── ", "nested", "alpha 42"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected view to contain %q", want)
		}
	}

	small := press(t, m, runes("G"))
	updated, _ := small.Update(tea.WindowSizeMsg{Width: 30, Height: 12})
	small = updated.(Model)
	if !strings.Contains(small.View(), "[1]") {
		t.Error("expected the selection scrolled into view on a short terminal")
	}
}

func TestParseValue(t *testing.T) {
	if v := parseValue("hello", document.KindNumber); v != "hello" {
		t.Errorf("expected raw text fallback, got %v", v)
	}
	if v := parseValue("2024-05-06T07:08:09Z", document.KindDate); v == nil {
		t.Error("expected a date")
	} else if _, ok := v.(time.Time); !ok {
		t.Errorf("expected time.Time, got %T", v)
	}
	if v := parseValue("null", document.KindBoolean); v != nil {
		t.Errorf("expected nil for null, got %v", v)
	}
}

func TestWaitRemoteCmdEndsOnClosedFeed(t *testing.T) {
	ch := make(chan remote.Batch)
	close(ch)
	if msg := WaitRemoteCmd(ch)(); msg != nil {
		t.Errorf("expected nil message from a closed feed, got %#v", msg)
	}
	if WaitRemoteCmd(nil) != nil {
		t.Error("expected no command without a feed")
	}
}
