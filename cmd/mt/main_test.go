package main

import (
	"bytes"
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/vanderheijden86/modeltree/pkg/config"
	"github.com/vanderheijden86/modeltree/pkg/modelpath"
	"github.com/vanderheijden86/modeltree/pkg/tree"
	"github.com/vanderheijden86/modeltree/pkg/version"
)

const sampleDoc = `{"name":"alpha","servers":[{"port":80}],"on":true}`

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.json")
	if err := os.WriteFile(path, []byte(sampleDoc), 0644); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	return path
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Tree.PersistState = false
	cfg.Tree.StateDir = t.TempDir()
	return cfg
}

func TestDumpOutline(t *testing.T) {
	path := writeSample(t)
	var out bytes.Buffer
	opts := &dumpOptions{depth: -1}
	if err := runDump(context.Background(), testConfig(t), path, opts, &out); err != nil {
		t.Fatalf("dump: %v", err)
	}
	want := "{3}\n  name: \"alpha\"\n  servers: [1] …\n  on: true\n"
	if out.String() != want {
		t.Errorf("expected outline\n%s\ngot\n%s", want, out.String())
	}
}

func TestDumpSubtreeExpanded(t *testing.T) {
	path := writeSample(t)
	var out bytes.Buffer
	opts := &dumpOptions{depth: -1, all: true, path: "servers[0]"}
	if err := runDump(context.Background(), testConfig(t), path, opts, &out); err != nil {
		t.Fatalf("dump: %v", err)
	}
	want := "[0]: {1}\n  port: 80\n"
	if out.String() != want {
		t.Errorf("expected outline\n%s\ngot\n%s", want, out.String())
	}
}

func TestDumpJSONAndBadPath(t *testing.T) {
	path := writeSample(t)
	var out bytes.Buffer
	opts := &dumpOptions{depth: -1, json: true, path: "servers"}
	if err := runDump(context.Background(), testConfig(t), path, opts, &out); err != nil {
		t.Fatalf("dump: %v", err)
	}
	if !strings.Contains(out.String(), `"port": 80`) {
		t.Errorf("expected indented JSON subtree, got %s", out.String())
	}

	opts = &dumpOptions{depth: -1, path: "missing"}
	if err := runDump(context.Background(), testConfig(t), path, opts, &out); err == nil {
		t.Error("expected error for a path that does not resolve")
	}
}

func TestSearchOutputFormats(t *testing.T) {
	path := writeSample(t)
	res, err := runSearch(testConfig(t), path, "AL")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if res.Count != 1 || res.Matches[0].Path != "name" {
		t.Fatalf("expected one match on name, got %+v", res.Matches)
	}
	if m := res.Matches[0]; m.Start != 0 || m.End != 2 || m.Kind != "string-match" {
		t.Errorf("expected string-match [0,2), got %+v", m)
	}

	var text bytes.Buffer
	if err := writeSearchOutput(&text, res, "text"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text.String(), "[al]pha") {
		t.Errorf("expected bracketed match in text output, got %s", text.String())
	}

	var raw bytes.Buffer
	if err := writeSearchOutput(&raw, res, "json"); err != nil {
		t.Fatal(err)
	}
	var decoded searchOutput
	if err := json.Unmarshal(raw.Bytes(), &decoded); err != nil {
		t.Fatalf("decode json output: %v", err)
	}
	if decoded.Query != "AL" || decoded.Count != 1 {
		t.Errorf("expected query AL with 1 match, got %+v", decoded)
	}

	var yml bytes.Buffer
	if err := writeSearchOutput(&yml, res, "yaml"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(yml.String(), "path: name") {
		t.Errorf("expected yaml output, got %s", yml.String())
	}

	if err := writeSearchOutput(&raw, res, "xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestSearchCaseSensitive(t *testing.T) {
	path := writeSample(t)
	cfg := testConfig(t)
	cfg.Search.CaseSensitive = true
	res, err := runSearch(cfg, path, "AL")
	if err != nil {
		t.Fatal(err)
	}
	if res.Count != 0 {
		t.Errorf("expected no case-sensitive matches, got %d", res.Count)
	}
}

func TestMarkMatch(t *testing.T) {
	tests := []struct {
		text       string
		start, end int
		want       string
	}{
		{"alpha", 0, 2, "[al]pha"},
		{"héllo", 1, 3, "h[él]lo"},
		{"a\nb", 1, 2, "a[↵]b"},
		{"short", 2, 10, "short"},
	}
	for _, tt := range tests {
		if got := markMatch(tt.text, tt.start, tt.end); got != tt.want {
			t.Errorf("markMatch(%q, %d, %d) = %q, want %q", tt.text, tt.start, tt.end, got, tt.want)
		}
	}
}

func TestTreeOptions(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.UI.DefaultMode = "edit"
	path := writeSample(t)
	doc, err := loadDocument(path)
	if err != nil {
		t.Fatal(err)
	}

	opts, err := treeOptions(cfg, "VIEW", 0)
	if err != nil {
		t.Fatal(err)
	}
	m := tree.New(doc, opts...)
	if m.Mode() != tree.ModeView {
		t.Errorf("expected flag to override mode, got %s", m.Mode())
	}
	if m.Expanded(m.Root()) {
		t.Error("expected depth 0 to collapse the root")
	}

	opts, err = treeOptions(cfg, "", -1)
	if err != nil {
		t.Fatal(err)
	}
	if m := tree.New(doc, opts...); m.Mode() != tree.ModeEdit || !m.Expanded(m.Root()) {
		t.Errorf("expected config mode and depth, got %s", m.Mode())
	}

	if _, err := treeOptions(cfg, "browse", -1); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestStateStoreBackends(t *testing.T) {
	cfg := testConfig(t)
	if store, err := openStateStore(cfg); err != nil || store != nil {
		t.Errorf("expected no store when persistence is off, got %v %v", store, err)
	}

	path := writeSample(t)
	for _, backend := range []string{config.BackendJSON, config.BackendSQLite} {
		cfg := testConfig(t)
		cfg.Tree.PersistState = true
		cfg.Tree.StateBackend = backend

		store, err := openStateStore(cfg)
		if err != nil || store == nil {
			t.Fatalf("%s: open store: %v", backend, err)
		}
		doc, err := loadDocument(path)
		if err != nil {
			t.Fatal(err)
		}
		m := tree.New(doc)
		servers, _ := m.NodeAtPath(modelpath.New("servers"))
		if err := m.SetExpanded(servers, true); err != nil {
			t.Fatal(err)
		}
		key := documentKey(path)
		if err := saveState(store, key, m); err != nil {
			t.Fatalf("%s: save: %v", backend, err)
		}

		fresh := tree.New(doc)
		restoreState(store, key, fresh)
		servers, _ = fresh.NodeAtPath(modelpath.New("servers"))
		if !fresh.Expanded(servers) {
			t.Errorf("%s: expected servers expansion restored", backend)
		}
		store.Close()
	}

	cfg.Tree.PersistState = true
	cfg.Tree.StateBackend = "redis"
	if _, err := openStateStore(cfg); !errors.Is(err, config.ErrInvalid) {
		t.Errorf("expected ErrInvalid for unknown backend, got %v", err)
	}
}

func TestApplyViewFlags(t *testing.T) {
	cfg := applyViewFlags(config.DefaultConfig(), &viewOptions{remoteURL: "ws://hub", noWatch: true, poll: true})
	if cfg.Remote.URL != "ws://hub" || cfg.Watch.Enabled || !cfg.Watch.Poll {
		t.Errorf("expected flags to override config, got %+v", cfg)
	}
}

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := runRoot(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "mt "+version.Version) {
		t.Errorf("expected version output, got %q", out)
	}
}

func TestConfigCommandWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	out, err := runRoot(t, "--config", path, "config", "--write")
	if err != nil {
		t.Fatalf("config --write: %v", err)
	}
	if !strings.Contains(out, path) || !fileExists(path) {
		t.Errorf("expected %s written, got %q", path, out)
	}
	if _, err := runRoot(t, "--config", path, "config", "--write"); err == nil {
		t.Error("expected second write to refuse overwriting")
	}

	out, err = runRoot(t, "--config", path, "config")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "expand_depth: 1") {
		t.Errorf("expected effective config printed, got %q", out)
	}
}

func TestSearchCommandMetrics(t *testing.T) {
	path := writeSample(t)
	logPath := filepath.Join(t.TempDir(), "mt.log")
	out, err := runRoot(t, "--metrics", "--log", logPath, "search", "-o", "json", path, "80")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"path": "servers[0].port"`) {
		t.Errorf("expected number match in output, got %s", out)
	}
	if !strings.Contains(out, `"counters"`) {
		t.Errorf("expected metrics printed after the command, got %s", out)
	}
	if !fileExists(logPath) {
		t.Error("expected debug log file created")
	}
}

func TestServeAcceptsAndStops(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServe(ctx, config.DefaultConfig(), ln) }()

	ws, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/", nil)
	if err != nil {
		cancel()
		t.Fatalf("dial hub: %v", err)
	}
	defer ws.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func TestSnapshotWritesImages(t *testing.T) {
	path := writeSample(t)
	dir := t.TempDir()
	for _, name := range []string{"tree.svg", "tree.png"} {
		out := filepath.Join(dir, name)
		opts := &snapshotOptions{output: out, depth: -1, all: true, path: "servers"}
		if err := runSnapshot(testConfig(t), path, opts); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		info, err := os.Stat(out)
		if err != nil || info.Size() == 0 {
			t.Errorf("expected %s written, got %v", name, err)
		}
	}
}

func TestConfigAnswers(t *testing.T) {
	cfg := config.DefaultConfig()
	a := answersFrom(cfg)
	if a.depth != "1" || a.backend != config.BackendJSON {
		t.Errorf("expected answers seeded from defaults, got %+v", a)
	}

	a.mode = "edit"
	a.depth = " 3 "
	a.backend = config.BackendSQLite
	a.remoteURL = " ws://hub/ "
	next, err := a.apply(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if next.UI.DefaultMode != "edit" || next.Tree.ExpandDepth != 3 || next.Tree.StateBackend != config.BackendSQLite {
		t.Errorf("expected answers applied, got %+v", next)
	}
	if next.Remote.URL != "ws://hub/" {
		t.Errorf("expected trimmed URL, got %q", next.Remote.URL)
	}

	a.depth = "many"
	if _, err := a.apply(cfg); !errors.Is(err, config.ErrInvalid) {
		t.Errorf("expected ErrInvalid for bad depth, got %v", err)
	}
	if validateDepth("-1") == nil || validateDepth("2") != nil {
		t.Error("expected validateDepth to accept only non-negative integers")
	}
}
