package watcher

import (
	"fmt"

	"github.com/vanderheijden86/modeltree/pkg/debug"
	"github.com/vanderheijden86/modeltree/pkg/document"
	"github.com/vanderheijden86/modeltree/pkg/metrics"
)

// Reload is a freshly decoded copy of the watched file. Err is set when the
// file could not be read or parsed; the previous content stays in effect.
type Reload struct {
	Path  string
	Value any
	Err   error
}

// Read decodes path into a Reload.
func Read(path string) Reload {
	defer metrics.Timer(metrics.DocumentLoad)()
	v, err := document.ReadFile(path)
	return Reload{Path: path, Value: v, Err: err}
}

// Apply diffs r against the document and applies the difference as one
// batch, so observers see incremental structural events rather than a
// wholesale replace. It returns the number of ops applied.
//
// Apply must run on the goroutine that owns doc.
func Apply(doc *document.Document, r Reload) (int, error) {
	if r.Err != nil {
		return 0, r.Err
	}
	ops, err := document.Diff(doc.Root(), r.Value)
	if err != nil {
		return 0, fmt.Errorf("diffing %s: %w", r.Path, err)
	}
	if len(ops) == 0 {
		return 0, nil
	}
	if err := doc.ApplyAll(ops); err != nil {
		return 0, fmt.Errorf("applying reload of %s: %w", r.Path, err)
	}
	metrics.Reloads.Inc()
	debug.Log("watcher: applied %d ops from %s", len(ops), r.Path)
	return len(ops), nil
}
