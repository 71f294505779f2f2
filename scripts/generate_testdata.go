//go:build ignore

// generate_testdata.go creates sample documents for benchmarking mt.
// Usage: go run scripts/generate_testdata.go
//
// Creates:
//
//	testdata/bench/small.json   (~100 elements)
//	testdata/bench/medium.json  (~1000 elements)
//	testdata/bench/large.json   (~10000 elements)
//	testdata/bench/huge.json    (~100000 elements)
package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/modeltree/pkg/document"
	"github.com/vanderheijden86/modeltree/pkg/testutil"
)

type datasetSpec struct {
	name  string
	size  int
	depth int
}

var datasets = []datasetSpec{
	{"small", 100, 3},
	{"medium", 1000, 4},
	{"large", 10000, 6},
	{"huge", 100000, 8},
}

func main() {
	outputDir := filepath.Join("testdata", "bench")
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create output directory: %v\n", err)
		os.Exit(1)
	}

	for _, ds := range datasets {
		fmt.Printf("Generating %s document (%d elements)...\n", ds.name, ds.size)

		cfg := testutil.DefaultConfig()
		cfg.Seed = int64(ds.size)
		cfg.MaxDepth = ds.depth
		doc := testutil.New(cfg).Document(ds.size)

		raw, err := document.EncodeValue(doc)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode %s: %v\n", ds.name, err)
			os.Exit(1)
		}
		var out bytes.Buffer
		if err := json.Indent(&out, raw, "", "  "); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to indent %s: %v\n", ds.name, err)
			os.Exit(1)
		}

		outputPath := filepath.Join(outputDir, ds.name+".json")
		if err := os.WriteFile(outputPath, out.Bytes(), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", outputPath, err)
			os.Exit(1)
		}
		fmt.Printf("  Written %s (%d bytes, %d elements)\n", outputPath, out.Len(), testutil.Count(doc))
	}

	fmt.Println("\nDone! Documents created in", outputDir)
}
