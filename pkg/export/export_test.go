package export

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/madmax88/quicklisp-client/pkg/bundle"
)

func testBundle() *bundle.Bundle {
	beta := &bundle.System{Name: "beta", SystemFile: "beta.asd", ReleaseName: "beta-2.0"}
	alpha := &bundle.System{Name: "alpha", SystemFile: "alpha.asd", ReleaseName: "alpha-1.0", Requires: []string{"beta"}}
	return bundle.Restore([]*bundle.Release{
		{Name: "alpha-1.0", Prefix: "alpha-1.0", ArchiveURL: "http://example.com/alpha.tgz", Size: 100, SystemFiles: []string{"alpha.asd"}, Systems: []*bundle.System{alpha}},
		{Name: "beta-2.0", Prefix: "beta-2.0", ArchiveURL: "http://example.com/beta.tgz", Size: 200, SystemFiles: []string{"beta.asd"}, Systems: []*bundle.System{beta}},
	}, nil)
}

func TestToDOT(t *testing.T) {
	dot := ToDOT(testBundle(), Options{})

	for _, want := range []string{
		`"alpha" [label="alpha"];`,
		`"beta" [label="beta"];`,
		`"alpha" -> "beta";`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT output missing %q:\n%s", want, dot)
		}
	}
	if !strings.HasPrefix(dot, "digraph systems {") {
		t.Errorf("unexpected DOT prologue:\n%s", dot)
	}
}

func TestToDOTDetailed(t *testing.T) {
	dot := ToDOT(testBundle(), Options{Detailed: true})
	if !strings.Contains(dot, "alpha\\nalpha-1.0\\nalpha.asd") {
		t.Errorf("detailed label missing release and system file:\n%s", dot)
	}
}

func TestToDOTDeterministic(t *testing.T) {
	a := ToDOT(testBundle(), Options{})
	b := ToDOT(testBundle(), Options{})
	if a != b {
		t.Error("DOT output differs between identical bundles")
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(testBundle(), &buf); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	var doc struct {
		Systems []struct {
			Name    string `json:"name"`
			Release string `json:"release"`
		} `json:"systems"`
		Releases []struct {
			Name string `json:"name"`
		} `json:"releases"`
		Edges []struct {
			From string `json:"from"`
			To   string `json:"to"`
		} `json:"edges"`
	}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}

	if len(doc.Systems) != 2 || len(doc.Releases) != 2 {
		t.Errorf("got %d systems and %d releases, want 2 and 2", len(doc.Systems), len(doc.Releases))
	}
	if len(doc.Edges) != 1 || doc.Edges[0].From != "alpha" || doc.Edges[0].To != "beta" {
		t.Errorf("edges = %+v, want alpha -> beta", doc.Edges)
	}
	// Sorted order keeps the document diffable.
	if doc.Systems[0].Name != "alpha" || doc.Releases[0].Name != "alpha-1.0" {
		t.Errorf("entries not sorted: %+v", doc)
	}
}

func TestRenderSVG(t *testing.T) {
	svg, err := RenderSVG(context.Background(), ToDOT(testBundle(), Options{}))
	if err != nil {
		t.Fatalf("RenderSVG() error = %v", err)
	}
	if !bytes.Contains(svg, []byte("<svg")) {
		t.Error("output does not look like SVG")
	}
}

func TestNormalizeViewBox(t *testing.T) {
	in := []byte(`<svg width="8pt" height="6pt" viewBox="0.00 0.00 100.50 200.00" xmlns="http://www.w3.org/2000/svg">rest</svg>`)
	out := normalizeViewBox(in)
	if !bytes.Contains(out, []byte(`viewBox="0 0 100.50 200.00"`)) {
		t.Errorf("viewBox not normalized: %s", out)
	}
	if !bytes.Contains(out, []byte(`width="100" height="200"`)) {
		t.Errorf("dimensions not rewritten: %s", out)
	}

	// SVG without a viewBox passes through untouched.
	plain := []byte("<svg>no box</svg>")
	if got := normalizeViewBox(plain); !bytes.Equal(got, plain) {
		t.Errorf("plain SVG modified: %s", got)
	}
}
