// Package export turns a resolved bundle into shareable artifacts: a
// Graphviz DOT dependency graph, rendered SVG or PNG, and a JSON document
// describing the closure.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"

	"github.com/goccy/go-graphviz"

	"github.com/madmax88/quicklisp-client/pkg/bundle"
	"github.com/madmax88/quicklisp-client/pkg/errors"
)

// Options configures dependency-graph exports.
type Options struct {
	// Detailed includes the owning release and system file in node labels.
	// When false, only the system name is shown.
	Detailed bool
}

// ToDOT converts a bundle's system dependency graph to Graphviz DOT
// format. Systems are nodes; a directed edge points from a system to each
// system it requires. Systems from the same release share a fill color via
// release-keyed clustering of the label only, keeping the output stable
// and diffable: nodes and edges are emitted in sorted order.
func ToDOT(b *bundle.Bundle, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph systems {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("\n")

	for _, s := range b.Systems() {
		fmt.Fprintf(&buf, "  %q [label=%q];\n", s.Name, fmtLabel(s, opts.Detailed))
	}

	buf.WriteString("\n")
	for _, s := range b.Systems() {
		for _, dep := range s.Requires {
			// The resolver guarantees every dependency is in the bundle;
			// skip dangling edges when exporting partially built bundles.
			target, ok := b.FindSystem(dep)
			if !ok {
				continue
			}
			fmt.Fprintf(&buf, "  %q -> %q;\n", s.Name, target.Name)
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

func fmtLabel(s *bundle.System, detailed bool) string {
	if !detailed {
		return s.Name
	}
	return s.Name + "\n" + s.ReleaseName + "\n" + s.SystemFile
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	return render(ctx, dot, graphviz.SVG, normalizeViewBox)
}

// RenderPNG renders a DOT graph to PNG using Graphviz.
func RenderPNG(ctx context.Context, dot string) ([]byte, error) {
	return render(ctx, dot, graphviz.PNG, nil)
}

func render(ctx context.Context, dot string, format graphviz.Format, post func([]byte) []byte) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "init graphviz")
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "parse DOT")
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, format, &buf); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "render graph")
	}
	out := buf.Bytes()
	if post != nil {
		out = post(out)
	}
	return out, nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox rewrites the svg element so the viewBox originates at
// (0,0) with explicit pixel dimensions, which embeds cleanly in HTML.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	newSvg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(newSvg))
}

type document struct {
	Systems  []systemDoc  `json:"systems"`
	Releases []releaseDoc `json:"releases"`
	Edges    []edge       `json:"edges"`
}

type systemDoc struct {
	Name       string `json:"name"`
	SystemFile string `json:"system_file"`
	Release    string `json:"release"`
}

type releaseDoc struct {
	Name       string `json:"name"`
	Prefix     string `json:"prefix"`
	ArchiveURL string `json:"archive_url"`
	Size       int64  `json:"size,omitempty"`
}

type edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// WriteJSON encodes the bundle's closure as JSON and writes it to w. The
// output lists every system, every release, and the dependency edges
// between bundled systems, all in sorted order.
func WriteJSON(b *bundle.Bundle, w io.Writer) error {
	out := document{
		Systems:  make([]systemDoc, 0, b.SystemCount()),
		Releases: make([]releaseDoc, 0, b.ReleaseCount()),
		Edges:    []edge{},
	}

	for _, s := range b.Systems() {
		out.Systems = append(out.Systems, systemDoc{
			Name:       s.Name,
			SystemFile: s.SystemFile,
			Release:    s.ReleaseName,
		})
		for _, dep := range s.Requires {
			if target, ok := b.FindSystem(dep); ok {
				out.Edges = append(out.Edges, edge{From: s.Name, To: target.Name})
			}
		}
	}
	for _, r := range b.Releases() {
		out.Releases = append(out.Releases, releaseDoc{
			Name:       r.Name,
			Prefix:     r.Prefix,
			ArchiveURL: r.ArchiveURL,
			Size:       r.Size,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode graph")
	}
	return nil
}

// ExportJSON writes the bundle graph to a JSON file at path.
func ExportJSON(b *bundle.Bundle, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "create %s", path)
	}
	defer f.Close()
	return WriteJSON(b, f)
}
