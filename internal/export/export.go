// internal/export/export.go
package export

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/beevik/etree"
	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/filament-cli/api/schemas"
)

// Format selects the graph-exchange encoding of an exported snapshot.
type Format string

const (
	// FormatDOT is Graphviz DOT with pinned node positions, matching what
	// renderers like fdp/neato consume. The default.
	FormatDOT Format = "dot"
	// FormatJSON is the native snapshot encoding; also the resume format.
	FormatJSON Format = "json"
	// FormatGraphML is GraphML with temperature and position attributes.
	FormatGraphML Format = "graphml"
)

// ParseFormat normalizes a user-supplied format string.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatDOT:
		return FormatDOT, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatGraphML:
		return FormatGraphML, nil
	default:
		return "", fmt.Errorf("unknown export format %q (want dot, json, or graphml)", s)
	}
}

// Write encodes the snapshot to w in the given format.
func Write(w io.Writer, snap *schemas.TreeSnapshot, format Format) error {
	switch format {
	case FormatDOT:
		return writeDOT(w, snap)
	case FormatJSON:
		return writeJSON(w, snap)
	case FormatGraphML:
		return writeGraphML(w, snap)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

// WriteFile writes the snapshot to path, optionally wrapping the output in a
// brotli stream (conventionally suffixed ".br").
func WriteFile(path string, snap *schemas.TreeSnapshot, format Format, compress bool) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close export file: %w", closeErr)
		}
	}()

	var w io.Writer = f
	if compress {
		bw := brotli.NewWriter(f)
		defer func() {
			if closeErr := bw.Close(); closeErr != nil && err == nil {
				err = fmt.Errorf("failed to flush compressed stream: %w", closeErr)
			}
		}()
		w = bw
	}
	return Write(w, snap, format)
}

// writeJSON emits the canonical snapshot document.
func writeJSON(w io.Writer, snap *schemas.TreeSnapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot decodes a JSON snapshot, transparently unwrapping brotli if the
// stream starts with something other than JSON whitespace or '{'.
func ReadSnapshot(r io.Reader) (*schemas.TreeSnapshot, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	trimmed := strings.TrimLeft(string(data), " \t\r\n")
	if len(trimmed) == 0 || trimmed[0] != '{' {
		decompressed, derr := io.ReadAll(brotli.NewReader(strings.NewReader(string(data))))
		if derr != nil {
			return nil, fmt.Errorf("snapshot is neither JSON nor brotli-compressed JSON: %w", derr)
		}
		data = decompressed
	}

	snap := &schemas.TreeSnapshot{}
	if err := json.Unmarshal(data, snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if len(snap.Vertices) == 0 {
		return nil, fmt.Errorf("snapshot contains no vertices")
	}
	return snap, nil
}

// ReadSnapshotFile loads a snapshot from disk.
func ReadSnapshotFile(path string) (*schemas.TreeSnapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot file: %w", err)
	}
	defer f.Close()
	return ReadSnapshot(f)
}

// writeDOT emits an undirected Graphviz graph with pinned positions ("pos"
// with the '!' suffix understood by fdp/neato) and edge pen widths scaled by
// temperature, so active paths render hot and thick.
func writeDOT(w io.Writer, snap *schemas.TreeSnapshot) error {
	var b strings.Builder
	b.WriteString("graph filament {\n")
	b.WriteString("\tnode [shape=point];\n")
	for _, v := range snap.Vertices {
		fmt.Fprintf(&b, "\t%d [pos=\"%g,%g!\", temp=\"%g\"];\n", v.ID, v.X, v.Y, v.Temperature)
	}
	for _, e := range snap.Edges {
		// A floor keeps fully cooled paths visible in renders.
		pen := 0.2 + 2.0*e.Temperature
		fmt.Fprintf(&b, "\t%d -- %d [penwidth=\"%.3f\"];\n", e.From, e.To, pen)
	}
	b.WriteString("}\n")

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("failed to write dot output: %w", err)
	}
	return nil
}

// writeGraphML emits a GraphML document with declared keys for position,
// temperature, creation step, and edge length.
func writeGraphML(w io.Writer, snap *schemas.TreeSnapshot) error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("graphml")
	root.CreateAttr("xmlns", "http://graphml.graphdrawing.org/xmlns")

	keys := []struct{ id, target, name, kind string }{
		{"x", "node", "x", "double"},
		{"y", "node", "y", "double"},
		{"temp", "node", "temperature", "double"},
		{"step", "node", "created_step", "long"},
		{"etemp", "edge", "temperature", "double"},
		{"len", "edge", "length", "double"},
	}
	for _, k := range keys {
		key := root.CreateElement("key")
		key.CreateAttr("id", k.id)
		key.CreateAttr("for", k.target)
		key.CreateAttr("attr.name", k.name)
		key.CreateAttr("attr.type", k.kind)
	}

	graph := root.CreateElement("graph")
	graph.CreateAttr("id", "filament")
	graph.CreateAttr("edgedefault", "undirected")

	for _, v := range snap.Vertices {
		node := graph.CreateElement("node")
		node.CreateAttr("id", fmt.Sprintf("n%d", v.ID))
		addData(node, "x", fmt.Sprintf("%g", v.X))
		addData(node, "y", fmt.Sprintf("%g", v.Y))
		addData(node, "temp", fmt.Sprintf("%g", v.Temperature))
		addData(node, "step", fmt.Sprintf("%d", v.CreatedStep))
	}
	for _, e := range snap.Edges {
		edge := graph.CreateElement("edge")
		edge.CreateAttr("id", fmt.Sprintf("e%d", e.ID))
		edge.CreateAttr("source", fmt.Sprintf("n%d", e.From))
		edge.CreateAttr("target", fmt.Sprintf("n%d", e.To))
		addData(edge, "etemp", fmt.Sprintf("%g", e.Temperature))
		addData(edge, "len", fmt.Sprintf("%g", e.Length))
	}

	doc.Indent(2)
	if _, err := doc.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write graphml output: %w", err)
	}
	return nil
}

// addData appends a GraphML <data key=...> child.
func addData(parent *etree.Element, key, value string) {
	d := parent.CreateElement("data")
	d.CreateAttr("key", key)
	d.SetText(value)
}
