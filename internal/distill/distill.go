// Package distill compacts a document tree into an indented text outline.
// Every retained element is assigned an ordinal id and annotated with its
// viewport box; non-semantic subtrees are dropped wholesale. The tree is
// consumed through the Node interface so the algorithm runs against a live
// CDP snapshot or a test fixture alike.
package distill

import (
	"fmt"
	"io"
	"math"
	"strings"
)

// NodeKind discriminates the node variants the distiller understands.
type NodeKind int

const (
	KindElement NodeKind = iota
	KindText
)

// Box is a viewport-relative bounding box.
type Box struct {
	X, Y, Width, Height float64
}

// Node is one node of the document tree.
type Node interface {
	Kind() NodeKind
	// Tag returns the lowercase tag name for element nodes.
	Tag() string
	// Text returns the raw character data for text nodes.
	Text() string
	Children() []Node
	// Geometry returns the rendered box for element nodes; ok is false for
	// nodes the renderer gives no box (detached, display:none).
	Geometry() (Box, bool)
}

// filteredTags are dropped together with their entire subtree; nothing
// inside them receives an id.
var filteredTags = map[string]bool{
	"script": true,
	"style":  true,
	"head":   true,
	"meta":   true,
	"link":   true,
}

// interactiveTags receive a clickable marker.
var interactiveTags = map[string]bool{
	"button": true,
	"a":      true,
	"input":  true,
}

// Distill walks root's children pre-order and writes the outline to w. The
// root is the containing node (document or body) and is neither emitted nor
// counted. Ordinal ids start at 0 on every call; they are not stable across
// calls.
func Distill(root Node, w io.Writer) error {
	d := &distiller{w: w}
	for _, child := range root.Children() {
		if err := d.walk(child, 0); err != nil {
			return err
		}
	}
	return nil
}

type distiller struct {
	w      io.Writer
	nextID int
}

func (d *distiller) walk(n Node, depth int) error {
	switch n.Kind() {
	case KindText:
		text := strings.TrimSpace(n.Text())
		if text == "" {
			return nil
		}
		return d.line(depth, text)

	case KindElement:
		tag := n.Tag()
		if filteredTags[tag] {
			return nil
		}

		id := d.nextID
		d.nextID++

		if err := d.line(depth, elementLabel(id, tag, n)); err != nil {
			return err
		}
		for _, child := range n.Children() {
			if err := d.walk(child, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *distiller) line(depth int, text string) error {
	_, err := fmt.Fprintf(d.w, "%s%s\n", strings.Repeat("  ", depth), text)
	return err
}

func elementLabel(id int, tag string, n Node) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%d] %s", id, tag)
	if box, ok := n.Geometry(); ok {
		fmt.Fprintf(&b, " (%d,%d %dx%d)",
			roundInt(box.X), roundInt(box.Y), roundInt(box.Width), roundInt(box.Height))
	}
	if interactiveTags[tag] {
		b.WriteString(" clickable")
	}
	return b.String()
}

func roundInt(f float64) int {
	return int(math.Round(f))
}
