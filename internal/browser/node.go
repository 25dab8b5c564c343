package browser

import (
	"context"
	"fmt"
	"io"
	"strings"

	"pagelens-mcp-server/internal/distill"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"
)

// CDP node types we care about; everything else (comments, doctype) is
// dropped by the adapter.
const (
	nodeTypeElement = 1
	nodeTypeText    = 3
)

// Outline streams a distilled outline of the current document body to w.
func (s *Session) Outline(ctx context.Context, w io.Writer) error {
	page := s.page.Context(ctx)
	doc, err := proto.DOMGetDocument{Depth: gson.Int(-1)}.Call(page)
	if err != nil {
		return fmt.Errorf("snapshot document: %w", err)
	}

	root := findBody(doc.Root)
	if root == nil {
		root = doc.Root
	}
	return distill.Distill(&domNode{page: page, node: root}, w)
}

func findBody(n *proto.DOMNode) *proto.DOMNode {
	if n == nil {
		return nil
	}
	if n.NodeType == nodeTypeElement && strings.EqualFold(n.NodeName, "body") {
		return n
	}
	for _, child := range n.Children {
		if found := findBody(child); found != nil {
			return found
		}
	}
	return nil
}

// domNode adapts a CDP DOM snapshot node to the distiller's Node interface.
// Geometry is looked up lazily per retained element.
type domNode struct {
	page *rod.Page
	node *proto.DOMNode
}

func (n *domNode) Kind() distill.NodeKind {
	if n.node.NodeType == nodeTypeText {
		return distill.KindText
	}
	return distill.KindElement
}

func (n *domNode) Tag() string {
	return strings.ToLower(n.node.NodeName)
}

func (n *domNode) Text() string {
	return n.node.NodeValue
}

func (n *domNode) Children() []distill.Node {
	out := make([]distill.Node, 0, len(n.node.Children))
	for _, child := range n.node.Children {
		if child.NodeType != nodeTypeElement && child.NodeType != nodeTypeText {
			continue
		}
		out = append(out, &domNode{page: n.page, node: child})
	}
	return out
}

func (n *domNode) Geometry() (distill.Box, bool) {
	res, err := proto.DOMGetBoxModel{NodeID: n.node.NodeID}.Call(n.page)
	if err != nil || res == nil || res.Model == nil {
		// Elements without layout (display:none, detached) have no box.
		return distill.Box{}, false
	}
	return quadToBox(res.Model.Border)
}

// quadToBox converts a CDP border quad (4 corner points, 8 floats) to an
// axis-aligned bounding box.
func quadToBox(quad proto.DOMQuad) (distill.Box, bool) {
	if len(quad) < 8 {
		return distill.Box{}, false
	}
	minX, minY := quad[0], quad[1]
	maxX, maxY := quad[0], quad[1]
	for i := 2; i+1 < len(quad); i += 2 {
		x, y := quad[i], quad[i+1]
		if x < minX {
			minX = x
		}
		if x > maxX {
			maxX = x
		}
		if y < minY {
			minY = y
		}
		if y > maxY {
			maxY = y
		}
	}
	return distill.Box{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}, true
}
