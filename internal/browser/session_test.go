package browser

import (
	"testing"

	"pagelens-mcp-server/internal/distill"

	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"
)

func TestStringify(t *testing.T) {
	tests := []struct {
		name string
		res  *proto.RuntimeRemoteObject
		want string
	}{
		{"nil object", nil, resultPlaceholder},
		{"null value", &proto.RuntimeRemoteObject{Value: gson.New(nil)}, "null"},
		{"number", &proto.RuntimeRemoteObject{Value: gson.New(2)}, "2"},
		{"string passes through unquoted", &proto.RuntimeRemoteObject{Value: gson.New("hello")}, "hello"},
		{"boolean", &proto.RuntimeRemoteObject{Value: gson.New(true)}, "true"},
		{"object rendered as JSON", &proto.RuntimeRemoteObject{Value: gson.New(map[string]any{"a": 1})}, `{"a":1}`},
		{"array rendered as JSON", &proto.RuntimeRemoteObject{Value: gson.New([]any{1, "x"})}, `[1,"x"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stringify(tt.res); got != tt.want {
				t.Errorf("stringify() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestQuadToBox(t *testing.T) {
	t.Run("axis-aligned quad", func(t *testing.T) {
		// Corner order: TL, TR, BR, BL.
		quad := proto.DOMQuad{10, 20, 110, 20, 110, 70, 10, 70}
		box, ok := quadToBox(quad)
		if !ok {
			t.Fatal("quadToBox returned false")
		}
		if box.X != 10 || box.Y != 20 || box.Width != 100 || box.Height != 50 {
			t.Errorf("box = %+v", box)
		}
	})

	t.Run("rotated quad yields its bounding box", func(t *testing.T) {
		quad := proto.DOMQuad{50, 0, 100, 50, 50, 100, 0, 50}
		box, ok := quadToBox(quad)
		if !ok {
			t.Fatal("quadToBox returned false")
		}
		if box.X != 0 || box.Y != 0 || box.Width != 100 || box.Height != 100 {
			t.Errorf("box = %+v", box)
		}
	})

	t.Run("short quad is rejected", func(t *testing.T) {
		if _, ok := quadToBox(proto.DOMQuad{1, 2, 3}); ok {
			t.Error("expected false for a malformed quad")
		}
	})
}

func TestCompactHrefs(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"empty targets dropped", []string{"/a", "", "/b"}, []string{"/a", "/b"}},
		{"duplicates preserved", []string{"/a", "/a", ""}, []string{"/a", "/a"}},
		{"order preserved", []string{"/c", "/a", "/b"}, []string{"/c", "/a", "/b"}},
		{"all empty", []string{"", ""}, []string{}},
		{"no anchors", nil, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := compactHrefs(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("compactHrefs(%q) = %q, want %q", tt.in, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("compactHrefs(%q) = %q, want %q", tt.in, got, tt.want)
				}
			}
		})
	}
}

func TestFindBody(t *testing.T) {
	body := &proto.DOMNode{NodeType: nodeTypeElement, NodeName: "BODY"}
	doc := &proto.DOMNode{
		NodeType: 9,
		NodeName: "#document",
		Children: []*proto.DOMNode{
			{
				NodeType: nodeTypeElement,
				NodeName: "HTML",
				Children: []*proto.DOMNode{
					{NodeType: nodeTypeElement, NodeName: "HEAD"},
					body,
				},
			},
		},
	}

	if got := findBody(doc); got != body {
		t.Errorf("findBody = %v, want the body node", got)
	}
	if got := findBody(&proto.DOMNode{NodeType: 9, NodeName: "#document"}); got != nil {
		t.Errorf("findBody on empty document = %v, want nil", got)
	}
}

func TestDOMNodeAdapter(t *testing.T) {
	n := &domNode{node: &proto.DOMNode{
		NodeType: nodeTypeElement,
		NodeName: "DIV",
		Children: []*proto.DOMNode{
			{NodeType: nodeTypeText, NodeValue: " hi "},
			{NodeType: 8, NodeName: "#comment", NodeValue: "skip me"},
			{NodeType: nodeTypeElement, NodeName: "SPAN"},
		},
	}}

	if n.Kind() != distill.KindElement {
		t.Errorf("Kind = %v", n.Kind())
	}
	if n.Tag() != "div" {
		t.Errorf("Tag = %q, want lowercase tag name", n.Tag())
	}

	children := n.Children()
	if len(children) != 2 {
		t.Fatalf("Children dropped wrong nodes: got %d, want 2", len(children))
	}
	if children[0].Text() != " hi " {
		t.Errorf("text child = %q, trimming belongs to the distiller", children[0].Text())
	}
	if children[1].Tag() != "span" {
		t.Errorf("element child = %q", children[1].Tag())
	}
}
