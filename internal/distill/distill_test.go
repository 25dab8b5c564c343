package distill

import (
	"strings"
	"testing"
)

type fakeNode struct {
	kind     NodeKind
	tag      string
	text     string
	children []Node
	box      *Box
}

func (n *fakeNode) Kind() NodeKind   { return n.kind }
func (n *fakeNode) Tag() string      { return n.tag }
func (n *fakeNode) Text() string     { return n.text }
func (n *fakeNode) Children() []Node { return n.children }
func (n *fakeNode) Geometry() (Box, bool) {
	if n.box == nil {
		return Box{}, false
	}
	return *n.box, true
}

func elem(tag string, box *Box, children ...Node) *fakeNode {
	return &fakeNode{kind: KindElement, tag: tag, box: box, children: children}
}

func text(s string) *fakeNode {
	return &fakeNode{kind: KindText, text: s}
}

func container(children ...Node) *fakeNode {
	return &fakeNode{kind: KindElement, tag: "body", children: children}
}

func render(t *testing.T, root Node) string {
	t.Helper()
	var b strings.Builder
	if err := Distill(root, &b); err != nil {
		t.Fatalf("Distill failed: %v", err)
	}
	return b.String()
}

func TestDistillFiltersScriptAndAssignsIDs(t *testing.T) {
	// Body holding <script>…</script><div>Hi</div>: the script subtree gets
	// no ids and no output, the div is the first retained element.
	root := container(
		elem("script", nil, text("var x = 1;")),
		elem("div", nil, text("Hi")),
	)

	out := render(t, root)
	if strings.Contains(out, "script") || strings.Contains(out, "var x") {
		t.Errorf("filtered subtree leaked into output:\n%s", out)
	}
	if !strings.Contains(out, "[0] div") {
		t.Errorf("first retained element must receive id 0:\n%s", out)
	}
	if !strings.Contains(out, "Hi") {
		t.Errorf("text content missing:\n%s", out)
	}
}

func TestDistillNeverDescendsIntoFilteredSubtrees(t *testing.T) {
	// A div inside head would be retained on its own, but head is filtered
	// with its whole subtree.
	root := container(
		elem("head", nil, elem("div", nil, text("hidden"))),
		elem("p", nil, text("visible")),
	)

	out := render(t, root)
	if strings.Contains(out, "hidden") || strings.Contains(out, "div") {
		t.Errorf("descended into filtered subtree:\n%s", out)
	}
	if !strings.Contains(out, "[0] p") {
		t.Errorf("p should be the first retained element:\n%s", out)
	}
}

func TestDistillOrdinalIDsArePreOrder(t *testing.T) {
	root := container(
		elem("div", nil,
			elem("span", nil, text("a")),
		),
		elem("p", nil, text("b")),
	)

	out := render(t, root)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	want := []string{"[0] div", "  [1] span", "    a", "[2] p", "  b"}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d:\n%s", len(lines), len(want), out)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestDistillGeometryRounding(t *testing.T) {
	root := container(
		elem("div", &Box{X: 10.4, Y: 20.5, Width: 99.5, Height: 49.4}),
	)

	out := render(t, root)
	if !strings.Contains(out, "[0] div (10,21 100x49)") {
		t.Errorf("geometry not rounded to nearest integer:\n%s", out)
	}
}

func TestDistillClickableMarker(t *testing.T) {
	cases := []struct {
		tag       string
		clickable bool
	}{
		{"button", true},
		{"a", true},
		{"input", true},
		{"div", false},
		{"span", false},
	}

	for _, tc := range cases {
		t.Run(tc.tag, func(t *testing.T) {
			out := render(t, container(elem(tc.tag, nil)))
			got := strings.Contains(out, "clickable")
			if got != tc.clickable {
				t.Errorf("tag %s clickable marker = %v, want %v:\n%s", tc.tag, got, tc.clickable, out)
			}
		})
	}
}

func TestDistillTrimsWhitespaceOnlyText(t *testing.T) {
	root := container(
		elem("div", nil,
			text("   \n\t  "),
			text("  kept  "),
		),
	)

	out := render(t, root)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("whitespace-only text must contribute nothing:\n%s", out)
	}
	if lines[1] != "  kept" {
		t.Errorf("text not trimmed, got %q", lines[1])
	}
}

func TestDistillIDsResetPerCall(t *testing.T) {
	root := container(elem("div", nil))

	first := render(t, root)
	second := render(t, root)
	if first != second || !strings.Contains(second, "[0] div") {
		t.Errorf("ordinal ids must restart at 0 on every call:\nfirst: %ssecond: %s", first, second)
	}
}
