package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"pagelens-mcp-server/internal/config"
	"pagelens-mcp-server/internal/jsonrpc"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/charmbracelet/log"
	readability "github.com/go-shiori/go-readability"
)

// Fixed response texts. Navigation success and evaluation failure are
// deliberately constant; callers read the isError flag, not the prose.
const (
	navigationConfirmation = "Navigation complete."
	evaluateFailureText    = "Script execution failed."
)

// newToolset builds the fixed catalog: goto/navigate (aliases), search,
// markdown, links, evaluate, over. Names are case-sensitive and immutable
// for the process lifetime.
func newToolset(cfg config.BrowserConfig, session Session, logger *log.Logger) []Tool {
	gate := &navigationGate{session: session, settle: cfg.SettleWait(), logger: logger}
	return []Tool{
		&NavigateTool{name: "goto", gate: gate},
		&NavigateTool{name: "navigate", gate: gate},
		&SearchTool{gate: gate, searchURL: cfg.SearchURL},
		&MarkdownTool{
			session: session,
			gate:    gate,
			mode:    cfg.MarkdownMode,
			logger:  logger,
			convert: func(html string) (string, error) {
				return htmltomarkdown.ConvertString(html)
			},
		},
		&LinksTool{session: session, gate: gate},
		&EvaluateTool{session: session, gate: gate},
		&OverTool{},
	}
}

// navigationGate initiates a navigation and waits, best-effort, for the
// session to settle. The wait is advisory: a settle timeout is never
// upgraded to an error, the calling tool reads whatever state exists.
type navigationGate struct {
	session Session
	settle  time.Duration
	logger  *log.Logger
}

func (g *navigationGate) open(ctx context.Context, rawURL string) error {
	if err := g.session.Navigate(ctx, rawURL); err != nil {
		return &CallError{Code: jsonrpc.CodeInternalError, Message: err.Error()}
	}
	g.session.WaitSettled(ctx, g.settle)
	return nil
}

// decodeArgs parses a tool's arguments, mapping absence and malformed JSON
// to the tool's fixed invalid-params error.
func decodeArgs(tool string, raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return invalidParams(tool)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return invalidParams(tool)
	}
	return nil
}

// NavigateTool drives the page to a URL. Registered twice, as "goto" and
// "navigate"; both share one gate.
type NavigateTool struct {
	name string
	gate *navigationGate
}

func (t *NavigateTool) Name() string { return t.name }
func (t *NavigateTool) Description() string {
	return "Navigate the browsing session to a URL and wait for the page to settle."
}
func (t *NavigateTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "Absolute URL to navigate to",
			},
		},
		"required": []string{"url"},
	}
}

func (t *NavigateTool) Call(ctx context.Context, args json.RawMessage) (*Result, error) {
	var in struct {
		URL string `json:"url"`
	}
	if err := decodeArgs(t.name, args, &in); err != nil {
		return nil, err
	}
	if in.URL == "" {
		return nil, invalidParams(t.name)
	}
	if err := t.gate.open(ctx, in.URL); err != nil {
		return nil, err
	}
	return &Result{Text: navigationConfirmation}, nil
}

// SearchTool percent-encodes the query text into the configured search URL
// and then behaves like goto.
type SearchTool struct {
	gate      *navigationGate
	searchURL string
}

func (t *SearchTool) Name() string { return "search" }
func (t *SearchTool) Description() string {
	return "Search the web: navigates the session to the search engine results for the given text."
}
func (t *SearchTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"text": map[string]any{
				"type":        "string",
				"description": "Search query text",
			},
		},
		"required": []string{"text"},
	}
}

func (t *SearchTool) Call(ctx context.Context, args json.RawMessage) (*Result, error) {
	var in struct {
		Text string `json:"text"`
	}
	if err := decodeArgs(t.Name(), args, &in); err != nil {
		return nil, err
	}
	if in.Text == "" {
		return nil, invalidParams(t.Name())
	}
	if err := t.gate.open(ctx, t.searchURL+queryEscape(in.Text)); err != nil {
		return nil, err
	}
	return &Result{Text: navigationConfirmation}, nil
}

// queryEscape percent-encodes text as a single query-string component.
// url.QueryEscape emits '+' for spaces, which not every engine decodes in
// path-style query strings, so spaces become %20.
func queryEscape(text string) string {
	return strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
}

// MarkdownTool renders the current document as text, lazily streamed into
// the response. Mode "outline" distills the DOM with element ids and
// geometry; mode "article" converts the page HTML to Markdown.
type MarkdownTool struct {
	session Session
	gate    *navigationGate
	mode    string
	logger  *log.Logger
	// convert turns page HTML into Markdown.
	convert func(html string) (string, error)
}

func (t *MarkdownTool) Name() string { return "markdown" }
func (t *MarkdownTool) Description() string {
	return "Render the current page as structured text. Optionally navigates to a URL first."
}
func (t *MarkdownTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "Optional URL to navigate to before rendering",
			},
		},
	}
}

func (t *MarkdownTool) Call(ctx context.Context, args json.RawMessage) (*Result, error) {
	var in struct {
		URL string `json:"url"`
	}
	// url is optional; absent arguments are fine here.
	if len(args) > 0 && string(args) != "null" {
		if err := json.Unmarshal(args, &in); err != nil {
			return nil, invalidParams(t.Name())
		}
	}
	if in.URL != "" {
		if err := t.gate.open(ctx, in.URL); err != nil {
			return nil, err
		}
	}

	if t.mode == config.MarkdownArticle {
		return &Result{Stream: t.streamArticle(ctx)}, nil
	}
	return &Result{Stream: func(w io.Writer) error {
		return t.session.Outline(ctx, w)
	}}, nil
}

// streamArticle converts the serialized page to Markdown, falling back to
// readability extraction when conversion fails.
func (t *MarkdownTool) streamArticle(ctx context.Context) jsonrpc.TextStream {
	return func(w io.Writer) error {
		html, err := t.session.HTML(ctx)
		if err != nil {
			return err
		}

		md, err := t.convert(html)
		if err == nil {
			_, werr := io.WriteString(w, md)
			return werr
		}
		t.logger.Warn("markdown conversion failed, falling back to readability", "err", err)

		pageURL, _ := t.session.URL(ctx)
		parsed, _ := url.Parse(pageURL)
		article, rerr := readability.FromReader(strings.NewReader(html), parsed)
		if rerr != nil {
			return fmt.Errorf("readability fallback: %w", rerr)
		}
		_, werr := io.WriteString(w, article.TextContent)
		return werr
	}
}

// LinksTool streams every resolved anchor target on the page, one per line,
// in document order, duplicates preserved.
type LinksTool struct {
	session Session
	gate    *navigationGate
}

func (t *LinksTool) Name() string { return "links" }
func (t *LinksTool) Description() string {
	return "List all hyperlink targets on the current page, newline-separated. Optionally navigates to a URL first."
}
func (t *LinksTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "Optional URL to navigate to before extracting links",
			},
		},
	}
}

func (t *LinksTool) Call(ctx context.Context, args json.RawMessage) (*Result, error) {
	var in struct {
		URL string `json:"url"`
	}
	if len(args) > 0 && string(args) != "null" {
		if err := json.Unmarshal(args, &in); err != nil {
			return nil, invalidParams(t.Name())
		}
	}
	if in.URL != "" {
		if err := t.gate.open(ctx, in.URL); err != nil {
			return nil, err
		}
	}

	return &Result{Stream: func(w io.Writer) error {
		hrefs, err := t.session.Links(ctx)
		if err != nil {
			return err
		}
		for i, href := range hrefs {
			if i > 0 {
				if _, err := io.WriteString(w, "\n"); err != nil {
					return err
				}
			}
			if _, err := io.WriteString(w, href); err != nil {
				return err
			}
		}
		return nil
	}}, nil
}

// EvaluateTool runs a script on the current page. Script failures are
// application-level outcomes: the response succeeds at the protocol level
// with isError set and a fixed failure text.
type EvaluateTool struct {
	session Session
	gate    *navigationGate
}

func (t *EvaluateTool) Name() string { return "evaluate" }
func (t *EvaluateTool) Description() string {
	return "Execute JavaScript on the current page and return the result as text. Optionally navigates to a URL first."
}
func (t *EvaluateTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"script": map[string]any{
				"type":        "string",
				"description": "JavaScript expression or function to execute",
			},
			"url": map[string]any{
				"type":        "string",
				"description": "Optional URL to navigate to before evaluating",
			},
		},
		"required": []string{"script"},
	}
}

func (t *EvaluateTool) Call(ctx context.Context, args json.RawMessage) (*Result, error) {
	var in struct {
		Script string `json:"script"`
		URL    string `json:"url"`
	}
	if err := decodeArgs(t.Name(), args, &in); err != nil {
		return nil, err
	}
	if in.Script == "" {
		return nil, invalidParams(t.Name())
	}
	if in.URL != "" {
		if err := t.gate.open(ctx, in.URL); err != nil {
			return nil, err
		}
	}

	text, err := t.session.Evaluate(ctx, in.Script)
	if err != nil {
		return &Result{Text: evaluateFailureText, IsError: true}, nil
	}
	return &Result{Text: text}, nil
}

// OverTool echoes its result argument back verbatim. It performs no session
// action; it exists as the agent-loop termination convention.
type OverTool struct{}

func (t *OverTool) Name() string { return "over" }
func (t *OverTool) Description() string {
	return "Signal that the task is finished, passing the final result text back verbatim."
}
func (t *OverTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"result": map[string]any{
				"type":        "string",
				"description": "Final result text",
			},
		},
		"required": []string{"result"},
	}
}

func (t *OverTool) Call(_ context.Context, args json.RawMessage) (*Result, error) {
	var in struct {
		Result *string `json:"result"`
	}
	if err := decodeArgs(t.Name(), args, &in); err != nil {
		return nil, err
	}
	if in.Result == nil {
		return nil, invalidParams(t.Name())
	}
	return &Result{Text: *in.Result}, nil
}
