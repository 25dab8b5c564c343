// Package browser owns the process-lifetime Chrome session: one browser,
// one page, created at startup and torn down at shutdown.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pagelens-mcp-server/internal/config"

	"github.com/charmbracelet/log"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/google/uuid"
)

// Session is the singleton browsing context. It is created once in main and
// passed by reference into every handler; there is deliberately no global.
type Session struct {
	ID      string
	cfg     config.BrowserConfig
	logger  *log.Logger
	browser *rod.Browser
	page    *rod.Page
}

// NewSession builds an unstarted session.
func NewSession(cfg config.BrowserConfig, logger *log.Logger) *Session {
	return &Session{
		ID:     uuid.NewString(),
		cfg:    cfg,
		logger: logger,
	}
}

// Start connects to an existing Chrome or launches one, then opens the
// single page all tools operate on.
func (s *Session) Start(ctx context.Context) error {
	controlURL := s.cfg.DebuggerURL
	if controlURL == "" {
		if len(s.cfg.Launch) == 0 {
			return errors.New("no debugger_url or launch command provided")
		}
		bin := s.cfg.Launch[0]
		launch := launcher.New().Bin(bin).Headless(s.cfg.IsHeadless())
		for _, rawFlag := range s.cfg.Launch[1:] {
			flagStr := strings.TrimLeft(rawFlag, "-")
			name, val, hasVal := strings.Cut(flagStr, "=")
			if hasVal {
				launch = launch.Set(flags.Flag(name), val)
			} else {
				launch = launch.Set(flags.Flag(name))
			}
		}
		url, err := launch.Launch()
		if err != nil {
			return fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = url
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}
	s.browser = browser

	page, err := s.newPage()
	if err != nil {
		_ = browser.Close()
		s.browser = nil
		return err
	}
	s.page = page

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             s.cfg.GetViewportWidth(),
		Height:            s.cfg.GetViewportHeight(),
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		s.logger.Warn("failed to set viewport", "err", err)
	}

	s.logger.Info("browser session started", "session", s.ID, "control_url", controlURL, "stealth", s.cfg.Stealth)
	return nil
}

func (s *Session) newPage() (*rod.Page, error) {
	if s.cfg.Stealth {
		page, err := stealth.Page(s.browser)
		if err != nil {
			return nil, fmt.Errorf("create stealth page: %w", err)
		}
		return page, nil
	}
	page, err := s.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	return page, nil
}

// Shutdown closes the page and the underlying browser.
func (s *Session) Shutdown() error {
	if s.page != nil {
		_ = s.page.Close()
		s.page = nil
	}
	var err error
	if s.browser != nil {
		err = s.browser.Close()
		s.browser = nil
	}
	s.logger.Info("browser session shut down", "session", s.ID)
	return err
}

// Navigate drives the page to url as a typed address-bar navigation, which
// pushes a new history entry. Load errors abort the calling tool.
func (s *Session) Navigate(ctx context.Context, url string) error {
	page := s.page.Context(ctx)
	res, err := proto.PageNavigate{
		URL:            url,
		TransitionType: proto.PageTransitionTypeTyped,
	}.Call(page)
	if err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	if res.ErrorText != "" {
		return fmt.Errorf("navigate to %s: %s", url, res.ErrorText)
	}
	s.logger.Debug("navigated", "url", url)
	return nil
}

// WaitSettled waits up to timeout for the page to finish loading and for the
// DOM to stop churning. Timing out is advisory: tools proceed with whatever
// state exists, so no error is returned.
func (s *Session) WaitSettled(ctx context.Context, timeout time.Duration) {
	start := time.Now()
	page := s.page.Context(ctx).Timeout(timeout)
	if err := page.WaitLoad(); err != nil {
		s.logger.Debug("load wait ended early", "err", err, "took", time.Since(start))
		return
	}
	if err := page.WaitStable(300 * time.Millisecond); err != nil {
		s.logger.Debug("stability wait ended early", "err", err, "took", time.Since(start))
	}
}

// Evaluate runs script in a fresh per-call scope on the current page and
// converts the result to text. The error covers script failures only; text
// conversion problems fall back to a placeholder inside stringify.
func (s *Session) Evaluate(ctx context.Context, script string) (string, error) {
	page := s.page.Context(ctx)
	res, err := page.Eval(script)
	if err != nil {
		return "", fmt.Errorf("evaluate script: %w", err)
	}
	return stringify(res), nil
}

// resultPlaceholder stands in when an evaluation result cannot be rendered
// as text.
const resultPlaceholder = "<unserializable result>"

func stringify(res *proto.RuntimeRemoteObject) (out string) {
	// gson renders through reflection and can panic on exotic remote values.
	defer func() {
		if recover() != nil {
			out = resultPlaceholder
		}
	}()

	if res == nil {
		return resultPlaceholder
	}
	v := res.Value
	if v.Nil() {
		return "null"
	}
	if s, ok := v.Val().(string); ok {
		return s
	}
	return v.JSON("", "")
}

// Links returns the resolved hyperlink target of every anchor element, in
// document order. Anchors whose resolved target is empty are dropped;
// duplicates are preserved.
func (s *Session) Links(ctx context.Context) ([]string, error) {
	page := s.page.Context(ctx)
	anchors, err := page.Elements("a")
	if err != nil {
		return nil, fmt.Errorf("query anchors: %w", err)
	}

	hrefs := make([]string, 0, len(anchors))
	for _, a := range anchors {
		// Property resolves the href against the document base URL; the raw
		// attribute would miss relative targets.
		prop, err := a.Property("href")
		if err != nil {
			continue
		}
		hrefs = append(hrefs, prop.Str())
	}
	return compactHrefs(hrefs), nil
}

// compactHrefs drops anchors whose resolved target is empty, keeping
// document order and duplicates.
func compactHrefs(hrefs []string) []string {
	out := make([]string, 0, len(hrefs))
	for _, href := range hrefs {
		if href != "" {
			out = append(out, href)
		}
	}
	return out
}

// HTML returns the full serialized document, used by the article renderer.
func (s *Session) HTML(ctx context.Context) (string, error) {
	html, err := s.page.Context(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("serialize document: %w", err)
	}
	return html, nil
}

// URL returns the page's current address.
func (s *Session) URL(ctx context.Context) (string, error) {
	info, err := s.page.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}
