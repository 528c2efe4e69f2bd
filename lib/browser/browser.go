// Package browser wraps a headless Chrome tab behind the narrow set of
// operations the extraction scenarios need: navigation, login, in-page
// script evaluation, download configuration and screenshots. Keeping
// the automation engine behind this seam keeps scenario logic testable
// and off any particular driver API.
package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("lib/browser")

var (
	ErrNavigationTimeout = errors.New("navigation timed out")
	ErrElementNotFound   = errors.New("element not found")
)

type Credentials struct {
	Username string
	Password string
}

type Options struct {
	// path to the Chrome/Chromium binary; empty resolves from PATH
	ExecPath string
	Headless bool
	// directory downloads land in; may also be set later per run via
	// ConfigureDownloads
	DownloadDir string
	// upper bound for navigations and selector waits. defaults to 30s
	Timeout time.Duration
	// substring of the URL that identifies the login page; login is
	// skipped when the current URL doesn't match. defaults to "login"
	LoginURLHint string
}

func (o Options) withDefaults() Options {
	if o.Timeout == 0 {
		o.Timeout = 30 * time.Second
	}
	if o.LoginURLHint == "" {
		o.LoginURLHint = "login"
	}
	return o
}

// Session owns one browser process and one tab. Every session must be
// closed on all exit paths; Open returns before any page is loaded.
type Session struct {
	ctx     context.Context
	opts    Options
	cancels []context.CancelFunc
}

func Open(ctx context.Context, opts Options) (*Session, error) {
	ctx, span := tracer.Start(ctx, "Open")
	defer span.End()

	opts = opts.withDefaults()

	allocOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		// the job runs inside unprivileged CI containers where the
		// Chrome sandbox cannot set up its namespaces
		chromedp.NoSandbox,
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	s := &Session{
		ctx:     tabCtx,
		opts:    opts,
		cancels: []context.CancelFunc{cancelTab, cancelAlloc},
	}

	// spawn the browser up front so a missing binary fails loudly here
	// instead of in the middle of a scenario
	if err := chromedp.Run(tabCtx); err != nil {
		s.Close()
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to launch browser")
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	if opts.DownloadDir != "" {
		if err := s.ConfigureDownloads(ctx, opts.DownloadDir); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *Session) Close() {
	for _, cancel := range s.cancels {
		cancel()
	}
}

// runContext bounds an action context by the session timeout and the
// caller's context. Actions must run on the session's context chain
// (that is where the browser lives), so the caller's cancellation is
// forwarded into it rather than inherited.
func runContext(caller, session context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(session, timeout)
	stop := context.AfterFunc(caller, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if timeout == 0 {
		timeout = s.opts.Timeout
	}
	runCtx, cancel := runContext(ctx, s.ctx, timeout)
	defer cancel()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	ctx, span := tracer.Start(ctx, "Navigate")
	defer span.End()
	span.SetAttributes(attribute.String("url", url))

	err := s.run(ctx, 0, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery))
	if errors.Is(err, context.DeadlineExceeded) {
		span.SetStatus(codes.Error, "navigation timeout")
		return fmt.Errorf("%w: %s", ErrNavigationTimeout, url)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "navigation failed")
		return err
	}
	return nil
}

func (s *Session) Location(ctx context.Context) (string, error) {
	var url string
	err := s.run(ctx, 0, chromedp.Location(&url))
	if err != nil {
		return "", err
	}
	return url, nil
}

// EvaluateInPage executes a script inside the page and unmarshals its
// result into out (pass nil to discard). This is the single seam
// through which scenarios reach into the host page's DOM.
func (s *Session) EvaluateInPage(ctx context.Context, script string, out any) error {
	ctx, span := tracer.Start(ctx, "EvaluateInPage")
	defer span.End()

	err := s.run(ctx, 0, chromedp.Evaluate(script, out))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "in-page evaluation failed")
	}
	return err
}

// WaitVisible blocks until the selector matches a visible element, or
// fails with ErrElementNotFound at the timeout.
func (s *Session) WaitVisible(ctx context.Context, sel string, timeout time.Duration) error {
	ctx, span := tracer.Start(ctx, "WaitVisible")
	defer span.End()
	span.SetAttributes(attribute.String("selector", sel))

	err := s.run(ctx, timeout, chromedp.WaitVisible(sel, chromedp.ByQuery))
	if errors.Is(err, context.DeadlineExceeded) {
		span.SetStatus(codes.Error, "element not found")
		return fmt.Errorf("%w: %s", ErrElementNotFound, sel)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "wait failed")
	}
	return err
}

func (s *Session) Click(ctx context.Context, sel string) error {
	err := s.run(ctx, 0, chromedp.Click(sel, chromedp.ByQuery))
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrElementNotFound, sel)
	}
	return err
}

// SendBackspace focuses the element and emits one backspace keystroke.
// Multi-select "chip" widgets in the backoffice only remove entries
// through keyboard events; there is no API to clear them.
func (s *Session) SendBackspace(ctx context.Context, sel string) error {
	return s.run(ctx, 0,
		chromedp.Focus(sel, chromedp.ByQuery),
		chromedp.KeyEvent(kb.Backspace),
	)
}

// SetValue assigns the input's value from inside the page and fires
// synthetic input/change events plus a blur. The host application's
// internal wiring is unknown and unstable, so this is the portable way
// to trigger whatever reactivity it hangs off those events.
func (s *Session) SetValue(ctx context.Context, sel, value string) error {
	ctx, span := tracer.Start(ctx, "SetValue")
	defer span.End()
	span.SetAttributes(attribute.String("selector", sel))

	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) return false;
		el.focus();
		el.value = %q;
		el.dispatchEvent(new Event('input', {bubbles: true}));
		el.dispatchEvent(new Event('change', {bubbles: true}));
		el.blur();
		return true;
	})()`, sel, value)

	var ok bool
	if err := s.EvaluateInPage(ctx, script, &ok); err != nil {
		return err
	}
	if !ok {
		span.SetStatus(codes.Error, "element not found")
		return fmt.Errorf("%w: %s", ErrElementNotFound, sel)
	}
	return nil
}

// ConfigureDownloads points the browser's download target at dir,
// creating it if needed.
func (s *Session) ConfigureDownloads(ctx context.Context, dir string) error {
	ctx, span := tracer.Start(ctx, "ConfigureDownloads")
	defer span.End()
	span.SetAttributes(attribute.String("dir", dir))

	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create download dir")
		return err
	}
	err = s.run(ctx, 0, cdpbrowser.
		SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorAllow).
		WithDownloadPath(abs))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to set download behavior")
	}
	return err
}

// Screenshot captures the viewport to path. Callers treat failures as
// best-effort: a missing diagnostic never masks the original error.
func (s *Session) Screenshot(ctx context.Context, path string) error {
	ctx, span := tracer.Start(ctx, "Screenshot")
	defer span.End()

	var buf []byte
	if err := s.run(ctx, 0, chromedp.CaptureScreenshot(&buf)); err != nil {
		span.RecordError(err)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0o644)
}

// OuterHTML returns a snapshot of the page's full markup.
func (s *Session) OuterHTML(ctx context.Context) (string, error) {
	var html string
	err := s.run(ctx, 0, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

var usernameSelectors = []string{
	`input[name="username"]`,
	`input[name="user"]`,
	`input[name="email"]`,
	`input[type="email"]`,
	`#username`,
}

var passwordSelectors = []string{
	`input[name="password"]`,
	`input[type="password"]`,
	`#password`,
}

// LoginIfNeeded authenticates when the current URL looks like the
// login page and returns immediately otherwise, so scenarios sharing
// an already-authenticated session skip the form.
func (s *Session) LoginIfNeeded(ctx context.Context, creds Credentials) error {
	ctx, span := tracer.Start(ctx, "LoginIfNeeded")
	defer span.End()

	loc, err := s.Location(ctx)
	if err != nil {
		return err
	}
	if !strings.Contains(strings.ToLower(loc), s.opts.LoginURLHint) {
		span.SetAttributes(attribute.Bool("skipped", true))
		return nil
	}

	userSel, err := s.firstPresent(ctx, usernameSelectors)
	if err != nil {
		span.SetStatus(codes.Error, "no username field")
		return fmt.Errorf("login form: %w", err)
	}
	passSel, err := s.firstPresent(ctx, passwordSelectors)
	if err != nil {
		span.SetStatus(codes.Error, "no password field")
		return fmt.Errorf("login form: %w", err)
	}

	if err := s.SetValue(ctx, userSel, creds.Username); err != nil {
		return err
	}
	if err := s.SetValue(ctx, passSel, creds.Password); err != nil {
		return err
	}
	if err := s.submitLogin(ctx); err != nil {
		return err
	}

	// the form posts and redirects; consider login done once the URL
	// stops looking like the login page
	deadline := time.Now().Add(s.opts.Timeout)
	for time.Now().Before(deadline) {
		loc, err := s.Location(ctx)
		if err == nil && !strings.Contains(strings.ToLower(loc), s.opts.LoginURLHint) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
	span.SetStatus(codes.Error, "still on login page")
	return fmt.Errorf("authentication failed: still on login page after submit")
}

func (s *Session) firstPresent(ctx context.Context, selectors []string) (string, error) {
	for _, sel := range selectors {
		var present bool
		script := fmt.Sprintf(`document.querySelector(%q) !== null`, sel)
		if err := s.EvaluateInPage(ctx, script, &present); err != nil {
			return "", err
		}
		if present {
			return sel, nil
		}
	}
	return "", fmt.Errorf("%w: tried %s", ErrElementNotFound, strings.Join(selectors, ", "))
}

func (s *Session) submitLogin(ctx context.Context) error {
	var submitted bool
	script := `(() => {
		const btn = document.querySelector('button[type="submit"], input[type="submit"]');
		if (btn) { btn.click(); return true; }
		const form = document.querySelector('form');
		if (form) { form.submit(); return true; }
		return false;
	})()`
	if err := s.EvaluateInPage(ctx, script, &submitted); err != nil {
		return err
	}
	if !submitted {
		return fmt.Errorf("%w: no submit control on login page", ErrElementNotFound)
	}
	return nil
}
