// Package backoffice scripts the third-party backoffice web UI through
// a browser session, one exported scenario per data domain. The host
// application has no API; every scenario logs in, applies the domain's
// filters, clicks its export control and waits for the spreadsheet to
// land on disk.
package backoffice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"opscrm-backend/lib/browser"
	"opscrm-backend/lib/download"
)

var tracer = otel.Tracer("scrapers/backoffice")

// the backoffice renders and accepts dates as dd-mm-yyyy
const dateInputFormat = "02-01-2006"

// every export the backoffice produces is a spreadsheet
const exportExtension = ".xlsx"

// fixed pacing between UI interactions: the host page re-renders
// asynchronously after each filter change with no signal we can wait on
const interactionPause = 500 * time.Millisecond

type Options struct {
	BaseURL     string
	Credentials browser.Credentials
	// directory the browser session downloads into; owned by this run
	DownloadDir string
	// where diagnostic screenshots go on failure; empty disables them
	ScreenshotDir string
	// zero value uses the production polling defaults
	Download download.Options
}

// Session is the single seam the scenarios reach the page through.
// Production hands in a *browser.Session; tests hand in a fake.
type Session interface {
	Navigate(ctx context.Context, url string) error
	Location(ctx context.Context) (string, error)
	LoginIfNeeded(ctx context.Context, creds browser.Credentials) error
	EvaluateInPage(ctx context.Context, script string, out any) error
	WaitVisible(ctx context.Context, sel string, timeout time.Duration) error
	SetValue(ctx context.Context, sel, value string) error
	SendBackspace(ctx context.Context, sel string) error
	Screenshot(ctx context.Context, path string) error
	OuterHTML(ctx context.Context) (string, error)
	ClickControlByText(ctx context.Context, text string) error
}

var _ Session = (*browser.Session)(nil)

type Client struct {
	session Session
	opts    Options
}

func NewClient(session Session, opts Options) *Client {
	return &Client{session: session, opts: opts}
}

// openPage navigates to a backoffice path, authenticating on the way
// if the host redirected us to its login form.
func (c *Client) openPage(ctx context.Context, path string) error {
	ctx, span := tracer.Start(ctx, "openPage")
	defer span.End()
	span.SetAttributes(attribute.String("path", path))

	url := c.opts.BaseURL + path
	if err := c.session.Navigate(ctx, url); err != nil {
		return err
	}
	if err := c.session.LoginIfNeeded(ctx, c.opts.Credentials); err != nil {
		c.screenshot(ctx, "login-failed")
		span.SetStatus(codes.Error, "authentication failed")
		return err
	}

	// the post-login redirect may land on the dashboard instead of the
	// page we asked for
	loc, err := c.session.Location(ctx)
	if err != nil {
		return err
	}
	if loc != url {
		if err := c.session.Navigate(ctx, url); err != nil {
			return err
		}
	}
	return nil
}

// export clears stale files, finds and clicks the export control by
// its text, then waits for a stable download.
func (c *Client) export(ctx context.Context, domain string, keywords []string) (string, error) {
	ctx, span := tracer.Start(ctx, "export")
	defer span.End()
	span.SetAttributes(attribute.String("domain", domain))

	if err := download.Clear(c.opts.DownloadDir, exportExtension); err != nil {
		return "", err
	}

	html, err := c.session.OuterHTML(ctx)
	if err != nil {
		return "", err
	}
	text, err := browser.FindExportControl(html, keywords)
	if err != nil {
		c.screenshot(ctx, domain+"-no-export-control")
		span.SetStatus(codes.Error, "export control not found")
		return "", err
	}
	span.SetAttributes(attribute.String("control", text))

	if err := c.session.ClickControlByText(ctx, text); err != nil {
		return "", err
	}

	path, err := download.Await(ctx, c.opts.DownloadDir, exportExtension, c.opts.Download)
	if errors.Is(err, download.ErrTimeout) {
		c.screenshot(ctx, domain+"-download-timeout")
		span.SetStatus(codes.Error, "download timeout")
		return "", err
	}
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	return path, nil
}

// best-effort: a failed diagnostic must never mask the original error
func (c *Client) screenshot(ctx context.Context, name string) {
	if c.opts.ScreenshotDir == "" {
		return
	}
	path := filepath.Join(
		c.opts.ScreenshotDir,
		fmt.Sprintf("%s-%s.png", name, time.Now().Format("20060102-150405")),
	)
	if err := c.session.Screenshot(ctx, path); err != nil {
		slog.Warn("failed to capture diagnostic screenshot", "path", path, "err", err)
		return
	}
	slog.Info("captured diagnostic screenshot", "path", path)
}

func (c *Client) pause(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(interactionPause):
		return nil
	}
}
