package backoffice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"opscrm-backend/lib/browser"
)

// chips never pile up past a couple dozen; anything more means the
// widget stopped responding to keystrokes
const maxChipClearAttempts = 30

// setDateFilter fills a date input. When the page's date widget
// exposes its API we use it; otherwise we fall back to assigning the
// input value directly and firing synthetic events, since the host
// framework's internal wiring is not ours to rely on.
func (c *Client) setDateFilter(ctx context.Context, sel string, value time.Time) error {
	ctx, span := tracer.Start(ctx, "setDateFilter")
	defer span.End()
	span.SetAttributes(attribute.String("selector", sel))

	formatted := value.Format(dateInputFormat)
	probe := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) return 'missing';
		if (window.jQuery && window.jQuery(el).data('datepicker')) {
			window.jQuery(el).datepicker('setDate', %q);
			return 'widget';
		}
		return 'manual';
	})()`, sel, formatted)

	var mode string
	if err := c.session.EvaluateInPage(ctx, probe, &mode); err != nil {
		return err
	}
	span.SetAttributes(attribute.String("mode", mode))

	switch mode {
	case "widget":
		return nil
	case "manual":
		return c.session.SetValue(ctx, sel, formatted)
	default:
		span.SetStatus(codes.Error, "date input missing")
		return fmt.Errorf("%w: %s", browser.ErrElementNotFound, sel)
	}
}

func (c *Client) setDateRange(ctx context.Context, fromSel, toSel string, from, to time.Time) error {
	if err := c.setDateFilter(ctx, fromSel, from); err != nil {
		return err
	}
	if err := c.pause(ctx); err != nil {
		return err
	}
	if err := c.setDateFilter(ctx, toSel, to); err != nil {
		return err
	}
	return c.pause(ctx)
}

// selectOption picks a dropdown entry by value. Assignment plus a
// change event is what the host page's own handlers listen for.
func (c *Client) selectOption(ctx context.Context, sel, value string) error {
	return c.session.SetValue(ctx, sel, value)
}

// clearChips empties a multi-select "chip" widget by sending backspace
// keystrokes until the widget reports zero chips. The widget has no
// programmatic clear; keystrokes are the only lever.
func (c *Client) clearChips(ctx context.Context, chipSel, inputSel string) error {
	ctx, span := tracer.Start(ctx, "clearChips")
	defer span.End()
	span.SetAttributes(attribute.String("chips", chipSel))

	countScript := fmt.Sprintf(`document.querySelectorAll(%q).length`, chipSel)
	for attempt := 0; attempt < maxChipClearAttempts; attempt++ {
		var count int
		if err := c.session.EvaluateInPage(ctx, countScript, &count); err != nil {
			return err
		}
		if count == 0 {
			span.SetAttributes(attribute.Int("attempts", attempt))
			return nil
		}
		if err := c.session.SendBackspace(ctx, inputSel); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(150 * time.Millisecond):
		}
	}
	span.SetStatus(codes.Error, "chips would not clear")
	return fmt.Errorf("filter chips still present after %d backspaces: %s", maxChipClearAttempts, chipSel)
}

// applyFilters clicks the page's search control when it has one. A few
// listing pages re-query on filter change and render no search button,
// so a missing control is not an error here.
func (c *Client) applyFilters(ctx context.Context) error {
	html, err := c.session.OuterHTML(ctx)
	if err != nil {
		return err
	}
	text, err := browser.FindExportControl(html, []string{"pesquisar"})
	var notFound *browser.ExportControlNotFoundError
	if errors.As(err, &notFound) {
		return c.pause(ctx)
	}
	if err != nil {
		return err
	}
	if err := c.session.ClickControlByText(ctx, text); err != nil {
		return err
	}
	return c.pause(ctx)
}
