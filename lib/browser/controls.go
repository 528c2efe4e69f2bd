package browser

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

// candidate export affordances: the backoffice renders its export
// action as a button, a link or an input depending on the page
const controlSelector = `button, a, input[type="button"], input[type="submit"]`

var innerWhitespace = regexp.MustCompile(`\s\s+`)

func normalizeControlText(s string) string {
	var b strings.Builder
	for _, c := range s {
		if unicode.IsPrint(c) {
			b.WriteRune(c)
		}
	}
	out := strings.TrimSpace(b.String())
	return innerWhitespace.ReplaceAllString(out, " ")
}

// VisibleControls lists the normalized texts of every clickable control
// in the page snapshot. Used to enumerate candidates in diagnostics
// when the export control cannot be found.
func VisibleControls(html string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var texts []string
	doc.Find(controlSelector).Each(func(_ int, sel *goquery.Selection) {
		text := normalizeControlText(sel.Text())
		if text == "" {
			// inputs carry their label in the value attribute
			text = normalizeControlText(sel.AttrOr("value", ""))
		}
		if text != "" {
			texts = append(texts, text)
		}
	})
	return texts, nil
}

// ExportControlNotFoundError reports the keywords that matched nothing
// along with every control text that was on the page, so a layout
// change in the host application can be diagnosed from the run log.
type ExportControlNotFoundError struct {
	Keywords   []string
	Candidates []string
}

func (e *ExportControlNotFoundError) Error() string {
	return fmt.Sprintf(
		"no export control matching %q among visible controls: %s",
		strings.Join(e.Keywords, " "),
		strings.Join(e.Candidates, " | "),
	)
}

// FindExportControl locates a clickable control whose visible text
// contains every keyword, case-insensitively. Matching is text-based
// because the host page's DOM structure is not guaranteed stable.
// Returns the control's exact normalized text for a follow-up click.
func FindExportControl(html string, keywords []string) (string, error) {
	candidates, err := VisibleControls(html)
	if err != nil {
		return "", err
	}

	for _, text := range candidates {
		lower := strings.ToLower(text)
		matched := true
		for _, kw := range keywords {
			if !strings.Contains(lower, strings.ToLower(kw)) {
				matched = false
				break
			}
		}
		if matched {
			return text, nil
		}
	}
	return "", &ExportControlNotFoundError{Keywords: keywords, Candidates: candidates}
}

// ClickControlByText clicks the control whose normalized text equals
// text, inside the page. Pair with FindExportControl, which produced
// the text from the same snapshot.
func (s *Session) ClickControlByText(ctx context.Context, text string) error {
	script := fmt.Sprintf(`(() => {
		const els = document.querySelectorAll(%q);
		for (const el of els) {
			const label = (el.innerText || el.value || '').trim().replace(/\s\s+/g, ' ');
			if (label === %q) { el.click(); return true; }
		}
		return false;
	})()`, controlSelector, text)

	var clicked bool
	if err := s.EvaluateInPage(ctx, script, &clicked); err != nil {
		return err
	}
	if !clicked {
		return fmt.Errorf("%w: control with text %q", ErrElementNotFound, text)
	}
	return nil
}
