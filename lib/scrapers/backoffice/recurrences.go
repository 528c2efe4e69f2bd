package backoffice

import "context"

const recurrencesPath = "/admin/recurrences"

// ExportRecurrences exports the recurring-service listing, widened to
// include suspended recurrences.
func (c *Client) ExportRecurrences(ctx context.Context) (string, error) {
	ctx, span := tracer.Start(ctx, "ExportRecurrences")
	defer span.End()

	if err := c.openPage(ctx, recurrencesPath); err != nil {
		return "", err
	}
	if err := c.session.WaitVisible(ctx, "#recurrence-state", 0); err != nil {
		return "", err
	}
	if err := c.selectOption(ctx, "#recurrence-state", "todas"); err != nil {
		return "", err
	}
	if err := c.applyFilters(ctx); err != nil {
		return "", err
	}
	return c.export(ctx, "recurrences", []string{"exportar"})
}
