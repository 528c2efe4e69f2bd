package backoffice

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

const billingPath = "/admin/billing/processes"

// ExportBillingProcesses exports the billing process listing for the
// given issue-date period, across every payment state.
func (c *Client) ExportBillingProcesses(ctx context.Context, from, to time.Time) (string, error) {
	ctx, span := tracer.Start(ctx, "ExportBillingProcesses")
	defer span.End()
	span.SetAttributes(
		attribute.String("from", from.Format(dateInputFormat)),
		attribute.String("to", to.Format(dateInputFormat)),
	)

	if err := c.openPage(ctx, billingPath); err != nil {
		return "", err
	}
	if err := c.session.WaitVisible(ctx, "#billing-date-from", 0); err != nil {
		return "", err
	}
	if err := c.setDateRange(ctx, "#billing-date-from", "#billing-date-to", from, to); err != nil {
		return "", err
	}
	if err := c.selectOption(ctx, "#payment-state", "todos"); err != nil {
		return "", err
	}
	if err := c.applyFilters(ctx); err != nil {
		return "", err
	}
	return c.export(ctx, "billing", []string{"exportar", "excel"})
}
