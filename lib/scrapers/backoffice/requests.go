package backoffice

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

const requestsPath = "/admin/requests"

// ExportServiceRequests drives the service-request listing: date-range
// filter over the request date, status chips cleared so every state is
// included, then the export control.
func (c *Client) ExportServiceRequests(ctx context.Context, from, to time.Time) (string, error) {
	ctx, span := tracer.Start(ctx, "ExportServiceRequests")
	defer span.End()
	span.SetAttributes(
		attribute.String("from", from.Format(dateInputFormat)),
		attribute.String("to", to.Format(dateInputFormat)),
	)

	if err := c.openPage(ctx, requestsPath); err != nil {
		return "", err
	}
	if err := c.session.WaitVisible(ctx, "#search-date-from", 0); err != nil {
		return "", err
	}
	if err := c.setDateRange(ctx, "#search-date-from", "#search-date-to", from, to); err != nil {
		return "", err
	}
	// the listing defaults to open requests only; drop the pre-seeded
	// status chips so the export covers every state
	if err := c.clearChips(ctx, "#status-filter .chip", "#status-filter input"); err != nil {
		return "", err
	}
	if err := c.applyFilters(ctx); err != nil {
		return "", err
	}
	return c.export(ctx, "requests", []string{"exportar"})
}
