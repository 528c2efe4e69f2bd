package backoffice

import "context"

const providersPath = "/admin/providers/allocations"

// ExportProviderAllocations exports the provider-allocation listing.
// The page always shows the full allocation board, so there are no
// filters to apply.
func (c *Client) ExportProviderAllocations(ctx context.Context) (string, error) {
	ctx, span := tracer.Start(ctx, "ExportProviderAllocations")
	defer span.End()

	if err := c.openPage(ctx, providersPath); err != nil {
		return "", err
	}
	if err := c.session.WaitVisible(ctx, "#allocations-table", 0); err != nil {
		return "", err
	}
	return c.export(ctx, "providers", []string{"exportar"})
}
