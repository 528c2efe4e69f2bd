package backoffice

import "context"

const clientsPath = "/admin/clients"

// ExportClients exports the full client listing. The page has no date
// filter; the only filter forced here is the account state, widened to
// include inactive accounts.
func (c *Client) ExportClients(ctx context.Context) (string, error) {
	ctx, span := tracer.Start(ctx, "ExportClients")
	defer span.End()

	if err := c.openPage(ctx, clientsPath); err != nil {
		return "", err
	}
	if err := c.session.WaitVisible(ctx, "#client-state", 0); err != nil {
		return "", err
	}
	if err := c.selectOption(ctx, "#client-state", "todos"); err != nil {
		return "", err
	}
	if err := c.applyFilters(ctx); err != nil {
		return "", err
	}
	return c.export(ctx, "clients", []string{"exportar"})
}
