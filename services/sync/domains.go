package sync

import (
	"context"

	"opscrm-backend/lib/scrapers/backoffice"
	"opscrm-backend/lib/spreadsheet"
	"opscrm-backend/services/sync/transform"
)

// domain ties together the pieces a run needs: which listing to
// export, how its rows become records, and which tables hold the
// records and the run log.
type domain struct {
	name      string
	logTable  string
	table     string
	keyColumn string
	hasPeriod bool
	export    func(ctx context.Context, c *backoffice.Client, opts RunOptions) (string, error)
	transform func(rows []spreadsheet.Row) transform.Result
}

var serviceRequestsDomain = domain{
	name:      "service_requests",
	logTable:  "sync_logs",
	table:     "service_requests",
	keyColumn: "request_code",
	hasPeriod: true,
	export: func(ctx context.Context, c *backoffice.Client, opts RunOptions) (string, error) {
		return c.ExportServiceRequests(ctx, opts.From, opts.To)
	},
	transform: transform.ServiceRequests,
}

var billingDomain = domain{
	name:      "billing_processes",
	logTable:  "billing_sync_logs",
	table:     "billing_processes",
	keyColumn: "request_code",
	hasPeriod: true,
	export: func(ctx context.Context, c *backoffice.Client, opts RunOptions) (string, error) {
		return c.ExportBillingProcesses(ctx, opts.From, opts.To)
	},
	transform: transform.BillingProcesses,
}

var clientsDomain = domain{
	name:      "clients",
	logTable:  "clients_sync_logs",
	table:     "clients",
	keyColumn: "user_id",
	export: func(ctx context.Context, c *backoffice.Client, _ RunOptions) (string, error) {
		return c.ExportClients(ctx)
	},
	transform: transform.Clients,
}

var tasksDomain = domain{
	name:      "tasks",
	logTable:  "tasks_sync_logs",
	table:     "tasks",
	keyColumn: "task_id",
	hasPeriod: true,
	export: func(ctx context.Context, c *backoffice.Client, opts RunOptions) (string, error) {
		return c.ExportTasks(ctx, opts.From, opts.To)
	},
	transform: transform.Tasks,
}

var providerAllocationsDomain = domain{
	name:      "provider_allocations",
	logTable:  "provider_sync_logs",
	table:     "provider_allocations",
	keyColumn: "allocation_id",
	export: func(ctx context.Context, c *backoffice.Client, _ RunOptions) (string, error) {
		return c.ExportProviderAllocations(ctx)
	},
	transform: transform.ProviderAllocations,
}

var recurrencesDomain = domain{
	name:      "recurrences",
	logTable:  "allocation_sync_logs",
	table:     "recurrences",
	keyColumn: "recurrence_id",
	export: func(ctx context.Context, c *backoffice.Client, _ RunOptions) (string, error) {
		return c.ExportRecurrences(ctx)
	},
	transform: transform.Recurrences,
}
