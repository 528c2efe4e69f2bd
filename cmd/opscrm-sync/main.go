package main

import (
	"opscrm-backend/cmd/opscrm-sync/commands"
	"opscrm-backend/lib/serviceutil"
	"opscrm-backend/lib/telemetry"
)

func main() {
	ctx := serviceutil.SignalContext()

	tel, err := telemetry.SetupFromEnv(ctx, "opscrm-sync")
	if err != nil {
		serviceutil.Fatal("failed to initialize telemetry", err)
	}
	defer tel.Shutdown(ctx)

	commands.ExecuteContext(ctx)
}
