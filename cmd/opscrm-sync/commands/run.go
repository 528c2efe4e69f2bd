package commands

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"opscrm-backend/lib/serviceutil"
	"opscrm-backend/lib/timezone"
	"opscrm-backend/services/sync"
)

// flagDateFormat matches what the backoffice date pickers display.
const flagDateFormat = "02-01-2006"

var (
	flagFrom      string
	flagTo        string
	flagSyncLogID int64
	flagScheduled bool
	flagHeadless  bool
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagFrom, "from", "", "Period start in dd-mm-yyyy. Defaults to the current week's Sunday.")
	pf.StringVar(&flagTo, "to", "", "Period end in dd-mm-yyyy. Defaults to the current week's Saturday.")
	pf.Int64Var(&flagSyncLogID, "sync-log-id", 0, "Attach to an existing run log row instead of creating one.")
	pf.BoolVar(&flagScheduled, "scheduled", false, "Mark the run as scheduler-triggered in the run log.")
	pf.BoolVar(&flagHeadless, "headless", true, "Run the browser headless.")

	for _, c := range []*cobra.Command{
		serviceRequestsCmd, billingCmd, clientsCmd,
		tasksCmd, providersCmd, recurrencesCmd,
	} {
		rootCmd.AddCommand(c)
	}
}

func runOptions() (sync.RunOptions, error) {
	opts := sync.RunOptions{
		SyncLogID: flagSyncLogID,
		Trigger:   sync.TriggerManual,
	}
	if flagScheduled {
		opts.Trigger = sync.TriggerScheduled
	}
	if flagSyncLogID != 0 {
		opts.Trigger = sync.TriggerExternal
	}

	opts.From, opts.To = timezone.GetCurrentWeek(timezone.Now())
	if flagFrom != "" {
		from, err := time.ParseInLocation(flagDateFormat, flagFrom, timezone.Location)
		if err != nil {
			return opts, fmt.Errorf("invalid --from %q: expected dd-mm-yyyy", flagFrom)
		}
		opts.From = from
	}
	if flagTo != "" {
		to, err := time.ParseInLocation(flagDateFormat, flagTo, timezone.Location)
		if err != nil {
			return opts, fmt.Errorf("invalid --to %q: expected dd-mm-yyyy", flagTo)
		}
		opts.To = to
	}
	if opts.To.Before(opts.From) {
		return opts, fmt.Errorf("--to %s is before --from %s", opts.To.Format(flagDateFormat), opts.From.Format(flagDateFormat))
	}
	return opts, nil
}

type runFunc func(s *sync.Service) sync.Result

func execute(cmd *cobra.Command, run runFunc) {
	ctx := cmd.Context()

	cfg, err := sync.ConfigFromEnv()
	if err != nil {
		serviceutil.Fatal("failed to load config", err)
	}
	cfg.Headless = flagHeadless

	svc, err := sync.New(ctx, cfg)
	if err != nil {
		serviceutil.Fatal("failed to initialize sync service", err)
	}

	res := run(svc)
	printResult(res)

	if !res.Success {
		slog.Error("sync run failed", "domain", res.Domain, "err", res.Err)
		os.Exit(1)
	}
}

func printResult(res sync.Result) {
	status := "success"
	if !res.Success {
		status = "error"
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"domain", res.Domain})
	t.AppendRows([]table.Row{
		{"status", status},
		{"run id", res.RunID},
		{"processed", res.Processed},
		{"inserted", res.Inserted},
		{"updated", res.Updated},
		{"failed", res.Failed},
		{"dropped", res.Dropped},
		{"duplicates", res.Duplicates},
		{"duration", res.Duration.Round(time.Millisecond)},
	})
	if res.FilePath != "" {
		t.AppendRow(table.Row{"file", fmt.Sprintf("%s (%d bytes)", res.FilePath, res.FileSize)})
	}
	if res.Err != nil {
		t.AppendRow(table.Row{"error", res.Err.Error()})
	}
	t.Render()
}

var serviceRequestsCmd = &cobra.Command{
	Use:   "requests",
	Short: "Syncs service requests for the given period.",
	Run: func(cmd *cobra.Command, args []string) {
		opts, err := runOptions()
		if err != nil {
			serviceutil.Fatal("invalid arguments", err)
		}
		execute(cmd, func(s *sync.Service) sync.Result {
			return s.RunServiceRequests(cmd.Context(), opts)
		})
	},
}

var billingCmd = &cobra.Command{
	Use:   "billing",
	Short: "Syncs billing processes for the given period.",
	Run: func(cmd *cobra.Command, args []string) {
		opts, err := runOptions()
		if err != nil {
			serviceutil.Fatal("invalid arguments", err)
		}
		execute(cmd, func(s *sync.Service) sync.Result {
			return s.RunBillingProcesses(cmd.Context(), opts)
		})
	},
}

var clientsCmd = &cobra.Command{
	Use:   "clients",
	Short: "Syncs the full client directory.",
	Run: func(cmd *cobra.Command, args []string) {
		opts, err := runOptions()
		if err != nil {
			serviceutil.Fatal("invalid arguments", err)
		}
		execute(cmd, func(s *sync.Service) sync.Result {
			return s.RunClients(cmd.Context(), opts)
		})
	},
}

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Syncs tasks for the given period.",
	Run: func(cmd *cobra.Command, args []string) {
		opts, err := runOptions()
		if err != nil {
			serviceutil.Fatal("invalid arguments", err)
		}
		execute(cmd, func(s *sync.Service) sync.Result {
			return s.RunTasks(cmd.Context(), opts)
		})
	},
}

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Syncs provider allocations.",
	Run: func(cmd *cobra.Command, args []string) {
		opts, err := runOptions()
		if err != nil {
			serviceutil.Fatal("invalid arguments", err)
		}
		execute(cmd, func(s *sync.Service) sync.Result {
			return s.RunProviderAllocations(cmd.Context(), opts)
		})
	},
}

var recurrencesCmd = &cobra.Command{
	Use:   "recurrences",
	Short: "Syncs active recurrences.",
	Run: func(cmd *cobra.Command, args []string) {
		opts, err := runOptions()
		if err != nil {
			serviceutil.Fatal("invalid arguments", err)
		}
		execute(cmd, func(s *sync.Service) sync.Result {
			return s.RunRecurrences(cmd.Context(), opts)
		})
	},
}
