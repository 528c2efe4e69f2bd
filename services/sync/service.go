// Package sync runs the full extraction pipeline for a single domain:
// open a browser session against the backoffice, export the listing to
// a spreadsheet, transform the rows and upsert them, while keeping a
// run-log row in the database up to date from start to finish.
package sync

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"opscrm-backend/lib/browser"
	"opscrm-backend/lib/scrapers/backoffice"
	"opscrm-backend/lib/spreadsheet"
	"opscrm-backend/services/sync/store"
)

var tracer = otel.Tracer("services/sync")

type Trigger string

const (
	TriggerManual    Trigger = "manual"
	TriggerScheduled Trigger = "scheduled"
	TriggerExternal  Trigger = "external"
)

type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusSuccess    Status = "success"
	StatusError      Status = "error"
)

// RunOptions parameterizes a single sync run. From/To are only
// consulted by domains that filter by a date period. A non-zero
// SyncLogID attaches the run to a log row created by an external
// caller instead of inserting a new one.
type RunOptions struct {
	From      time.Time
	To        time.Time
	SyncLogID int64
	Trigger   Trigger
}

// Result summarizes a finished run. Err carries the failure that ended
// the run; the same information has already been persisted to the run
// log by the time Result is returned.
type Result struct {
	Domain     string
	RunID      int64
	Success    bool
	FilePath   string
	FileSize   int64
	Processed  int
	Inserted   int
	Updated    int
	Failed     int
	Dropped    int
	Duplicates int
	Duration   time.Duration
	Err        error
}

type Service struct {
	cfg     Config
	batcher store.Batcher
	runs    store.RunStore

	// openClient is swapped out by tests; the default launches Chrome.
	openClient func(ctx context.Context) (*backoffice.Client, func(), error)
}

// New builds a Service from cfg. A direct database DSN takes
// precedence over the REST endpoint when both are configured.
func New(ctx context.Context, cfg Config) (*Service, error) {
	var (
		st   store.Store
		runs store.RunStore
	)
	if cfg.DatabaseDSN != "" {
		pg, err := store.NewPGStore(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		st, runs = pg, pg
	} else {
		client := store.NewPostgrestClient(cfg.SupabaseURL, cfg.ServiceRoleKey)
		st, runs = client, client
	}
	s := &Service{
		cfg:     cfg,
		batcher: store.Batcher{Store: st},
		runs:    runs,
	}
	s.openClient = s.openBrowserClient
	return s, nil
}

func (s *Service) openBrowserClient(ctx context.Context) (*backoffice.Client, func(), error) {
	// Every run downloads into its own directory so concurrent runs
	// cannot pick up each other's exports.
	runDir := filepath.Join(s.cfg.DownloadDir, uuid.NewString())
	session, err := browser.Open(ctx, browser.Options{
		ExecPath:    s.cfg.ChromePath,
		Headless:    s.cfg.Headless,
		DownloadDir: runDir,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open browser: %w", err)
	}
	client := backoffice.NewClient(session, backoffice.Options{
		BaseURL:       s.cfg.BackofficeURL,
		Credentials:   s.cfg.Credentials,
		DownloadDir:   runDir,
		ScreenshotDir: s.cfg.ScreenshotDir,
	})
	cleanup := func() {
		session.Close()
	}
	return client, cleanup, nil
}

func (s *Service) RunServiceRequests(ctx context.Context, opts RunOptions) Result {
	return s.run(ctx, serviceRequestsDomain, opts)
}

func (s *Service) RunBillingProcesses(ctx context.Context, opts RunOptions) Result {
	return s.run(ctx, billingDomain, opts)
}

func (s *Service) RunClients(ctx context.Context, opts RunOptions) Result {
	return s.run(ctx, clientsDomain, opts)
}

func (s *Service) RunTasks(ctx context.Context, opts RunOptions) Result {
	return s.run(ctx, tasksDomain, opts)
}

func (s *Service) RunProviderAllocations(ctx context.Context, opts RunOptions) Result {
	return s.run(ctx, providerAllocationsDomain, opts)
}

func (s *Service) RunRecurrences(ctx context.Context, opts RunOptions) Result {
	return s.run(ctx, recurrencesDomain, opts)
}

func (s *Service) run(ctx context.Context, d domain, opts RunOptions) Result {
	ctx, span := tracer.Start(ctx, "sync."+d.name)
	defer span.End()
	span.SetAttributes(attribute.String("sync.trigger", string(trigger(opts))))

	start := time.Now()
	res := Result{Domain: d.name}

	runID, err := s.claimRun(ctx, d, opts)
	if err != nil {
		res.Err = fmt.Errorf("claim run log: %w", err)
		res.Duration = time.Since(start)
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Error())
		return res
	}
	res.RunID = runID
	span.SetAttributes(attribute.Int64("sync.run_id", runID))

	fail := func(err error) Result {
		res.Err = err
		res.Duration = time.Since(start)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.finishRun(ctx, d, runID, res, StatusError)
		return res
	}

	client, cleanup, err := s.openClient(ctx)
	if err != nil {
		return fail(err)
	}
	defer cleanup()

	filePath, err := d.export(ctx, client, opts)
	if err != nil {
		return fail(fmt.Errorf("export: %w", err))
	}
	res.FilePath = filePath
	if info, err := os.Stat(filePath); err == nil {
		res.FileSize = info.Size()
	}

	rows, err := spreadsheet.Read(ctx, filePath)
	if err != nil {
		return fail(fmt.Errorf("read export: %w", err))
	}
	res.Processed = len(rows)
	if len(rows) == 0 {
		// An empty listing for the requested filters is a valid outcome.
		res.Success = true
		res.Duration = time.Since(start)
		s.finishRun(ctx, d, runID, res, StatusSuccess)
		return res
	}

	tr := d.transform(rows)
	res.Dropped = tr.Dropped
	res.Duplicates = tr.Duplicates

	out := s.batcher.Upsert(ctx, d.table, d.keyColumn, tr.Records)
	res.Inserted = out.Inserted
	res.Updated = out.Updated
	res.Failed = out.Failed
	res.Duration = time.Since(start)

	if out.Succeeded == 0 && out.Failed > 0 {
		return fail(fmt.Errorf("upsert: %s", strings.Join(out.Errors, "; ")))
	}
	if len(out.Errors) > 0 {
		// Partial failure still counts as a successful run; the
		// batch errors are preserved on the log row.
		res.Err = fmt.Errorf("partial upsert failure: %s", strings.Join(out.Errors, "; "))
		span.RecordError(res.Err)
	}
	res.Success = true
	s.finishRun(ctx, d, runID, res, StatusSuccess)
	return res
}

func trigger(opts RunOptions) Trigger {
	if opts.Trigger == "" {
		return TriggerManual
	}
	return opts.Trigger
}

const dayFormat = "2006-01-02"

// claimRun transitions an externally created log row to in_progress,
// or inserts a fresh one when the caller did not provide an id.
func (s *Service) claimRun(ctx context.Context, d domain, opts RunOptions) (int64, error) {
	fields := map[string]any{
		"status":     string(StatusInProgress),
		"started_at": time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
	}
	if opts.SyncLogID != 0 {
		if err := s.runs.UpdateRun(ctx, d.logTable, opts.SyncLogID, fields); err != nil {
			return 0, err
		}
		return opts.SyncLogID, nil
	}
	fields["trigger"] = string(trigger(opts))
	if d.hasPeriod {
		fields["date_from"] = opts.From.Format(dayFormat)
		fields["date_to"] = opts.To.Format(dayFormat)
	}
	return s.runs.CreateRun(ctx, d.logTable, fields)
}

// finishRun records the terminal state of a run. Persistence failures
// here are reported on the span but do not change the run outcome.
func (s *Service) finishRun(ctx context.Context, d domain, runID int64, res Result, status Status) {
	fields := map[string]any{
		"status":            string(status),
		"completed_at":      time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		"duration_seconds":  int(res.Duration.Round(time.Second) / time.Second),
		"records_processed": res.Processed,
		"records_inserted":  res.Inserted,
		"records_updated":   res.Updated,
		"records_failed":    res.Failed,
	}
	if res.FilePath != "" {
		fields["file_path"] = res.FilePath
		fields["file_size"] = res.FileSize
	}
	if res.Err != nil {
		fields["error_message"] = res.Err.Error()
	}
	if err := s.runs.UpdateRun(ctx, d.logTable, runID, fields); err != nil {
		trace.SpanFromContext(ctx).RecordError(fmt.Errorf("update run log: %w", err))
	}
}
