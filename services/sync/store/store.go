// Package store writes canonical records and sync-run rows to the
// destination Supabase project, either through PostgREST or through a
// direct Postgres connection when a DSN is configured.
package store

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/sync/store")

// Record is a canonical domain record addressed by its natural key.
type Record interface {
	Key() string
}

// Store performs natural-key upserts: insert when the key is absent,
// full-row overwrite when present. There are no partial merges; last
// write wins on every field.
type Store interface {
	Upsert(ctx context.Context, table, keyColumn string, records []Record) error
	ExistingKeys(ctx context.Context, table, keyColumn string, keys []string) (map[string]bool, error)
}

// RunStore persists the append-only sync-run audit rows.
type RunStore interface {
	CreateRun(ctx context.Context, table string, fields map[string]any) (int64, error)
	UpdateRun(ctx context.Context, table string, id int64, fields map[string]any) error
}

const (
	DefaultBatchSize   = 500
	maxCollectedErrors = 10
)

// Outcome reports what an upsert run achieved. When any batch fails
// the Inserted/Updated split is zeroed: the destination operation is
// atomic per batch and reports no per-row outcome, so the split cannot
// be trusted anymore. Succeeded stays accurate either way.
type Outcome struct {
	Inserted  int
	Updated   int
	Failed    int
	Succeeded int
	Errors    []string
}

// Batcher partitions records into fixed-size batches and writes them
// sequentially: sequential submission bounds the load on the
// destination and keeps error attribution per batch.
type Batcher struct {
	Store     Store
	BatchSize int
}

func (b Batcher) Upsert(ctx context.Context, table, keyColumn string, records []Record) Outcome {
	ctx, span := tracer.Start(ctx, "Batcher.Upsert")
	defer span.End()
	span.SetAttributes(
		attribute.String("table", table),
		attribute.Int("records", len(records)),
	)

	size := b.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}

	var out Outcome
	if len(records) == 0 {
		return out
	}

	// best-effort classification of inserts vs updates, for reporting
	// only; the write itself never depends on it
	keys := make([]string, len(records))
	for i, r := range records {
		keys[i] = r.Key()
	}
	existing, err := b.Store.ExistingKeys(ctx, table, keyColumn, keys)
	classified := err == nil
	if err != nil {
		slog.Warn("could not classify inserts vs updates", "table", table, "err", err)
	}

	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]

		err := b.Store.Upsert(ctx, table, keyColumn, batch)
		if err != nil {
			out.Failed += len(batch)
			if len(out.Errors) < maxCollectedErrors {
				out.Errors = append(out.Errors, err.Error())
			}
			slog.Error("batch upsert failed",
				"table", table, "from", start, "size", len(batch), "err", err)
			// remaining batches still get their chance: partial
			// completion beats none
			continue
		}

		out.Succeeded += len(batch)
		for _, r := range batch {
			if classified && existing[r.Key()] {
				out.Updated++
			} else {
				out.Inserted++
			}
		}
		slog.Info("batch upserted", "table", table, "from", start, "size", len(batch))
	}

	if out.Failed > 0 {
		out.Inserted, out.Updated = 0, 0
		span.SetStatus(codes.Error, "one or more batches failed")
	}
	span.SetAttributes(
		attribute.Int("succeeded", out.Succeeded),
		attribute.Int("failed", out.Failed),
	)
	return out
}
