// Package transform maps raw export rows into canonical domain
// records: every date/boolean/numeric field goes through the
// normalizer, rows without their natural key are dropped and counted,
// and duplicate keys within a batch collapse to the last occurrence
// (the rows come ordered oldest to newest, so last wins is most
// recent wins).
package transform

import (
	"time"

	"opscrm-backend/lib/spreadsheet"
	"opscrm-backend/services/sync/store"
)

type Result struct {
	Records    []store.Record
	Dropped    int
	Duplicates int
}

// cell returns the first header that is present in the row. Header
// typos and stray whitespace in the source system are permanent, so
// every known variant is listed at the call site.
func cell(row spreadsheet.Row, headers ...string) any {
	for _, h := range headers {
		if v, ok := row[h]; ok {
			return v
		}
	}
	return nil
}

// dedupe collapses records sharing a natural key, keeping the
// last-occurring record's values.
func dedupe(records []store.Record) ([]store.Record, int) {
	out := make([]store.Record, 0, len(records))
	index := make(map[string]int, len(records))
	duplicates := 0

	for _, r := range records {
		if at, seen := index[r.Key()]; seen {
			out[at] = r
			duplicates++
			continue
		}
		index[r.Key()] = len(out)
		out = append(out, r)
	}
	return out, duplicates
}

func nowISO() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
}
