package sync

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"opscrm-backend/lib/scrapers/backoffice"
	"opscrm-backend/lib/spreadsheet"
	"opscrm-backend/services/sync/store"
	"opscrm-backend/services/sync/transform"
)

type fakeRunStore struct {
	nextID  int64
	created []map[string]any
	updates map[int64][]map[string]any
}

func newFakeRunStore() *fakeRunStore {
	return &fakeRunStore{nextID: 1, updates: map[int64][]map[string]any{}}
}

func (f *fakeRunStore) CreateRun(_ context.Context, _ string, fields map[string]any) (int64, error) {
	f.created = append(f.created, fields)
	id := f.nextID
	f.nextID++
	return id, nil
}

func (f *fakeRunStore) UpdateRun(_ context.Context, _ string, id int64, fields map[string]any) error {
	f.updates[id] = append(f.updates[id], fields)
	return nil
}

type fakeStore struct {
	upserts [][]store.Record
	fail    bool
}

func (f *fakeStore) Upsert(_ context.Context, _, _ string, records []store.Record) error {
	if f.fail {
		return errors.New("connection refused")
	}
	f.upserts = append(f.upserts, records)
	return nil
}

func (f *fakeStore) ExistingKeys(_ context.Context, _, _ string, _ []string) (map[string]bool, error) {
	return map[string]bool{}, nil
}

type testRecord struct {
	ID   string `json:"item_id"`
	Name string `json:"name"`
}

func (r testRecord) Key() string { return r.ID }

func newTestService(rs store.RunStore, st store.Store) *Service {
	s := &Service{
		cfg:     Config{},
		batcher: store.Batcher{Store: st},
		runs:    rs,
	}
	s.openClient = func(context.Context) (*backoffice.Client, func(), error) {
		return nil, func() {}, nil
	}
	return s
}

func writeFixture(t *testing.T, rows [][]any) string {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	path := filepath.Join(t.TempDir(), "export.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func testDomain(exportPath string, exportErr error) domain {
	return domain{
		name:      "items",
		logTable:  "items_sync_logs",
		table:     "items",
		keyColumn: "item_id",
		hasPeriod: true,
		export: func(context.Context, *backoffice.Client, RunOptions) (string, error) {
			return exportPath, exportErr
		},
		transform: func(rows []spreadsheet.Row) transform.Result {
			var out transform.Result
			for _, row := range rows {
				id, _ := row["ID"].(string)
				if id == "" {
					out.Dropped++
					continue
				}
				name, _ := row["NAME"].(string)
				out.Records = append(out.Records, testRecord{ID: id, Name: name})
			}
			return out
		},
	}
}

func TestRunSuccess(t *testing.T) {
	path := writeFixture(t, [][]any{
		{"ID", "NAME"},
		{"A1", "first"},
		{"A2", "second"},
		{"", "no key"},
	})
	rs := newFakeRunStore()
	st := &fakeStore{}
	s := newTestService(rs, st)

	from := time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)
	res := s.run(context.Background(), testDomain(path, nil), RunOptions{From: from, To: from.AddDate(0, 0, 6)})

	require.True(t, res.Success)
	require.NoError(t, res.Err)
	require.Equal(t, int64(1), res.RunID)
	require.Equal(t, 3, res.Processed)
	require.Equal(t, 2, res.Inserted)
	require.Equal(t, 1, res.Dropped)
	require.Equal(t, path, res.FilePath)
	require.Greater(t, res.FileSize, int64(0))

	require.Len(t, rs.created, 1)
	require.Equal(t, "in_progress", rs.created[0]["status"])
	require.Equal(t, "manual", rs.created[0]["trigger"])
	require.Equal(t, "2024-06-02", rs.created[0]["date_from"])
	require.Equal(t, "2024-06-08", rs.created[0]["date_to"])

	require.Len(t, rs.updates[1], 1)
	final := rs.updates[1][0]
	require.Equal(t, "success", final["status"])
	require.Equal(t, 3, final["records_processed"])
	require.Equal(t, 2, final["records_inserted"])
	require.NotContains(t, final, "error_message")

	require.Len(t, st.upserts, 1)
	require.Len(t, st.upserts[0], 2)
}

func TestRunZeroRows(t *testing.T) {
	path := writeFixture(t, [][]any{{"ID", "NAME"}})
	rs := newFakeRunStore()
	st := &fakeStore{}
	s := newTestService(rs, st)

	res := s.run(context.Background(), testDomain(path, nil), RunOptions{})

	require.True(t, res.Success)
	require.Zero(t, res.Processed)
	require.Zero(t, res.Inserted)
	require.Empty(t, st.upserts)
	final := rs.updates[1][0]
	require.Equal(t, "success", final["status"])
	require.Equal(t, 0, final["records_processed"])
}

func TestRunExportFailure(t *testing.T) {
	rs := newFakeRunStore()
	s := newTestService(rs, &fakeStore{})

	res := s.run(context.Background(), testDomain("", errors.New("button not found")), RunOptions{})

	require.False(t, res.Success)
	require.Error(t, res.Err)
	final := rs.updates[1][0]
	require.Equal(t, "error", final["status"])
	require.Contains(t, final["error_message"], "button not found")
}

func TestRunUpsertFailure(t *testing.T) {
	path := writeFixture(t, [][]any{
		{"ID", "NAME"},
		{"A1", "first"},
	})
	rs := newFakeRunStore()
	s := newTestService(rs, &fakeStore{fail: true})

	res := s.run(context.Background(), testDomain(path, nil), RunOptions{})

	require.False(t, res.Success)
	require.Error(t, res.Err)
	require.Contains(t, res.Err.Error(), "connection refused")
	require.Equal(t, "error", rs.updates[1][0]["status"])
}

func TestRunAttachesToExistingLog(t *testing.T) {
	path := writeFixture(t, [][]any{{"ID", "NAME"}, {"A1", "first"}})
	rs := newFakeRunStore()
	s := newTestService(rs, &fakeStore{})

	res := s.run(context.Background(), testDomain(path, nil), RunOptions{SyncLogID: 7, Trigger: TriggerExternal})

	require.True(t, res.Success)
	require.Equal(t, int64(7), res.RunID)
	require.Empty(t, rs.created)
	require.Len(t, rs.updates[7], 2)
	require.Equal(t, "in_progress", rs.updates[7][0]["status"])
	require.Equal(t, "success", rs.updates[7][1]["status"])
}

func TestRunScheduledTrigger(t *testing.T) {
	path := writeFixture(t, [][]any{{"ID", "NAME"}})
	rs := newFakeRunStore()
	s := newTestService(rs, &fakeStore{})

	s.run(context.Background(), testDomain(path, nil), RunOptions{Trigger: TriggerScheduled})
	require.Equal(t, "scheduled", rs.created[0]["trigger"])
}
