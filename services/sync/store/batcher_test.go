package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeRecord struct {
	Code  string `json:"request_code"`
	Value float64
}

func (r fakeRecord) Key() string { return r.Code }

type fakeStore struct {
	existing    map[string]bool
	existingErr error
	failBatches map[int]bool // index of Upsert call -> should fail
	calls       [][]Record
}

func (s *fakeStore) Upsert(ctx context.Context, table, keyColumn string, records []Record) error {
	call := len(s.calls)
	s.calls = append(s.calls, records)
	if s.failBatches[call] {
		return fmt.Errorf("destination rejected batch %d", call)
	}
	return nil
}

func (s *fakeStore) ExistingKeys(ctx context.Context, table, keyColumn string, keys []string) (map[string]bool, error) {
	if s.existingErr != nil {
		return nil, s.existingErr
	}
	return s.existing, nil
}

func makeRecords(n int) []Record {
	records := make([]Record, n)
	for i := range records {
		records[i] = fakeRecord{Code: fmt.Sprintf("REQ-%d", i)}
	}
	return records
}

func TestBatcherSplitsBatches(t *testing.T) {
	fake := &fakeStore{existing: map[string]bool{}}
	b := Batcher{Store: fake, BatchSize: 2}

	out := b.Upsert(context.Background(), "service_requests", "request_code", makeRecords(5))

	require.Len(t, fake.calls, 3)
	require.Equal(t, 5, out.Inserted)
	require.Equal(t, 0, out.Updated)
	require.Equal(t, 0, out.Failed)
	require.Equal(t, 5, out.Succeeded)
}

func TestBatcherClassifiesUpdates(t *testing.T) {
	records := makeRecords(3)
	fake := &fakeStore{existing: map[string]bool{"REQ-0": true, "REQ-2": true}}
	b := Batcher{Store: fake}

	out := b.Upsert(context.Background(), "service_requests", "request_code", records)
	require.Equal(t, 1, out.Inserted)
	require.Equal(t, 2, out.Updated)

	// a second run over the same keys is pure updates
	fake2 := &fakeStore{existing: map[string]bool{"REQ-0": true, "REQ-1": true, "REQ-2": true}}
	out = Batcher{Store: fake2}.Upsert(context.Background(), "service_requests", "request_code", records)
	require.Equal(t, 0, out.Inserted)
	require.Equal(t, 3, out.Updated)
	require.Equal(t, 3, out.Succeeded)
}

func TestBatcherFailureIsolation(t *testing.T) {
	// 3 batches of 2; the middle one fails
	fake := &fakeStore{
		existing:    map[string]bool{},
		failBatches: map[int]bool{1: true},
	}
	b := Batcher{Store: fake, BatchSize: 2}

	out := b.Upsert(context.Background(), "service_requests", "request_code", makeRecords(6))

	// batches 1 and 3 still attempted
	require.Len(t, fake.calls, 3)
	require.Equal(t, 4, out.Succeeded)
	require.Equal(t, 2, out.Failed)
	require.Len(t, out.Errors, 1)
	require.Contains(t, out.Errors[0], "batch 1")

	// a failed batch abandons the insert/update split
	require.Equal(t, 0, out.Inserted)
	require.Equal(t, 0, out.Updated)
}

func TestBatcherAllBatchesFail(t *testing.T) {
	fake := &fakeStore{
		existing:    map[string]bool{},
		failBatches: map[int]bool{0: true, 1: true},
	}
	b := Batcher{Store: fake, BatchSize: 2}

	out := b.Upsert(context.Background(), "service_requests", "request_code", makeRecords(4))
	require.Equal(t, 0, out.Succeeded)
	require.Equal(t, 4, out.Failed)
}

func TestBatcherClassificationFailureIsNotFatal(t *testing.T) {
	fake := &fakeStore{existingErr: fmt.Errorf("store briefly down")}
	b := Batcher{Store: fake, BatchSize: 10}

	out := b.Upsert(context.Background(), "service_requests", "request_code", makeRecords(3))
	require.Equal(t, 3, out.Succeeded)
	require.Equal(t, 0, out.Failed)
	// without classification everything is reported as inserted
	require.Equal(t, 3, out.Inserted)
}

func TestBatcherCollectsAtMostTenErrors(t *testing.T) {
	fail := map[int]bool{}
	for i := 0; i < 15; i++ {
		fail[i] = true
	}
	fake := &fakeStore{existing: map[string]bool{}, failBatches: fail}
	b := Batcher{Store: fake, BatchSize: 1}

	out := b.Upsert(context.Background(), "service_requests", "request_code", makeRecords(15))
	require.Equal(t, 15, out.Failed)
	require.Len(t, out.Errors, 10)
}

func TestBatcherEmptyInput(t *testing.T) {
	fake := &fakeStore{}
	out := Batcher{Store: fake}.Upsert(context.Background(), "service_requests", "request_code", nil)
	require.Zero(t, out.Succeeded)
	require.Empty(t, fake.calls)
}
