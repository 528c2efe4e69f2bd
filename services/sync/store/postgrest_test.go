package store

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPostgrestUpsert(t *testing.T) {
	var gotPath, gotConflict, gotPrefer, gotApikey string
	var gotBody []map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotConflict = r.URL.Query().Get("on_conflict")
		gotPrefer = r.Header.Get("Prefer")
		gotApikey = r.Header.Get("Apikey")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := NewPostgrestClient(srv.URL, "service-role-key")
	err := client.Upsert(context.Background(), "service_requests", "request_code", []Record{
		fakeRecord{Code: "REQ-1", Value: 10},
		fakeRecord{Code: "REQ-2", Value: 20},
	})
	require.NoError(t, err)

	require.Equal(t, "/rest/v1/service_requests", gotPath)
	require.Equal(t, "request_code", gotConflict)
	require.Equal(t, "resolution=merge-duplicates,return=minimal", gotPrefer)
	require.Equal(t, "service-role-key", gotApikey)
	require.Len(t, gotBody, 2)
	require.Equal(t, "REQ-1", gotBody[0]["request_code"])
}

func TestPostgrestUpsertError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"message":"duplicate key value"}`))
	}))
	defer srv.Close()

	client := NewPostgrestClient(srv.URL, "k")
	err := client.Upsert(context.Background(), "tasks", "task_id", []Record{fakeRecord{Code: "T1"}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "tasks")
	require.Contains(t, err.Error(), "duplicate key value")
}

func TestPostgrestExistingKeys(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "task_id", r.URL.Query().Get("select"))
		require.Contains(t, r.URL.Query().Get("task_id"), "in.(")
		w.Write([]byte(`[{"task_id":"T1"},{"task_id":"T3"}]`))
	}))
	defer srv.Close()

	client := NewPostgrestClient(srv.URL, "k")
	existing, err := client.ExistingKeys(context.Background(), "tasks", "task_id", []string{"T1", "T2", "T3"})
	require.NoError(t, err)
	require.Equal(t, map[string]bool{"T1": true, "T3": true}, existing)
}

func TestPostgrestExistingKeysFilterQuoting(t *testing.T) {
	var filter string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		filter = r.URL.Query().Get("request_code")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := NewPostgrestClient(srv.URL, "k")
	_, err := client.ExistingKeys(context.Background(), "service_requests", "request_code",
		[]string{`REQ,1`, `REQ"2`, `REQ\3`, "PEDIDO-Ó"})
	require.NoError(t, err)

	// commas, quotes and backslashes follow PostgREST's own escaping;
	// non-ASCII keys pass through literally
	require.Equal(t, `in.("REQ,1","REQ\"2","REQ\\3","PEDIDO-Ó")`, filter)
}

func TestPostgrestRunLifecycle(t *testing.T) {
	var patched map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			require.Equal(t, "/rest/v1/sync_logs", r.URL.Path)
			require.Equal(t, "return=representation", r.Header.Get("Prefer"))
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`[{"id": 42, "status": "in_progress"}]`))
		case http.MethodPatch:
			require.Equal(t, "eq.42", r.URL.Query().Get("id"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&patched))
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Fatalf("unexpected method %s", r.Method)
		}
	}))
	defer srv.Close()

	client := NewPostgrestClient(srv.URL, "k")

	id, err := client.CreateRun(context.Background(), "sync_logs", map[string]any{
		"status":  "in_progress",
		"trigger": "manual",
	})
	require.NoError(t, err)
	require.Equal(t, int64(42), id)

	err = client.UpdateRun(context.Background(), "sync_logs", id, map[string]any{
		"status": "success",
	})
	require.NoError(t, err)
	require.Equal(t, "success", patched["status"])
}
