package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"opscrm-backend/lib/telemetry"
)

// PostgrestClient talks to Supabase's PostgREST endpoint with the
// service-role key. This is the default store: the sync jobs usually
// run far from the database and only the REST surface is reachable.
type PostgrestClient struct {
	http *resty.Client
}

var _ Store = (*PostgrestClient)(nil)
var _ RunStore = (*PostgrestClient)(nil)

func NewPostgrestClient(baseURL, serviceRoleKey string) *PostgrestClient {
	client := resty.New()
	client.SetBaseURL(strings.TrimRight(baseURL, "/") + "/rest/v1")
	client.SetHeader("apikey", serviceRoleKey)
	client.SetAuthToken(serviceRoleKey)
	client.SetHeader("content-type", "application/json")
	client.SetTimeout(time.Second * 30)

	telemetry.InstrumentResty(client, "store/postgrest")

	return &PostgrestClient{http: client}
}

func (c *PostgrestClient) Upsert(ctx context.Context, table, keyColumn string, records []Record) error {
	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("on_conflict", keyColumn).
		SetHeader("prefer", "resolution=merge-duplicates,return=minimal").
		SetBody(records).
		Post("/" + table)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", table, err)
	}
	if res.IsError() {
		return fmt.Errorf("upsert %s: %s: %s", table, res.Status(), bodySnippet(res.Body()))
	}
	return nil
}

// PostgREST `in` filters live in the query string, so the key list is
// chunked to keep URLs bounded
const existingKeysChunk = 100

var pgrestEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// quoteFilterValue quotes a value for a PostgREST in.(...) filter.
// PostgREST uses its own double-quote escaping; Go-style %q would
// mangle commas-adjacent values and non-ASCII keys.
func quoteFilterValue(v string) string {
	return `"` + pgrestEscaper.Replace(v) + `"`
}

func (c *PostgrestClient) ExistingKeys(ctx context.Context, table, keyColumn string, keys []string) (map[string]bool, error) {
	existing := make(map[string]bool, len(keys))

	for start := 0; start < len(keys); start += existingKeysChunk {
		end := start + existingKeysChunk
		if end > len(keys) {
			end = len(keys)
		}

		quoted := make([]string, 0, end-start)
		for _, k := range keys[start:end] {
			quoted = append(quoted, quoteFilterValue(k))
		}

		res, err := c.http.R().
			SetContext(ctx).
			SetQueryParam("select", keyColumn).
			SetQueryParam(keyColumn, fmt.Sprintf("in.(%s)", strings.Join(quoted, ","))).
			Get("/" + table)
		if err != nil {
			return nil, fmt.Errorf("query existing keys on %s: %w", table, err)
		}
		if res.IsError() {
			return nil, fmt.Errorf("query existing keys on %s: %s: %s", table, res.Status(), bodySnippet(res.Body()))
		}

		var rows []map[string]any
		if err := json.Unmarshal(res.Body(), &rows); err != nil {
			return nil, fmt.Errorf("query existing keys on %s: %w", table, err)
		}
		for _, row := range rows {
			if key, ok := row[keyColumn].(string); ok {
				existing[key] = true
			}
		}
	}
	return existing, nil
}

func (c *PostgrestClient) CreateRun(ctx context.Context, table string, fields map[string]any) (int64, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("prefer", "return=representation").
		SetBody([]map[string]any{fields}).
		Post("/" + table)
	if err != nil {
		return 0, fmt.Errorf("create run in %s: %w", table, err)
	}
	if res.IsError() {
		return 0, fmt.Errorf("create run in %s: %s: %s", table, res.Status(), bodySnippet(res.Body()))
	}

	var rows []struct {
		Id int64 `json:"id"`
	}
	if err := json.Unmarshal(res.Body(), &rows); err != nil {
		return 0, fmt.Errorf("create run in %s: %w", table, err)
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("create run in %s: no row returned", table)
	}
	return rows[0].Id, nil
}

func (c *PostgrestClient) UpdateRun(ctx context.Context, table string, id int64, fields map[string]any) error {
	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("id", fmt.Sprintf("eq.%d", id)).
		SetHeader("prefer", "return=minimal").
		SetBody(fields).
		Patch("/" + table)
	if err != nil {
		return fmt.Errorf("update run %d in %s: %w", id, table, err)
	}
	if res.IsError() {
		return fmt.Errorf("update run %d in %s: %s: %s", id, table, res.Status(), bodySnippet(res.Body()))
	}
	return nil
}

func bodySnippet(body []byte) string {
	const limit = 300
	s := string(body)
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
