package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore writes straight to Postgres over a pooled connection. Used
// when a database DSN is configured, typically for jobs colocated with
// the database or for local development against a plain Postgres.
type PGStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PGStore)(nil)
var _ RunStore = (*PGStore)(nil)

func NewPGStore(ctx context.Context, dsn string) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	return &PGStore{pool: pool}, nil
}

func (s *PGStore) Close() {
	s.pool.Close()
}

// records marshal through JSON so the SQL path and the PostgREST path
// write exactly the same column set
func recordColumns(records []Record) ([]string, []map[string]any, error) {
	maps := make([]map[string]any, len(records))
	columns := map[string]bool{}
	for i, r := range records {
		raw, err := json.Marshal(r)
		if err != nil {
			return nil, nil, err
		}
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, nil, err
		}
		maps[i] = m
		for col := range m {
			columns[col] = true
		}
	}

	cols := make([]string, 0, len(columns))
	for col := range columns {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols, maps, nil
}

func buildUpsert(table, keyColumn string, records []Record) (string, []any, error) {
	cols, maps, err := recordColumns(records)
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	args := make([]any, 0, len(cols)*len(maps))

	quotedCols := make([]string, len(cols))
	for i, col := range cols {
		quotedCols[i] = pgx.Identifier{col}.Sanitize()
	}
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ",
		pgx.Identifier{table}.Sanitize(), strings.Join(quotedCols, ", "))

	arg := 1
	for i, m := range maps {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for j, col := range cols {
			if j > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", arg)
			args = append(args, m[col])
			arg++
		}
		sb.WriteString(")")
	}

	fmt.Fprintf(&sb, " ON CONFLICT (%s) DO UPDATE SET ", pgx.Identifier{keyColumn}.Sanitize())
	first := true
	for _, col := range cols {
		if col == keyColumn {
			continue
		}
		if !first {
			sb.WriteString(", ")
		}
		first = false
		quoted := pgx.Identifier{col}.Sanitize()
		fmt.Fprintf(&sb, "%s = EXCLUDED.%s", quoted, quoted)
	}

	return sb.String(), args, nil
}

func (s *PGStore) Upsert(ctx context.Context, table, keyColumn string, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	query, args, err := buildUpsert(table, keyColumn, records)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", table, err)
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert %s: %w", table, err)
	}
	return nil
}

func buildExistingKeys(table, keyColumn string) string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s = ANY($1)",
		pgx.Identifier{keyColumn}.Sanitize(),
		pgx.Identifier{table}.Sanitize(),
		pgx.Identifier{keyColumn}.Sanitize())
}

func (s *PGStore) ExistingKeys(ctx context.Context, table, keyColumn string, keys []string) (map[string]bool, error) {
	rows, err := s.pool.Query(ctx, buildExistingKeys(table, keyColumn), keys)
	if err != nil {
		return nil, fmt.Errorf("query existing keys on %s: %w", table, err)
	}
	defer rows.Close()

	existing := make(map[string]bool, len(keys))
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		existing[key] = true
	}
	return existing, rows.Err()
}

func buildCreateRun(table string, fields map[string]any) (string, []any) {
	cols := make([]string, 0, len(fields))
	for col := range fields {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	quoted := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, col := range cols {
		quoted[i] = pgx.Identifier{col}.Sanitize()
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = fields[col]
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id",
		pgx.Identifier{table}.Sanitize(),
		strings.Join(quoted, ", "),
		strings.Join(placeholders, ", "))
	return query, args
}

func (s *PGStore) CreateRun(ctx context.Context, table string, fields map[string]any) (int64, error) {
	query, args := buildCreateRun(table, fields)

	var id int64
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("create run in %s: %w", table, err)
	}
	return id, nil
}

func buildUpdateRun(table string, id int64, fields map[string]any) (string, []any) {
	cols := make([]string, 0, len(fields))
	for col := range fields {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	assignments := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, col := range cols {
		assignments[i] = fmt.Sprintf("%s = $%d", pgx.Identifier{col}.Sanitize(), i+1)
		args = append(args, fields[col])
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d",
		pgx.Identifier{table}.Sanitize(),
		strings.Join(assignments, ", "),
		len(args))
	return query, args
}

func (s *PGStore) UpdateRun(ctx context.Context, table string, id int64, fields map[string]any) error {
	query, args := buildUpdateRun(table, id, fields)

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update run %d in %s: %w", id, table, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update run %d in %s: no such row", id, table)
	}
	return nil
}
