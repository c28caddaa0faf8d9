package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
)

// stringOrDash returns "-" when the input is empty/whitespace
func stringOrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func dashToEmpty(s string) string {
	if s == "-" {
		return ""
	}
	return s
}

// encodeList stores a string list as a JSON array; nil becomes "[]".
func encodeList(v []string) string {
	if len(v) == 0 {
		return "[]"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// decodeList is lenient: anything that is not a JSON string array yields nil.
func decodeList(raw sql.NullString) []string {
	if !raw.Valid || strings.TrimSpace(raw.String) == "" {
		return nil
	}
	var out []string
	if json.Unmarshal([]byte(raw.String), &out) != nil {
		return nil
	}
	return out
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// insert runs an INSERT and returns the generated id.
func insert(ctx context.Context, db querier, d Dialect, q string, args ...any) (int64, error) {
	if d.Returning {
		var id int64
		err := db.QueryRowContext(ctx, d.Rebind(q+" RETURNING id"), args...).Scan(&id)
		return id, err
	}
	res, err := db.ExecContext(ctx, d.Rebind(q), args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
