package sqlstore

import (
	"strconv"
	"strings"
)

// Dialect captures the few differences between the supported SQL drivers.
type Dialect struct {
	Name string
	// Numbered placeholders ($1, $2, ...) instead of '?'.
	Numbered bool
	// Returning fetches generated ids with RETURNING instead of LastInsertId.
	Returning bool
}

var (
	MySQL    = Dialect{Name: "mysql"}
	Postgres = Dialect{Name: "postgres", Numbered: true, Returning: true}
	SQLite   = Dialect{Name: "sqlite"}
)

// Rebind rewrites '?' placeholders for the dialect.
func (d Dialect) Rebind(q string) string {
	if !d.Numbered {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
