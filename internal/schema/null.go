package schema

import (
	"strings"
	"time"
)

// Zero values become SQL NULLs on the wire; the bulk-insert channel passes
// nil through as NULL.

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

func nullInt(n int) any {
	if n == 0 {
		return nil
	}
	return n
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func lower(s string) string { return strings.ToLower(s) }
