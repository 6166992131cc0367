package influx

import (
	"fmt"
	"strings"
	"time"
)

// fluxString quotes a value for safe embedding in a Flux query.
func fluxString(v string) string {
	escaped := strings.ReplaceAll(v, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	return `"` + escaped + `"`
}

// fluxTime renders a timestamp as an RFC3339 UTC literal.
func fluxTime(t time.Time) string {
	return fluxString(t.UTC().Format(time.RFC3339Nano))
}

// orPredicate builds `r["key"] == "a" or r["key"] == "b" ...`.
func orPredicate(key string, values []string) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, fmt.Sprintf(`r[%s] == %s`, fluxString(key), fluxString(v)))
	}
	return strings.Join(parts, " or ")
}
