package persistent

import "strings"

func joinColumns(columns []string) string {
	return strings.Join(columns, ", ")
}

// nonNil keeps NOT NULL array columns from receiving a NULL for an empty slice.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
