package shared

import (
	"net/http"
	"strconv"
)

type Pagination struct {
	Limit  int
	Offset int
}

// ParsePagination reads limit/offset query parameters, falling back to
// defaultLimit and clamping to maxLimit. Malformed values are ignored.
func ParsePagination(r *http.Request, defaultLimit, maxLimit int) Pagination {
	page := Pagination{Limit: queryInt(r, "limit", defaultLimit)}
	if page.Limit <= 0 {
		page.Limit = defaultLimit
	}
	if maxLimit > 0 && page.Limit > maxLimit {
		page.Limit = maxLimit
	}
	if page.Offset = queryInt(r, "offset", 0); page.Offset < 0 {
		page.Offset = 0
	}
	return page
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
