package shared

import (
	"net/http"
	"strconv"
)

// ListFilters represents standard list filters
type ListFilters struct {
	Page    int
	Limit   int
	Search  string
	SortBy  string
	SortDir string

	// Entity specific filters
	IsActive    *bool
	CategoryID  *int64
	WarehouseID *int64
}

// FiltersFromQuery parses the common list parameters from a request.
func FiltersFromQuery(r *http.Request) ListFilters {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = DefaultPage
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > MaxLimit {
		limit = DefaultLimit
	}
	return ListFilters{
		Page:    page,
		Limit:   limit,
		Search:  r.URL.Query().Get("search"),
		SortBy:  r.URL.Query().Get("sort"),
		SortDir: r.URL.Query().Get("dir"),
	}
}

// ListResponse is the paginated listing envelope.
type ListResponse[T any] struct {
	Items []T `json:"items"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}
