package httpapp

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/alphabot-ai/inkwell/internal/model"
	"github.com/alphabot-ai/inkwell/internal/store"
)

// pageRequest is the page window asked for by ?page= and ?page_size=.
type pageRequest struct {
	number int
	size   int
}

func (p pageRequest) window() store.Page {
	return store.Page{Offset: (p.number - 1) * p.size, Limit: p.size}
}

// parsePage reads page (1-based) and page_size. A malformed or non-positive
// page is rejected; page_size falls back to the default and is capped.
func (s *Server) parsePage(w http.ResponseWriter, r *http.Request) (pageRequest, bool) {
	q := r.URL.Query()
	p := pageRequest{number: 1, size: s.cfg.PageSize}
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "invalid page"})
			return pageRequest{}, false
		}
		p.number = n
	}
	if n := parseIntDefault(q.Get("page_size"), 0); n > 0 {
		p.size = min(n, s.cfg.MaxPageSize)
	}
	return p, true
}

// writePage wraps one page of results in the list envelope. Asking for a page
// past the end of a non-empty result set is a 404.
func writePage[T any](w http.ResponseWriter, r *http.Request, p pageRequest, results []T, total int) {
	if p.number > 1 && (p.number-1)*p.size >= total {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "invalid page"})
		return
	}
	if results == nil {
		results = []T{}
	}
	resp := model.Page[T]{Count: total, Results: results}
	if p.number*p.size < total {
		next := pageLink(r, p.number+1)
		resp.Next = &next
	}
	if p.number > 1 {
		prev := pageLink(r, p.number-1)
		resp.Previous = &prev
	}
	writeJSON(w, http.StatusOK, resp)
}

// pageLink rebuilds the request URL pointing at page n, dropping the page
// parameter for the first page.
func pageLink(r *http.Request, n int) string {
	q := r.URL.Query()
	if n <= 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(n))
	}
	u := url.URL{Path: r.URL.Path, RawQuery: q.Encode()}
	return baseURL(r) + u.String()
}

func parseIntDefault(value string, def int) int {
	if value == "" {
		return def
	}
	if n, err := strconv.Atoi(value); err == nil {
		return n
	}
	return def
}
