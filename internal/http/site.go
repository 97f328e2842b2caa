package httpapp

import (
	"encoding/xml"
	"fmt"
	"net/http"

	"github.com/alphabot-ai/inkwell/internal/store"
)

const sitemapLimit = 500

type sitemapURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	ChangeFreq string `xml:"changefreq,omitempty"`
	Priority   string `xml:"priority,omitempty"`
}

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}

func (s *Server) serveRobotsTxt(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `User-agent: *
Allow: /api/blogs/
Allow: /api/categories/
Allow: /api/tags/
Crawl-delay: 1

Sitemap: %s/sitemap.xml

Disallow: /api/token/
Disallow: /api/users/
Disallow: /api/admin/
Disallow: /api/follows/
`, baseURL(r))
}

// serveSitemap lists the most recent published blogs. Anonymous visibility
// applies, so drafts never appear.
func (s *Server) serveSitemap(w http.ResponseWriter, r *http.Request) {
	blogs, _, err := s.store.ListBlogs(r.Context(), store.BlogFilter{
		Ordering: "-updated_at",
		Page:     store.Page{Limit: sitemapLimit},
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("sitemap: listing blogs failed")
		blogs = nil
	}

	base := baseURL(r)
	set := urlSet{XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9"}
	set.URLs = append(set.URLs,
		sitemapURL{Loc: base + "/api/blogs/", ChangeFreq: "hourly", Priority: "1.0"},
		sitemapURL{Loc: base + "/api/categories/", ChangeFreq: "daily", Priority: "0.6"},
	)
	for _, b := range blogs {
		set.URLs = append(set.URLs, sitemapURL{
			Loc:        base + "/api/blogs/" + b.Slug + "/",
			LastMod:    b.UpdatedAt.UTC().Format("2006-01-02"),
			ChangeFreq: "weekly",
			Priority:   "0.7",
		})
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(xml.Header))
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	_ = enc.Encode(set)
}
