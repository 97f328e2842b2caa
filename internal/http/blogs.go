package httpapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/alphabot-ai/inkwell/internal/auth"
	"github.com/alphabot-ai/inkwell/internal/model"
	"github.com/alphabot-ai/inkwell/internal/slug"
	"github.com/alphabot-ai/inkwell/internal/store"
)

const (
	maxTitleLen   = 200
	maxSlugLen    = 200
	maxCaptionLen = 200
	maxExcerptLen = 500
	excerptRunes  = 150
)

// optionalID distinguishes an absent field from an explicit null.
type optionalID struct {
	Set   bool
	Value *int64
}

func (o *optionalID) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		o.Value = nil
		return nil
	}
	var v int64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

type blogInput struct {
	Title         *string    `json:"title"`
	Content       *string    `json:"content"`
	FeaturedImage *string    `json:"featured_image"`
	ImageCaption  *string    `json:"image_caption"`
	CategoryID    optionalID `json:"category_id" swaggertype:"integer"`
	TagIDs        *[]int64   `json:"tag_ids"`
	IsPublished   *bool      `json:"is_published"`
	IsFeatured    *bool      `json:"is_featured"`
	Excerpt       *string    `json:"excerpt"`

	blogEcho
}

// blogEcho holds the response-only keys of a blog. Writes accept and discard
// them so a fetched representation can be sent back as is.
type blogEcho struct {
	ID            json.RawMessage `json:"id" swaggerignore:"true"`
	Slug          json.RawMessage `json:"slug" swaggerignore:"true"`
	Author        json.RawMessage `json:"author" swaggerignore:"true"`
	CreatedAt     json.RawMessage `json:"created_at" swaggerignore:"true"`
	UpdatedAt     json.RawMessage `json:"updated_at" swaggerignore:"true"`
	Category      json.RawMessage `json:"category" swaggerignore:"true"`
	Tags          json.RawMessage `json:"tags" swaggerignore:"true"`
	CommentsCount json.RawMessage `json:"comments_count" swaggerignore:"true"`
	ViewCount     json.RawMessage `json:"view_count" swaggerignore:"true"`
	Comments      json.RawMessage `json:"comments" swaggerignore:"true"`
}

// apply copies the fields present in in onto b. Unless partial, title and
// content must be present.
func (in blogInput) apply(b *model.Blog, partial bool) map[string]string {
	fields := map[string]string{}
	if in.Title != nil {
		b.Title = strings.TrimSpace(*in.Title)
	} else if !partial {
		b.Title = ""
	}
	if in.Content != nil {
		b.Content = *in.Content
	} else if !partial {
		b.Content = ""
	}
	if in.FeaturedImage != nil {
		img := strings.TrimSpace(*in.FeaturedImage)
		b.FeaturedImage = &img
		if img == "" {
			b.FeaturedImage = nil
		}
	}
	if in.ImageCaption != nil {
		b.ImageCaption = *in.ImageCaption
	}
	if in.CategoryID.Set {
		b.CategoryID = in.CategoryID.Value
	}
	if in.IsPublished != nil {
		b.IsPublished = *in.IsPublished
	}
	if in.IsFeatured != nil {
		b.IsFeatured = *in.IsFeatured
	}
	if in.Excerpt != nil {
		b.Excerpt = strings.TrimSpace(*in.Excerpt)
	}

	switch {
	case b.Title == "":
		fields["title"] = "This field is required."
	case utf8.RuneCountInString(b.Title) > maxTitleLen:
		fields["title"] = fmt.Sprintf("Ensure this field has no more than %d characters.", maxTitleLen)
	}
	if strings.TrimSpace(b.Content) == "" {
		fields["content"] = "This field is required."
	}
	if utf8.RuneCountInString(b.ImageCaption) > maxCaptionLen {
		fields["image_caption"] = fmt.Sprintf("Ensure this field has no more than %d characters.", maxCaptionLen)
	}
	if utf8.RuneCountInString(b.Excerpt) > maxExcerptLen {
		fields["excerpt"] = fmt.Sprintf("Ensure this field has no more than %d characters.", maxExcerptLen)
	}
	if b.Excerpt == "" {
		b.Excerpt = makeExcerpt(b.Content)
	}
	return fields
}

// makeExcerpt keeps the first 150 characters of content, marking the cut.
func makeExcerpt(content string) string {
	if utf8.RuneCountInString(content) <= excerptRunes {
		return content
	}
	runes := []rune(content)
	return string(runes[:excerptRunes]) + "..."
}

// uniqueBlogSlug derives a slug from title, appending -2, -3, ... until it
// is free.
func (s *Server) uniqueBlogSlug(ctx context.Context, title string) (string, error) {
	base := slug.Truncate(slug.Make(title), maxSlugLen)
	if base == "" {
		base = "blog"
	}
	candidate := base
	for n := 2; ; n++ {
		exists, err := s.store.SlugExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		candidate = slug.WithSuffix(base, n, maxSlugLen)
	}
}

func (s *Server) checkCategory(ctx context.Context, id *int64, fields map[string]string) error {
	if id == nil {
		return nil
	}
	if _, err := s.store.GetCategory(ctx, *id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fields["category_id"] = fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", *id)
			return nil
		}
		return err
	}
	return nil
}

func canView(b model.Blog, viewer *auth.Principal) bool {
	return b.IsPublished || (viewer != nil && viewer.UserID == b.AuthorID)
}

func viewerID(p *auth.Principal) int64 {
	if p == nil {
		return 0
	}
	return p.UserID
}

// splitSearch breaks a search parameter into terms on whitespace and commas.
func splitSearch(q string) []string {
	return strings.FieldsFunc(q, func(r rune) bool { return unicode.IsSpace(r) || r == ',' })
}

// handleListBlogs godoc
//
//	@Summary		List blogs
//	@Description	Published blogs plus, for an authenticated caller, their own drafts.
//	@Tags			Blogs
//	@Produce		json
//	@Param			category	query		string	false	"Category slug"
//	@Param			tag			query		string	false	"Tag slug"
//	@Param			featured	query		string	false	"Only featured blogs when true"
//	@Param			author		query		int		false	"Author user ID"
//	@Param			search		query		string	false	"Terms matched against title, content, tags and category"
//	@Param			ordering	query		string	false	"created_at, updated_at or view_count, prefixed with - for descending"
//	@Param			page		query		int		false	"Page number"
//	@Param			page_size	query		int		false	"Page size"
//	@Success		200			{object}	map[string]interface{}	"Page of blogs"
//	@Router			/api/blogs/ [get]
func (s *Server) handleListBlogs(w http.ResponseWriter, r *http.Request) {
	viewer, ok := s.optionalAuth(w, r)
	if !ok {
		return
	}
	page, ok := s.parsePage(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	f := store.BlogFilter{
		ViewerID:     viewerID(viewer),
		CategorySlug: q.Get("category"),
		TagSlug:      q.Get("tag"),
		FeaturedOnly: q.Get("featured") == "true",
		SearchTerms:  splitSearch(q.Get("search")),
		Ordering:     q.Get("ordering"),
		Page:         page.window(),
	}
	if v := q.Get("author"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeValidation(w, map[string]string{"author": "Enter a number."})
			return
		}
		f.AuthorID = id
		if id <= 0 {
			writePage(w, r, page, []model.Blog{}, 0)
			return
		}
	}

	blogs, total, err := s.store.ListBlogs(r.Context(), f)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writePage(w, r, page, blogs, total)
}

// handleCreateBlog godoc
//
//	@Summary		Create a blog
//	@Description	The caller becomes the author. Slug and excerpt are generated.
//	@Tags			Blogs
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			blog	body		blogInput	true	"Blog fields"
//	@Success		201		{object}	model.Blog
//	@Failure		400		{object}	map[string]interface{}	"Validation error"
//	@Failure		401		{object}	map[string]string
//	@Failure		429		{object}	map[string]string	"Rate limited"
//	@Router			/api/blogs/ [post]
func (s *Server) handleCreateBlog(w http.ResponseWriter, r *http.Request) {
	p, ok := s.requireAuth(w, r)
	if !ok {
		return
	}
	if !s.allowRateLimit(w, r, "blog", s.cfg.RateLimits.BlogPerMinute, p.UserID) {
		return
	}
	var in blogInput
	if err := readJSON(r.Body, &in); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	blog := model.Blog{AuthorID: p.UserID, IsPublished: true}
	fields := in.apply(&blog, false)
	if err := s.checkCategory(r.Context(), blog.CategoryID, fields); err != nil {
		s.internalError(w, r, err)
		return
	}
	if len(fields) > 0 {
		writeValidation(w, fields)
		return
	}

	slugValue, err := s.uniqueBlogSlug(r.Context(), blog.Title)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	blog.Slug = slugValue
	blog.CreatedAt = time.Now()
	blog.UpdatedAt = blog.CreatedAt

	var tagIDs []int64
	if in.TagIDs != nil {
		tagIDs = *in.TagIDs
	}
	id, err := s.store.CreateBlog(r.Context(), &blog, tagIDs)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	created, err := s.store.GetBlog(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.log.Info().Int64("blog_id", id).Str("slug", created.Slug).Int64("author_id", p.UserID).Msg("blog created")
	writeJSON(w, http.StatusCreated, created)
}

// handleGetBlog godoc
//
//	@Summary		Get a blog
//	@Description	Returns the blog with its approved comment tree and records a view.
//	@Tags			Blogs
//	@Produce		json
//	@Param			slug	path		string	true	"Blog slug"
//	@Success		200		{object}	model.BlogDetail
//	@Failure		404		{object}	map[string]string
//	@Router			/api/blogs/{slug}/ [get]
func (s *Server) handleGetBlog(w http.ResponseWriter, r *http.Request) {
	viewer, ok := s.optionalAuth(w, r)
	if !ok {
		return
	}
	blog, err := s.store.GetBlogBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if !canView(blog, viewer) {
		notFound(w)
		return
	}

	views, err := s.store.IncrementView(r.Context(), model.ContentTypeBlog, blog.ID)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	blogViews.Inc()
	blog.ViewCount = views.ViewCount

	comments, err := s.store.ListApprovedComments(r.Context(), blog.ID)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.BlogDetail{Blog: blog, Comments: buildCommentTree(comments)})
}

// loadOwnBlog fetches the blog named in the path and checks that p wrote
// it. Drafts of other authors are reported as missing.
func (s *Server) loadOwnBlog(w http.ResponseWriter, r *http.Request, p auth.Principal) (model.Blog, bool) {
	blog, err := s.store.GetBlogBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return model.Blog{}, false
	}
	if !canView(blog, &p) {
		notFound(w)
		return model.Blog{}, false
	}
	if blog.AuthorID != p.UserID {
		forbidden(w, "only the author may modify this blog")
		return model.Blog{}, false
	}
	return blog, true
}

// handleUpdateBlog godoc
//
//	@Summary		Update a blog
//	@Description	Author only. PUT requires title and content; PATCH changes only the fields sent. tag_ids, when present, replaces the tag set.
//	@Tags			Blogs
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			slug	path		string		true	"Blog slug"
//	@Param			blog	body		blogInput	true	"Blog fields"
//	@Success		200		{object}	model.Blog
//	@Failure		400		{object}	map[string]interface{}	"Validation error"
//	@Failure		403		{object}	map[string]string
//	@Failure		404		{object}	map[string]string
//	@Router			/api/blogs/{slug}/ [put]
//	@Router			/api/blogs/{slug}/ [patch]
func (s *Server) handleUpdateBlog(w http.ResponseWriter, r *http.Request) {
	p, ok := s.requireAuth(w, r)
	if !ok {
		return
	}
	blog, ok := s.loadOwnBlog(w, r, p)
	if !ok {
		return
	}
	var in blogInput
	if err := readJSON(r.Body, &in); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	fields := in.apply(&blog, r.Method == http.MethodPatch)
	if in.CategoryID.Set {
		if err := s.checkCategory(r.Context(), blog.CategoryID, fields); err != nil {
			s.internalError(w, r, err)
			return
		}
	}
	if len(fields) > 0 {
		writeValidation(w, fields)
		return
	}
	blog.UpdatedAt = time.Now()

	var tagIDs []int64
	if in.TagIDs != nil {
		tagIDs = *in.TagIDs
	}
	if err := s.store.UpdateBlog(r.Context(), &blog, tagIDs, in.TagIDs != nil); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	updated, err := s.store.GetBlog(r.Context(), blog.ID)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// handleDeleteBlog godoc
//
//	@Summary		Delete a blog
//	@Description	Author only. Comments and view counts go with it.
//	@Tags			Blogs
//	@Security		BearerAuth
//	@Param			slug	path	string	true	"Blog slug"
//	@Success		204
//	@Failure		403	{object}	map[string]string
//	@Failure		404	{object}	map[string]string
//	@Router			/api/blogs/{slug}/ [delete]
func (s *Server) handleDeleteBlog(w http.ResponseWriter, r *http.Request) {
	p, ok := s.requireAuth(w, r)
	if !ok {
		return
	}
	blog, ok := s.loadOwnBlog(w, r, p)
	if !ok {
		return
	}
	if err := s.store.DeleteBlog(r.Context(), blog.ID); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.log.Info().Int64("blog_id", blog.ID).Str("slug", blog.Slug).Msg("blog deleted")
	w.WriteHeader(http.StatusNoContent)
}

// handleBlogAnalytics godoc
//
//	@Summary	View statistics of a blog
//	@Tags		Blogs
//	@Produce	json
//	@Security	BearerAuth
//	@Param		slug	path		string	true	"Blog slug"
//	@Success	200		{object}	map[string]interface{}	"view_count and last_viewed"
//	@Failure	403		{object}	map[string]string
//	@Failure	404		{object}	map[string]string
//	@Router		/api/blogs/{slug}/analytics/ [get]
func (s *Server) handleBlogAnalytics(w http.ResponseWriter, r *http.Request) {
	p, ok := s.requireAuth(w, r)
	if !ok {
		return
	}
	blog, err := s.store.GetBlogBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if blog.AuthorID != p.UserID && !p.IsStaff {
		if !canView(blog, &p) {
			notFound(w)
			return
		}
		forbidden(w, "only the author may view analytics")
		return
	}

	resp := map[string]any{"view_count": 0, "last_viewed": nil}
	a, err := s.store.GetAnalytics(r.Context(), model.ContentTypeBlog, blog.ID)
	switch {
	case err == nil:
		resp["view_count"] = a.ViewCount
		resp["last_viewed"] = a.LastViewed
	case !errors.Is(err, store.ErrNotFound):
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSearch godoc
//
//	@Summary		Search blogs
//	@Description	Matches q against title, content, tag names, category name and author username.
//	@Tags			Blogs
//	@Produce		json
//	@Param			q			query		string	false	"Search text"
//	@Param			page		query		int		false	"Page number"
//	@Param			page_size	query		int		false	"Page size"
//	@Success		200			{object}	map[string]interface{}	"Page of blogs"
//	@Router			/api/search/ [get]
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	viewer, ok := s.optionalAuth(w, r)
	if !ok {
		return
	}
	page, ok := s.parsePage(w, r)
	if !ok {
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writePage(w, r, page, []model.Blog{}, 0)
		return
	}
	blogs, total, err := s.store.ListBlogs(r.Context(), store.BlogFilter{
		ViewerID:     viewerID(viewer),
		SearchTerms:  []string{query},
		SearchAuthor: true,
		Page:         page.window(),
	})
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writePage(w, r, page, blogs, total)
}
