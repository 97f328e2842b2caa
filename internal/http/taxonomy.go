package httpapp

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/alphabot-ai/inkwell/internal/model"
	"github.com/alphabot-ai/inkwell/internal/slug"
)

const (
	maxCategoryNameLen = 100
	maxTagNameLen      = 50
)

type categoryInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`

	// Response-only keys, accepted and discarded.
	ID        json.RawMessage `json:"id" swaggerignore:"true"`
	Slug      json.RawMessage `json:"slug" swaggerignore:"true"`
	BlogCount json.RawMessage `json:"blog_count" swaggerignore:"true"`
	CreatedAt json.RawMessage `json:"created_at" swaggerignore:"true"`
}

type tagInput struct {
	Name *string `json:"name"`

	ID   json.RawMessage `json:"id" swaggerignore:"true"`
	Slug json.RawMessage `json:"slug" swaggerignore:"true"`
}

// requireTaxonomyWriter authenticates the caller and, when taxonomy writes
// are restricted, checks for staff.
func (s *Server) requireTaxonomyWriter(w http.ResponseWriter, r *http.Request) bool {
	p, ok := s.requireAuth(w, r)
	if !ok {
		return false
	}
	if s.cfg.TaxonomyAdminOnly && !p.IsStaff {
		forbidden(w, "staff only")
		return false
	}
	return true
}

// validateName checks a category or tag name and derives its slug.
func validateName(name *string, partial bool, max int, fields map[string]string) (string, string) {
	if name == nil {
		if !partial {
			fields["name"] = "This field is required."
		}
		return "", ""
	}
	n := strings.TrimSpace(*name)
	switch {
	case n == "":
		fields["name"] = "This field may not be blank."
	case utf8.RuneCountInString(n) > max:
		fields["name"] = fmt.Sprintf("Ensure this field has no more than %d characters.", max)
	}
	s := slug.Truncate(slug.Make(n), max)
	if n != "" && s == "" {
		fields["name"] = "Name must contain at least one letter or digit."
	}
	return n, s
}

// handleListCategories godoc
//
//	@Summary	List categories
//	@Tags		Taxonomy
//	@Produce	json
//	@Param		search		query		string	false	"Terms matched against name and description"
//	@Param		page		query		int		false	"Page number"
//	@Param		page_size	query		int		false	"Page size"
//	@Success	200			{object}	map[string]interface{}	"Page of categories"
//	@Router		/api/categories/ [get]
func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	page, ok := s.parsePage(w, r)
	if !ok {
		return
	}
	search := strings.Join(splitSearch(r.URL.Query().Get("search")), " ")
	categories, total, err := s.store.ListCategories(r.Context(), search, page.window())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writePage(w, r, page, categories, total)
}

// handleCreateCategory godoc
//
//	@Summary		Create a category
//	@Description	The slug is derived from the name.
//	@Tags			Taxonomy
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			category	body		categoryInput	true	"Category"
//	@Success		201			{object}	model.Category
//	@Failure		400			{object}	map[string]interface{}	"Validation error"
//	@Failure		409			{object}	map[string]string	"Name or slug taken"
//	@Router			/api/categories/ [post]
func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	if !s.requireTaxonomyWriter(w, r) {
		return
	}
	var in categoryInput
	if err := readJSON(r.Body, &in); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	fields := map[string]string{}
	name, slugValue := validateName(in.Name, false, maxCategoryNameLen, fields)
	if len(fields) > 0 {
		writeValidation(w, fields)
		return
	}
	c := model.Category{Name: name, Slug: slugValue, CreatedAt: time.Now()}
	if in.Description != nil {
		c.Description = *in.Description
	}
	id, err := s.store.CreateCategory(r.Context(), &c)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	created, err := s.store.GetCategory(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleGetCategory godoc
//
//	@Summary	Get a category
//	@Tags		Taxonomy
//	@Produce	json
//	@Param		slug	path		string	true	"Category slug"
//	@Success	200		{object}	model.Category
//	@Failure	404		{object}	map[string]string
//	@Router		/api/categories/{slug}/ [get]
func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	c, err := s.store.GetCategoryBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// handleUpdateCategory godoc
//
//	@Summary		Update a category
//	@Description	Renaming keeps the slug.
//	@Tags			Taxonomy
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			slug		path		string			true	"Category slug"
//	@Param			category	body		categoryInput	true	"Category"
//	@Success		200			{object}	model.Category
//	@Failure		400			{object}	map[string]interface{}	"Validation error"
//	@Failure		404			{object}	map[string]string
//	@Failure		409			{object}	map[string]string
//	@Router			/api/categories/{slug}/ [put]
//	@Router			/api/categories/{slug}/ [patch]
func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	if !s.requireTaxonomyWriter(w, r) {
		return
	}
	c, err := s.store.GetCategoryBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	var in categoryInput
	if err := readJSON(r.Body, &in); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	fields := map[string]string{}
	name, _ := validateName(in.Name, r.Method == http.MethodPatch, maxCategoryNameLen, fields)
	if len(fields) > 0 {
		writeValidation(w, fields)
		return
	}
	if in.Name != nil {
		c.Name = name
	}
	if in.Description != nil {
		c.Description = *in.Description
	} else if r.Method == http.MethodPut {
		c.Description = ""
	}
	if err := s.store.UpdateCategory(r.Context(), &c); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	updated, err := s.store.GetCategory(r.Context(), c.ID)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// handleDeleteCategory godoc
//
//	@Summary		Delete a category
//	@Description	Blogs in the category are kept without one.
//	@Tags			Taxonomy
//	@Security		BearerAuth
//	@Param			slug	path	string	true	"Category slug"
//	@Success		204
//	@Failure		404	{object}	map[string]string
//	@Router			/api/categories/{slug}/ [delete]
func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if !s.requireTaxonomyWriter(w, r) {
		return
	}
	c, err := s.store.GetCategoryBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if err := s.store.DeleteCategory(r.Context(), c.ID); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListTags godoc
//
//	@Summary	List tags
//	@Tags		Taxonomy
//	@Produce	json
//	@Param		search		query		string	false	"Terms matched against name"
//	@Param		page		query		int		false	"Page number"
//	@Param		page_size	query		int		false	"Page size"
//	@Success	200			{object}	map[string]interface{}	"Page of tags"
//	@Router		/api/tags/ [get]
func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	page, ok := s.parsePage(w, r)
	if !ok {
		return
	}
	search := strings.Join(splitSearch(r.URL.Query().Get("search")), " ")
	tags, total, err := s.store.ListTags(r.Context(), search, page.window())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writePage(w, r, page, tags, total)
}

// handleCreateTag godoc
//
//	@Summary	Create a tag
//	@Tags		Taxonomy
//	@Accept		json
//	@Produce	json
//	@Security	BearerAuth
//	@Param		tag	body		tagInput	true	"Tag"
//	@Success	201	{object}	model.Tag
//	@Failure	400	{object}	map[string]interface{}	"Validation error"
//	@Failure	409	{object}	map[string]string	"Name or slug taken"
//	@Router		/api/tags/ [post]
func (s *Server) handleCreateTag(w http.ResponseWriter, r *http.Request) {
	if !s.requireTaxonomyWriter(w, r) {
		return
	}
	var in tagInput
	if err := readJSON(r.Body, &in); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	fields := map[string]string{}
	name, slugValue := validateName(in.Name, false, maxTagNameLen, fields)
	if len(fields) > 0 {
		writeValidation(w, fields)
		return
	}
	t := model.Tag{Name: name, Slug: slugValue}
	id, err := s.store.CreateTag(r.Context(), &t)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	t.ID = id
	writeJSON(w, http.StatusCreated, t)
}

// handleGetTag godoc
//
//	@Summary	Get a tag
//	@Tags		Taxonomy
//	@Produce	json
//	@Param		slug	path		string	true	"Tag slug"
//	@Success	200		{object}	model.Tag
//	@Failure	404		{object}	map[string]string
//	@Router		/api/tags/{slug}/ [get]
func (s *Server) handleGetTag(w http.ResponseWriter, r *http.Request) {
	t, err := s.store.GetTagBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// handleUpdateTag godoc
//
//	@Summary		Rename a tag
//	@Description	Renaming keeps the slug.
//	@Tags			Taxonomy
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			slug	path		string		true	"Tag slug"
//	@Param			tag		body		tagInput	true	"Tag"
//	@Success		200		{object}	model.Tag
//	@Failure		400		{object}	map[string]interface{}	"Validation error"
//	@Failure		404		{object}	map[string]string
//	@Failure		409		{object}	map[string]string
//	@Router			/api/tags/{slug}/ [put]
//	@Router			/api/tags/{slug}/ [patch]
func (s *Server) handleUpdateTag(w http.ResponseWriter, r *http.Request) {
	if !s.requireTaxonomyWriter(w, r) {
		return
	}
	t, err := s.store.GetTagBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	var in tagInput
	if err := readJSON(r.Body, &in); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	fields := map[string]string{}
	name, _ := validateName(in.Name, r.Method == http.MethodPatch, maxTagNameLen, fields)
	if len(fields) > 0 {
		writeValidation(w, fields)
		return
	}
	if in.Name != nil {
		t.Name = name
	}
	if err := s.store.UpdateTag(r.Context(), &t); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// handleDeleteTag godoc
//
//	@Summary	Delete a tag
//	@Tags		Taxonomy
//	@Security	BearerAuth
//	@Param		slug	path	string	true	"Tag slug"
//	@Success	204
//	@Failure	404	{object}	map[string]string
//	@Router		/api/tags/{slug}/ [delete]
func (s *Server) handleDeleteTag(w http.ResponseWriter, r *http.Request) {
	if !s.requireTaxonomyWriter(w, r) {
		return
	}
	t, err := s.store.GetTagBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if err := s.store.DeleteTag(r.Context(), t.ID); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
