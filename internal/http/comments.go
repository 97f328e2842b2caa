package httpapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/alphabot-ai/inkwell/internal/auth"
	"github.com/alphabot-ai/inkwell/internal/model"
	"github.com/alphabot-ai/inkwell/internal/store"
)

type commentInput struct {
	Content *string `json:"content"`
	Parent  *int64  `json:"parent"`

	// Response-only keys, accepted and discarded.
	ID        json.RawMessage `json:"id" swaggerignore:"true"`
	Blog      json.RawMessage `json:"blog" swaggerignore:"true"`
	Author    json.RawMessage `json:"author" swaggerignore:"true"`
	CreatedAt json.RawMessage `json:"created_at" swaggerignore:"true"`
	UpdatedAt json.RawMessage `json:"updated_at" swaggerignore:"true"`
	Replies   json.RawMessage `json:"replies" swaggerignore:"true"`
}

type approvalInput struct {
	IsApproved *bool `json:"is_approved"`
}

// buildCommentTree nests approved comments under their parents. Replies whose
// parent is absent from comments are dropped along with their subtree.
func buildCommentTree(comments []model.Comment) []model.Comment {
	byParent := make(map[int64][]model.Comment)
	roots := make([]model.Comment, 0)
	for _, c := range comments {
		if c.ParentID == nil {
			roots = append(roots, c)
			continue
		}
		byParent[*c.ParentID] = append(byParent[*c.ParentID], c)
	}
	return attachReplies(roots, byParent)
}

func attachReplies(parents []model.Comment, byParent map[int64][]model.Comment) []model.Comment {
	out := make([]model.Comment, 0, len(parents))
	for _, c := range parents {
		c.Replies = attachReplies(byParent[c.ID], byParent)
		out = append(out, c)
	}
	return out
}

// visibleBlog loads the blog in the path and hides drafts from everyone but
// their author.
func (s *Server) visibleBlog(w http.ResponseWriter, r *http.Request, viewer *auth.Principal) (model.Blog, bool) {
	blog, err := s.store.GetBlogBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return model.Blog{}, false
	}
	if !canView(blog, viewer) {
		notFound(w)
		return model.Blog{}, false
	}
	return blog, true
}

// handleListBlogComments godoc
//
//	@Summary	List comments of a blog
//	@Tags		Comments
//	@Produce	json
//	@Param		slug		path		string	true	"Blog slug"
//	@Param		page		query		int		false	"Page number"
//	@Param		page_size	query		int		false	"Page size"
//	@Success	200			{object}	map[string]interface{}	"Page of top-level comments with replies"
//	@Failure	404			{object}	map[string]string
//	@Router		/api/blogs/{slug}/comments/ [get]
func (s *Server) handleListBlogComments(w http.ResponseWriter, r *http.Request) {
	viewer, ok := s.optionalAuth(w, r)
	if !ok {
		return
	}
	blog, ok := s.visibleBlog(w, r, viewer)
	if !ok {
		return
	}
	page, ok := s.parsePage(w, r)
	if !ok {
		return
	}
	roots, total, err := s.store.ListTopLevelComments(r.Context(), blog.ID, page.window())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	threads, err := s.withReplies(r.Context(), blog.ID, roots)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writePage(w, r, page, threads, total)
}

// withReplies nests the blog's approved replies under each of comments.
func (s *Server) withReplies(ctx context.Context, blogID int64, comments []model.Comment) ([]model.Comment, error) {
	all, err := s.store.ListApprovedComments(ctx, blogID)
	if err != nil {
		return nil, err
	}
	byParent := make(map[int64][]model.Comment)
	for _, c := range all {
		if c.ParentID != nil {
			byParent[*c.ParentID] = append(byParent[*c.ParentID], c)
		}
	}
	return attachReplies(comments, byParent), nil
}

func (s *Server) writeCommentThread(w http.ResponseWriter, r *http.Request, c model.Comment) {
	threads, err := s.withReplies(r.Context(), c.BlogID, []model.Comment{c})
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, threads[0])
}

// handleCreateComment godoc
//
//	@Summary		Comment on a blog
//	@Description	parent, when set, must be a comment on the same blog.
//	@Tags			Comments
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			slug	path		string			true	"Blog slug"
//	@Param			comment	body		commentInput	true	"Comment"
//	@Success		201		{object}	model.Comment
//	@Failure		400		{object}	map[string]interface{}	"Validation error"
//	@Failure		404		{object}	map[string]string
//	@Failure		429		{object}	map[string]string	"Rate limited"
//	@Router			/api/blogs/{slug}/comments/ [post]
func (s *Server) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	p, ok := s.requireAuth(w, r)
	if !ok {
		return
	}
	blog, ok := s.visibleBlog(w, r, &p)
	if !ok {
		return
	}
	if !s.allowRateLimit(w, r, "comment", s.cfg.RateLimits.CommentPerMinute, p.UserID) {
		return
	}
	var in commentInput
	if err := readJSON(r.Body, &in); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	fields := map[string]string{}
	content := ""
	if in.Content != nil {
		content = strings.TrimSpace(*in.Content)
	}
	if content == "" {
		fields["content"] = "This field is required."
	}
	if in.Parent != nil {
		parent, err := s.store.GetComment(r.Context(), *in.Parent)
		switch {
		case errors.Is(err, store.ErrNotFound):
			fields["parent"] = fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", *in.Parent)
		case err != nil:
			s.internalError(w, r, err)
			return
		case parent.BlogID != blog.ID:
			fields["parent"] = "Parent comment belongs to a different blog."
		}
	}
	if len(fields) > 0 {
		writeValidation(w, fields)
		return
	}

	now := time.Now()
	c := model.Comment{
		BlogID:     blog.ID,
		AuthorID:   p.UserID,
		ParentID:   in.Parent,
		Content:    content,
		IsApproved: true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	id, err := s.store.CreateComment(r.Context(), &c)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	created, err := s.store.GetComment(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// loadComment fetches the comment in the path. Unapproved comments are only
// visible to their author.
func (s *Server) loadComment(w http.ResponseWriter, r *http.Request, viewer *auth.Principal) (model.Comment, bool) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return model.Comment{}, false
	}
	c, err := s.store.GetComment(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return model.Comment{}, false
	}
	if !c.IsApproved && (viewer == nil || viewer.UserID != c.AuthorID) {
		notFound(w)
		return model.Comment{}, false
	}
	return c, true
}

// handleGetComment godoc
//
//	@Summary	Get a comment
//	@Tags		Comments
//	@Produce	json
//	@Param		id	path		int	true	"Comment ID"
//	@Success	200	{object}	model.Comment
//	@Failure	404	{object}	map[string]string
//	@Router		/api/comments/{id}/ [get]
func (s *Server) handleGetComment(w http.ResponseWriter, r *http.Request) {
	viewer, ok := s.optionalAuth(w, r)
	if !ok {
		return
	}
	c, ok := s.loadComment(w, r, viewer)
	if !ok {
		return
	}
	s.writeCommentThread(w, r, c)
}

// handleUpdateComment godoc
//
//	@Summary	Edit a comment
//	@Tags		Comments
//	@Accept		json
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id		path		int				true	"Comment ID"
//	@Param		comment	body		commentInput	true	"New content"
//	@Success	200		{object}	model.Comment
//	@Failure	400		{object}	map[string]interface{}	"Validation error"
//	@Failure	403		{object}	map[string]string
//	@Failure	404		{object}	map[string]string
//	@Router		/api/comments/{id}/ [put]
//	@Router		/api/comments/{id}/ [patch]
func (s *Server) handleUpdateComment(w http.ResponseWriter, r *http.Request) {
	p, ok := s.requireAuth(w, r)
	if !ok {
		return
	}
	c, ok := s.loadComment(w, r, &p)
	if !ok {
		return
	}
	if c.AuthorID != p.UserID {
		forbidden(w, "only the author may modify this comment")
		return
	}
	var in commentInput
	if err := readJSON(r.Body, &in); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if in.Parent != nil && (c.ParentID == nil || *in.Parent != *c.ParentID) {
		writeValidation(w, map[string]string{"parent": "A comment cannot be moved."})
		return
	}
	if in.Content == nil {
		if r.Method == http.MethodPatch {
			s.writeCommentThread(w, r, c)
			return
		}
		writeValidation(w, map[string]string{"content": "This field is required."})
		return
	}
	content := strings.TrimSpace(*in.Content)
	if content == "" {
		writeValidation(w, map[string]string{"content": "This field may not be blank."})
		return
	}

	if err := s.store.UpdateComment(r.Context(), c.ID, content); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	updated, err := s.store.GetComment(r.Context(), c.ID)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.writeCommentThread(w, r, updated)
}

// handleDeleteComment godoc
//
//	@Summary		Delete a comment
//	@Description	Author only. Replies are deleted with it.
//	@Tags			Comments
//	@Security		BearerAuth
//	@Param			id	path	int	true	"Comment ID"
//	@Success		204
//	@Failure		403	{object}	map[string]string
//	@Failure		404	{object}	map[string]string
//	@Router			/api/comments/{id}/ [delete]
func (s *Server) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	p, ok := s.requireAuth(w, r)
	if !ok {
		return
	}
	c, ok := s.loadComment(w, r, &p)
	if !ok {
		return
	}
	if c.AuthorID != p.UserID {
		forbidden(w, "only the author may delete this comment")
		return
	}
	if err := s.store.DeleteComment(r.Context(), c.ID); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCommentApproval godoc
//
//	@Summary		Approve or hide a comment
//	@Description	Requires a staff token or the X-Admin-Secret header.
//	@Tags			Comments
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Security		AdminSecret
//	@Param			id			path		int				true	"Comment ID"
//	@Param			approval	body		approvalInput	true	"Approval state"
//	@Success		200			{object}	model.Comment
//	@Failure		403			{object}	map[string]string
//	@Failure		404			{object}	map[string]string
//	@Router			/api/admin/comments/{id}/approval/ [post]
func (s *Server) handleCommentApproval(w http.ResponseWriter, r *http.Request) {
	if !s.hasAdminSecret(r) {
		p, ok := s.requireAuth(w, r)
		if !ok {
			return
		}
		if !p.IsStaff {
			forbidden(w, "staff only")
			return
		}
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in approvalInput
	if err := readJSON(r.Body, &in); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if in.IsApproved == nil {
		writeValidation(w, map[string]string{"is_approved": "This field is required."})
		return
	}
	if err := s.store.SetCommentApproval(r.Context(), id, *in.IsApproved); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	c, err := s.store.GetComment(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.log.Info().Int64("comment_id", id).Bool("approved", c.IsApproved).Msg("comment moderated")
	s.writeCommentThread(w, r, c)
}
