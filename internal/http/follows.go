package httpapp

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/alphabot-ai/inkwell/internal/store"
)

type followInput struct {
	FollowedID *int64 `json:"followed_id"`

	ID        json.RawMessage `json:"id" swaggerignore:"true"`
	Follower  json.RawMessage `json:"follower" swaggerignore:"true"`
	Followed  json.RawMessage `json:"followed" swaggerignore:"true"`
	CreatedAt json.RawMessage `json:"created_at" swaggerignore:"true"`
}

// handleListFollows godoc
//
//	@Summary	Follows of the caller
//	@Tags		Follows
//	@Produce	json
//	@Security	BearerAuth
//	@Param		page		query		int	false	"Page number"
//	@Param		page_size	query		int	false	"Page size"
//	@Success	200			{object}	map[string]interface{}	"Page of follows"
//	@Router		/api/follows/ [get]
func (s *Server) handleListFollows(w http.ResponseWriter, r *http.Request) {
	p, ok := s.requireAuth(w, r)
	if !ok {
		return
	}
	page, ok := s.parsePage(w, r)
	if !ok {
		return
	}
	follows, total, err := s.store.ListFollows(r.Context(), p.UserID, page.window())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writePage(w, r, page, follows, total)
}

// handleCreateFollow godoc
//
//	@Summary	Follow a user
//	@Tags		Follows
//	@Accept		json
//	@Produce	json
//	@Security	BearerAuth
//	@Param		follow	body		followInput	true	"User to follow"
//	@Success	201		{object}	model.Follow
//	@Failure	400		{object}	map[string]interface{}	"Validation error"
//	@Failure	409		{object}	map[string]string	"Already following"
//	@Router		/api/follows/ [post]
func (s *Server) handleCreateFollow(w http.ResponseWriter, r *http.Request) {
	p, ok := s.requireAuth(w, r)
	if !ok {
		return
	}
	var in followInput
	if err := readJSON(r.Body, &in); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	switch {
	case in.FollowedID == nil:
		writeValidation(w, map[string]string{"followed_id": "This field is required."})
		return
	case *in.FollowedID == p.UserID:
		writeValidation(w, map[string]string{"followed": "You cannot follow yourself."})
		return
	}

	id, err := s.store.CreateFollow(r.Context(), p.UserID, *in.FollowedID)
	if err != nil {
		if errors.Is(err, store.ErrInvalidReference) {
			writeValidation(w, map[string]string{
				"followed_id": fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", *in.FollowedID),
			})
			return
		}
		s.writeStoreError(w, r, err)
		return
	}
	f, err := s.store.GetFollow(r.Context(), id, p.UserID)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

// handleGetFollow godoc
//
//	@Summary	Get one of the caller's follows
//	@Tags		Follows
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		int	true	"Follow ID"
//	@Success	200	{object}	model.Follow
//	@Failure	404	{object}	map[string]string
//	@Router		/api/follows/{id}/ [get]
func (s *Server) handleGetFollow(w http.ResponseWriter, r *http.Request) {
	p, ok := s.requireAuth(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	f, err := s.store.GetFollow(r.Context(), id, p.UserID)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// handleDeleteFollow godoc
//
//	@Summary	Unfollow
//	@Tags		Follows
//	@Security	BearerAuth
//	@Param		id	path	int	true	"Follow ID"
//	@Success	204
//	@Failure	404	{object}	map[string]string
//	@Router		/api/follows/{id}/ [delete]
func (s *Server) handleDeleteFollow(w http.ResponseWriter, r *http.Request) {
	p, ok := s.requireAuth(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.store.DeleteFollow(r.Context(), id, p.UserID); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
