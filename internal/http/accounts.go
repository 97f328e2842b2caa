package httpapp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/alphabot-ai/inkwell/internal/auth"
	"github.com/alphabot-ai/inkwell/internal/model"
	"github.com/alphabot-ai/inkwell/internal/store"
)

// handleToken godoc
//
//	@Summary		Obtain a token pair
//	@Description	Exchange username and password for an access and a refresh token.
//	@Tags			Authentication
//	@Accept			json
//	@Produce		json
//	@Param			credentials	body		object{username=string,password=string}	true	"Credentials"
//	@Success		200			{object}	auth.TokenPair
//	@Failure		400			{object}	map[string]interface{}	"Validation error"
//	@Failure		401			{object}	map[string]string		"Invalid credentials"
//	@Failure		429			{object}	map[string]string		"Rate limited"
//	@Router			/api/token/ [post]
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if !s.allowRateLimit(w, r, "auth", s.cfg.RateLimits.AuthPerMinute, 0) {
		return
	}
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	fields := map[string]string{}
	if req.Username == "" {
		fields["username"] = "This field is required."
	}
	if req.Password == "" {
		fields["password"] = "This field is required."
	}
	if len(fields) > 0 {
		writeValidation(w, fields)
		return
	}

	pair, err := s.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

// handleTokenRefresh godoc
//
//	@Summary	Refresh an access token
//	@Tags		Authentication
//	@Accept		json
//	@Produce	json
//	@Param		body	body		object{refresh=string}	true	"Refresh token"
//	@Success	200		{object}	map[string]string		"New access token"
//	@Failure	401		{object}	map[string]string		"Invalid or expired refresh token"
//	@Router		/api/token/refresh/ [post]
func (s *Server) handleTokenRefresh(w http.ResponseWriter, r *http.Request) {
	if !s.allowRateLimit(w, r, "auth", s.cfg.RateLimits.AuthPerMinute, 0) {
		return
	}
	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Refresh == "" {
		writeValidation(w, map[string]string{"refresh": "This field is required."})
		return
	}
	access, err := s.auth.Refresh(r.Context(), req.Refresh)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access": access})
}

// handleLogout godoc
//
//	@Summary	Revoke all of the caller's tokens
//	@Tags		Authentication
//	@Produce	json
//	@Security	BearerAuth
//	@Success	200	{object}	map[string]string
//	@Failure	401	{object}	map[string]string
//	@Router		/api/logout/ [post]
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAuth(w, r); !ok {
		return
	}
	if err := s.auth.Logout(r.Context(), bearerToken(r)); err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

// handleRegister godoc
//
//	@Summary		Register a user
//	@Description	Create an account. password and password2 must match.
//	@Tags			Authentication
//	@Accept			json
//	@Produce		json
//	@Param			user	body		auth.RegisterInput		true	"Account data"
//	@Success		201		{object}	map[string]interface{}	"Created user and message"
//	@Failure		400		{object}	map[string]interface{}	"Validation error"
//	@Failure		409		{object}	map[string]string		"Username taken"
//	@Router			/api/register/ [post]
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if !s.allowRateLimit(w, r, "auth", s.cfg.RateLimits.AuthPerMinute, 0) {
		return
	}
	var req auth.RegisterInput
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	user, err := s.auth.Register(r.Context(), req)
	if err != nil {
		var verr *auth.ValidationError
		if errors.As(err, &verr) {
			writeValidation(w, verr.Fields)
			return
		}
		s.writeStoreError(w, r, err)
		return
	}
	s.log.Info().Int64("user_id", user.ID).Str("username", user.Username).Msg("user registered")
	writeJSON(w, http.StatusCreated, map[string]any{
		"user":    user,
		"message": "User registered successfully",
	})
}

// handleGetMe godoc
//
//	@Summary	Current user's profile
//	@Tags		Users
//	@Produce	json
//	@Security	BearerAuth
//	@Success	200	{object}	model.UserProfile
//	@Failure	401	{object}	map[string]string
//	@Router		/api/users/me/ [get]
func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	p, ok := s.requireAuth(w, r)
	if !ok {
		return
	}
	profile, err := s.store.GetUserProfile(r.Context(), p.UserID)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// handleUpdateMe godoc
//
//	@Summary		Update the current user's profile
//	@Description	PUT replaces username, email and names; PATCH changes only the fields sent.
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			user	body		object{username=string,email=string,first_name=string,last_name=string}	true	"Profile fields"
//	@Success		200		{object}	model.UserProfile
//	@Failure		400		{object}	map[string]interface{}	"Validation error"
//	@Failure		409		{object}	map[string]string		"Username taken"
//	@Router			/api/users/me/ [put]
//	@Router			/api/users/me/ [patch]
func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	p, ok := s.requireAuth(w, r)
	if !ok {
		return
	}
	var req struct {
		Username  *string `json:"username"`
		Email     *string `json:"email"`
		FirstName *string `json:"first_name"`
		LastName  *string `json:"last_name"`

		ID             json.RawMessage `json:"id"`
		FollowerCount  json.RawMessage `json:"follower_count"`
		FollowingCount json.RawMessage `json:"following_count"`
	}
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	user, err := s.store.GetUser(r.Context(), p.UserID)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	partial := r.Method == http.MethodPatch
	fields := map[string]string{}
	if req.Username != nil {
		user.Username = *req.Username
	} else if !partial {
		user.Username = ""
	}
	if msg := auth.ValidateUsername(user.Username); msg != "" {
		fields["username"] = msg
	}
	if req.Email != nil {
		user.Email = strings.TrimSpace(*req.Email)
		if msg := auth.ValidateEmail(user.Email); msg != "" {
			fields["email"] = msg
		}
	}
	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if len(fields) > 0 {
		writeValidation(w, fields)
		return
	}

	if err := s.store.UpdateUser(r.Context(), &user); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	profile, err := s.store.GetUserProfile(r.Context(), user.ID)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// handleGetUser godoc
//
//	@Summary	A user's public profile
//	@Tags		Users
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		int	true	"User ID"
//	@Success	200	{object}	model.UserProfile
//	@Failure	401	{object}	map[string]string
//	@Failure	404	{object}	map[string]string
//	@Router		/api/users/{id}/ [get]
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAuth(w, r); !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	profile, err := s.store.GetUserProfile(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// handleUserBlogs godoc
//
//	@Summary		Blogs written by a user
//	@Description	The author sees all of their blogs, everyone else only published ones.
//	@Tags			Users
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id			path		int	true	"User ID"
//	@Param			page		query		int	false	"Page number"
//	@Param			page_size	query		int	false	"Page size"
//	@Success		200			{object}	map[string]interface{}	"Page of blogs"
//	@Failure		404			{object}	map[string]string
//	@Router			/api/users/{id}/blogs/ [get]
func (s *Server) handleUserBlogs(w http.ResponseWriter, r *http.Request) {
	p, ok := s.requireAuth(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	page, ok := s.parsePage(w, r)
	if !ok {
		return
	}
	if _, err := s.store.GetUser(r.Context(), id); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	blogs, total, err := s.store.ListBlogs(r.Context(), store.BlogFilter{
		ViewerID: p.UserID,
		AuthorID: id,
		Page:     page.window(),
	})
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writePage(w, r, page, blogs, total)
}

// handleUserFollowers godoc
//
//	@Summary	Users following a user
//	@Tags		Follows
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		int	true	"User ID"
//	@Success	200	{object}	map[string]interface{}	"Page of profiles"
//	@Router		/api/users/{id}/followers/ [get]
func (s *Server) handleUserFollowers(w http.ResponseWriter, r *http.Request) {
	s.listFollowProfiles(w, r, s.store.ListFollowers)
}

// handleUserFollowing godoc
//
//	@Summary	Users a user follows
//	@Tags		Follows
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		int	true	"User ID"
//	@Success	200	{object}	map[string]interface{}	"Page of profiles"
//	@Router		/api/users/{id}/following/ [get]
func (s *Server) handleUserFollowing(w http.ResponseWriter, r *http.Request) {
	s.listFollowProfiles(w, r, s.store.ListFollowing)
}

type profileLister func(ctx context.Context, userID int64, page store.Page) ([]model.UserProfile, int, error)

func (s *Server) listFollowProfiles(w http.ResponseWriter, r *http.Request, list profileLister) {
	if _, ok := s.requireAuth(w, r); !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	page, ok := s.parsePage(w, r)
	if !ok {
		return
	}
	if _, err := s.store.GetUser(r.Context(), id); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	profiles, total, err := list(r.Context(), id, page.window())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writePage(w, r, page, profiles, total)
}

// handleToggleFollow godoc
//
//	@Summary		Follow or unfollow a user
//	@Description	Follows the user when not yet followed (201), otherwise unfollows (200).
//	@Tags			Follows
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		int	true	"User ID"
//	@Success		200	{object}	map[string]string	"Unfollowed"
//	@Success		201	{object}	map[string]string	"Followed"
//	@Failure		400	{object}	map[string]string	"Cannot follow yourself"
//	@Failure		404	{object}	map[string]string
//	@Router			/api/users/{id}/follow/ [post]
func (s *Server) handleToggleFollow(w http.ResponseWriter, r *http.Request) {
	p, ok := s.requireAuth(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if id == p.UserID {
		writeError(w, http.StatusBadRequest, errors.New("You cannot follow yourself"))
		return
	}
	target, err := s.store.GetUser(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	existing, err := s.store.FindFollow(r.Context(), p.UserID, id)
	switch {
	case err == nil:
		if err := s.store.DeleteFollow(r.Context(), existing.ID, p.UserID); err != nil && !errors.Is(err, store.ErrNotFound) {
			s.internalError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "unfollowed",
			"message": "You have unfollowed " + target.Username,
		})
	case errors.Is(err, store.ErrNotFound):
		if _, err := s.store.CreateFollow(r.Context(), p.UserID, id); err != nil && !errors.Is(err, store.ErrDuplicateFollow) {
			s.writeStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{
			"status":  "followed",
			"message": "You are now following " + target.Username,
		})
	default:
		s.internalError(w, r, err)
	}
}
