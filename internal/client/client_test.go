package client

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientNew(t *testing.T) {
	c := New("https://example.com")
	assert.Equal(t, "https://example.com", c.BaseURL)
	assert.NotNil(t, c.HTTPClient)
	assert.False(t, c.IsAuthenticated())
}

func TestLoginStoresTokens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/token/", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ada", body["username"])
		_ = json.NewEncoder(w).Encode(map[string]string{"access": "A", "refresh": "R"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	require.NoError(t, c.Login("ada", "pw"))
	assert.Equal(t, "A", c.Token)
	assert.Equal(t, "R", c.RefreshToken)
	assert.True(t, c.IsAuthenticated())
}

func TestRequestsCarryBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "/api/users/7/follow/", r.URL.Path)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "followed"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.Token = "tok"
	status, err := c.ToggleFollow(7)
	require.NoError(t, err)
	assert.Equal(t, "followed", status)
}

func TestErrorMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/register/":
			w.WriteHeader(http.StatusConflict)
		case "/api/blogs/missing/":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusForbidden)
		}
		_, _ = w.Write([]byte(`{"error":"nope"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)

	_, err := c.Register(RegisterRequest{Username: "ada", Password: "pw"})
	assert.True(t, errors.Is(err, ErrAlreadyRegistered))
	assert.Equal(t, http.StatusConflict, StatusCode(err))

	_, err = c.GetBlog("missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	err = c.DeleteBlog("other")
	assert.Equal(t, http.StatusForbidden, StatusCode(err))
	assert.Contains(t, err.Error(), "nope")
}

func TestBlogQueryValues(t *testing.T) {
	v := BlogQuery{Category: "go", Featured: true, AuthorID: 3, Search: "chi router", Ordering: "-view_count", Page: 2}.values()
	assert.Equal(t, "go", v.Get("category"))
	assert.Equal(t, "true", v.Get("featured"))
	assert.Equal(t, "3", v.Get("author"))
	assert.Equal(t, "chi router", v.Get("search"))
	assert.Equal(t, "-view_count", v.Get("ordering"))
	assert.Equal(t, "2", v.Get("page"))
	assert.Empty(t, v.Get("tag"))
	assert.Empty(t, BlogQuery{}.values())
}

func TestBlogRequestOmitsUnsetFields(t *testing.T) {
	b, err := json.Marshal(BlogRequest{Title: String("Hi"), TagIDs: IDs()})
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"Hi","tag_ids":[]}`, string(b))
}
