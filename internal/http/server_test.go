package httpapp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphabot-ai/inkwell/internal/model"
)

type allowAllLimiter struct{}

func (a allowAllLimiter) Allow(key string, limit int, window time.Duration) (bool, time.Duration) {
	return true, 0
}

func int64Ptr(v int64) *int64 { return &v }

func TestBuildCommentTree(t *testing.T) {
	comments := []model.Comment{
		{ID: 1},
		{ID: 2, ParentID: int64Ptr(1)},
		{ID: 3},
		{ID: 4, ParentID: int64Ptr(2)},
		{ID: 5, ParentID: int64Ptr(99)},
		{ID: 6, ParentID: int64Ptr(1)},
	}
	tree := buildCommentTree(comments)

	require.Len(t, tree, 2)
	assert.Equal(t, int64(1), tree[0].ID)
	assert.Equal(t, int64(3), tree[1].ID)
	require.Len(t, tree[0].Replies, 2)
	assert.Equal(t, int64(2), tree[0].Replies[0].ID)
	assert.Equal(t, int64(6), tree[0].Replies[1].ID)
	require.Len(t, tree[0].Replies[0].Replies, 1)
	assert.Equal(t, int64(4), tree[0].Replies[0].Replies[0].ID)
	assert.NotNil(t, tree[1].Replies, "leaf replies encode as []")
	assert.Empty(t, tree[1].Replies)
}

func TestMakeExcerpt(t *testing.T) {
	assert.Equal(t, "short", makeExcerpt("short"))

	exact := strings.Repeat("a", 150)
	assert.Equal(t, exact, makeExcerpt(exact))

	long := strings.Repeat("é", 151)
	got := makeExcerpt(long)
	assert.Equal(t, strings.Repeat("é", 150)+"...", got)
}

func TestSplitSearch(t *testing.T) {
	assert.Equal(t, []string{"go", "chi", "sqlite"}, splitSearch(" go, chi  sqlite,"))
	assert.Empty(t, splitSearch(" , "))
}

func TestOptionalIDDistinguishesNull(t *testing.T) {
	var in blogInput
	require.NoError(t, json.Unmarshal([]byte(`{"title":"x"}`), &in))
	assert.False(t, in.CategoryID.Set)

	in = blogInput{}
	require.NoError(t, json.Unmarshal([]byte(`{"category_id":null}`), &in))
	assert.True(t, in.CategoryID.Set)
	assert.Nil(t, in.CategoryID.Value)

	in = blogInput{}
	require.NoError(t, json.Unmarshal([]byte(`{"category_id":7}`), &in))
	require.NotNil(t, in.CategoryID.Value)
	assert.Equal(t, int64(7), *in.CategoryID.Value)

	assert.Error(t, json.Unmarshal([]byte(`{"category_id":"seven"}`), &in))
}

func TestBlogInputApply(t *testing.T) {
	t.Run("full update requires title and content", func(t *testing.T) {
		b := model.Blog{Title: "Old", Content: "Body"}
		fields := blogInput{}.apply(&b, false)
		assert.Contains(t, fields, "title")
		assert.Contains(t, fields, "content")
	})

	t.Run("partial update keeps other fields", func(t *testing.T) {
		img := "/media/a.png"
		b := model.Blog{Title: "Old", Content: "Body", Excerpt: "ex", FeaturedImage: &img}
		title := "  New  "
		fields := blogInput{Title: &title}.apply(&b, true)
		assert.Empty(t, fields)
		assert.Equal(t, "New", b.Title)
		assert.Equal(t, "Body", b.Content)
		assert.Equal(t, "ex", b.Excerpt)
		require.NotNil(t, b.FeaturedImage)
	})

	t.Run("blank image clears it and blank excerpt regenerates", func(t *testing.T) {
		img := "/media/a.png"
		b := model.Blog{Title: "T", Content: "Body", Excerpt: "ex", FeaturedImage: &img}
		empty := ""
		fields := blogInput{FeaturedImage: &empty, Excerpt: &empty}.apply(&b, true)
		assert.Empty(t, fields)
		assert.Nil(t, b.FeaturedImage)
		assert.Equal(t, "Body", b.Excerpt)
	})

	t.Run("length limits", func(t *testing.T) {
		title := strings.Repeat("t", maxTitleLen+1)
		content := "c"
		b := model.Blog{}
		fields := blogInput{Title: &title, Content: &content}.apply(&b, false)
		assert.Contains(t, fields["title"], "no more than 200")
	})
}

func TestPageLink(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://blog.test/api/blogs/?page=2&tag=go", nil)
	assert.Equal(t, "http://blog.test/api/blogs/?page=3&tag=go", pageLink(r, 3))
	assert.Equal(t, "http://blog.test/api/blogs/?tag=go", pageLink(r, 1))

	r.Header.Set("X-Forwarded-Proto", "https")
	assert.Equal(t, "https://blog.test/api/blogs/?page=3&tag=go", pageLink(r, 3))
}

func TestClientIP(t *testing.T) {
	s := &Server{}
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", s.clientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", s.clientIP(r))
}
