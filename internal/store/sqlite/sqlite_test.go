package sqlite

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphabot-ai/inkwell/internal/model"
	"github.com/alphabot-ai/inkwell/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	st, err := Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func mustUser(t *testing.T, st *Store, username string) int64 {
	t.Helper()
	id, err := st.CreateUser(context.Background(), &model.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		IsActive:     true,
		CreatedAt:    time.Now(),
	})
	require.NoError(t, err)
	return id
}

func mustBlog(t *testing.T, st *Store, b model.Blog, tagIDs ...int64) int64 {
	t.Helper()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	b.UpdatedAt = b.CreatedAt
	id, err := st.CreateBlog(context.Background(), &b, tagIDs)
	require.NoError(t, err)
	return id
}

func TestSchemaVersion(t *testing.T) {
	st := newTestStore(t)
	v, err := st.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(migrations), v)
	require.NoError(t, st.Ping(context.Background()))
}

func TestUsers(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	id := mustUser(t, st, "alice")
	_, err := st.CreateUser(ctx, &model.User{Username: "alice", PasswordHash: "x", CreatedAt: time.Now()})
	assert.ErrorIs(t, err, store.ErrDuplicateUsername)

	u, err := st.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	assert.True(t, u.IsActive)
	assert.False(t, u.IsStaff)

	u.FirstName = "Alice"
	require.NoError(t, st.UpdateUser(ctx, &u))
	got, err := st.GetUser(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.FirstName)

	mustUser(t, st, "bob")
	u.Username = "bob"
	assert.ErrorIs(t, st.UpdateUser(ctx, &u), store.ErrDuplicateUsername)

	_, err = st.GetUser(ctx, 999)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.GetUserProfile(ctx, 999)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTaxonomy(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	catID, err := st.CreateCategory(ctx, &model.Category{Name: "Tech", Slug: "tech", Description: "Gadgets", CreatedAt: time.Now()})
	require.NoError(t, err)
	_, err = st.CreateCategory(ctx, &model.Category{Name: "Tech", Slug: "tech-2", CreatedAt: time.Now()})
	assert.ErrorIs(t, err, store.ErrDuplicateName)
	_, err = st.CreateCategory(ctx, &model.Category{Name: "Technology", Slug: "tech", CreatedAt: time.Now()})
	assert.ErrorIs(t, err, store.ErrDuplicateSlug)
	_, err = st.CreateCategory(ctx, &model.Category{Name: "Travel", Slug: "travel", CreatedAt: time.Now()})
	require.NoError(t, err)

	cats, total, err := st.ListCategories(ctx, "gad", store.Page{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, cats, 1)
	assert.Equal(t, catID, cats[0].ID)

	cats, total, err = st.ListCategories(ctx, "", store.Page{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, cats, 1)
	assert.Equal(t, "Travel", cats[0].Name)

	cat, err := st.GetCategoryBySlug(ctx, "tech")
	require.NoError(t, err)
	cat.Description = "Hardware and software"
	require.NoError(t, st.UpdateCategory(ctx, &cat))
	cat, err = st.GetCategory(ctx, catID)
	require.NoError(t, err)
	assert.Equal(t, "Hardware and software", cat.Description)

	tagID, err := st.CreateTag(ctx, &model.Tag{Name: "Go", Slug: "go"})
	require.NoError(t, err)
	_, err = st.CreateTag(ctx, &model.Tag{Name: "Go", Slug: "golang"})
	assert.ErrorIs(t, err, store.ErrDuplicateName)
	require.NoError(t, st.UpdateTag(ctx, &model.Tag{ID: tagID, Name: "Golang", Slug: "golang"}))
	tag, err := st.GetTagBySlug(ctx, "golang")
	require.NoError(t, err)
	assert.Equal(t, "Golang", tag.Name)

	tags, total, err := st.ListTags(ctx, "lang", store.Page{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, tags, 1)

	require.NoError(t, st.DeleteTag(ctx, tagID))
	assert.ErrorIs(t, st.DeleteTag(ctx, tagID), store.ErrNotFound)
	require.NoError(t, st.DeleteCategory(ctx, catID))
	_, err = st.GetCategory(ctx, catID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestListBlogsFilters(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	alice := mustUser(t, st, "alice")
	bob := mustUser(t, st, "bob")
	catID, err := st.CreateCategory(ctx, &model.Category{Name: "Tech", Slug: "tech", CreatedAt: time.Now()})
	require.NoError(t, err)
	goTag, err := st.CreateTag(ctx, &model.Tag{Name: "go", Slug: "go"})
	require.NoError(t, err)
	webTag, err := st.CreateTag(ctx, &model.Tag{Name: "web", Slug: "web"})
	require.NoError(t, err)

	base := time.Now().Add(-time.Hour)
	first := mustBlog(t, st, model.Blog{
		Title: "First post", Slug: "first-post", Content: "Gophers everywhere", AuthorID: alice,
		CategoryID: &catID, IsPublished: true, CreatedAt: base,
	}, goTag, 9999)
	draft := mustBlog(t, st, model.Blog{
		Title: "Draft", Slug: "draft", Content: "unfinished", AuthorID: alice, CreatedAt: base.Add(time.Minute),
	})
	third := mustBlog(t, st, model.Blog{
		Title: "Bob writes", Slug: "bob-writes", Content: "hello world", AuthorID: bob,
		IsPublished: true, IsFeatured: true, CreatedAt: base.Add(2 * time.Minute),
	}, webTag)

	cases := []struct {
		name   string
		filter store.BlogFilter
		want   []int64
	}{
		{"anonymous sees published", store.BlogFilter{}, []int64{third, first}},
		{"author sees own drafts", store.BlogFilter{ViewerID: alice}, []int64{third, draft, first}},
		{"other user does not", store.BlogFilter{ViewerID: bob}, []int64{third, first}},
		{"category", store.BlogFilter{CategorySlug: "tech"}, []int64{first}},
		{"tag", store.BlogFilter{TagSlug: "web"}, []int64{third}},
		{"featured", store.BlogFilter{FeaturedOnly: true}, []int64{third}},
		{"author", store.BlogFilter{AuthorID: bob}, []int64{third}},
		{"search content", store.BlogFilter{SearchTerms: []string{"hello"}}, []int64{third}},
		{"search tag name", store.BlogFilter{SearchTerms: []string{"web"}}, []int64{third}},
		{"search category name", store.BlogFilter{SearchTerms: []string{"tech"}}, []int64{first}},
		{"search terms are and-ed", store.BlogFilter{SearchTerms: []string{"hello", "gophers"}}, nil},
		{"author not searched by default", store.BlogFilter{SearchTerms: []string{"alice"}}, nil},
		{"author searched", store.BlogFilter{SearchTerms: []string{"alice"}, SearchAuthor: true}, []int64{first}},
		{"ascending", store.BlogFilter{Ordering: "created_at"}, []int64{first, third}},
		{"unknown ordering ignored", store.BlogFilter{Ordering: "title"}, []int64{third, first}},
		{"page", store.BlogFilter{Page: store.Page{Limit: 1, Offset: 1}}, []int64{first}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			blogs, _, err := st.ListBlogs(ctx, tc.filter)
			require.NoError(t, err)
			var ids []int64
			for _, b := range blogs {
				ids = append(ids, b.ID)
			}
			assert.Equal(t, tc.want, ids)
		})
	}

	_, total, err := st.ListBlogs(ctx, store.BlogFilter{Page: store.Page{Limit: 1}})
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	_, err = st.IncrementView(ctx, model.ContentTypeBlog, first)
	require.NoError(t, err)
	_, err = st.IncrementView(ctx, model.ContentTypeBlog, first)
	require.NoError(t, err)
	blogs, _, err := st.ListBlogs(ctx, store.BlogFilter{Ordering: "-view_count"})
	require.NoError(t, err)
	require.Len(t, blogs, 2)
	assert.Equal(t, first, blogs[0].ID)
	assert.Equal(t, 2, blogs[0].ViewCount)
	assert.Equal(t, 0, blogs[1].ViewCount)
}

func TestBlogLifecycle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	alice := mustUser(t, st, "alice")
	catID, err := st.CreateCategory(ctx, &model.Category{Name: "Tech", Slug: "tech", CreatedAt: time.Now()})
	require.NoError(t, err)
	goTag, err := st.CreateTag(ctx, &model.Tag{Name: "go", Slug: "go"})
	require.NoError(t, err)
	webTag, err := st.CreateTag(ctx, &model.Tag{Name: "web", Slug: "web"})
	require.NoError(t, err)

	image := "https://example.com/a.png"
	id := mustBlog(t, st, model.Blog{
		Title: "Hello", Slug: "hello", Content: "body", AuthorID: alice, CategoryID: &catID,
		FeaturedImage: &image, IsPublished: true, Excerpt: "body",
	}, goTag, webTag)

	blog, err := st.GetBlogBySlug(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, id, blog.ID)
	assert.Equal(t, "alice", blog.Author.Username)
	require.NotNil(t, blog.Category)
	assert.Equal(t, "tech", blog.Category.Slug)
	assert.Equal(t, 1, blog.Category.BlogCount)
	require.NotNil(t, blog.FeaturedImage)
	assert.Equal(t, image, *blog.FeaturedImage)
	assert.Len(t, blog.Tags, 2)

	exists, err := st.SlugExists(ctx, "hello")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = st.SlugExists(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, exists)

	dup := model.Blog{Title: "Hello", Slug: "hello", Content: "x", AuthorID: alice, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	_, err = st.CreateBlog(ctx, &dup, nil)
	assert.ErrorIs(t, err, store.ErrDuplicateSlug)

	missing := int64(4242)
	bad := model.Blog{Title: "Bad", Slug: "bad", Content: "x", AuthorID: alice, CategoryID: &missing, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	_, err = st.CreateBlog(ctx, &bad, nil)
	assert.ErrorIs(t, err, store.ErrInvalidReference)

	// Partial update keeps tags; a replacing update swaps them.
	blog.Title = "Hello again"
	blog.FeaturedImage = nil
	blog.UpdatedAt = time.Now()
	require.NoError(t, st.UpdateBlog(ctx, &blog, nil, false))
	blog, err = st.GetBlog(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Hello again", blog.Title)
	assert.Nil(t, blog.FeaturedImage)
	assert.Len(t, blog.Tags, 2)

	require.NoError(t, st.UpdateBlog(ctx, &blog, []int64{webTag}, true))
	blog, err = st.GetBlog(ctx, id)
	require.NoError(t, err)
	require.Len(t, blog.Tags, 1)
	assert.Equal(t, "web", blog.Tags[0].Slug)

	ghost := model.Blog{ID: 999, Title: "x", Slug: "ghost", UpdatedAt: time.Now()}
	assert.ErrorIs(t, st.UpdateBlog(ctx, &ghost, nil, false), store.ErrNotFound)

	// Deleting the category detaches the blog.
	require.NoError(t, st.DeleteCategory(ctx, catID))
	blog, err = st.GetBlog(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, blog.Category)
	assert.Nil(t, blog.CategoryID)

	_, err = st.IncrementView(ctx, model.ContentTypeBlog, id)
	require.NoError(t, err)
	require.NoError(t, st.DeleteBlog(ctx, id))
	_, err = st.GetBlog(ctx, id)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.GetAnalytics(ctx, model.ContentTypeBlog, id)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, st.DeleteBlog(ctx, id), store.ErrNotFound)
}

func TestLikePatternEscapesWildcards(t *testing.T) {
	assert.Equal(t, `%100\%%`, likePattern("100%"))
	assert.Equal(t, `%a\_b%`, likePattern("a_b"))
	assert.Equal(t, `%c:\\d%`, likePattern(`c:\d`))
}

func TestBlogOrderBy(t *testing.T) {
	assert.Equal(t, " ORDER BY b.created_at DESC, b.id DESC", blogOrderBy(""))
	assert.Equal(t, " ORDER BY b.created_at ASC, b.id ASC", blogOrderBy("created_at"))
	assert.Equal(t, " ORDER BY view_count DESC, b.updated_at ASC, b.id DESC", blogOrderBy("-view_count, updated_at"))
	assert.Equal(t, " ORDER BY b.created_at DESC, b.id DESC", blogOrderBy("title;DROP"))
}

func TestSearchFoldsUnicodeCase(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	author := mustUser(t, st, "zoë")

	catID, err := st.CreateCategory(ctx, &model.Category{Name: "Écoles", Slug: "ecoles", Description: "Straße und Schule", CreatedAt: time.Now()})
	require.NoError(t, err)
	tagID, err := st.CreateTag(ctx, &model.Tag{Name: "Ωmega", Slug: "mega"})
	require.NoError(t, err)
	id := mustBlog(t, st, model.Blog{
		Title: "L'été indien", Slug: "lete-indien", Content: "Notes", AuthorID: author,
		CategoryID: &catID, IsPublished: true,
	}, tagID)

	for _, term := range []string{"ÉTÉ", "été", "écoles", "ωMEGA", "ZOË"} {
		blogs, total, err := st.ListBlogs(ctx, store.BlogFilter{SearchTerms: []string{term}, SearchAuthor: true})
		require.NoError(t, err, term)
		assert.Equal(t, 1, total, term)
		if assert.Len(t, blogs, 1, term) {
			assert.Equal(t, id, blogs[0].ID)
		}
	}

	cats, _, err := st.ListCategories(ctx, "STRASSE", store.Page{})
	require.NoError(t, err)
	assert.Len(t, cats, 1)
	tags, _, err := st.ListTags(ctx, "ΩMEGA", store.Page{})
	require.NoError(t, err)
	assert.Len(t, tags, 1)
}
