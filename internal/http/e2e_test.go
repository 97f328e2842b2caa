package httpapp_test

import (
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphabot-ai/inkwell/internal/auth"
	"github.com/alphabot-ai/inkwell/internal/client"
	"github.com/alphabot-ai/inkwell/internal/config"
	httpapp "github.com/alphabot-ai/inkwell/internal/http"
	"github.com/alphabot-ai/inkwell/internal/logx"
	"github.com/alphabot-ai/inkwell/internal/rate"
	"github.com/alphabot-ai/inkwell/internal/store/sqlite"
)

func TestEndToEndServer(t *testing.T) {
	st, err := sqlite.Open("file:e2e_test?mode=memory&cache=shared")
	require.NoError(t, err)
	defer st.Close()

	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.RateLimits = config.RateLimits{AuthPerMinute: 1000, BlogPerMinute: 1000, CommentPerMinute: 1000}
	limiter := rate.NewMemory()
	authSvc := auth.NewService(st, cfg.AccessTTL, cfg.RefreshTTL)
	server := httpapp.NewServer(st, authSvc, limiter, cfg, logx.Nop())

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	httpServer := &http.Server{Handler: server, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		_ = httpServer.Serve(listener)
	}()
	defer httpServer.Close()

	baseURL := "http://" + listener.Addr().String()
	helper := client.NewTestHelper(baseURL)

	writer, writerProfile, err := helper.CreateAuthenticatedClient("e2e-writer")
	require.NoError(t, err)
	reader, _, err := helper.CreateAuthenticatedClient("e2e-reader")
	require.NoError(t, err)

	cat, err := writer.CreateCategory("Engineering", "How things are built")
	require.NoError(t, err)
	tag, err := writer.CreateTag("Go")
	require.NoError(t, err)

	blog, err := writer.CreateBlog(client.BlogRequest{
		Title:      client.String("Shipping a Go service"),
		Content:    client.String("Build, test, deploy."),
		CategoryID: client.Int64(cat.ID),
		TagIDs:     client.IDs(tag.ID),
	})
	require.NoError(t, err)
	assert.Equal(t, "shipping-a-go-service", blog.Slug)

	root, err := reader.CreateComment(blog.Slug, nil, "Great read")
	require.NoError(t, err)
	_, err = writer.CreateComment(blog.Slug, &root.ID, "Thank you")
	require.NoError(t, err)

	detail, err := reader.GetBlog(blog.Slug)
	require.NoError(t, err)
	assert.Equal(t, 1, detail.ViewCount)
	require.Len(t, detail.Comments, 1)
	require.Len(t, detail.Comments[0].Replies, 1)

	page, err := client.New(baseURL).ListBlogs(client.BlogQuery{Category: cat.Slug, Tag: tag.Slug})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Count)

	results, err := client.New(baseURL).Search("e2e-writer", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, results.Count)

	status, err := reader.ToggleFollow(writerProfile.ID)
	require.NoError(t, err)
	assert.Equal(t, "followed", status)
	me, err := writer.Me()
	require.NoError(t, err)
	assert.Equal(t, 1, me.FollowerCount)

	updated, err := writer.UpdateBlog(blog.Slug, client.BlogRequest{IsPublished: client.Bool(false)})
	require.NoError(t, err)
	assert.False(t, updated.IsPublished)
	_, err = reader.GetBlog(blog.Slug)
	assert.ErrorIs(t, err, client.ErrNotFound)

	err = reader.DeleteBlog(blog.Slug)
	assert.Equal(t, http.StatusNotFound, client.StatusCode(err))

	require.NoError(t, writer.Refresh())
	require.NoError(t, writer.DeleteBlog(blog.Slug))
	require.NoError(t, writer.Logout())
	assert.False(t, writer.IsAuthenticated())
}
