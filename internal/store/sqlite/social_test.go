package sqlite

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphabot-ai/inkwell/internal/model"
	"github.com/alphabot-ai/inkwell/internal/store"
)

func TestCommentThread(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	alice := mustUser(t, st, "alice")
	bob := mustUser(t, st, "bob")
	blogID := mustBlog(t, st, model.Blog{Title: "Post", Slug: "post", Content: "body", AuthorID: alice, IsPublished: true})

	now := time.Now()
	newComment := func(parent *int64, approved bool, offset time.Duration) int64 {
		t.Helper()
		id, err := st.CreateComment(ctx, &model.Comment{
			BlogID: blogID, AuthorID: bob, ParentID: parent, Content: "hi",
			IsApproved: approved, CreatedAt: now.Add(offset), UpdatedAt: now.Add(offset),
		})
		require.NoError(t, err)
		return id
	}
	root := newComment(nil, true, 0)
	reply := newComment(&root, true, time.Second)
	hidden := newComment(nil, false, 2*time.Second)

	top, total, err := st.ListTopLevelComments(ctx, blogID, store.Page{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, top, 1)
	assert.Equal(t, root, top[0].ID)
	assert.Equal(t, "bob", top[0].Author.Username)

	all, err := st.ListApprovedComments(ctx, blogID)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.NotNil(t, all[1].ParentID)
	assert.Equal(t, root, *all[1].ParentID)

	blog, err := st.GetBlog(ctx, blogID)
	require.NoError(t, err)
	assert.Equal(t, 1, blog.CommentsCount)

	c, err := st.GetComment(ctx, hidden)
	require.NoError(t, err)
	assert.False(t, c.IsApproved)
	require.NoError(t, st.SetCommentApproval(ctx, hidden, true))
	blog, err = st.GetBlog(ctx, blogID)
	require.NoError(t, err)
	assert.Equal(t, 2, blog.CommentsCount)

	require.NoError(t, st.UpdateComment(ctx, reply, "edited"))
	c, err = st.GetComment(ctx, reply)
	require.NoError(t, err)
	assert.Equal(t, "edited", c.Content)

	missing := int64(777)
	_, err = st.CreateComment(ctx, &model.Comment{BlogID: blogID, AuthorID: bob, ParentID: &missing, Content: "x", CreatedAt: now, UpdatedAt: now})
	assert.ErrorIs(t, err, store.ErrInvalidReference)

	// Replies go with their parent.
	require.NoError(t, st.DeleteComment(ctx, root))
	_, err = st.GetComment(ctx, reply)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, st.DeleteComment(ctx, root), store.ErrNotFound)
	assert.ErrorIs(t, st.UpdateComment(ctx, root, "x"), store.ErrNotFound)
	assert.ErrorIs(t, st.SetCommentApproval(ctx, root, false), store.ErrNotFound)
}

func TestFollows(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	alice := mustUser(t, st, "alice")
	bob := mustUser(t, st, "bob")
	carol := mustUser(t, st, "carol")

	id, err := st.CreateFollow(ctx, alice, bob)
	require.NoError(t, err)
	_, err = st.CreateFollow(ctx, alice, bob)
	assert.ErrorIs(t, err, store.ErrDuplicateFollow)
	_, err = st.CreateFollow(ctx, alice, 999)
	assert.ErrorIs(t, err, store.ErrInvalidReference)
	_, err = st.CreateFollow(ctx, carol, bob)
	require.NoError(t, err)

	f, err := st.GetFollow(ctx, id, alice)
	require.NoError(t, err)
	assert.Equal(t, "alice", f.Follower.Username)
	assert.Equal(t, "bob", f.Followed.Username)
	assert.Equal(t, 2, f.Followed.FollowerCount)
	_, err = st.GetFollow(ctx, id, bob)
	assert.ErrorIs(t, err, store.ErrNotFound)

	found, err := st.FindFollow(ctx, alice, bob)
	require.NoError(t, err)
	assert.Equal(t, id, found.ID)

	followers, total, err := st.ListFollowers(ctx, bob, store.Page{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, followers, 2)

	following, total, err := st.ListFollowing(ctx, alice, store.Page{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, following, 1)
	assert.Equal(t, bob, following[0].ID)

	follows, total, err := st.ListFollows(ctx, alice, store.Page{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, follows, 1)

	profile, err := st.GetUserProfile(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 1, profile.FollowingCount)
	assert.Equal(t, 0, profile.FollowerCount)

	assert.ErrorIs(t, st.DeleteFollow(ctx, id, bob), store.ErrNotFound)
	require.NoError(t, st.DeleteFollow(ctx, id, alice))
	_, err = st.FindFollow(ctx, alice, bob)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestIncrementViewIsAtomic(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.GetAnalytics(ctx, model.ContentTypeBlog, 1)
	assert.ErrorIs(t, err, store.ErrNotFound)

	const workers = 8
	const perWorker = 25
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				if _, err := st.IncrementView(ctx, model.ContentTypeBlog, 1); err != nil {
					t.Errorf("increment: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	a, err := st.GetAnalytics(ctx, model.ContentTypeBlog, 1)
	require.NoError(t, err)
	assert.Equal(t, workers*perWorker, a.ViewCount)
	assert.False(t, a.LastViewed.IsZero())
}

func TestTokens(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	alice := mustUser(t, st, "alice")
	now := time.Now()
	require.NoError(t, st.CreateToken(ctx, model.Token{Hash: "live", UserID: alice, Kind: model.TokenAccess, ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, st.CreateToken(ctx, model.Token{Hash: "stale", UserID: alice, Kind: model.TokenRefresh, ExpiresAt: now.Add(-time.Minute)}))
	assert.ErrorIs(t, st.CreateToken(ctx, model.Token{Hash: "orphan", UserID: 999, Kind: model.TokenAccess, ExpiresAt: now}), store.ErrInvalidReference)

	tok, err := st.GetToken(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, alice, tok.UserID)
	assert.Equal(t, model.TokenAccess, tok.Kind)

	n, err := st.PurgeExpiredTokens(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, err = st.GetToken(ctx, "stale")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, st.DeleteUserTokens(ctx, alice))
	_, err = st.GetToken(ctx, "live")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
