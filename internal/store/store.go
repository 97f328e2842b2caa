package store

import (
	"context"
	"errors"
	"time"

	"github.com/alphabot-ai/inkwell/internal/model"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateUsername = errors.New("duplicate username")
	ErrDuplicateName     = errors.New("duplicate name")
	ErrDuplicateSlug     = errors.New("duplicate slug")
	ErrDuplicateFollow   = errors.New("duplicate follow")
	ErrInvalidReference  = errors.New("invalid reference")
)

// Page selects a window of a listing. Limit <= 0 means no limit.
type Page struct {
	Offset int
	Limit  int
}

// BlogFilter narrows ListBlogs. ViewerID is the authenticated caller (0 when
// anonymous): unpublished blogs are only returned to their author.
type BlogFilter struct {
	ViewerID     int64
	CategorySlug string
	TagSlug      string
	FeaturedOnly bool
	AuthorID     int64
	SearchTerms  []string
	SearchAuthor bool
	Ordering     string
	Page
}

type Store interface {
	UserStore
	CategoryStore
	TagStore
	BlogStore
	CommentStore
	FollowStore
	AnalyticsStore
	TokenStore
	Ping(ctx context.Context) error
	Close() error
}

type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) (int64, error)
	GetUser(ctx context.Context, id int64) (model.User, error)
	GetUserByUsername(ctx context.Context, username string) (model.User, error)
	UpdateUser(ctx context.Context, user *model.User) error
	GetUserProfile(ctx context.Context, id int64) (model.UserProfile, error)
}

type CategoryStore interface {
	CreateCategory(ctx context.Context, c *model.Category) (int64, error)
	GetCategory(ctx context.Context, id int64) (model.Category, error)
	GetCategoryBySlug(ctx context.Context, slug string) (model.Category, error)
	ListCategories(ctx context.Context, search string, page Page) ([]model.Category, int, error)
	UpdateCategory(ctx context.Context, c *model.Category) error
	DeleteCategory(ctx context.Context, id int64) error
}

type TagStore interface {
	CreateTag(ctx context.Context, t *model.Tag) (int64, error)
	GetTagBySlug(ctx context.Context, slug string) (model.Tag, error)
	ListTags(ctx context.Context, search string, page Page) ([]model.Tag, int, error)
	UpdateTag(ctx context.Context, t *model.Tag) error
	DeleteTag(ctx context.Context, id int64) error
}

type BlogStore interface {
	CreateBlog(ctx context.Context, blog *model.Blog, tagIDs []int64) (int64, error)
	GetBlog(ctx context.Context, id int64) (model.Blog, error)
	GetBlogBySlug(ctx context.Context, slug string) (model.Blog, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	ListBlogs(ctx context.Context, f BlogFilter) ([]model.Blog, int, error)
	UpdateBlog(ctx context.Context, blog *model.Blog, tagIDs []int64, replaceTags bool) error
	DeleteBlog(ctx context.Context, id int64) error
}

type CommentStore interface {
	CreateComment(ctx context.Context, c *model.Comment) (int64, error)
	GetComment(ctx context.Context, id int64) (model.Comment, error)
	ListTopLevelComments(ctx context.Context, blogID int64, page Page) ([]model.Comment, int, error)
	ListApprovedComments(ctx context.Context, blogID int64) ([]model.Comment, error)
	UpdateComment(ctx context.Context, id int64, content string) error
	SetCommentApproval(ctx context.Context, id int64, approved bool) error
	DeleteComment(ctx context.Context, id int64) error
}

type FollowStore interface {
	CreateFollow(ctx context.Context, followerID, followedID int64) (int64, error)
	GetFollow(ctx context.Context, id, followerID int64) (model.Follow, error)
	FindFollow(ctx context.Context, followerID, followedID int64) (model.Follow, error)
	ListFollows(ctx context.Context, followerID int64, page Page) ([]model.Follow, int, error)
	DeleteFollow(ctx context.Context, id, followerID int64) error
	ListFollowers(ctx context.Context, userID int64, page Page) ([]model.UserProfile, int, error)
	ListFollowing(ctx context.Context, userID int64, page Page) ([]model.UserProfile, int, error)
}

type AnalyticsStore interface {
	IncrementView(ctx context.Context, contentType string, objectID int64) (model.Analytics, error)
	GetAnalytics(ctx context.Context, contentType string, objectID int64) (model.Analytics, error)
}

type TokenStore interface {
	CreateToken(ctx context.Context, token model.Token) error
	GetToken(ctx context.Context, hash string) (model.Token, error)
	DeleteUserTokens(ctx context.Context, userID int64) error
	PurgeExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}
