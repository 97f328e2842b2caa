package model

import "time"

// Content types used as the polymorphic key of Analytics rows.
const (
	ContentTypeBlog = "blog"
)

// Token kinds.
const (
	TokenAccess  = "access"
	TokenRefresh = "refresh"
)

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	PasswordHash string    `json:"-"`
	IsStaff      bool      `json:"-"`
	IsActive     bool      `json:"-"`
	CreatedAt    time.Time `json:"-"`
}

// UserProfile is the public shape of a user, with follow counters.
type UserProfile struct {
	ID             int64  `json:"id"`
	Username       string `json:"username"`
	Email          string `json:"email"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	FollowerCount  int    `json:"follower_count"`
	FollowingCount int    `json:"following_count"`
}

type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	BlogCount   int       `json:"blog_count"`
	CreatedAt   time.Time `json:"created_at"`
}

type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type Blog struct {
	ID            int64       `json:"id"`
	Title         string      `json:"title"`
	Slug          string      `json:"slug"`
	Content       string      `json:"content"`
	FeaturedImage *string     `json:"featured_image"`
	ImageCaption  string      `json:"image_caption"`
	AuthorID      int64       `json:"-"`
	Author        UserProfile `json:"author"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
	CategoryID    *int64      `json:"-"`
	Category      *Category   `json:"category"`
	Tags          []Tag       `json:"tags"`
	IsPublished   bool        `json:"is_published"`
	IsFeatured    bool        `json:"is_featured"`
	Excerpt       string      `json:"excerpt"`
	CommentsCount int         `json:"comments_count"`
	ViewCount     int         `json:"view_count"`
}

// BlogDetail adds the approved comment tree to a blog.
type BlogDetail struct {
	Blog
	Comments []Comment `json:"comments"`
}

type Comment struct {
	ID         int64       `json:"id"`
	BlogID     int64       `json:"blog"`
	AuthorID   int64       `json:"-"`
	Author     UserProfile `json:"author"`
	ParentID   *int64      `json:"parent"`
	Content    string      `json:"content"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
	IsApproved bool        `json:"-"`
	Replies    []Comment   `json:"replies"`
}

type Follow struct {
	ID         int64       `json:"id"`
	FollowerID int64       `json:"-"`
	FollowedID int64       `json:"-"`
	Follower   UserProfile `json:"follower"`
	Followed   UserProfile `json:"followed"`
	CreatedAt  time.Time   `json:"created_at"`
}

// Analytics is a view counter attached to any entity by (ContentType, ObjectID).
type Analytics struct {
	ID          int64     `json:"id"`
	ContentType string    `json:"content_type"`
	ObjectID    int64     `json:"object_id"`
	ViewCount   int       `json:"view_count"`
	LastViewed  time.Time `json:"last_viewed"`
}

type Token struct {
	Hash      string
	UserID    int64
	Kind      string
	ExpiresAt time.Time
}

// Page is the envelope returned by every list endpoint.
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}
