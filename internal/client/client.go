// Package client provides a Go client for the Inkwell API.
package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/alphabot-ai/inkwell/internal/model"
)

// Client is an Inkwell API client.
type Client struct {
	BaseURL      string
	HTTPClient   *http.Client
	Token        string
	RefreshToken string
}

// New creates a new Inkwell client.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError is a non-2xx response.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (%d): %s", e.Status, e.Body)
}

// Errors
var (
	ErrAlreadyRegistered = errors.New("already registered")
	ErrNotFound          = errors.New("not found")
)

// StatusCode returns the HTTP status of an *APIError, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// IsAuthenticated returns true if the client holds an access token.
func (c *Client) IsAuthenticated() bool {
	return c.Token != ""
}

// doRequest performs an HTTP request, authenticated when a token is set.
func (c *Client) doRequest(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	return c.HTTPClient.Do(req)
}

// call sends the request and decodes a successful response into out, which
// may be nil.
func (c *Client) call(method, path string, body, out any) error {
	resp, err := c.doRequest(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{Status: resp.StatusCode, Body: string(respBody)}
		switch resp.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %w", ErrNotFound, apiErr)
		case http.StatusConflict:
			if path == "/api/register/" {
				return fmt.Errorf("%w: %w", ErrAlreadyRegistered, apiErr)
			}
		}
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// RegisterRequest holds the fields of a new account.
type RegisterRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Password2 string `json:"password2"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// Register creates a new account. Password2 defaults to Password.
func (c *Client) Register(req RegisterRequest) (*model.UserProfile, error) {
	if req.Password2 == "" {
		req.Password2 = req.Password
	}
	var result struct {
		User model.UserProfile `json:"user"`
	}
	if err := c.call(http.MethodPost, "/api/register/", req, &result); err != nil {
		return nil, err
	}
	return &result.User, nil
}

// Login exchanges credentials for a token pair and keeps it on the client.
func (c *Client) Login(username, password string) error {
	var pair struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	}
	body := map[string]string{"username": username, "password": password}
	if err := c.call(http.MethodPost, "/api/token/", body, &pair); err != nil {
		return err
	}
	c.Token = pair.Access
	c.RefreshToken = pair.Refresh
	return nil
}

// Refresh replaces the access token using the refresh token.
func (c *Client) Refresh() error {
	if c.RefreshToken == "" {
		return errors.New("no refresh token")
	}
	var result struct {
		Access string `json:"access"`
	}
	if err := c.call(http.MethodPost, "/api/token/refresh/", map[string]string{"refresh": c.RefreshToken}, &result); err != nil {
		return err
	}
	c.Token = result.Access
	return nil
}

// Logout revokes every token of the account and clears them locally.
func (c *Client) Logout() error {
	if err := c.call(http.MethodPost, "/api/logout/", nil, nil); err != nil {
		return err
	}
	c.Token, c.RefreshToken = "", ""
	return nil
}

// Me returns the profile of the authenticated user.
func (c *Client) Me() (*model.UserProfile, error) {
	var p model.UserProfile
	if err := c.call(http.MethodGet, "/api/users/me/", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// BlogRequest holds blog fields. Nil fields are left out of the request.
type BlogRequest struct {
	Title         *string  `json:"title,omitempty"`
	Content       *string  `json:"content,omitempty"`
	FeaturedImage *string  `json:"featured_image,omitempty"`
	ImageCaption  *string  `json:"image_caption,omitempty"`
	CategoryID    *int64   `json:"category_id,omitempty"`
	TagIDs        *[]int64 `json:"tag_ids,omitempty"`
	IsPublished   *bool    `json:"is_published,omitempty"`
	IsFeatured    *bool    `json:"is_featured,omitempty"`
	Excerpt       *string  `json:"excerpt,omitempty"`
}

// String returns a pointer to s, for building requests.
func String(s string) *string { return &s }

// Bool returns a pointer to b.
func Bool(b bool) *bool { return &b }

// Int64 returns a pointer to n.
func Int64(n int64) *int64 { return &n }

// IDs returns a pointer to a slice of ids.
func IDs(ids ...int64) *[]int64 {
	if ids == nil {
		ids = []int64{}
	}
	return &ids
}

// CreateBlog publishes a new blog, or saves a draft when IsPublished is false.
func (c *Client) CreateBlog(req BlogRequest) (*model.Blog, error) {
	var b model.Blog
	if err := c.call(http.MethodPost, "/api/blogs/", req, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// GetBlog fetches a blog with its comment tree. Each call counts as a view.
func (c *Client) GetBlog(slug string) (*model.BlogDetail, error) {
	var b model.BlogDetail
	if err := c.call(http.MethodGet, "/api/blogs/"+url.PathEscape(slug)+"/", nil, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// BlogQuery holds the filters of ListBlogs.
type BlogQuery struct {
	Category string
	Tag      string
	Featured bool
	AuthorID int64
	Search   string
	Ordering string
	Page     int
	PageSize int
}

func (q BlogQuery) values() url.Values {
	v := url.Values{}
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	if q.Tag != "" {
		v.Set("tag", q.Tag)
	}
	if q.Featured {
		v.Set("featured", "true")
	}
	if q.AuthorID > 0 {
		v.Set("author", strconv.FormatInt(q.AuthorID, 10))
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Ordering != "" {
		v.Set("ordering", q.Ordering)
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		v.Set("page_size", strconv.Itoa(q.PageSize))
	}
	return v
}

// ListBlogs fetches one page of blogs.
func (c *Client) ListBlogs(q BlogQuery) (*model.Page[model.Blog], error) {
	path := "/api/blogs/"
	if v := q.values(); len(v) > 0 {
		path += "?" + v.Encode()
	}
	var page model.Page[model.Blog]
	if err := c.call(http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// UpdateBlog changes only the fields set in req.
func (c *Client) UpdateBlog(slug string, req BlogRequest) (*model.Blog, error) {
	var b model.Blog
	if err := c.call(http.MethodPatch, "/api/blogs/"+url.PathEscape(slug)+"/", req, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// DeleteBlog deletes a blog you wrote.
func (c *Client) DeleteBlog(slug string) error {
	return c.call(http.MethodDelete, "/api/blogs/"+url.PathEscape(slug)+"/", nil, nil)
}

// CreateCategory creates a category; the server derives its slug.
func (c *Client) CreateCategory(name, description string) (*model.Category, error) {
	body := map[string]string{"name": name, "description": description}
	var cat model.Category
	if err := c.call(http.MethodPost, "/api/categories/", body, &cat); err != nil {
		return nil, err
	}
	return &cat, nil
}

// CreateTag creates a tag.
func (c *Client) CreateTag(name string) (*model.Tag, error) {
	var t model.Tag
	if err := c.call(http.MethodPost, "/api/tags/", map[string]string{"name": name}, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateComment comments on a blog, as a reply when parentID is set.
func (c *Client) CreateComment(slug string, parentID *int64, content string) (*model.Comment, error) {
	body := map[string]any{"content": content}
	if parentID != nil {
		body["parent"] = *parentID
	}
	var comment model.Comment
	if err := c.call(http.MethodPost, "/api/blogs/"+url.PathEscape(slug)+"/comments/", body, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

// ToggleFollow follows the user, or unfollows when already following. It
// returns the resulting status, "followed" or "unfollowed".
func (c *Client) ToggleFollow(userID int64) (string, error) {
	var result struct {
		Status string `json:"status"`
	}
	if err := c.call(http.MethodPost, fmt.Sprintf("/api/users/%d/follow/", userID), nil, &result); err != nil {
		return "", err
	}
	return result.Status, nil
}

// Search runs a full-text search over blogs.
func (c *Client) Search(query string, page int) (*model.Page[model.Blog], error) {
	v := url.Values{"q": {query}}
	if page > 1 {
		v.Set("page", strconv.Itoa(page))
	}
	var result model.Page[model.Blog]
	if err := c.call(http.MethodGet, "/api/search/?"+v.Encode(), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// TestHelper provides utilities for creating authenticated clients in tests.
type TestHelper struct {
	BaseURL  string
	Password string
}

// NewTestHelper creates a new test helper for the given base URL.
func NewTestHelper(baseURL string) *TestHelper {
	return &TestHelper{BaseURL: baseURL, Password: "correct-horse-battery"}
}

// CreateAuthenticatedClient registers the user (if needed) and returns a
// logged-in client along with the user's profile.
func (h *TestHelper) CreateAuthenticatedClient(username string) (*Client, *model.UserProfile, error) {
	c := New(h.BaseURL)
	_, err := c.Register(RegisterRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: h.Password,
	})
	if err != nil && !errors.Is(err, ErrAlreadyRegistered) {
		return nil, nil, fmt.Errorf("register: %w", err)
	}
	if err := c.Login(username, h.Password); err != nil {
		return nil, nil, fmt.Errorf("login: %w", err)
	}
	me, err := c.Me()
	if err != nil {
		return nil, nil, err
	}
	return c, me, nil
}

// GetToken creates a user (if needed) and returns an access token.
func (h *TestHelper) GetToken(username string) (string, error) {
	c, _, err := h.CreateAuthenticatedClient(username)
	if err != nil {
		return "", err
	}
	return c.Token, nil
}
