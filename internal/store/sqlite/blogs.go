package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/alphabot-ai/inkwell/internal/model"
	"github.com/alphabot-ai/inkwell/internal/store"
)

var blogSelect = `
SELECT b.id, b.title, b.slug, b.content, b.featured_image, b.image_caption, b.author_id,
	b.category_id, b.is_published, b.is_featured, b.excerpt, b.created_at, b.updated_at,
	(SELECT COUNT(*) FROM comments cm WHERE cm.blog_id = b.id AND cm.parent_id IS NULL AND cm.is_approved = 1),
	COALESCE((SELECT a.view_count FROM blog_analytics a WHERE a.content_type = '` + model.ContentTypeBlog + `' AND a.object_id = b.id), 0) AS view_count,
	c.name, c.slug, c.description, c.created_at,
	(SELECT COUNT(*) FROM blogs cb WHERE cb.category_id = c.id),
	` + profileColumns("u") + `
FROM blogs b
JOIN users u ON u.id = b.author_id
LEFT JOIN categories c ON c.id = b.category_id
`

const blogFrom = `
FROM blogs b
JOIN users u ON u.id = b.author_id
LEFT JOIN categories c ON c.id = b.category_id
`

// blogOrderings maps accepted ordering keys to SQL expressions.
var blogOrderings = map[string]string{
	"created_at": "b.created_at",
	"updated_at": "b.updated_at",
	"view_count": "view_count",
}

func (s *Store) CreateBlog(ctx context.Context, blog *model.Blog, tagIDs []int64) (id int64, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
INSERT INTO blogs (title, slug, content, featured_image, image_caption, author_id, category_id, is_published, is_featured, excerpt, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, blog.Title, blog.Slug, blog.Content, nullableString(blog.FeaturedImage), blog.ImageCaption, blog.AuthorID,
		nullableInt(blog.CategoryID), boolToInt(blog.IsPublished), boolToInt(blog.IsFeatured), blog.Excerpt,
		toMillis(blog.CreatedAt), toMillis(blog.UpdatedAt))
	if err != nil {
		return 0, blogWriteError(err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if err = setBlogTags(ctx, tx, id, tagIDs); err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) GetBlog(ctx context.Context, id int64) (model.Blog, error) {
	return s.getBlog(ctx, `b.id = ?`, id)
}

func (s *Store) GetBlogBySlug(ctx context.Context, slug string) (model.Blog, error) {
	return s.getBlog(ctx, `b.slug = ?`, slug)
}

func (s *Store) getBlog(ctx context.Context, where string, arg any) (model.Blog, error) {
	row := s.db.QueryRowContext(ctx, blogSelect+`WHERE `+where, arg)
	blog, err := scanBlog(row)
	if err != nil {
		return model.Blog{}, err
	}
	tags, err := s.tagsForBlogs(ctx, []int64{blog.ID})
	if err != nil {
		return model.Blog{}, err
	}
	blog.Tags = tagsOrEmpty(tags[blog.ID])
	return blog, nil
}

func (s *Store) SlugExists(ctx context.Context, slug string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM blogs WHERE slug = ?`, slug).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) ListBlogs(ctx context.Context, f store.BlogFilter) ([]model.Blog, int, error) {
	where, args := blogWhere(f)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*)`+blogFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, blogSelect+where+blogOrderBy(f.Ordering)+pageClause(f.Limit, f.Offset), args...)
	if err != nil {
		return nil, 0, err
	}
	blogs := []model.Blog{}
	for rows.Next() {
		blog, err := scanBlog(rows)
		if err != nil {
			rows.Close()
			return nil, 0, err
		}
		blogs = append(blogs, blog)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, 0, err
	}
	rows.Close()

	ids := make([]int64, len(blogs))
	for i, b := range blogs {
		ids[i] = b.ID
	}
	tags, err := s.tagsForBlogs(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range blogs {
		blogs[i].Tags = tagsOrEmpty(tags[blogs[i].ID])
	}
	return blogs, total, nil
}

func (s *Store) UpdateBlog(ctx context.Context, blog *model.Blog, tagIDs []int64, replaceTags bool) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
UPDATE blogs SET title = ?, slug = ?, content = ?, featured_image = ?, image_caption = ?, category_id = ?,
	is_published = ?, is_featured = ?, excerpt = ?, updated_at = ?
WHERE id = ?
`, blog.Title, blog.Slug, blog.Content, nullableString(blog.FeaturedImage), blog.ImageCaption, nullableInt(blog.CategoryID),
		boolToInt(blog.IsPublished), boolToInt(blog.IsFeatured), blog.Excerpt, toMillis(blog.UpdatedAt), blog.ID)
	if err != nil {
		return blogWriteError(err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		err = store.ErrNotFound
		return err
	}
	if replaceTags {
		if _, err = tx.ExecContext(ctx, `DELETE FROM blog_tags WHERE blog_id = ?`, blog.ID); err != nil {
			return err
		}
		if err = setBlogTags(ctx, tx, blog.ID, tagIDs); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// DeleteBlog removes the blog with its comments, tag links and analytics row.
func (s *Store) DeleteBlog(ctx context.Context, id int64) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM blog_analytics WHERE content_type = ? AND object_id = ?`, model.ContentTypeBlog, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM blogs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		err = store.ErrNotFound
		return err
	}
	return tx.Commit()
}

// setBlogTags links the blog to every id that names an existing tag; unknown
// ids are skipped.
func setBlogTags(ctx context.Context, tx *sql.Tx, blogID int64, tagIDs []int64) error {
	for _, tagID := range tagIDs {
		if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO blog_tags (blog_id, tag_id)
SELECT ?, id FROM tags WHERE id = ?
`, blogID, tagID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) tagsForBlogs(ctx context.Context, blogIDs []int64) (map[int64][]model.Tag, error) {
	out := make(map[int64][]model.Tag, len(blogIDs))
	if len(blogIDs) == 0 {
		return out, nil
	}
	args := make([]any, len(blogIDs))
	for i, id := range blogIDs {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT bt.blog_id, t.id, t.name, t.slug
FROM blog_tags bt
JOIN tags t ON t.id = bt.tag_id
WHERE bt.blog_id IN (`+placeholders(len(blogIDs))+`)
ORDER BY t.name ASC
`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var blogID int64
		var t model.Tag
		if err := rows.Scan(&blogID, &t.ID, &t.Name, &t.Slug); err != nil {
			return nil, err
		}
		out[blogID] = append(out[blogID], t)
	}
	return out, rows.Err()
}

func blogWhere(f store.BlogFilter) (string, []any) {
	var conds []string
	var args []any

	if f.ViewerID > 0 {
		conds = append(conds, `(b.is_published = 1 OR b.author_id = ?)`)
		args = append(args, f.ViewerID)
	} else {
		conds = append(conds, `b.is_published = 1`)
	}
	if f.CategorySlug != "" {
		conds = append(conds, `c.slug = ?`)
		args = append(args, f.CategorySlug)
	}
	if f.TagSlug != "" {
		conds = append(conds, `EXISTS (SELECT 1 FROM blog_tags bt JOIN tags t ON t.id = bt.tag_id WHERE bt.blog_id = b.id AND t.slug = ?)`)
		args = append(args, f.TagSlug)
	}
	if f.FeaturedOnly {
		conds = append(conds, `b.is_featured = 1`)
	}
	if f.AuthorID > 0 {
		conds = append(conds, `b.author_id = ?`)
		args = append(args, f.AuthorID)
	}
	for _, term := range f.SearchTerms {
		if strings.TrimSpace(term) == "" {
			continue
		}
		p := likePattern(term)
		cond := `(fold(b.title) LIKE ? ESCAPE '\' OR fold(b.content) LIKE ? ESCAPE '\' OR fold(c.name) LIKE ? ESCAPE '\'
	OR EXISTS (SELECT 1 FROM blog_tags bt JOIN tags t ON t.id = bt.tag_id WHERE bt.blog_id = b.id AND fold(t.name) LIKE ? ESCAPE '\')`
		args = append(args, p, p, p, p)
		if f.SearchAuthor {
			cond += ` OR fold(u.username) LIKE ? ESCAPE '\'`
			args = append(args, p)
		}
		conds = append(conds, cond+`)`)
	}
	return `WHERE ` + strings.Join(conds, " AND "), args
}

// blogOrderBy turns a comma separated ordering ("-view_count,created_at")
// into ORDER BY. Unknown keys are ignored; newest first is the default.
func blogOrderBy(ordering string) string {
	var parts []string
	tie := "DESC"
	for _, key := range strings.Split(ordering, ",") {
		key = strings.TrimSpace(key)
		dir := "ASC"
		if strings.HasPrefix(key, "-") {
			dir = "DESC"
			key = key[1:]
		}
		if expr, ok := blogOrderings[key]; ok {
			if len(parts) == 0 {
				tie = dir
			}
			parts = append(parts, expr+" "+dir)
		}
	}
	if len(parts) == 0 {
		parts = append(parts, "b.created_at DESC")
	}
	// Rows created within the same millisecond keep insertion order.
	return " ORDER BY " + strings.Join(parts, ", ") + ", b.id " + tie
}

func scanBlog(row scanner) (model.Blog, error) {
	var b model.Blog
	var image sql.NullString
	var categoryID sql.NullInt64
	var published, featured int
	var created, updated int64
	var catName, catSlug, catDesc sql.NullString
	var catCreated sql.NullInt64
	var catBlogs int
	dest := []any{&b.ID, &b.Title, &b.Slug, &b.Content, &image, &b.ImageCaption, &b.AuthorID,
		&categoryID, &published, &featured, &b.Excerpt, &created, &updated,
		&b.CommentsCount, &b.ViewCount,
		&catName, &catSlug, &catDesc, &catCreated, &catBlogs}
	dest = append(dest, profileDest(&b.Author)...)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Blog{}, store.ErrNotFound
		}
		return model.Blog{}, err
	}
	if image.Valid {
		img := image.String
		b.FeaturedImage = &img
	}
	if categoryID.Valid {
		id := categoryID.Int64
		b.CategoryID = &id
		b.Category = &model.Category{
			ID:          id,
			Name:        catName.String,
			Slug:        catSlug.String,
			Description: catDesc.String,
			BlogCount:   catBlogs,
			CreatedAt:   fromMillis(catCreated.Int64),
		}
	}
	b.IsPublished = published == 1
	b.IsFeatured = featured == 1
	b.CreatedAt = fromMillis(created)
	b.UpdatedAt = fromMillis(updated)
	return b, nil
}

func tagsOrEmpty(tags []model.Tag) []model.Tag {
	if tags == nil {
		return []model.Tag{}
	}
	return tags
}

func blogWriteError(err error) error {
	switch {
	case isUniqueViolation(err):
		return store.ErrDuplicateSlug
	case isForeignKeyViolation(err):
		return store.ErrInvalidReference
	}
	return err
}
