package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/alphabot-ai/inkwell/internal/model"
	"github.com/alphabot-ai/inkwell/internal/store"
)

var commentSelect = `
SELECT c.id, c.blog_id, c.author_id, c.parent_id, c.content, c.is_approved, c.created_at, c.updated_at,
	` + profileColumns("u") + `
FROM comments c
JOIN users u ON u.id = c.author_id
`

func (s *Store) CreateComment(ctx context.Context, c *model.Comment) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
INSERT INTO comments (blog_id, author_id, parent_id, content, is_approved, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, c.BlogID, c.AuthorID, nullableInt(c.ParentID), c.Content, boolToInt(c.IsApproved), toMillis(c.CreatedAt), toMillis(c.UpdatedAt))
	if err != nil {
		if isForeignKeyViolation(err) {
			return 0, store.ErrInvalidReference
		}
		return 0, err
	}
	return res.LastInsertId()
}

// GetComment returns the comment whether or not it is approved.
func (s *Store) GetComment(ctx context.Context, id int64) (model.Comment, error) {
	row := s.db.QueryRowContext(ctx, commentSelect+`WHERE c.id = ?`, id)
	return scanComment(row)
}

// ListTopLevelComments pages through the approved root comments of a blog,
// oldest first.
func (s *Store) ListTopLevelComments(ctx context.Context, blogID int64, page store.Page) ([]model.Comment, int, error) {
	const where = `WHERE c.blog_id = ? AND c.parent_id IS NULL AND c.is_approved = 1`

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM comments c `+where, blogID).Scan(&total); err != nil {
		return nil, 0, err
	}
	comments, err := s.queryComments(ctx, commentSelect+where+` ORDER BY c.created_at ASC, c.id ASC`+pageClause(page.Limit, page.Offset), blogID)
	if err != nil {
		return nil, 0, err
	}
	return comments, total, nil
}

// ListApprovedComments returns every approved comment of a blog, roots and
// replies alike, oldest first.
func (s *Store) ListApprovedComments(ctx context.Context, blogID int64) ([]model.Comment, error) {
	return s.queryComments(ctx, commentSelect+`WHERE c.blog_id = ? AND c.is_approved = 1 ORDER BY c.created_at ASC, c.id ASC`, blogID)
}

func (s *Store) UpdateComment(ctx context.Context, id int64, content string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE comments SET content = ?, updated_at = ? WHERE id = ?`,
		content, toMillis(time.Now()), id)
	if err != nil {
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) SetCommentApproval(ctx context.Context, id int64, approved bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE comments SET is_approved = ? WHERE id = ?`, boolToInt(approved), id)
	if err != nil {
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteComment removes the comment and, through the cascade, its replies.
func (s *Store) DeleteComment(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) queryComments(ctx context.Context, query string, args ...any) ([]model.Comment, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	comments := []model.Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func scanComment(row scanner) (model.Comment, error) {
	var c model.Comment
	var parentID sql.NullInt64
	var approved int
	var created, updated int64
	dest := []any{&c.ID, &c.BlogID, &c.AuthorID, &parentID, &c.Content, &approved, &created, &updated}
	dest = append(dest, profileDest(&c.Author)...)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Comment{}, store.ErrNotFound
		}
		return model.Comment{}, err
	}
	if parentID.Valid {
		p := parentID.Int64
		c.ParentID = &p
	}
	c.IsApproved = approved == 1
	c.CreatedAt = fromMillis(created)
	c.UpdatedAt = fromMillis(updated)
	c.Replies = []model.Comment{}
	return c, nil
}
