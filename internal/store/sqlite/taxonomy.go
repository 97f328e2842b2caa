package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/alphabot-ai/inkwell/internal/model"
	"github.com/alphabot-ai/inkwell/internal/store"
)

const categoryColumns = `c.id, c.name, c.slug, c.description, c.created_at,
	(SELECT COUNT(*) FROM blogs b WHERE b.category_id = c.id)`

func (s *Store) CreateCategory(ctx context.Context, c *model.Category) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
INSERT INTO categories (name, slug, description, created_at)
VALUES (?, ?, ?, ?)
`, c.Name, c.Slug, c.Description, toMillis(c.CreatedAt))
	if err != nil {
		return 0, taxonomyConflict(err)
	}
	return res.LastInsertId()
}

func (s *Store) GetCategory(ctx context.Context, id int64) (model.Category, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories c WHERE c.id = ?`, id)
	return scanCategory(row)
}

func (s *Store) GetCategoryBySlug(ctx context.Context, slug string) (model.Category, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories c WHERE c.slug = ?`, slug)
	return scanCategory(row)
}

func (s *Store) ListCategories(ctx context.Context, search string, page store.Page) ([]model.Category, int, error) {
	where := ""
	var args []any
	for _, term := range strings.Fields(search) {
		p := likePattern(term)
		where += ` AND (fold(c.name) LIKE ? ESCAPE '\' OR fold(c.description) LIKE ? ESCAPE '\')`
		args = append(args, p, p)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories c WHERE 1=1`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+categoryColumns+` FROM categories c WHERE 1=1`+where+
		` ORDER BY c.name ASC`+pageClause(page.Limit, page.Offset), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	categories := []model.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, 0, err
		}
		categories = append(categories, c)
	}
	return categories, total, rows.Err()
}

func (s *Store) UpdateCategory(ctx context.Context, c *model.Category) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE categories SET name = ?, slug = ?, description = ? WHERE id = ?
`, c.Name, c.Slug, c.Description, c.ID)
	if err != nil {
		return taxonomyConflict(err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreateTag(ctx context.Context, t *model.Tag) (int64, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO tags (name, slug) VALUES (?, ?)`, t.Name, t.Slug)
	if err != nil {
		return 0, taxonomyConflict(err)
	}
	return res.LastInsertId()
}

func (s *Store) GetTagBySlug(ctx context.Context, slug string) (model.Tag, error) {
	var t model.Tag
	err := s.db.QueryRowContext(ctx, `SELECT id, name, slug FROM tags WHERE slug = ?`, slug).Scan(&t.ID, &t.Name, &t.Slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Tag{}, store.ErrNotFound
		}
		return model.Tag{}, err
	}
	return t, nil
}

func (s *Store) ListTags(ctx context.Context, search string, page store.Page) ([]model.Tag, int, error) {
	where := ""
	var args []any
	for _, term := range strings.Fields(search) {
		where += ` AND fold(name) LIKE ? ESCAPE '\'`
		args = append(args, likePattern(term))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tags WHERE 1=1`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, name, slug FROM tags WHERE 1=1`+where+
		` ORDER BY name ASC`+pageClause(page.Limit, page.Offset), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	tags := []model.Tag{}
	for rows.Next() {
		var t model.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Slug); err != nil {
			return nil, 0, err
		}
		tags = append(tags, t)
	}
	return tags, total, rows.Err()
}

func (s *Store) UpdateTag(ctx context.Context, t *model.Tag) error {
	res, err := s.db.ExecContext(ctx, `UPDATE tags SET name = ?, slug = ? WHERE id = ?`, t.Name, t.Slug, t.ID)
	if err != nil {
		return taxonomyConflict(err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteTag(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tags WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return store.ErrNotFound
	}
	return nil
}

func scanCategory(row scanner) (model.Category, error) {
	var c model.Category
	var created int64
	if err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &created, &c.BlogCount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Category{}, store.ErrNotFound
		}
		return model.Category{}, err
	}
	c.CreatedAt = fromMillis(created)
	return c, nil
}

// taxonomyConflict tells a name clash from a slug clash; both columns are unique.
func taxonomyConflict(err error) error {
	if !isUniqueViolation(err) {
		return err
	}
	if strings.Contains(err.Error(), ".slug") {
		return store.ErrDuplicateSlug
	}
	return store.ErrDuplicateName
}
