package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/alphabot-ai/inkwell/internal/model"
	"github.com/alphabot-ai/inkwell/internal/store"
)

// IncrementView bumps the counter for (contentType, objectID), creating it on
// first view. The upsert is a single statement so concurrent views never lose
// an increment.
func (s *Store) IncrementView(ctx context.Context, contentType string, objectID int64) (model.Analytics, error) {
	row := s.db.QueryRowContext(ctx, `
INSERT INTO blog_analytics (content_type, object_id, view_count, last_viewed)
VALUES (?, ?, 1, ?)
ON CONFLICT(content_type, object_id) DO UPDATE SET
	view_count = view_count + 1,
	last_viewed = excluded.last_viewed
RETURNING id, content_type, object_id, view_count, last_viewed
`, contentType, objectID, toMillis(time.Now()))
	return scanAnalytics(row)
}

func (s *Store) GetAnalytics(ctx context.Context, contentType string, objectID int64) (model.Analytics, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, content_type, object_id, view_count, last_viewed
FROM blog_analytics WHERE content_type = ? AND object_id = ?
`, contentType, objectID)
	return scanAnalytics(row)
}

func scanAnalytics(row scanner) (model.Analytics, error) {
	var a model.Analytics
	var last int64
	if err := row.Scan(&a.ID, &a.ContentType, &a.ObjectID, &a.ViewCount, &last); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Analytics{}, store.ErrNotFound
		}
		return model.Analytics{}, err
	}
	a.LastViewed = fromMillis(last)
	return a, nil
}
