package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/alphabot-ai/inkwell/internal/model"
	"github.com/alphabot-ai/inkwell/internal/store"
)

var followSelect = `
SELECT f.id, f.follower_id, f.followed_id, f.created_at,
	` + profileColumns("fr") + `,
	` + profileColumns("fd") + `
FROM user_follows f
JOIN users fr ON fr.id = f.follower_id
JOIN users fd ON fd.id = f.followed_id
`

func (s *Store) CreateFollow(ctx context.Context, followerID, followedID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
INSERT INTO user_follows (follower_id, followed_id, created_at) VALUES (?, ?, ?)
`, followerID, followedID, toMillis(time.Now()))
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return 0, store.ErrDuplicateFollow
		case isForeignKeyViolation(err):
			return 0, store.ErrInvalidReference
		}
		return 0, err
	}
	return res.LastInsertId()
}

// GetFollow returns a follow edge owned by followerID.
func (s *Store) GetFollow(ctx context.Context, id, followerID int64) (model.Follow, error) {
	row := s.db.QueryRowContext(ctx, followSelect+`WHERE f.id = ? AND f.follower_id = ?`, id, followerID)
	return scanFollow(row)
}

func (s *Store) FindFollow(ctx context.Context, followerID, followedID int64) (model.Follow, error) {
	row := s.db.QueryRowContext(ctx, followSelect+`WHERE f.follower_id = ? AND f.followed_id = ?`, followerID, followedID)
	return scanFollow(row)
}

func (s *Store) ListFollows(ctx context.Context, followerID int64, page store.Page) ([]model.Follow, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_follows WHERE follower_id = ?`, followerID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, followSelect+`WHERE f.follower_id = ? ORDER BY f.created_at DESC, f.id DESC`+
		pageClause(page.Limit, page.Offset), followerID)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	follows := []model.Follow{}
	for rows.Next() {
		f, err := scanFollow(rows)
		if err != nil {
			return nil, 0, err
		}
		follows = append(follows, f)
	}
	return follows, total, rows.Err()
}

func (s *Store) DeleteFollow(ctx context.Context, id, followerID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM user_follows WHERE id = ? AND follower_id = ?`, id, followerID)
	if err != nil {
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ListFollowers returns the users following userID.
func (s *Store) ListFollowers(ctx context.Context, userID int64, page store.Page) ([]model.UserProfile, int, error) {
	return s.listFollowProfiles(ctx, "follower_id", "followed_id", userID, page)
}

// ListFollowing returns the users userID follows.
func (s *Store) ListFollowing(ctx context.Context, userID int64, page store.Page) ([]model.UserProfile, int, error) {
	return s.listFollowProfiles(ctx, "followed_id", "follower_id", userID, page)
}

// listFollowProfiles lists the profiles on the `side` column of every edge
// whose `anchor` column equals userID, most recent edge first.
func (s *Store) listFollowProfiles(ctx context.Context, side, anchor string, userID int64, page store.Page) ([]model.UserProfile, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_follows WHERE `+anchor+` = ?`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT `+profileColumns("u")+`
FROM user_follows f
JOIN users u ON u.id = f.`+side+`
WHERE f.`+anchor+` = ?
ORDER BY f.created_at DESC, f.id DESC`+pageClause(page.Limit, page.Offset), userID)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	profiles := []model.UserProfile{}
	for rows.Next() {
		var p model.UserProfile
		if err := rows.Scan(profileDest(&p)...); err != nil {
			return nil, 0, err
		}
		profiles = append(profiles, p)
	}
	return profiles, total, rows.Err()
}

func scanFollow(row scanner) (model.Follow, error) {
	var f model.Follow
	var created int64
	dest := []any{&f.ID, &f.FollowerID, &f.FollowedID, &created}
	dest = append(dest, profileDest(&f.Follower)...)
	dest = append(dest, profileDest(&f.Followed)...)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Follow{}, store.ErrNotFound
		}
		return model.Follow{}, err
	}
	f.CreatedAt = fromMillis(created)
	return f, nil
}
