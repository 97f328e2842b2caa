package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/alphabot-ai/inkwell/internal/model"
	"github.com/alphabot-ai/inkwell/internal/store"
)

func (s *Store) CreateToken(ctx context.Context, token model.Token) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO auth_tokens (token_hash, user_id, kind, expires_at, created_at)
VALUES (?, ?, ?, ?, ?)
`, token.Hash, token.UserID, token.Kind, toMillis(token.ExpiresAt), toMillis(time.Now()))
	if isForeignKeyViolation(err) {
		return store.ErrInvalidReference
	}
	return err
}

func (s *Store) GetToken(ctx context.Context, hash string) (model.Token, error) {
	var t model.Token
	var expires int64
	err := s.db.QueryRowContext(ctx, `
SELECT token_hash, user_id, kind, expires_at FROM auth_tokens WHERE token_hash = ?
`, hash).Scan(&t.Hash, &t.UserID, &t.Kind, &expires)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Token{}, store.ErrNotFound
		}
		return model.Token{}, err
	}
	t.ExpiresAt = fromMillis(expires)
	return t, nil
}

func (s *Store) DeleteUserTokens(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM auth_tokens WHERE user_id = ?`, userID)
	return err
}

// PurgeExpiredTokens deletes tokens that expired before now and reports how many.
func (s *Store) PurgeExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM auth_tokens WHERE expires_at <= ?`, toMillis(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
