package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/alphabot-ai/inkwell/internal/model"
	"github.com/alphabot-ai/inkwell/internal/store"
)

const userColumns = `id, username, email, first_name, last_name, password_hash, is_staff, is_active, created_at`

func (s *Store) CreateUser(ctx context.Context, user *model.User) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
INSERT INTO users (username, email, first_name, last_name, password_hash, is_staff, is_active, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`, user.Username, user.Email, user.FirstName, user.LastName, user.PasswordHash, boolToInt(user.IsStaff), boolToInt(user.IsActive), toMillis(user.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return 0, store.ErrDuplicateUsername
		}
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) GetUser(ctx context.Context, id int64) (model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	return scanUser(row)
}

func (s *Store) UpdateUser(ctx context.Context, user *model.User) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE users SET username = ?, email = ?, first_name = ?, last_name = ?, password_hash = ?, is_staff = ?, is_active = ?
WHERE id = ?
`, user.Username, user.Email, user.FirstName, user.LastName, user.PasswordHash, boolToInt(user.IsStaff), boolToInt(user.IsActive), user.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicateUsername
		}
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) GetUserProfile(ctx context.Context, id int64) (model.UserProfile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+profileColumns("u")+` FROM users u WHERE u.id = ?`, id)
	var p model.UserProfile
	if err := row.Scan(profileDest(&p)...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.UserProfile{}, store.ErrNotFound
		}
		return model.UserProfile{}, err
	}
	return p, nil
}

func scanUser(row scanner) (model.User, error) {
	var u model.User
	var staff, active int
	var created int64
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash, &staff, &active, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, store.ErrNotFound
		}
		return model.User{}, err
	}
	u.IsStaff = staff == 1
	u.IsActive = active == 1
	u.CreatedAt = fromMillis(created)
	return u, nil
}
