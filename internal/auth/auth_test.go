package auth

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/alphabot-ai/inkwell/internal/model"
	"github.com/alphabot-ai/inkwell/internal/store"
	"github.com/alphabot-ai/inkwell/internal/store/sqlite"
)

func newTestService(t *testing.T, accessTTL, refreshTTL time.Duration) (*Service, *sqlite.Store) {
	t.Helper()
	st, err := sqlite.Open(fmt.Sprintf("file:auth_%s?mode=memory&cache=shared", t.Name()))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	svc := NewService(st, accessTTL, refreshTTL)
	svc.hashCost = bcrypt.MinCost
	return svc, st
}

func register(t *testing.T, svc *Service, username string) model.UserProfile {
	t.Helper()
	p, err := svc.Register(context.Background(), RegisterInput{
		Username: username, Email: username + "@example.com", Password: "s3cret!", Password2: "s3cret!",
	})
	require.NoError(t, err)
	return p
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService(t, time.Minute, time.Hour)
	ctx := context.Background()

	cases := []struct {
		name  string
		in    RegisterInput
		field string
		msg   string
	}{
		{"missing username", RegisterInput{Password: "a", Password2: "a"}, "username", "This field is required."},
		{"bad username", RegisterInput{Username: "no spaces", Password: "a", Password2: "a"}, "username", ""},
		{"long username", RegisterInput{Username: strings.Repeat("a", 151), Password: "a", Password2: "a"}, "username", ""},
		{"bad email", RegisterInput{Username: "ann", Email: "nope", Password: "a", Password2: "a"}, "email", "Enter a valid email address."},
		{"missing password", RegisterInput{Username: "ann"}, "password", "This field is required."},
		{"mismatch", RegisterInput{Username: "ann", Password: "a", Password2: "b"}, "password", "Password fields didn't match."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tc.in)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			require.Contains(t, verr.Fields, tc.field)
			if tc.msg != "" {
				assert.Equal(t, tc.msg, verr.Fields[tc.field])
			}
		})
	}

	p := register(t, svc, "ann.o+test@x")
	assert.Equal(t, "ann.o+test@x", p.Username)

	_, err := svc.Register(ctx, RegisterInput{Username: "ann.o+test@x", Password: "a", Password2: "a"})
	assert.ErrorIs(t, err, store.ErrDuplicateUsername)
}

func TestLoginAndAuthenticate(t *testing.T) {
	svc, st := newTestService(t, time.Minute, time.Hour)
	ctx := context.Background()
	p := register(t, svc, "alice")

	_, err := svc.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "nobody", "s3cret!")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	pair, err := svc.Login(ctx, "alice", "s3cret!")
	require.NoError(t, err)
	require.NotEmpty(t, pair.Access)
	require.NotEmpty(t, pair.Refresh)

	principal, err := svc.Authenticate(ctx, pair.Access)
	require.NoError(t, err)
	assert.Equal(t, p.ID, principal.UserID)
	assert.Equal(t, "alice", principal.Username)
	assert.False(t, principal.IsStaff)

	// Only the hash is stored.
	_, err = st.GetToken(ctx, pair.Access)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = svc.Authenticate(ctx, pair.Refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = svc.Authenticate(ctx, "garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)

	access, err := svc.Refresh(ctx, pair.Refresh)
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, access)
	require.NoError(t, err)
	_, err = svc.Refresh(ctx, pair.Access)
	assert.ErrorIs(t, err, ErrInvalidToken)

	user, err := st.GetUser(ctx, p.ID)
	require.NoError(t, err)
	user.IsActive = false
	require.NoError(t, st.UpdateUser(ctx, &user))
	_, err = svc.Authenticate(ctx, access)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = svc.Login(ctx, "alice", "s3cret!")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestTokenExpiration(t *testing.T) {
	svc, _ := newTestService(t, -time.Second, -time.Second)
	ctx := context.Background()
	register(t, svc, "bob")

	pair, err := svc.Login(ctx, "bob", "s3cret!")
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, pair.Access)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = svc.Refresh(ctx, pair.Refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)

	n, err := svc.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestLogoutRevokesAllTokens(t *testing.T) {
	svc, _ := newTestService(t, time.Minute, time.Hour)
	ctx := context.Background()
	register(t, svc, "carol")

	first, err := svc.Login(ctx, "carol", "s3cret!")
	require.NoError(t, err)
	second, err := svc.Login(ctx, "carol", "s3cret!")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, first.Access))
	_, err = svc.Authenticate(ctx, second.Access)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = svc.Refresh(ctx, first.Refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, svc.Logout(ctx, first.Access), ErrInvalidToken)
}

func TestCreateAdmin(t *testing.T) {
	svc, _ := newTestService(t, time.Minute, time.Hour)
	ctx := context.Background()

	admin, err := svc.CreateAdmin(ctx, "root", "root@example.com", "pw")
	require.NoError(t, err)
	assert.True(t, admin.IsStaff)

	pair, err := svc.Login(ctx, "root", "pw")
	require.NoError(t, err)
	principal, err := svc.Authenticate(ctx, pair.Access)
	require.NoError(t, err)
	assert.True(t, principal.IsStaff)

	_, err = svc.CreateAdmin(ctx, "", "", "")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Fields, 2)
}

func TestValidateEmail(t *testing.T) {
	assert.Empty(t, ValidateEmail(""))
	assert.Empty(t, ValidateEmail("a@b.c"))
	assert.NotEmpty(t, ValidateEmail("@b.c"))
	assert.NotEmpty(t, ValidateEmail("a@"))
	assert.NotEmpty(t, ValidateEmail("a b@c"))
}
