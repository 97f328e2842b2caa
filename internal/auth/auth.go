package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/alphabot-ai/inkwell/internal/model"
	"github.com/alphabot-ai/inkwell/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("no active account found with the given credentials")
	ErrInvalidToken       = errors.New("token is invalid or expired")
)

const maxUsernameLen = 150

// ValidationError carries per-field messages for a rejected input.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, field+": "+msg)
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

type Service struct {
	store      store.Store
	accessTTL  time.Duration
	refreshTTL time.Duration
	hashCost   int
}

type RegisterInput struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Password2 string `json:"password2"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Principal is the authenticated caller behind a bearer token.
type Principal struct {
	UserID   int64
	Username string
	IsStaff  bool
}

func NewService(st store.Store, accessTTL, refreshTTL time.Duration) *Service {
	return &Service{
		store:      st,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		hashCost:   bcrypt.DefaultCost,
	}
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (model.UserProfile, error) {
	fields := map[string]string{}
	if msg := ValidateUsername(in.Username); msg != "" {
		fields["username"] = msg
	}
	if msg := ValidateEmail(in.Email); msg != "" {
		fields["email"] = msg
	}
	switch {
	case in.Password == "":
		fields["password"] = "This field is required."
	case in.Password != in.Password2:
		fields["password"] = "Password fields didn't match."
	}
	if len(fields) > 0 {
		return model.UserProfile{}, &ValidationError{Fields: fields}
	}

	id, err := s.createUser(ctx, model.User{
		Username:  in.Username,
		Email:     strings.TrimSpace(in.Email),
		FirstName: in.FirstName,
		LastName:  in.LastName,
		IsActive:  true,
	}, in.Password)
	if err != nil {
		return model.UserProfile{}, err
	}
	return s.store.GetUserProfile(ctx, id)
}

// CreateAdmin creates an active staff account.
func (s *Service) CreateAdmin(ctx context.Context, username, email, password string) (model.User, error) {
	fields := map[string]string{}
	if msg := ValidateUsername(username); msg != "" {
		fields["username"] = msg
	}
	if msg := ValidateEmail(email); msg != "" {
		fields["email"] = msg
	}
	if password == "" {
		fields["password"] = "This field is required."
	}
	if len(fields) > 0 {
		return model.User{}, &ValidationError{Fields: fields}
	}
	id, err := s.createUser(ctx, model.User{Username: username, Email: email, IsStaff: true, IsActive: true}, password)
	if err != nil {
		return model.User{}, err
	}
	return s.store.GetUser(ctx, id)
}

func (s *Service) createUser(ctx context.Context, u model.User, password string) (int64, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = string(hash)
	u.CreatedAt = time.Now()
	return s.store.CreateUser(ctx, &u)
}

func (s *Service) Login(ctx context.Context, username, password string) (TokenPair, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, err
	}
	if !user.IsActive {
		return TokenPair{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return TokenPair{}, ErrInvalidCredentials
	}

	access, err := s.issue(ctx, user.ID, model.TokenAccess, s.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.issue(ctx, user.ID, model.TokenRefresh, s.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

// Refresh exchanges a live refresh token for a new access token. The refresh
// token itself stays valid until it expires.
func (s *Service) Refresh(ctx context.Context, refresh string) (string, error) {
	tok, err := s.lookup(ctx, refresh, model.TokenRefresh)
	if err != nil {
		return "", err
	}
	if _, err := s.activeUser(ctx, tok.UserID); err != nil {
		return "", err
	}
	return s.issue(ctx, tok.UserID, model.TokenAccess, s.accessTTL)
}

func (s *Service) Authenticate(ctx context.Context, bearer string) (Principal, error) {
	tok, err := s.lookup(ctx, bearer, model.TokenAccess)
	if err != nil {
		return Principal{}, err
	}
	user, err := s.activeUser(ctx, tok.UserID)
	if err != nil {
		return Principal{}, err
	}
	return Principal{UserID: user.ID, Username: user.Username, IsStaff: user.IsStaff}, nil
}

// Logout revokes every token held by the owner of bearer.
func (s *Service) Logout(ctx context.Context, bearer string) error {
	tok, err := s.lookup(ctx, bearer, model.TokenAccess)
	if err != nil {
		return err
	}
	return s.store.DeleteUserTokens(ctx, tok.UserID)
}

// PurgeExpired drops tokens past their expiry.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	return s.store.PurgeExpiredTokens(ctx, time.Now())
}

func (s *Service) issue(ctx context.Context, userID int64, kind string, ttl time.Duration) (string, error) {
	value, err := randomToken(32)
	if err != nil {
		return "", err
	}
	token := model.Token{
		Hash:      HashToken(value),
		UserID:    userID,
		Kind:      kind,
		ExpiresAt: time.Now().Add(ttl),
	}
	if err := s.store.CreateToken(ctx, token); err != nil {
		return "", err
	}
	return value, nil
}

func (s *Service) lookup(ctx context.Context, value, kind string) (model.Token, error) {
	if value == "" {
		return model.Token{}, ErrInvalidToken
	}
	tok, err := s.store.GetToken(ctx, HashToken(value))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Token{}, ErrInvalidToken
		}
		return model.Token{}, err
	}
	if tok.Kind != kind || !time.Now().Before(tok.ExpiresAt) {
		return model.Token{}, ErrInvalidToken
	}
	return tok, nil
}

func (s *Service) activeUser(ctx context.Context, id int64) (model.User, error) {
	user, err := s.store.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.User{}, ErrInvalidToken
		}
		return model.User{}, err
	}
	if !user.IsActive {
		return model.User{}, ErrInvalidToken
	}
	return user, nil
}

// ValidateUsername returns a message describing why name is not a valid
// username, or "" when it is.
func ValidateUsername(name string) string {
	if name == "" {
		return "This field is required."
	}
	if utf8.RuneCountInString(name) > maxUsernameLen {
		return fmt.Sprintf("Ensure this field has no more than %d characters.", maxUsernameLen)
	}
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("@.+-_", r) {
			continue
		}
		return "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters."
	}
	return ""
}

// ValidateEmail accepts an empty address or anything shaped like local@domain.
func ValidateEmail(email string) string {
	email = strings.TrimSpace(email)
	if email == "" {
		return ""
	}
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 || strings.ContainsAny(email, " \t") {
		return "Enter a valid email address."
	}
	return ""
}

// HashToken is the storage key of a bearer token.
func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

func randomToken(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
