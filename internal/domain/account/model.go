package account

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/vitalia/portal/internal/domain/profile"
)

var (
	ErrNotFound           = errors.New("account not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid login credentials")
)

// Account maps to the accounts table.
type Account struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// User is the public view of an account.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type SignUpRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	FullName string  `json:"full_name"`
	Role     string  `json:"role"`
	Age      *int    `json:"age"`
	Gender   *string `json:"gender"`
}

type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RecoverRequest struct {
	Email string `json:"email"`
}

type ResetRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// Session is returned by sign-up and sign-in.
type Session struct {
	AccessToken string           `json:"access_token"`
	TokenType   string           `json:"token_type"`
	ExpiresIn   int              `json:"expires_in"`
	ExpiresAt   int64            `json:"expires_at"`
	User        *User            `json:"user"`
	Profile     *profile.Profile `json:"profile"`
}

// Current is the signed-in caller. Profile is nil until one exists.
type Current struct {
	User    *User            `json:"user"`
	Profile *profile.Profile `json:"profile"`
}
