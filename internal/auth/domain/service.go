package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	CreateUser(ctx context.Context, req CreateUserRequest) (*User, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	Logout(ctx context.Context, rawToken string) error
	Authenticate(ctx context.Context, rawToken string) (*Session, error)
	UserByID(ctx context.Context, id snowflake.ID) (*User, error)
	ChangePassword(ctx context.Context, userID snowflake.ID, newPassword string) error
	ListIdentities(ctx context.Context, userID snowflake.ID) ([]Identity, error)
	LinkIdentity(ctx context.Context, req LinkIdentityRequest) (*Identity, error)
	UnlinkIdentity(ctx context.Context, userID snowflake.ID, identityID snowflake.ID) error
}

type CreateUserRequest struct {
	Email       string
	Password    string
	DisplayName string
	// Confirmed marks the address as verified at creation, used by
	// seeding and admin invites.
	Confirmed bool
}

type LoginRequest struct {
	Email     string
	Password  string
	UserAgent string
	IPAddress string
}

type LoginResult struct {
	User      *User
	RawToken  string
	ExpiresAt time.Time
	SessionID snowflake.ID
}

type LinkIdentityRequest struct {
	UserID     snowflake.ID
	Provider   string
	ProviderID string
	Email      string
}
