package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Repository interface {
	Count(ctx context.Context) (int64, error)
	Create(ctx context.Context, user *User) error
	FindOne(ctx context.Context, user User) (*User, error)
	FindByExternalID(ctx context.Context, externalID string) (*User, error)
	FindByID(ctx context.Context, id snowflake.ID) (*User, error)
	UpdateFields(ctx context.Context, id snowflake.ID, fields map[string]any) error
}

type SessionRepository interface {
	CreateSession(ctx context.Context, session *Session) error
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (*Session, error)
	UpdateLastSeen(ctx context.Context, sessionID snowflake.ID, lastSeen time.Time) error
	RevokeSession(ctx context.Context, sessionID snowflake.ID, revokedAt time.Time) error
	RevokeUserSessions(ctx context.Context, userID snowflake.ID, revokedAt time.Time) error
}

type IdentityRepository interface {
	CreateIdentity(ctx context.Context, identity *Identity) error
	ListIdentities(ctx context.Context, userID snowflake.ID) ([]Identity, error)
	DeleteIdentity(ctx context.Context, userID snowflake.ID, identityID snowflake.ID) error
}
