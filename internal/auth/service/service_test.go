package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/stackdesk/stackdesk/internal/auth/domain"
	"github.com/stackdesk/stackdesk/internal/auth/repository"
	"github.com/stackdesk/stackdesk/pkg/db"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) authdomain.Service {
	t.Helper()

	dbConn, err := db.NewTest()
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := dbConn.AutoMigrate(&authdomain.User{}, &authdomain.Session{}, &authdomain.Identity{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	repo, sessionRepo, identityRepo := repository.New(dbConn)
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to create snowflake node: %v", err)
	}

	return New(zap.NewNop(), repo, sessionRepo, identityRepo, node)
}

func createConfirmedUser(t *testing.T, svc authdomain.Service, email, password string) *authdomain.User {
	t.Helper()
	user, err := svc.CreateUser(context.Background(), authdomain.CreateUserRequest{
		Email:     email,
		Password:  password,
		Confirmed: true,
	})
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}

func TestLoginWrongPassword(t *testing.T) {
	svc := newTestService(t)
	createConfirmedUser(t, svc, "alice@example.com", "correct-password")

	_, err := svc.Login(context.Background(), authdomain.LoginRequest{
		Email:    "alice@example.com",
		Password: "wrong-password",
	})
	if err != authdomain.ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginUnknownUser(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Login(context.Background(), authdomain.LoginRequest{
		Email:    "nobody@example.com",
		Password: "whatever-password",
	})
	if err != authdomain.ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginUnconfirmedEmail(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.CreateUser(context.Background(), authdomain.CreateUserRequest{
		Email:    "bob@example.com",
		Password: "secret-password",
	})
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	_, err = svc.Login(context.Background(), authdomain.LoginRequest{
		Email:    "bob@example.com",
		Password: "secret-password",
	})
	if err != authdomain.ErrEmailNotConfirmed {
		t.Fatalf("expected ErrEmailNotConfirmed, got %v", err)
	}
}

func TestLoginAndAuthenticate(t *testing.T) {
	svc := newTestService(t)
	user := createConfirmedUser(t, svc, "carol@example.com", "secret-password")

	result, err := svc.Login(context.Background(), authdomain.LoginRequest{
		Email:    "Carol@Example.com",
		Password: "secret-password",
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if result.RawToken == "" {
		t.Fatal("expected a raw token")
	}
	if result.User == nil || result.User.ID != user.ID {
		t.Fatal("expected login result to carry the user")
	}

	session, err := svc.Authenticate(context.Background(), result.RawToken)
	if err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}
	if session.UserID != user.ID {
		t.Fatalf("expected session for user %s, got %s", user.ID, session.UserID)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	svc := newTestService(t)
	createConfirmedUser(t, svc, "dave@example.com", "secret-password")

	result, err := svc.Login(context.Background(), authdomain.LoginRequest{
		Email:    "dave@example.com",
		Password: "secret-password",
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	if err := svc.Logout(context.Background(), result.RawToken); err != nil {
		t.Fatalf("logout failed: %v", err)
	}

	_, err = svc.Authenticate(context.Background(), result.RawToken)
	if err != authdomain.ErrSessionRevoked {
		t.Fatalf("expected ErrSessionRevoked, got %v", err)
	}
}

func TestUnlinkLastIdentity(t *testing.T) {
	svc := newTestService(t)
	user := createConfirmedUser(t, svc, "erin@example.com", "secret-password")

	identities, err := svc.ListIdentities(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("list identities failed: %v", err)
	}
	if len(identities) != 1 {
		t.Fatalf("expected 1 identity, got %d", len(identities))
	}

	err = svc.UnlinkIdentity(context.Background(), user.ID, identities[0].ID)
	if err != authdomain.ErrLastIdentity {
		t.Fatalf("expected ErrLastIdentity, got %v", err)
	}
}

func TestLinkAndUnlinkIdentity(t *testing.T) {
	svc := newTestService(t)
	user := createConfirmedUser(t, svc, "frank@example.com", "secret-password")

	linked, err := svc.LinkIdentity(context.Background(), authdomain.LinkIdentityRequest{
		UserID:     user.ID,
		Provider:   "google",
		ProviderID: "google-oauth2|12345",
		Email:      "frank@example.com",
	})
	if err != nil {
		t.Fatalf("link identity failed: %v", err)
	}

	_, err = svc.LinkIdentity(context.Background(), authdomain.LinkIdentityRequest{
		UserID:     user.ID,
		Provider:   "google",
		ProviderID: "google-oauth2|67890",
	})
	if err != authdomain.ErrIdentityExists {
		t.Fatalf("expected ErrIdentityExists, got %v", err)
	}

	if err := svc.UnlinkIdentity(context.Background(), user.ID, linked.ID); err != nil {
		t.Fatalf("unlink identity failed: %v", err)
	}

	identities, err := svc.ListIdentities(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("list identities failed: %v", err)
	}
	if len(identities) != 1 {
		t.Fatalf("expected 1 identity left, got %d", len(identities))
	}
}
