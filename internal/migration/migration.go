package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"

	accessdomain "github.com/stackdesk/stackdesk/internal/access/domain"
	assetdomain "github.com/stackdesk/stackdesk/internal/asset/domain"
	auditdomain "github.com/stackdesk/stackdesk/internal/audit/domain"
	authdomain "github.com/stackdesk/stackdesk/internal/auth/domain"
	kbdomain "github.com/stackdesk/stackdesk/internal/knowledge/domain"
	tenantdomain "github.com/stackdesk/stackdesk/internal/tenant/domain"
	ticketdomain "github.com/stackdesk/stackdesk/internal/ticket/domain"
)

//go:embed migrations
var embeddedMigrations embed.FS

const migrationsDir = "migrations"

// RunMigrations applies the embedded schema so a fresh postgres
// database is usable on first boot.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not close the migrator here because it would close the shared *sql.DB.

	return nil
}

// AutoMigrate covers the sqlite and mysql development paths where the
// versioned postgres migrations do not apply.
func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&tenantdomain.Tenant{},
		&tenantdomain.TenantSettings{},
		&tenantdomain.Profile{},
		&authdomain.User{},
		&authdomain.Session{},
		&authdomain.Identity{},
		&accessdomain.RoleGrant{},
		&accessdomain.UserOverride{},
		&auditdomain.AuditLog{},
		&ticketdomain.Ticket{},
		&assetdomain.Asset{},
		&kbdomain.Article{},
	)
}
