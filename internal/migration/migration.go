package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	auditdomain "github.com/smallbiznis/claimflow/internal/audit/domain"
	claimdomain "github.com/smallbiznis/claimflow/internal/claim/domain"
	documentdomain "github.com/smallbiznis/claimflow/internal/document/domain"
	"github.com/smallbiznis/claimflow/internal/gap/payment"
	historydomain "github.com/smallbiznis/claimflow/internal/history/domain"
	invoicedomain "github.com/smallbiznis/claimflow/internal/invoice/domain"
	"gorm.io/gorm"
)

// Source opens the embedded migration files.
func Source() (source.Driver, error) {
	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("open migrations: %w", err)
	}
	src, err := iofs.New(sub, ".")
	if err != nil {
		return nil, fmt.Errorf("create migration source: %w", err)
	}
	return src, nil
}

// RunMigrations applies every pending migration to a postgres database.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	src, err := Source()
	if err != nil {
		return err
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: "claim_schema_migrations"})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// Models lists every table the claim engine owns, parents first.
func Models() []any {
	return []any{
		&claimdomain.Insurer{}, &claimdomain.Policy{},
		&invoicedomain.Invoice{}, &invoicedomain.InvoiceItem{},
		&documentdomain.Document{}, &documentdomain.PatientDocument{},
		&historydomain.ClinicalEvent{}, &historydomain.ClinicalNote{},
		&claimdomain.Claim{}, &claimdomain.ClaimItem{}, &claimdomain.ChargeReference{},
		&claimdomain.Attachment{}, &claimdomain.ClaimAdjustment{},
		&auditdomain.AuditLog{},
		&payment.GapPayment{},
	}
}

// AutoMigrate creates the schema from the models. Used for sqlite and mysql, which the embedded
// migrations do not target.
func AutoMigrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
