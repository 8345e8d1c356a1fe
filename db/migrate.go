package migrate

import (
	"database/sql"

	"github.com/Sh4yy/FeedStream/util"
	"github.com/golang-migrate/migrate/v4"
	pgdriver "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// RunCoreDBMigration migrates the core database to the latest schema
func RunCoreDBMigration(client *sql.DB) error {
	return RunMigration(client, "./db/migrations/core")
}

// RunMigration runs all migrations in the specified directory
func RunMigration(client *sql.DB, file string) error {
	m, err := newMigrateInstance(client, file)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func newMigrateInstance(client *sql.DB, file string) (*migrate.Migrate, error) {
	dir, err := util.FindFile(file, 3)
	if err != nil {
		return nil, err
	}

	d, err := pgdriver.WithInstance(client, &pgdriver.Config{})
	if err != nil {
		return nil, err
	}

	return migrate.NewWithDatabaseInstance("file://"+dir, "postgres", d)
}
