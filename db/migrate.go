// Package migrate runs the schema migrations under db/migrations at
// startup. The teacher's version of this file handles a superuser-role
// escalation step for migrations marked with a sudo flag comment; this
// schema has exactly one unprivileged table, so that machinery is dropped
// in favor of a plain golang-migrate run.
package migrate

import (
	"database/sql"

	"github.com/golang-migrate/migrate/v4"
	pgdriver "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/mikeydub/indexing-serv/util"
)

// RunMigrations applies all unapplied migrations in dir to client. A
// migration failure is fatal per spec §7: the caller should exit the
// process with a non-zero status.
func RunMigrations(client *sql.DB, dir string) error {
	m, err := newMigrateInstance(client, dir)
	if err != nil {
		return err
	}
	defer m.Close()

	err = m.Up()
	if err == migrate.ErrNoChange {
		return nil
	}
	return err
}

func newMigrateInstance(client *sql.DB, dir string) (*migrate.Migrate, error) {
	dir, err := util.FindFile(dir, 3)
	if err != nil {
		return nil, err
	}

	d, err := pgdriver.WithInstance(client, &pgdriver.Config{})
	if err != nil {
		return nil, err
	}

	return migrate.NewWithDatabaseInstance("file://"+dir, "postgres", d)
}
