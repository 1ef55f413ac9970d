package main

import (
	"database/sql"

	"github.com/pressly/goose/v3"

	"github.com/digitme/digit/storage/database"
)

var gooseRunFunc = goose.Run // mockable

// migrator runs a goose command with its arguments.
type migrator func(args []string) error

func newMigrator(db *sql.DB, engine string) migrator {
	return func(args []string) error {
		if err := database.SetupGoose(engine); err != nil {
			return err
		}
		return gooseRunFunc(args[0], db, database.MigrationsDir(engine), args[1:]...)
	}
}
