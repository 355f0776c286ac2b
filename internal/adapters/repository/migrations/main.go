// Package migrations holds the schema of the tournament store. Migration
// names are taken from the registering file names, so the newest applied
// name identifies the schema a snapshot was taken under.
package migrations

import "github.com/uptrace/bun/migrate"

// Migrations is the ordered set applied by the store and the migrate command.
var Migrations = migrate.NewMigrations()
