// Package migrations embeds the SQL migration files into the binary so
// the coordinator daemon can migrate its database without the files
// being present on the filesystem.
package migrations

import (
	"embed"

	"github.com/electronicstech/etbus-core/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
