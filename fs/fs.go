package appfs

import "embed"

// FS holds the database migrations, one directory per engine.
//
//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var FS embed.FS
