// Package all wires every built-in storage backend into the storage factory.
//
// It exists purely for side effects: importing it runs the init functions of
// the backend packages, which register their factories under their
// config.Engine:
//
//   - sqlite    (internal/storage/sqlite)
//   - postgres  (internal/storage/postgres)
//   - mysql     (internal/storage/mysql)
//   - sqlserver (internal/storage/mssql)
//
// A binary that needs only a subset can import those backends directly.
package all

import (
	_ "escrowetl/internal/storage/mssql"
	_ "escrowetl/internal/storage/mysql"
	_ "escrowetl/internal/storage/postgres"
	_ "escrowetl/internal/storage/sqlite"
)
