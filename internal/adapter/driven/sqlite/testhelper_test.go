package sqlite

import (
	"context"
	"fmt"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

// setupTestDB creates a named shared in-memory SQLite database with every
// migration applied. Writer and reader share the database via cache=shared,
// and the name derived from t.Name() keeps parallel tests isolated.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	// Percent-encode the test name so subtest slashes cannot be read as URI
	// path segments or query parameters.
	name := url.PathEscape(t.Name())
	// WAL mode is not applicable to in-memory databases.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&%s", name, dsnPragmas)

	db, err := openDSN(context.Background(), dsn, name)
	require.NoError(t, err, "open test db")
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, RunMigrations(db.Writer), "run migrations")

	return db
}
