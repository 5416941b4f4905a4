package sqlite

import (
	"fmt"
	"net/url"
	"testing"
)

// newTestDB opens a migrated, shared in-memory database unique to the
// calling test. cache=shared makes the writer and reader pools see the same
// data; the test name keys the database so parallel tests stay isolated.
func newTestDB(t *testing.T) *DB {
	t.Helper()

	// The test name may contain slashes from subtests; escape it so it stays
	// a plain filename component in the URI.
	uri := fmt.Sprintf(
		"file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)",
		url.PathEscape(t.Name()),
	)

	writer, err := openPool(uri, 1)
	if err != nil {
		t.Fatalf("open test writer: %v", err)
	}

	reader, err := openPool(uri, 4)
	if err != nil {
		_ = writer.Close()
		t.Fatalf("open test reader: %v", err)
	}

	db := &DB{Writer: writer, Reader: reader, path: uri}
	t.Cleanup(func() { _ = db.Close() })

	if err := Migrate(db.Writer); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	return db
}
