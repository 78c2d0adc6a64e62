package contacts

import (
	"testing"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

func newContactsDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Connect("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open in-memory db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	db.MustExec(`CREATE TABLE ABPerson (ROWID INTEGER PRIMARY KEY, First TEXT, Last TEXT)`)
	db.MustExec(`CREATE TABLE ABMultiValue (record_id INTEGER, value TEXT, property INTEGER)`)
	return db
}

func newMessagesDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Connect("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open in-memory db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	db.MustExec(`CREATE TABLE handle (ROWID INTEGER PRIMARY KEY, id TEXT)`)
	return db
}

func TestLoadHandlesNormalizes(t *testing.T) {
	db := newMessagesDB(t)
	db.MustExec(`INSERT INTO handle (ROWID, id) VALUES (1, '+15551234567'), (2, 'jane@example.com'), (3, 'Amazon')`)

	handles, err := LoadHandles(db)
	if err != nil {
		t.Fatalf("LoadHandles failed: %v", err)
	}
	if len(handles) != 3 {
		t.Fatalf("got %d handles, want 3", len(handles))
	}

	want := map[int64]string{1: "5551234567", 2: "jane@example.com", 3: "Amazon"}
	for _, h := range handles {
		if want[h.RowID] != h.ID {
			t.Errorf("handle %d = %q, want %q", h.RowID, h.ID, want[h.RowID])
		}
	}
}

func TestResolverJoinsPersonAndValues(t *testing.T) {
	db := newContactsDB(t)
	db.MustExec(`INSERT INTO ABPerson (ROWID, First, Last) VALUES (10, 'Jane', 'Doe'), (11, 'Cher', NULL)`)
	db.MustExec(`INSERT INTO ABMultiValue (record_id, value, property) VALUES
		(10, '+1 (555) 123-4567', 3),
		(10, 'jane@example.com', 4),
		(11, '5559876543', 3),
		(10, 'https://example.com', 5)`)

	r, err := NewResolver(db, zap.NewNop())
	if err != nil {
		t.Fatalf("NewResolver failed: %v", err)
	}

	if name, ok := r.Lookup("5551234567"); !ok || name != "Jane Doe" {
		t.Errorf("Lookup phone = %q, %v; want Jane Doe", name, ok)
	}
	if name, ok := r.Lookup("jane@example.com"); !ok || name != "Jane Doe" {
		t.Errorf("Lookup email = %q, %v; want Jane Doe", name, ok)
	}
	// A missing last name must not leave a trailing space.
	if name, _ := r.Lookup("5559876543"); name != "Cher" {
		t.Errorf("Lookup single-name contact = %q, want Cher", name)
	}
	// Property 5 is neither phone nor email and must be ignored.
	if _, ok := r.Lookup("https://example.com"); ok {
		t.Error("Lookup should not resolve non-phone, non-email values")
	}
}

func TestResolverSkipsOrphanValues(t *testing.T) {
	db := newContactsDB(t)
	db.MustExec(`INSERT INTO ABMultiValue (record_id, value, property) VALUES (99, '5550001111', 3)`)

	r, err := NewResolver(db, zap.NewNop())
	if err != nil {
		t.Fatalf("NewResolver failed: %v", err)
	}
	if _, ok := r.Lookup("5550001111"); ok {
		t.Error("a value with no owning person should not resolve")
	}
}

func TestBind(t *testing.T) {
	db := newContactsDB(t)
	db.MustExec(`INSERT INTO ABPerson (ROWID, First, Last) VALUES (1, 'Jane', 'Doe')`)
	db.MustExec(`INSERT INTO ABMultiValue (record_id, value, property) VALUES (1, '5551234567', 3)`)

	r, err := NewResolver(db, zap.NewNop())
	if err != nil {
		t.Fatalf("NewResolver failed: %v", err)
	}

	handles := []Handle{
		{ID: "5551234567", RowID: 7},
		{ID: "5550009999", RowID: 8},
	}
	records := Bind(handles, r)

	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if rec := records[7]; rec.Name != "Jane Doe" || rec.ID != "5551234567" {
		t.Errorf("resolved record = %+v", rec)
	}
	if rec := records[8]; rec.Name != "" {
		t.Errorf("unknown number should have empty name, got %q", rec.Name)
	}
}
