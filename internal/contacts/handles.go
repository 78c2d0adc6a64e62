package contacts

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/nathan-walker/marchiver/internal/identifier"
)

// Handle pairs the message store's internal handle rowid with the
// normalized identifier it stands for.
type Handle struct {
	ID    string `db:"id"`
	RowID int64  `db:"rowid"`
}

// LoadHandles reads every handle the message store knows about, in table
// order. Identifiers are normalized so they can be matched against the
// address book. Nothing downstream works without handles, so any failure
// here is fatal.
func LoadHandles(db *sqlx.DB) ([]Handle, error) {
	var handles []Handle
	if err := db.Select(&handles, `SELECT id, ROWID AS rowid FROM handle`); err != nil {
		return nil, fmt.Errorf("failed to load handles: %w", err)
	}
	for i := range handles {
		handles[i].ID = identifier.Normalize(handles[i].ID)
	}
	return handles, nil
}
