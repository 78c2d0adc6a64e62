// Package contacts joins the message store's handle table against the
// device address book, producing one bound record per handle.
package contacts

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/nathan-walker/marchiver/internal/identifier"
)

// ABMultiValue property codes for the value kinds that can appear as
// message handles.
const (
	propertyPhone = 3
	propertyEmail = 4
)

// Resolver maps a normalized phone number or email address to a display
// name from the address book.
type Resolver struct {
	names map[string]string
}

type personRow struct {
	RowID int64          `db:"rowid"`
	First sql.NullString `db:"first"`
	Last  sql.NullString `db:"last"`
}

type multiValueRow struct {
	RecordID sql.NullInt64  `db:"record_id"`
	Value    sql.NullString `db:"value"`
}

// NewResolver loads the address book. Person rows come first so that
// multi-value rows can be joined to their owner; a value row whose owner is
// missing from the person table is a malformed-export artifact and is
// skipped with a log.
func NewResolver(db *sqlx.DB, log *zap.Logger) (*Resolver, error) {
	var persons []personRow
	if err := db.Select(&persons, `SELECT ROWID AS rowid, First AS first, Last AS last FROM ABPerson`); err != nil {
		return nil, fmt.Errorf("failed to load address book persons: %w", err)
	}
	people := make(map[int64]string, len(persons))
	for _, p := range persons {
		people[p.RowID] = joinName(p.First.String, p.Last.String)
	}

	var values []multiValueRow
	if err := db.Select(&values,
		`SELECT record_id, value FROM ABMultiValue WHERE property = ? OR property = ?`,
		propertyPhone, propertyEmail,
	); err != nil {
		return nil, fmt.Errorf("failed to load address book values: %w", err)
	}

	names := make(map[string]string, len(values))
	for _, v := range values {
		if !v.Value.Valid || v.Value.String == "" {
			continue
		}
		name, ok := people[v.RecordID.Int64]
		if !ok {
			log.Warn("address book value has no owning person",
				zap.String("value", v.Value.String),
				zap.Int64("record_id", v.RecordID.Int64))
			continue
		}
		names[identifier.Normalize(v.Value.String)] = name
	}

	return &Resolver{names: names}, nil
}

// Lookup returns the display name bound to a normalized identifier.
func (r *Resolver) Lookup(id string) (string, bool) {
	name, ok := r.names[id]
	return name, ok
}

func joinName(first, last string) string {
	return strings.TrimSpace(first + " " + last)
}
