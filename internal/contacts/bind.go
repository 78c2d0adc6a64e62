package contacts

// Record is a handle bound to whatever the address book knows about it.
// Name is empty when the identifier resolved to no contact, which is the
// normal case for unknown numbers.
type Record struct {
	Handle int64  `json:"handle"`
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
}

// Bind joins the loaded handles against the resolver, producing one record
// per handle keyed by the message store's handle rowid. Records are built
// once and never mutated afterwards.
func Bind(handles []Handle, resolver *Resolver) map[int64]Record {
	records := make(map[int64]Record, len(handles))
	for _, h := range handles {
		rec := Record{Handle: h.RowID, ID: h.ID}
		if name, ok := resolver.Lookup(h.ID); ok {
			rec.Name = name
		}
		records[h.RowID] = rec
	}
	return records
}
