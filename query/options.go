package query

// Options carries the per-call knobs of the driver contract. Skip and Limit
// apply to find; Multi and Upsert apply to the query-style write verbs.
type Options struct {
	// Skip is the number of rows to pass over. Negative values clamp to 0.
	Skip int
	// Limit caps the number of rows returned; 0 means unlimited. Negative
	// values clamp to 0.
	Limit int
	// Multi makes UpdateQuery/RemoveQuery affect every match instead of the
	// first.
	Multi bool
	// Upsert makes UpdateQuery synthesize and insert an entity when the
	// criteria matches nothing.
	Upsert bool
}

// Normalize clamps Skip and Limit to non-negative values and returns the
// options by value.
func (o Options) Normalize() Options {
	if o.Skip < 0 {
		o.Skip = 0
	}
	if o.Limit < 0 {
		o.Limit = 0
	}
	return o
}
