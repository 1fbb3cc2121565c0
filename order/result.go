package order

// Result classifies the outcome of one reconcile action. Skipped means a
// gate held the action back (safe mode, stopping, cool-down, stale
// handle) and nothing happened; Failed means the action was attempted
// and the connector errored.
type Result int

const (
	Done Result = iota
	Skipped
	Failed
)

func (r Result) String() string {
	switch r {
	case Done:
		return "done"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Stats aggregates one reconcile pass.
type Stats struct {
	Placed    int
	Modified  int
	Cancelled int
	Skipped   int
	Failed    int
}

// Acted reports whether any order action went out, meaning a flush is due.
func (st Stats) Acted() bool {
	return st.Placed > 0 || st.Modified > 0 || st.Cancelled > 0
}
