package medium

// ExpiryScope restricts a Filter by expiry state.
type ExpiryScope uint8

const (
	// AnyExpiry matches every row.
	AnyExpiry ExpiryScope = iota

	// NotExpired matches rows with expiry <= 0 OR expiry > Now.
	NotExpired

	// Expired matches rows with expiry > 0 AND expiry <= Now.
	Expired

	// SessionScoped matches rows whose expiry is the SESSION sentinel.
	SessionScoped
)

// String implements fmt.Stringer.
func (s ExpiryScope) String() string {
	switch s {
	case NotExpired:
		return "not_expired"
	case Expired:
		return "expired"
	case SessionScoped:
		return "session"
	default:
		return "any"
	}
}

// Filter selects rows of a table.
//
// Now is captured once by the caller for the whole logical operation so
// every row is judged against the same instant.
type Filter struct {
	// Keys restricts the match to these keys when non-nil. A non-nil
	// empty slice matches nothing.
	Keys []string

	// Scope restricts the match by expiry state.
	Scope ExpiryScope

	// Now is the Unix millisecond instant NotExpired/Expired are judged at.
	Now int64
}

// All matches every row.
func All() Filter { return Filter{} }

// ByKey matches the row with the given key, in any expiry state.
func ByKey(key string) Filter { return Filter{Keys: []string{key}} }

// Match evaluates the filter against a row. Backends without a query
// language use it to filter scans.
func (f Filter) Match(r Row) bool {
	if f.Keys != nil && !containsKey(f.Keys, r.Key) {
		return false
	}
	return f.MatchExpiry(r.Expiry)
}

// MatchExpiry evaluates only the expiry scope.
func (f Filter) MatchExpiry(expiry int64) bool {
	switch f.Scope {
	case NotExpired:
		return expiry <= 0 || expiry > f.Now
	case Expired:
		return expiry > 0 && expiry <= f.Now
	case SessionScoped:
		return expiry == 0
	default:
		return true
	}
}

// MatchesNothing reports whether the filter can be answered without I/O.
func (f Filter) MatchesNothing() bool {
	return f.Keys != nil && len(f.Keys) == 0
}

func containsKey(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}
