package domain

// TermOp is the comparison applied by a filter term.
type TermOp int

const (
	OpEq TermOp = iota
	OpIn
	OpGte
	OpLte
	// OpContains is a case-insensitive substring match. Full text ranking is
	// out of scope; this is the plain text-match predicate.
	OpContains
)

// Term is a single predicate over one field.
type Term struct {
	Field  string
	Op     TermOp
	Value  any
	Values []string // OpIn only
}

// Filter is a conjunction of terms. An empty filter matches everything.
type Filter struct {
	Terms []Term
}

// Eq appends an equality term and returns the filter for chaining.
func (f Filter) Eq(field string, value any) Filter {
	f.Terms = append(f.Terms, Term{Field: field, Op: OpEq, Value: value})
	return f
}

// In appends a membership term.
func (f Filter) In(field string, values []string) Filter {
	f.Terms = append(f.Terms, Term{Field: field, Op: OpIn, Values: values})
	return f
}

// Gte appends a lower-bound term.
func (f Filter) Gte(field string, value any) Filter {
	f.Terms = append(f.Terms, Term{Field: field, Op: OpGte, Value: value})
	return f
}

// Lte appends an upper-bound term.
func (f Filter) Lte(field string, value any) Filter {
	f.Terms = append(f.Terms, Term{Field: field, Op: OpLte, Value: value})
	return f
}

// Contains appends a substring-match term.
func (f Filter) Contains(field string, value string) Filter {
	f.Terms = append(f.Terms, Term{Field: field, Op: OpContains, Value: value})
	return f
}

// Empty reports whether the filter has no terms.
func (f Filter) Empty() bool { return len(f.Terms) == 0 }

// Validate rejects terms that no store backend can satisfy.
func (f Filter) Validate() error {
	for _, t := range f.Terms {
		if t.Field == "" {
			return InvalidInputError{Reason: "filter term without field"}
		}
		switch t.Op {
		case OpEq, OpGte, OpLte:
			if t.Value == nil {
				return InvalidInputError{Reason: "filter term without value: " + t.Field}
			}
		case OpIn:
			if t.Values == nil {
				return InvalidInputError{Reason: "in-term without values: " + t.Field}
			}
		case OpContains:
			s, ok := t.Value.(string)
			if !ok || s == "" {
				return InvalidInputError{Reason: "contains-term needs a string value: " + t.Field}
			}
		default:
			return InvalidInputError{Reason: "unknown filter operator"}
		}
	}
	return nil
}

// Matches evaluates the filter against a record in memory. The SQL adapter
// compiles filters instead; this is the reference semantics and what mock
// stores use in tests.
func (f Filter) Matches(r Record) bool {
	for _, t := range f.Terms {
		v, ok := r.Field(t.Field)
		switch t.Op {
		case OpEq:
			if !ok || !looseEqual(v, t.Value) {
				return false
			}
		case OpIn:
			if !ok {
				return false
			}
			s, _ := v.(string)
			found := false
			for _, cand := range t.Values {
				if s == cand {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		case OpGte:
			if !ok || compareValues(v, t.Value) < 0 {
				return false
			}
		case OpLte:
			if !ok || compareValues(v, t.Value) > 0 {
				return false
			}
		case OpContains:
			s, _ := v.(string)
			needle, _ := t.Value.(string)
			if !ok || !containsFold(s, needle) {
				return false
			}
		}
	}
	return true
}
