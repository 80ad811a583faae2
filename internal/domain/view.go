package domain

// SortDir orders a sort field.
type SortDir int

const (
	SortAsc SortDir = iota
	SortDesc
)

// Sort is a field plus direction. Ties are always broken by record
// identifier ascending so row order is total; two pages can otherwise
// overlap or skip rows when several records share a sort key.
type Sort struct {
	Field string
	Dir   SortDir
}

// Window selects the page slice of a filtered, sorted scan. After takes
// precedence over Offset when set.
type Window struct {
	Limit  int
	Offset int
	After  *Position
}

// Position is a keyset boundary: the (sortValue, id) pair of the last row of
// the previous page.
type Position struct {
	SortValue any
	ID        string
}

// PageRequest is the caller-facing pagination request. Cursor-based requests
// are immune to concurrent inserts and deletes; offset-based requests are
// best-effort and may skip or duplicate rows under concurrent mutation.
type PageRequest struct {
	Cursor string
	Offset int
	Limit  int
}

// Cardinality bounds join fan-out.
type Cardinality int

const (
	// One keeps at most one related record per primary record.
	One Cardinality = iota
	// Many keeps the full related set.
	Many
)

// JoinSpec declares a lookup of sourceField values against
// targetCollection.targetField. Array-valued source fields fan out to one
// key per element. SubJoins execute against the already-projected related
// records, never the raw ones.
type JoinSpec struct {
	Name        string
	SourceField string
	Target      string // target collection
	TargetField string
	Filter      Filter // extra predicate on the related set
	Project     []string
	Cardinality Cardinality
	Sort        *Sort
	SubJoins    []JoinSpec
}

// DerivedKind selects a reduction over a join.
type DerivedKind int

const (
	// DerivedCount yields the size of the related set.
	DerivedCount DerivedKind = iota
	// DerivedFirst reduces a many-join to its first record under the join's
	// sort, or target-id ascending when the join declares none.
	DerivedFirst
	// DerivedMembership yields true iff any related record's MatchField
	// equals MatchValue.
	DerivedMembership
)

// DerivedField reduces a named join into a scalar output field.
type DerivedField struct {
	Name       string
	Kind       DerivedKind
	Join       string
	MatchField string // DerivedMembership
	MatchValue string // DerivedMembership
}

// ViewRequest is a declarative composite read: a primary record set joined,
// reduced, sorted and paginated.
type ViewRequest struct {
	Collection string
	Filter     Filter
	Joins      []JoinSpec
	Derived    []DerivedField
	Sort       Sort
	Page       PageRequest
}

// ViewRow is the primary record's fields merged with resolved joins and
// derived outputs.
type ViewRow map[string]any

// Page is an ordered window of composite rows.
type Page struct {
	Items      []ViewRow `json:"items"`
	NextCursor string    `json:"nextCursor,omitempty"`
	HasMore    bool      `json:"hasMore"`
}
