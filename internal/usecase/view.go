package usecase

import (
	"context"
	"sort"
	"sync"

	"github.com/clipcast/clipcast/internal/domain"
)

const (
	DefaultPageSize    = 10
	DefaultMaxPageSize = 100
)

var knownCollections = map[string]bool{
	domain.CollectionUsers:     true,
	domain.CollectionVideos:    true,
	domain.CollectionComments:  true,
	domain.CollectionTweets:    true,
	domain.CollectionPlaylists: true,
	domain.CollectionEdges:     true,
}

// ViewUsecase assembles composite views: a filtered primary record set
// joined against related collections, reduced into derived fields, sorted
// and paginated. It holds no state of its own and is safe for concurrent
// use.
type ViewUsecase struct {
	store        DocumentStore
	maxPageSize  int
	cursorSecret string
}

func NewViewUsecase(store DocumentStore, maxPageSize int, cursorSecret string) *ViewUsecase {
	if maxPageSize <= 0 {
		maxPageSize = DefaultMaxPageSize
	}
	return &ViewUsecase{
		store:        store,
		maxPageSize:  maxPageSize,
		cursorSecret: cursorSecret,
	}
}

// Compose runs the full pipeline. The page window is selected before any
// join executes, so join cost is bounded by page size rather than by the
// size of the primary set.
func (uc *ViewUsecase) Compose(ctx context.Context, req domain.ViewRequest) (domain.Page, error) {
	if !knownCollections[req.Collection] {
		return domain.Page{}, domain.NotFoundError{Resource: "collection " + req.Collection}
	}
	if err := req.Filter.Validate(); err != nil {
		return domain.Page{}, err
	}
	if err := validateJoins(req.Joins); err != nil {
		return domain.Page{}, err
	}
	if err := validateDerived(req.Derived, req.Joins); err != nil {
		return domain.Page{}, err
	}

	limit := req.Page.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > uc.maxPageSize {
		return domain.Page{}, domain.InvalidInputError{Reason: "page size exceeds ceiling"}
	}

	srt := req.Sort
	if srt.Field == "" {
		srt.Field = domain.FieldID
	}

	// Fetch one row past the limit to learn whether more pages exist.
	window := domain.Window{Limit: limit + 1}
	switch {
	case req.Page.Cursor != "":
		pos, err := decodeCursor(uc.cursorSecret, req.Page.Cursor, srt)
		if err != nil {
			return domain.Page{}, err
		}
		window.After = &pos
	case req.Page.Offset < 0:
		return domain.Page{}, domain.InvalidInputError{Reason: "negative offset"}
	default:
		window.Offset = req.Page.Offset
	}

	primaries, err := uc.store.Find(ctx, req.Collection, req.Filter, srt, window)
	if err != nil {
		return domain.Page{}, err
	}

	hasMore := len(primaries) > limit
	if hasMore {
		primaries = primaries[:limit]
	}

	rows, err := uc.resolveWindow(ctx, primaries, req.Joins, req.Derived)
	if err != nil {
		return domain.Page{}, err
	}

	page := domain.Page{Items: rows, HasMore: hasMore}
	if hasMore && len(primaries) > 0 {
		last := primaries[len(primaries)-1]
		token, err := encodeCursor(uc.cursorSecret, srt, sortValue(last, srt.Field), last.ID)
		if err != nil {
			return domain.Page{}, err
		}
		page.NextCursor = token
	}
	return page, nil
}

// joined holds one join's resolved data for the whole page window, grouped
// by foreign key value.
type joined struct {
	materialized map[string][]domain.ViewRow
	counts       map[string]int64
	member       map[string]map[string]bool // derived name → key → hit
}

// resolveWindow runs all declared joins for the window concurrently, one
// goroutine per join spec, then assembles rows in the window's sorted order.
func (uc *ViewUsecase) resolveWindow(ctx context.Context, primaries []domain.Record, joins []domain.JoinSpec, derived []domain.DerivedField) ([]domain.ViewRow, error) {
	results := make([]*joined, len(joins))

	var wg sync.WaitGroup
	errs := make(chan error, len(joins))
	for i := range joins {
		keys := windowKeys(primaries, joins[i].SourceField)
		wg.Add(1)
		go func(i int, keys []string) {
			defer wg.Done()
			res, err := uc.resolveJoin(ctx, keys, joins[i], derivedFor(joins[i].Name, derived))
			if err != nil {
				errs <- err
				return
			}
			results[i] = res
		}(i, keys)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			return nil, err
		}
	}

	rows := make([]domain.ViewRow, 0, len(primaries))
	for _, rec := range primaries {
		row := domain.ViewRow{}
		for k, v := range rec.Fields {
			row[k] = v
		}
		row[domain.FieldID] = rec.ID
		if rec.Owner != "" {
			row[domain.FieldOwner] = rec.Owner
		}
		if v, ok := rec.Field(domain.FieldCDate); ok {
			row[domain.FieldCDate] = v
		}
		for i, j := range joins {
			attachJoin(row, rec, j, results[i], derivedFor(j.Name, derived))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// resolveJoin executes one join for the window: a single batched lookup when
// the related records must materialize, or grouped cardinality queries when
// every derived field consuming the join is a pure reduction. Both paths
// produce results identical to materialize-then-reduce.
func (uc *ViewUsecase) resolveJoin(ctx context.Context, keys []string, j domain.JoinSpec, ds []domain.DerivedField) (*joined, error) {
	out := &joined{member: map[string]map[string]bool{}}

	if len(keys) == 0 {
		return out, nil
	}

	if needsMaterialize(j, ds) {
		groups, err := uc.store.BatchLookup(ctx, j.Target, j.TargetField, keys, j.Filter)
		if err != nil {
			return nil, err
		}

		out.materialized = make(map[string][]domain.ViewRow, len(groups))
		out.counts = make(map[string]int64, len(groups))
		var projected []domain.ViewRow
		for key, group := range groups {
			sortRelated(group, j.Sort)
			out.counts[key] = int64(len(group))
			for _, d := range ds {
				if d.Kind != domain.DerivedMembership {
					continue
				}
				hit := false
				for _, rec := range group {
					if rec.StringField(d.MatchField) == d.MatchValue {
						hit = true
						break
					}
				}
				if out.member[d.Name] == nil {
					out.member[d.Name] = map[string]bool{}
				}
				out.member[d.Name][key] = hit
			}
			rows := make([]domain.ViewRow, 0, len(group))
			for _, rec := range group {
				rows = append(rows, projectRecord(rec, j.Project, subSourceFields(j.SubJoins)))
			}
			out.materialized[key] = rows
			projected = append(projected, rows...)
		}

		// Sub-joins run depth-first against the already-projected related
		// records, never the raw ones, which bounds fan-out per level.
		for _, sub := range j.SubJoins {
			if err := uc.resolveSubJoin(ctx, projected, sub); err != nil {
				return nil, err
			}
		}
		return out, nil
	}

	// Pure reductions: ask the store for cardinalities directly.
	needCounts := false
	for _, d := range ds {
		if d.Kind == domain.DerivedCount {
			needCounts = true
		}
	}
	if needCounts {
		counts, err := uc.store.CountGroup(ctx, j.Target, j.TargetField, keys, j.Filter)
		if err != nil {
			return nil, err
		}
		out.counts = counts
	}
	for _, d := range ds {
		if d.Kind != domain.DerivedMembership {
			continue
		}
		counts, err := uc.store.CountGroup(ctx, j.Target, j.TargetField, keys, j.Filter.Eq(d.MatchField, d.MatchValue))
		if err != nil {
			return nil, err
		}
		hits := make(map[string]bool, len(counts))
		for key, n := range counts {
			hits[key] = n > 0
		}
		out.member[d.Name] = hits
	}
	return out, nil
}

// resolveSubJoin attaches one nested join to every projected related row.
// Sub-joins embed by cardinality only; derived reductions apply to top-level
// joins.
func (uc *ViewUsecase) resolveSubJoin(ctx context.Context, rows []domain.ViewRow, sub domain.JoinSpec) error {
	seen := map[string]bool{}
	var keys []string
	for _, row := range rows {
		for _, k := range valueKeys(row[sub.SourceField]) {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	if len(keys) == 0 {
		for _, row := range rows {
			attachEmpty(row, sub)
		}
		return nil
	}

	groups, err := uc.store.BatchLookup(ctx, sub.Target, sub.TargetField, keys, sub.Filter)
	if err != nil {
		return err
	}

	projected := make(map[string][]domain.ViewRow, len(groups))
	var flat []domain.ViewRow
	for key, group := range groups {
		sortRelated(group, sub.Sort)
		out := make([]domain.ViewRow, 0, len(group))
		for _, rec := range group {
			out = append(out, projectRecord(rec, sub.Project, subSourceFields(sub.SubJoins)))
		}
		projected[key] = out
		flat = append(flat, out...)
	}

	for _, nested := range sub.SubJoins {
		if err := uc.resolveSubJoin(ctx, flat, nested); err != nil {
			return err
		}
	}

	for _, row := range rows {
		var related []domain.ViewRow
		for _, k := range valueKeys(row[sub.SourceField]) {
			related = append(related, projected[k]...)
		}
		if sub.Cardinality == domain.One {
			if len(related) > 0 {
				row[sub.Name] = related[0]
			} else {
				row[sub.Name] = nil
			}
		} else {
			if related == nil {
				related = []domain.ViewRow{}
			}
			row[sub.Name] = related
		}
	}
	return nil
}

func attachEmpty(row domain.ViewRow, j domain.JoinSpec) {
	if j.Cardinality == domain.One {
		row[j.Name] = nil
	} else {
		row[j.Name] = []domain.ViewRow{}
	}
}

// attachJoin merges one join's window-level results into a single row.
func attachJoin(row domain.ViewRow, rec domain.Record, j domain.JoinSpec, res *joined, ds []domain.DerivedField) {
	keys := valueKeysRecord(rec, j.SourceField)

	var related []domain.ViewRow
	if res.materialized != nil {
		for _, k := range keys {
			related = append(related, res.materialized[k]...)
		}
	}

	if j.Cardinality == domain.One {
		if len(related) > 0 {
			row[j.Name] = related[0]
		} else {
			row[j.Name] = nil
		}
	} else if len(ds) == 0 {
		if related == nil {
			related = []domain.ViewRow{}
		}
		row[j.Name] = related
	}

	for _, d := range ds {
		switch d.Kind {
		case domain.DerivedCount:
			var total int64
			for _, k := range keys {
				total += res.counts[k]
			}
			row[d.Name] = total
		case domain.DerivedFirst:
			if len(related) > 0 {
				row[d.Name] = related[0]
			} else {
				row[d.Name] = nil
			}
		case domain.DerivedMembership:
			hit := false
			for _, k := range keys {
				if res.member[d.Name][k] {
					hit = true
					break
				}
			}
			row[d.Name] = hit
		}
	}
}

// needsMaterialize reports whether the related records themselves are part
// of the output, as opposed to only reductions over them.
func needsMaterialize(j domain.JoinSpec, ds []domain.DerivedField) bool {
	if j.Cardinality == domain.One || len(j.SubJoins) > 0 || len(ds) == 0 {
		return true
	}
	for _, d := range ds {
		if d.Kind == domain.DerivedFirst {
			return true
		}
	}
	return false
}

// sortRelated orders a related group by the join's sort, identifier
// ascending as tie-break, or by identifier alone when the join declares no
// sort. This keeps First reductions deterministic regardless of
// store-internal ordering.
func sortRelated(group []domain.Record, s *domain.Sort) {
	sort.SliceStable(group, func(a, b int) bool {
		if s != nil {
			av, _ := group[a].Field(s.Field)
			bv, _ := group[b].Field(s.Field)
			if c := domain.CompareValues(av, bv); c != 0 {
				if s.Dir == domain.SortDesc {
					return c > 0
				}
				return c < 0
			}
		}
		return group[a].ID < group[b].ID
	})
}

func projectRecord(rec domain.Record, fields []string, keep []string) domain.ViewRow {
	row := domain.ViewRow{}
	if len(fields) == 0 {
		for k, v := range rec.Fields {
			row[k] = v
		}
		if rec.Owner != "" {
			row[domain.FieldOwner] = rec.Owner
		}
		if v, ok := rec.Field(domain.FieldCDate); ok {
			row[domain.FieldCDate] = v
		}
	} else {
		for _, f := range fields {
			if v, ok := rec.Field(f); ok {
				row[f] = v
			}
		}
		// sub-join source fields survive projection or the nested lookup
		// would have nothing to match on
		for _, f := range keep {
			if v, ok := rec.Field(f); ok {
				row[f] = v
			}
		}
	}
	row[domain.FieldID] = rec.ID
	return row
}

func subSourceFields(subs []domain.JoinSpec) []string {
	fields := make([]string, 0, len(subs))
	for _, s := range subs {
		fields = append(fields, s.SourceField)
	}
	return fields
}

func derivedFor(join string, derived []domain.DerivedField) []domain.DerivedField {
	var out []domain.DerivedField
	for _, d := range derived {
		if d.Join == join {
			out = append(out, d)
		}
	}
	return out
}

// windowKeys collects the distinct foreign keys across the page window,
// preserving first-seen order.
func windowKeys(primaries []domain.Record, field string) []string {
	seen := map[string]bool{}
	var keys []string
	for _, rec := range primaries {
		for _, k := range valueKeysRecord(rec, field) {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	return keys
}

func valueKeysRecord(rec domain.Record, field string) []string {
	v, ok := rec.Field(field)
	if !ok {
		return nil
	}
	return valueKeys(v)
}

func valueKeys(v any) []string {
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	case []string:
		return t
	case []any:
		var keys []string
		for _, e := range t {
			if s, ok := e.(string); ok && s != "" {
				keys = append(keys, s)
			}
		}
		return keys
	}
	return nil
}

func sortValue(rec domain.Record, field string) any {
	if field == domain.FieldID {
		return rec.ID
	}
	v, _ := rec.Field(field)
	return v
}

func validateJoins(joins []domain.JoinSpec) error {
	names := map[string]bool{}
	for _, j := range joins {
		if j.Name == "" || j.SourceField == "" || j.TargetField == "" {
			return domain.InvalidInputError{Reason: "incomplete join spec"}
		}
		if names[j.Name] {
			return domain.InvalidInputError{Reason: "duplicate join name " + j.Name}
		}
		names[j.Name] = true
		if !knownCollections[j.Target] {
			return domain.NotFoundError{Resource: "collection " + j.Target}
		}
		if err := j.Filter.Validate(); err != nil {
			return err
		}
		if err := validateJoins(j.SubJoins); err != nil {
			return err
		}
	}
	return nil
}

func validateDerived(derived []domain.DerivedField, joins []domain.JoinSpec) error {
	for _, d := range derived {
		if d.Name == "" {
			return domain.InvalidInputError{Reason: "derived field without name"}
		}
		found := false
		for _, j := range joins {
			if j.Name == d.Join {
				found = true
				break
			}
		}
		if !found {
			return domain.InvalidInputError{Reason: "derived field " + d.Name + " references unknown join"}
		}
		if d.Kind == domain.DerivedMembership && (d.MatchField == "" || d.MatchValue == "") {
			return domain.InvalidInputError{Reason: "membership field " + d.Name + " needs a match predicate"}
		}
	}
	return nil
}
