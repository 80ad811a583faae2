package repository

import (
	"fmt"
	"regexp"

	"github.com/clipcast/clipcast/internal/domain"
)

// predicate is one compiled SQL condition with its arguments.
type predicate struct {
	expr string
	args []any
}

var fieldNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// edgeColumns maps edge field names onto real columns; everything else in
// the edges table is rejected rather than guessed at.
var edgeColumns = map[string]string{
	domain.FieldID:          "id",
	domain.EdgeFieldSubject: "subject",
	domain.EdgeFieldObject:  "object",
	domain.EdgeFieldKind:    "kind",
	"cdate":                 "c_date",
}

// fieldExpr returns the SQL expression addressing a logical field. Document
// fields live inside the jsonb value column; asText selects the ->> form for
// string comparison, the -> form keeps jsonb typing for ordering.
func fieldExpr(collection, field string, asText bool) (string, error) {
	if !fieldNamePattern.MatchString(field) {
		return "", domain.InvalidInputError{Reason: "invalid field name " + field}
	}
	if collection == domain.CollectionEdges {
		col, ok := edgeColumns[field]
		if !ok {
			return "", domain.InvalidInputError{Reason: "unknown edge field " + field}
		}
		return col, nil
	}
	switch field {
	case domain.FieldID:
		return "id", nil
	case "owner":
		return "owner", nil
	case "cdate":
		return "c_date", nil
	}
	if asText {
		return fmt.Sprintf("value->>'%s'", field), nil
	}
	return fmt.Sprintf("value->'%s'", field), nil
}

// compileFilter lowers a domain filter to SQL predicates. Results must agree
// with domain.Filter.Matches.
func compileFilter(collection string, f domain.Filter) ([]predicate, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	preds := make([]predicate, 0, len(f.Terms))
	for _, t := range f.Terms {
		expr, err := fieldExpr(collection, t.Field, true)
		if err != nil {
			return nil, err
		}

		switch t.Op {
		case domain.OpEq:
			preds = append(preds, predicate{expr: expr + " = ?", args: []any{stringArg(t.Value)}})
		case domain.OpIn:
			preds = append(preds, predicate{expr: expr + " IN ?", args: []any{t.Values}})
		case domain.OpGte:
			expr, arg := rangeOperand(collection, t.Field, expr, t.Value)
			preds = append(preds, predicate{expr: expr + " >= ?", args: []any{arg}})
		case domain.OpLte:
			expr, arg := rangeOperand(collection, t.Field, expr, t.Value)
			preds = append(preds, predicate{expr: expr + " <= ?", args: []any{arg}})
		case domain.OpContains:
			preds = append(preds, predicate{expr: expr + " ILIKE ?", args: []any{"%" + t.Value.(string) + "%"}})
		}
	}
	return preds, nil
}

// rangeOperand casts jsonb text to numeric when the bound is a number, so
// that 9 < 10 rather than "9" > "10".
func rangeOperand(collection, field, expr string, value any) (string, any) {
	switch value.(type) {
	case int, int32, int64, float32, float64:
		if collection != domain.CollectionEdges && field != domain.FieldID && field != "owner" && field != "cdate" {
			return "(" + expr + ")::numeric", value
		}
	}
	return expr, value
}

func stringArg(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// sortClause builds the deterministic ORDER BY: the sort expression plus the
// identifier ascending tie-break.
func sortClause(collection string, s domain.Sort) (string, error) {
	expr, err := fieldExpr(collection, s.Field, false)
	if err != nil {
		return "", err
	}
	dir := "ASC"
	if s.Dir == domain.SortDesc {
		dir = "DESC"
	}
	if expr == "id" {
		return "id " + dir, nil
	}
	return fmt.Sprintf("%s %s, id ASC", expr, dir), nil
}

// keysetPredicate resumes a scan strictly after the cursor position.
func keysetPredicate(collection string, s domain.Sort, pos domain.Position) (predicate, error) {
	expr, err := fieldExpr(collection, s.Field, false)
	if err != nil {
		return predicate{}, err
	}
	cmp := ">"
	if s.Dir == domain.SortDesc {
		cmp = "<"
	}
	if expr == "id" {
		return predicate{expr: "id " + cmp + " ?", args: []any{pos.ID}}, nil
	}
	if collection == domain.CollectionEdges || s.Field == "owner" || s.Field == "cdate" {
		return predicate{
			expr: fmt.Sprintf("(%s %s ? OR (%s = ? AND id > ?))", expr, cmp, expr),
			args: []any{pos.SortValue, pos.SortValue, pos.ID},
		}, nil
	}
	// jsonb comparison keeps numbers numeric and strings textual
	return predicate{
		expr: fmt.Sprintf("(%s %s to_jsonb(?) OR (%s = to_jsonb(?) AND id > ?))", expr, cmp, expr),
		args: []any{pos.SortValue, pos.SortValue, pos.ID},
	}, nil
}
