package repository

import (
	"context"
	"encoding/json"
	"errors"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/clipcast/clipcast/internal/domain"
	"github.com/clipcast/clipcast/internal/infra/database/models"
)

// DocumentRepository is the Postgres-backed document store adapter. Records
// of every collection share one table; edges have their own because the
// toggle protocol needs their key tuple as a real constraint.
type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Get(ctx context.Context, collection, id string) (domain.Record, error) {
	if collection == domain.CollectionEdges {
		var edge models.Edge
		err := r.db.WithContext(ctx).Where("id = ?", id).Take(&edge).Error
		if err != nil {
			return domain.Record{}, translateErr(err, collection+"/"+id)
		}
		return edgeRecord(edge), nil
	}

	var doc models.Document
	err := r.db.WithContext(ctx).
		Where("collection = ? AND id = ?", collection, id).
		Take(&doc).Error
	if err != nil {
		return domain.Record{}, translateErr(err, collection+"/"+id)
	}
	return documentRecord(doc)
}

func (r *DocumentRepository) Find(ctx context.Context, collection string, filter domain.Filter, sort domain.Sort, window domain.Window) ([]domain.Record, error) {
	q, err := r.scan(ctx, collection, filter)
	if err != nil {
		return nil, err
	}

	if window.After != nil {
		pred, err := keysetPredicate(collection, sort, *window.After)
		if err != nil {
			return nil, err
		}
		q = q.Where(pred.expr, pred.args...)
	} else if window.Offset > 0 {
		q = q.Offset(window.Offset)
	}

	order, err := sortClause(collection, sort)
	if err != nil {
		return nil, err
	}
	q = q.Order(order)

	if window.Limit > 0 {
		q = q.Limit(window.Limit)
	}

	return r.collect(collection, q)
}

func (r *DocumentRepository) BatchLookup(ctx context.Context, collection, field string, values []string, extra domain.Filter) (map[string][]domain.Record, error) {
	if len(values) == 0 {
		return map[string][]domain.Record{}, nil
	}

	q, err := r.scan(ctx, collection, extra)
	if err != nil {
		return nil, err
	}

	expr, err := fieldExpr(collection, field, true)
	if err != nil {
		return nil, err
	}
	q = q.Where(expr+" IN ?", values)

	records, err := r.collect(collection, q)
	if err != nil {
		return nil, err
	}

	groups := make(map[string][]domain.Record)
	for _, rec := range records {
		key := rec.StringField(field)
		groups[key] = append(groups[key], rec)
	}
	return groups, nil
}

func (r *DocumentRepository) Count(ctx context.Context, collection string, filter domain.Filter) (int64, error) {
	q, err := r.scan(ctx, collection, filter)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return 0, translateErr(err, collection)
	}
	return n, nil
}

func (r *DocumentRepository) CountGroup(ctx context.Context, collection, field string, values []string, extra domain.Filter) (map[string]int64, error) {
	if len(values) == 0 {
		return map[string]int64{}, nil
	}

	q, err := r.scan(ctx, collection, extra)
	if err != nil {
		return nil, err
	}

	expr, err := fieldExpr(collection, field, true)
	if err != nil {
		return nil, err
	}

	type countRow struct {
		Key string `gorm:"column:key"`
		N   int64  `gorm:"column:n"`
	}
	var rows []countRow
	err = q.Where(expr+" IN ?", values).
		Select(expr + " AS key, COUNT(*) AS n").
		Group(expr).
		Scan(&rows).Error
	if err != nil {
		return nil, translateErr(err, collection)
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Key] = row.N
	}
	return counts, nil
}

// SumField totals a numeric document field over a filtered set. Used by the
// dashboard stats, not by the view engine.
func (r *DocumentRepository) SumField(ctx context.Context, collection, field string, filter domain.Filter) (int64, error) {
	q, err := r.scan(ctx, collection, filter)
	if err != nil {
		return 0, err
	}
	expr, err := fieldExpr(collection, field, true)
	if err != nil {
		return 0, err
	}
	var total int64
	err = q.Select("COALESCE(SUM((" + expr + ")::numeric), 0)").Scan(&total).Error
	if err != nil {
		return 0, translateErr(err, collection)
	}
	return total, nil
}

// scan starts a filtered query over the collection's backing table.
func (r *DocumentRepository) scan(ctx context.Context, collection string, filter domain.Filter) (*gorm.DB, error) {
	preds, err := compileFilter(collection, filter)
	if err != nil {
		return nil, err
	}

	var q *gorm.DB
	if collection == domain.CollectionEdges {
		q = r.db.WithContext(ctx).Model(&models.Edge{})
	} else {
		q = r.db.WithContext(ctx).Model(&models.Document{}).Where("collection = ?", collection)
	}
	for _, p := range preds {
		q = q.Where(p.expr, p.args...)
	}
	return q, nil
}

func (r *DocumentRepository) collect(collection string, q *gorm.DB) ([]domain.Record, error) {
	if collection == domain.CollectionEdges {
		var edges []models.Edge
		if err := q.Find(&edges).Error; err != nil {
			return nil, translateErr(err, collection)
		}
		records := make([]domain.Record, 0, len(edges))
		for _, e := range edges {
			records = append(records, edgeRecord(e))
		}
		return records, nil
	}

	var docs []models.Document
	if err := q.Find(&docs).Error; err != nil {
		return nil, translateErr(err, collection)
	}
	records := make([]domain.Record, 0, len(docs))
	for _, doc := range docs {
		rec, err := documentRecord(doc)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func documentRecord(doc models.Document) (domain.Record, error) {
	fields := map[string]any{}
	if doc.Value != "" {
		if err := json.Unmarshal([]byte(doc.Value), &fields); err != nil {
			return domain.Record{}, pkgerrors.Wrap(err, "corrupt document value "+doc.ID)
		}
	}
	return domain.Record{
		ID:     doc.ID,
		Owner:  doc.Owner,
		Fields: fields,
		CDate:  doc.CDate,
	}, nil
}

func edgeRecord(e models.Edge) domain.Record {
	return domain.Edge{
		ID:      e.ID,
		Subject: e.Subject,
		Object:  e.Object,
		Kind:    e.Kind,
		CDate:   e.CDate,
	}.Record()
}

func translateErr(err error, resource string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.NotFoundError{Resource: resource}
	}
	return domain.UnavailableError{Err: pkgerrors.Wrap(err, resource)}
}
