package repository

import (
	"context"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/clipcast/clipcast/internal/domain"
	"github.com/clipcast/clipcast/internal/infra/database/models"
)

// EdgeRepository persists relation edges. The composite primary key on
// (subject, object, kind) makes the insert itself the uniqueness check;
// there is no find-then-create anywhere.
type EdgeRepository struct {
	db *gorm.DB
}

func NewEdgeRepository(db *gorm.DB) *EdgeRepository {
	return &EdgeRepository{db: db}
}

// InsertIfAbsent reports false when the tuple already holds an edge. The
// conflict is absorbed by the database in one atomic statement, so two
// concurrent identical inserts serialize into exactly one row.
func (r *EdgeRepository) InsertIfAbsent(ctx context.Context, edge domain.Edge) (bool, error) {
	row := models.Edge{
		Subject: edge.Subject,
		Object:  edge.Object,
		Kind:    edge.Kind,
		ID:      edge.ID,
		CDate:   edge.CDate,
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row)
	if result.Error != nil {
		return false, domain.UnavailableError{Err: pkgerrors.Wrap(result.Error, "edge insert")}
	}
	return result.RowsAffected > 0, nil
}

// Delete removes the tuple's edge and returns it, nil when none existed.
func (r *EdgeRepository) Delete(ctx context.Context, subject, object, kind string) (*domain.Edge, error) {
	var removed []models.Edge
	err := r.db.WithContext(ctx).
		Clauses(clause.Returning{}).
		Where("subject = ? AND object = ? AND kind = ?", subject, object, kind).
		Delete(&removed).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, domain.UnavailableError{Err: pkgerrors.Wrap(err, "edge delete")}
	}
	if len(removed) == 0 {
		return nil, nil
	}
	e := removed[0]
	return &domain.Edge{
		ID:      e.ID,
		Subject: e.Subject,
		Object:  e.Object,
		Kind:    e.Kind,
		CDate:   e.CDate,
	}, nil
}
