package service

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/clipcast/clipcast/internal/domain"
)

var tracer = otel.Tracer("stats")

// likeScanCeiling bounds the video-id scan behind the like total. Channels
// beyond it get a truncated figure rather than an unbounded query.
const likeScanCeiling = 1000

// StatsStore is the aggregate capability the dashboard needs from the
// document store.
type StatsStore interface {
	Find(ctx context.Context, collection string, filter domain.Filter, sort domain.Sort, window domain.Window) ([]domain.Record, error)
	Count(ctx context.Context, collection string, filter domain.Filter) (int64, error)
	CountGroup(ctx context.Context, collection, field string, values []string, extra domain.Filter) (map[string]int64, error)
	SumField(ctx context.Context, collection, field string, filter domain.Filter) (int64, error)
}

// EdgeCounter answers edge cardinalities, possibly from cache.
type EdgeCounter interface {
	Get(ctx context.Context, kind, object string) (int64, error)
}

// ChannelStatsService aggregates the dashboard numbers. Results are
// memoized in-process for a short window; the dashboard tolerates slightly
// stale totals.
type ChannelStatsService struct {
	store  StatsStore
	counts EdgeCounter
	memo   *cache.Cache
}

func NewChannelStatsService(store StatsStore, counts EdgeCounter) *ChannelStatsService {
	return &ChannelStatsService{
		store:  store,
		counts: counts,
		memo:   cache.New(30*time.Second, time.Minute),
	}
}

func (s *ChannelStatsService) ChannelStats(ctx context.Context, channelID string) (domain.ChannelStats, error) {
	ctx, span := tracer.Start(ctx, "Stats.Service.ChannelStats")
	defer span.End()

	if cached, found := s.memo.Get(channelID); found {
		return cached.(domain.ChannelStats), nil
	}

	owned := domain.Filter{}.Eq("owner", channelID)

	totalVideos, err := s.store.Count(ctx, domain.CollectionVideos, owned)
	if err != nil {
		span.RecordError(err)
		return domain.ChannelStats{}, errors.Wrap(err, "counting channel videos")
	}

	totalViews, err := s.store.SumField(ctx, domain.CollectionVideos, "views", owned)
	if err != nil {
		span.RecordError(err)
		return domain.ChannelStats{}, errors.Wrap(err, "summing channel views")
	}

	subscribers, err := s.counts.Get(ctx, domain.KindSubscription.Name, channelID)
	if err != nil {
		span.RecordError(err)
		return domain.ChannelStats{}, errors.Wrap(err, "counting subscribers")
	}

	totalLikes, err := s.likeTotal(ctx, channelID, owned)
	if err != nil {
		span.RecordError(err)
		return domain.ChannelStats{}, errors.Wrap(err, "counting received likes")
	}

	stats := domain.ChannelStats{
		TotalVideos:      totalVideos,
		TotalViews:       totalViews,
		TotalSubscribers: subscribers,
		TotalLikes:       totalLikes,
	}
	s.memo.Set(channelID, stats, cache.DefaultExpiration)
	return stats, nil
}

func (s *ChannelStatsService) likeTotal(ctx context.Context, channelID string, owned domain.Filter) (int64, error) {
	videos, err := s.store.Find(ctx, domain.CollectionVideos, owned,
		domain.Sort{Field: domain.FieldID}, domain.Window{Limit: likeScanCeiling})
	if err != nil {
		return 0, err
	}
	if len(videos) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(videos))
	for _, v := range videos {
		ids = append(ids, v.ID)
	}

	counts, err := s.store.CountGroup(ctx, domain.CollectionEdges, domain.EdgeFieldObject, ids,
		domain.Filter{}.Eq(domain.EdgeFieldKind, domain.KindVideoLike.Name))
	if err != nil {
		return 0, err
	}

	var total int64
	for _, n := range counts {
		total += n
	}
	return total, nil
}
