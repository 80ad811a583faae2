package rest

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/clipcast/clipcast/internal/domain"
	"github.com/clipcast/clipcast/internal/present/rest/middleware"
	"github.com/clipcast/clipcast/internal/present/rest/presenter"
	"github.com/clipcast/clipcast/internal/service"
	"github.com/clipcast/clipcast/internal/usecase"
)

type Handler struct {
	view   *usecase.ViewUsecase
	toggle *usecase.ToggleUsecase
	stats  *service.ChannelStatsService
	signal *service.SignalService
}

func NewHandler(
	view *usecase.ViewUsecase,
	toggle *usecase.ToggleUsecase,
	stats *service.ChannelStatsService,
	signal *service.SignalService,
) *Handler {
	return &Handler{
		view:   view,
		toggle: toggle,
		stats:  stats,
		signal: signal,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.Use(middleware.IdentifyViewer)

	e.GET("/api/v1/videos", h.handleVideos)
	e.GET("/api/v1/videos/:id", h.handleVideoByID)
	e.GET("/api/v1/videos/:id/comments", h.handleVideoComments)
	e.GET("/api/v1/tweets/:userId", h.handleUserTweets)
	e.GET("/api/v1/playlists/user/:userId", h.handleUserPlaylists)
	e.GET("/api/v1/playlists/:id", h.handlePlaylistByID)
	e.GET("/api/v1/channels/:username", h.handleChannelProfile)
	e.GET("/api/v1/channels/:id/subscribers", h.handleChannelSubscribers)
	e.GET("/api/v1/subscriptions/:id", h.handleSubscriptions)
	e.GET("/api/v1/users/me/history", h.handleWatchHistory)
	e.GET("/api/v1/likes/videos", h.handleLikedVideos)

	e.POST("/api/v1/likes/videos/:id/toggle", h.handleToggleVideoLike)
	e.POST("/api/v1/likes/comments/:id/toggle", h.handleToggleCommentLike)
	e.POST("/api/v1/likes/tweets/:id/toggle", h.handleToggleTweetLike)
	e.POST("/api/v1/subscriptions/:channelId/toggle", h.handleToggleSubscription)
	e.POST("/api/v1/playlists/:id/videos/:videoId/toggle", h.handleTogglePlaylistVideo)

	e.GET("/api/v1/dashboard/stats", h.handleDashboardStats)
	e.GET("/api/v1/dashboard/videos", h.handleDashboardVideos)

	e.GET("/realtime", h.handleRealtime)
}

// viewerID returns the identity resolved by the auth middleware, or "" for
// anonymous requests.
func viewerID(c echo.Context) string {
	id, _ := c.Request().Context().Value(domain.ViewerIdCtxKey).(string)
	return id
}

func pageRequest(c echo.Context) domain.PageRequest {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	return domain.PageRequest{
		Cursor: c.QueryParam("cursor"),
		Limit:  limit,
	}
}

// ownerJoin embeds the owning user's public profile under "owner".
func ownerJoin() domain.JoinSpec {
	return domain.JoinSpec{
		Name:        "owner",
		SourceField: domain.FieldOwner,
		Target:      domain.CollectionUsers,
		TargetField: domain.FieldID,
		Project:     []string{"username", "displayName", "avatar"},
		Cardinality: domain.One,
	}
}

// likeJoin groups like edges of the given kind by liked object. The join is
// never materialized on its own; the derived fields reduce it.
func likeJoin(kind domain.EdgeKind) domain.JoinSpec {
	return domain.JoinSpec{
		Name:        "likes",
		SourceField: domain.FieldID,
		Target:      domain.CollectionEdges,
		TargetField: domain.EdgeFieldObject,
		Filter:      domain.Filter{}.Eq(domain.EdgeFieldKind, kind.Name),
		Cardinality: domain.Many,
	}
}

// likeDerived yields likeCount always and isLiked when a viewer is known.
func likeDerived(viewer string) []domain.DerivedField {
	derived := []domain.DerivedField{
		{Name: "likeCount", Kind: domain.DerivedCount, Join: "likes"},
	}
	if viewer != "" {
		derived = append(derived, domain.DerivedField{
			Name:       "isLiked",
			Kind:       domain.DerivedMembership,
			Join:       "likes",
			MatchField: domain.EdgeFieldSubject,
			MatchValue: viewer,
		})
	}
	return derived
}

func (h *Handler) handleVideos(c echo.Context) error {
	ctx := c.Request().Context()
	viewer := viewerID(c)

	filter := domain.Filter{}
	if owner := c.QueryParam("owner"); owner != "" {
		filter = filter.Eq(domain.FieldOwner, owner)
	}
	if q := c.QueryParam("q"); q != "" {
		filter = filter.Contains("title", q)
	}

	sort := domain.Sort{Field: domain.FieldCDate, Dir: domain.SortDesc}
	if f := c.QueryParam("sort"); f != "" {
		sort.Field = f
	}
	if c.QueryParam("order") == "asc" {
		sort.Dir = domain.SortAsc
	}

	// Listing search keeps page/limit offset pagination; page stability under
	// concurrent writes is best effort here.
	pageNum, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 {
		limit = usecase.DefaultPageSize
	}
	if pageNum < 1 {
		pageNum = 1
	}

	page, err := h.view.Compose(ctx, domain.ViewRequest{
		Collection: domain.CollectionVideos,
		Filter:     filter,
		Joins:      []domain.JoinSpec{ownerJoin(), likeJoin(domain.KindVideoLike)},
		Derived:    likeDerived(viewer),
		Sort:       sort,
		Page:       domain.PageRequest{Offset: (pageNum - 1) * limit, Limit: limit},
	})
	if err != nil {
		return presenter.FromError(c, err)
	}
	return presenter.OK(c, page)
}

func (h *Handler) handleVideoByID(c echo.Context) error {
	ctx := c.Request().Context()
	viewer := viewerID(c)

	page, err := h.view.Compose(ctx, domain.ViewRequest{
		Collection: domain.CollectionVideos,
		Filter:     domain.Filter{}.Eq(domain.FieldID, c.Param("id")),
		Joins:      []domain.JoinSpec{ownerJoin(), likeJoin(domain.KindVideoLike)},
		Derived:    likeDerived(viewer),
		Page:       domain.PageRequest{Limit: 1},
	})
	if err != nil {
		return presenter.FromError(c, err)
	}
	if len(page.Items) == 0 {
		return presenter.NotFound(c, "video not found")
	}
	return presenter.OK(c, page.Items[0])
}

func (h *Handler) handleVideoComments(c echo.Context) error {
	ctx := c.Request().Context()
	viewer := viewerID(c)

	page, err := h.view.Compose(ctx, domain.ViewRequest{
		Collection: domain.CollectionComments,
		Filter:     domain.Filter{}.Eq("videoId", c.Param("id")),
		Joins:      []domain.JoinSpec{ownerJoin(), likeJoin(domain.KindCommentLike)},
		Derived:    likeDerived(viewer),
		Sort:       domain.Sort{Field: domain.FieldCDate, Dir: domain.SortDesc},
		Page:       pageRequest(c),
	})
	if err != nil {
		return presenter.FromError(c, err)
	}
	return presenter.OK(c, page)
}

func (h *Handler) handleUserTweets(c echo.Context) error {
	ctx := c.Request().Context()
	viewer := viewerID(c)

	page, err := h.view.Compose(ctx, domain.ViewRequest{
		Collection: domain.CollectionTweets,
		Filter:     domain.Filter{}.Eq(domain.FieldOwner, c.Param("userId")),
		Joins:      []domain.JoinSpec{ownerJoin(), likeJoin(domain.KindTweetLike)},
		Derived:    likeDerived(viewer),
		Sort:       domain.Sort{Field: domain.FieldCDate, Dir: domain.SortDesc},
		Page:       pageRequest(c),
	})
	if err != nil {
		return presenter.FromError(c, err)
	}
	return presenter.OK(c, page)
}

func (h *Handler) handleUserPlaylists(c echo.Context) error {
	ctx := c.Request().Context()

	page, err := h.view.Compose(ctx, domain.ViewRequest{
		Collection: domain.CollectionPlaylists,
		Filter:     domain.Filter{}.Eq(domain.FieldOwner, c.Param("userId")),
		Joins: []domain.JoinSpec{
			ownerJoin(),
			{
				Name:        "members",
				SourceField: domain.FieldID,
				Target:      domain.CollectionEdges,
				TargetField: domain.EdgeFieldSubject,
				Filter:      domain.Filter{}.Eq(domain.EdgeFieldKind, domain.KindPlaylistMember.Name),
				Cardinality: domain.Many,
			},
		},
		Derived: []domain.DerivedField{
			{Name: "videoCount", Kind: domain.DerivedCount, Join: "members"},
		},
		Sort: domain.Sort{Field: domain.FieldCDate, Dir: domain.SortDesc},
		Page: pageRequest(c),
	})
	if err != nil {
		return presenter.FromError(c, err)
	}
	return presenter.OK(c, page)
}

func (h *Handler) handlePlaylistByID(c echo.Context) error {
	ctx := c.Request().Context()

	page, err := h.view.Compose(ctx, domain.ViewRequest{
		Collection: domain.CollectionPlaylists,
		Filter:     domain.Filter{}.Eq(domain.FieldID, c.Param("id")),
		Joins: []domain.JoinSpec{
			ownerJoin(),
			{
				Name:        "videos",
				SourceField: domain.FieldID,
				Target:      domain.CollectionEdges,
				TargetField: domain.EdgeFieldSubject,
				Filter:      domain.Filter{}.Eq(domain.EdgeFieldKind, domain.KindPlaylistMember.Name),
				Cardinality: domain.Many,
				Sort:        &domain.Sort{Field: domain.FieldCDate},
				Project:     []string{domain.EdgeFieldObject},
				SubJoins: []domain.JoinSpec{
					{
						Name:        "video",
						SourceField: domain.EdgeFieldObject,
						Target:      domain.CollectionVideos,
						TargetField: domain.FieldID,
						Cardinality: domain.One,
						SubJoins:    []domain.JoinSpec{ownerJoin()},
					},
				},
			},
		},
		Page: domain.PageRequest{Limit: 1},
	})
	if err != nil {
		return presenter.FromError(c, err)
	}
	if len(page.Items) == 0 {
		return presenter.NotFound(c, "playlist not found")
	}
	return presenter.OK(c, page.Items[0])
}

func (h *Handler) handleChannelProfile(c echo.Context) error {
	ctx := c.Request().Context()
	viewer := viewerID(c)

	derived := []domain.DerivedField{
		{Name: "subscriberCount", Kind: domain.DerivedCount, Join: "subscribers"},
		{Name: "subscribedToCount", Kind: domain.DerivedCount, Join: "subscriptions"},
	}
	if viewer != "" {
		derived = append(derived, domain.DerivedField{
			Name:       "isSubscribed",
			Kind:       domain.DerivedMembership,
			Join:       "subscribers",
			MatchField: domain.EdgeFieldSubject,
			MatchValue: viewer,
		})
	}

	page, err := h.view.Compose(ctx, domain.ViewRequest{
		Collection: domain.CollectionUsers,
		Filter:     domain.Filter{}.Eq("username", c.Param("username")),
		Joins: []domain.JoinSpec{
			{
				Name:        "subscribers",
				SourceField: domain.FieldID,
				Target:      domain.CollectionEdges,
				TargetField: domain.EdgeFieldObject,
				Filter:      domain.Filter{}.Eq(domain.EdgeFieldKind, domain.KindSubscription.Name),
				Cardinality: domain.Many,
			},
			{
				Name:        "subscriptions",
				SourceField: domain.FieldID,
				Target:      domain.CollectionEdges,
				TargetField: domain.EdgeFieldSubject,
				Filter:      domain.Filter{}.Eq(domain.EdgeFieldKind, domain.KindSubscription.Name),
				Cardinality: domain.Many,
			},
		},
		Derived: derived,
		Page:    domain.PageRequest{Limit: 1},
	})
	if err != nil {
		return presenter.FromError(c, err)
	}
	if len(page.Items) == 0 {
		return presenter.NotFound(c, "channel not found")
	}
	return presenter.OK(c, page.Items[0])
}

func (h *Handler) handleChannelSubscribers(c echo.Context) error {
	ctx := c.Request().Context()

	page, err := h.view.Compose(ctx, domain.ViewRequest{
		Collection: domain.CollectionEdges,
		Filter: domain.Filter{}.
			Eq(domain.EdgeFieldKind, domain.KindSubscription.Name).
			Eq(domain.EdgeFieldObject, c.Param("id")),
		Joins: []domain.JoinSpec{
			{
				Name:        "subscriber",
				SourceField: domain.EdgeFieldSubject,
				Target:      domain.CollectionUsers,
				TargetField: domain.FieldID,
				Project:     []string{"username", "displayName", "avatar"},
				Cardinality: domain.One,
			},
		},
		Sort: domain.Sort{Field: domain.FieldCDate, Dir: domain.SortDesc},
		Page: pageRequest(c),
	})
	if err != nil {
		return presenter.FromError(c, err)
	}
	return presenter.OK(c, page)
}

func (h *Handler) handleSubscriptions(c echo.Context) error {
	ctx := c.Request().Context()

	page, err := h.view.Compose(ctx, domain.ViewRequest{
		Collection: domain.CollectionEdges,
		Filter: domain.Filter{}.
			Eq(domain.EdgeFieldKind, domain.KindSubscription.Name).
			Eq(domain.EdgeFieldSubject, c.Param("id")),
		Joins: []domain.JoinSpec{
			{
				Name:        "channel",
				SourceField: domain.EdgeFieldObject,
				Target:      domain.CollectionUsers,
				TargetField: domain.FieldID,
				Project:     []string{"username", "displayName", "avatar"},
				Cardinality: domain.One,
			},
		},
		Sort: domain.Sort{Field: domain.FieldCDate, Dir: domain.SortDesc},
		Page: pageRequest(c),
	})
	if err != nil {
		return presenter.FromError(c, err)
	}
	return presenter.OK(c, page)
}

func (h *Handler) handleWatchHistory(c echo.Context) error {
	ctx := c.Request().Context()
	viewer := viewerID(c)
	if viewer == "" {
		return presenter.BadRequestMessage(c, "viewer identity required")
	}

	// The user record carries its watch history as an array field; the join
	// fans out over it, one batched lookup regardless of history length on
	// this page.
	page, err := h.view.Compose(ctx, domain.ViewRequest{
		Collection: domain.CollectionUsers,
		Filter:     domain.Filter{}.Eq(domain.FieldID, viewer),
		Joins: []domain.JoinSpec{
			{
				Name:        "history",
				SourceField: "watchHistory",
				Target:      domain.CollectionVideos,
				TargetField: domain.FieldID,
				Cardinality: domain.Many,
				SubJoins:    []domain.JoinSpec{ownerJoin()},
			},
		},
		Page: domain.PageRequest{Limit: 1},
	})
	if err != nil {
		return presenter.FromError(c, err)
	}
	if len(page.Items) == 0 {
		return presenter.NotFound(c, "user not found")
	}
	return presenter.OK(c, page.Items[0]["history"])
}

func (h *Handler) handleLikedVideos(c echo.Context) error {
	ctx := c.Request().Context()
	viewer := viewerID(c)
	if viewer == "" {
		return presenter.BadRequestMessage(c, "viewer identity required")
	}

	// Edges are the primary set here: the viewer's like edges, newest first,
	// each joined to its video.
	page, err := h.view.Compose(ctx, domain.ViewRequest{
		Collection: domain.CollectionEdges,
		Filter: domain.Filter{}.
			Eq(domain.EdgeFieldKind, domain.KindVideoLike.Name).
			Eq(domain.EdgeFieldSubject, viewer),
		Joins: []domain.JoinSpec{
			{
				Name:        "video",
				SourceField: domain.EdgeFieldObject,
				Target:      domain.CollectionVideos,
				TargetField: domain.FieldID,
				Cardinality: domain.One,
				SubJoins:    []domain.JoinSpec{ownerJoin()},
			},
		},
		Sort: domain.Sort{Field: domain.FieldCDate, Dir: domain.SortDesc},
		Page: pageRequest(c),
	})
	if err != nil {
		return presenter.FromError(c, err)
	}
	return presenter.OK(c, page)
}

func (h *Handler) doToggle(c echo.Context, object string, kind domain.EdgeKind) error {
	ctx := c.Request().Context()
	viewer := viewerID(c)
	if viewer == "" {
		return presenter.BadRequestMessage(c, "viewer identity required")
	}

	result, err := h.toggle.Toggle(ctx, viewer, object, kind)
	if err != nil {
		return presenter.FromError(c, err)
	}
	return presenter.OK(c, result)
}

func (h *Handler) handleToggleVideoLike(c echo.Context) error {
	return h.doToggle(c, c.Param("id"), domain.KindVideoLike)
}

func (h *Handler) handleToggleCommentLike(c echo.Context) error {
	return h.doToggle(c, c.Param("id"), domain.KindCommentLike)
}

func (h *Handler) handleToggleTweetLike(c echo.Context) error {
	return h.doToggle(c, c.Param("id"), domain.KindTweetLike)
}

func (h *Handler) handleToggleSubscription(c echo.Context) error {
	return h.doToggle(c, c.Param("channelId"), domain.KindSubscription)
}

func (h *Handler) handleTogglePlaylistVideo(c echo.Context) error {
	ctx := c.Request().Context()
	viewer := viewerID(c)
	if viewer == "" {
		return presenter.BadRequestMessage(c, "viewer identity required")
	}

	// Playlist membership edges run playlist -> video; the viewer must own
	// the playlist being edited.
	playlist := c.Param("id")
	page, err := h.view.Compose(ctx, domain.ViewRequest{
		Collection: domain.CollectionPlaylists,
		Filter:     domain.Filter{}.Eq(domain.FieldID, playlist),
		Page:       domain.PageRequest{Limit: 1},
	})
	if err != nil {
		return presenter.FromError(c, err)
	}
	if len(page.Items) == 0 {
		return presenter.NotFound(c, "playlist not found")
	}
	if owner, _ := page.Items[0][domain.FieldOwner].(string); owner != viewer {
		return presenter.BadRequestMessage(c, "not the playlist owner")
	}

	result, err := h.toggle.Toggle(ctx, playlist, c.Param("videoId"), domain.KindPlaylistMember)
	if err != nil {
		return presenter.FromError(c, err)
	}
	return presenter.OK(c, result)
}

func (h *Handler) handleDashboardStats(c echo.Context) error {
	ctx := c.Request().Context()
	viewer := viewerID(c)
	if viewer == "" {
		return presenter.BadRequestMessage(c, "viewer identity required")
	}

	stats, err := h.stats.ChannelStats(ctx, viewer)
	if err != nil {
		return presenter.FromError(c, err)
	}
	return presenter.OK(c, stats)
}

func (h *Handler) handleDashboardVideos(c echo.Context) error {
	ctx := c.Request().Context()
	viewer := viewerID(c)
	if viewer == "" {
		return presenter.BadRequestMessage(c, "viewer identity required")
	}

	page, err := h.view.Compose(ctx, domain.ViewRequest{
		Collection: domain.CollectionVideos,
		Filter:     domain.Filter{}.Eq(domain.FieldOwner, viewer),
		Joins:      []domain.JoinSpec{likeJoin(domain.KindVideoLike)},
		Derived: []domain.DerivedField{
			{Name: "likeCount", Kind: domain.DerivedCount, Join: "likes"},
		},
		Sort: domain.Sort{Field: domain.FieldCDate, Dir: domain.SortDesc},
		Page: pageRequest(c),
	})
	if err != nil {
		return presenter.FromError(c, err)
	}
	return presenter.OK(c, page)
}
