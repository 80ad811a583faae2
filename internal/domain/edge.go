package domain

import "time"

// EdgeKind identifies a class of relation edge and names the collections its
// endpoints must resolve in.
type EdgeKind struct {
	Name              string
	SubjectCollection string
	ObjectCollection  string
}

var (
	KindVideoLike      = EdgeKind{Name: "video-like", SubjectCollection: CollectionUsers, ObjectCollection: CollectionVideos}
	KindCommentLike    = EdgeKind{Name: "comment-like", SubjectCollection: CollectionUsers, ObjectCollection: CollectionComments}
	KindTweetLike      = EdgeKind{Name: "tweet-like", SubjectCollection: CollectionUsers, ObjectCollection: CollectionTweets}
	KindSubscription   = EdgeKind{Name: "subscription", SubjectCollection: CollectionUsers, ObjectCollection: CollectionUsers}
	KindPlaylistMember = EdgeKind{Name: "playlist-member", SubjectCollection: CollectionPlaylists, ObjectCollection: CollectionVideos}
)

// KindByName resolves a registered edge kind.
func KindByName(name string) (EdgeKind, bool) {
	for _, k := range []EdgeKind{KindVideoLike, KindCommentLike, KindTweetLike, KindSubscription, KindPlaylistMember} {
		if k.Name == name {
			return k, true
		}
	}
	return EdgeKind{}, false
}

// Edge is an existence-equals-true relation record. At most one edge exists
// per (Subject, Object, Kind) tuple; that invariant lives in the store's
// uniqueness constraint, not in application-level checks.
type Edge struct {
	ID      string    `json:"id"`
	Subject string    `json:"subject"`
	Object  string    `json:"object"`
	Kind    string    `json:"kind"`
	CDate   time.Time `json:"cdate"`
}

// Edge field names as seen by view joins against the edges collection.
const (
	EdgeFieldSubject = "subject"
	EdgeFieldObject  = "object"
	EdgeFieldKind    = "kind"
)

// Record exposes an edge as a joinable document.
func (e Edge) Record() Record {
	return Record{
		ID:    e.ID,
		CDate: e.CDate,
		Fields: map[string]any{
			EdgeFieldSubject: e.Subject,
			EdgeFieldObject:  e.Object,
			EdgeFieldKind:    e.Kind,
		},
	}
}

// ToggleState reports which transition a toggle performed.
type ToggleState string

const (
	ToggleCreated ToggleState = "created"
	ToggleRemoved ToggleState = "removed"
)

// ToggleResult is the outcome of one logical toggle request.
type ToggleResult struct {
	State  ToggleState `json:"state"`
	EdgeID string      `json:"edgeID"`
}
