package domain

import "time"

// Known collection names. The store is schemaless; these are the logical
// collections the handlers compose over.
const (
	CollectionUsers     = "users"
	CollectionVideos    = "videos"
	CollectionComments  = "comments"
	CollectionTweets    = "tweets"
	CollectionPlaylists = "playlists"
	CollectionEdges     = "edges"
)

// Record is an opaque document: a unique identifier plus a mapping of named
// fields. Identity is immutable, the field set is not. Owner mirrors the
// "owner" field when present so the store can index it.
type Record struct {
	ID     string         `json:"id"`
	Owner  string         `json:"owner,omitempty"`
	Fields map[string]any `json:"fields"`
	CDate  time.Time      `json:"cdate"`
}

// Field returns a named field value. "id" resolves to the identifier and
// "cdate" to the creation timestamp in RFC 3339 form, so both participate
// in filters, sorts and cursors like ordinary fields.
func (r Record) Field(name string) (any, bool) {
	switch name {
	case FieldID:
		return r.ID, true
	case FieldCDate:
		return r.CDate.UTC().Format(time.RFC3339Nano), true
	case FieldOwner:
		if r.Owner != "" {
			return r.Owner, true
		}
	}
	v, ok := r.Fields[name]
	return v, ok
}

// StringField returns a field coerced to string, or "" when absent.
func (r Record) StringField(name string) string {
	v, ok := r.Field(name)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Reserved field names in filters, sorts and join specs.
const (
	FieldID    = "id"
	FieldOwner = "owner"
	FieldCDate = "cdate"
)
