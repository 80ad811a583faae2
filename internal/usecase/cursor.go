package usecase

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"

	"github.com/zeebo/xxh3"

	"github.com/clipcast/clipcast/internal/domain"
)

// cursorPayload encodes the last-seen sort position. The sort field and
// direction are carried so a cursor minted for one ordering cannot silently
// resume a differently-ordered scan.
type cursorPayload struct {
	Field string `json:"f"`
	Dir   int    `json:"d"`
	Value any    `json:"v"`
	ID    string `json:"id"`
}

// encodeCursor derives an opaque token from the page's final (sortValue, id)
// pair. The xxh3 keyed checksum rejects tampered or truncated tokens early,
// before any string reaches the store.
func encodeCursor(secret string, sort domain.Sort, value any, id string) (string, error) {
	body, err := json.Marshal(cursorPayload{
		Field: sort.Field,
		Dir:   int(sort.Dir),
		Value: value,
		ID:    id,
	})
	if err != nil {
		return "", err
	}

	sum := make([]byte, 8)
	binary.BigEndian.PutUint64(sum, xxh3.HashString(secret+string(body)))

	return base64.RawURLEncoding.EncodeToString(append(sum, body...)), nil
}

func decodeCursor(secret, token string, sort domain.Sort) (domain.Position, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) < 8 {
		return domain.Position{}, domain.InvalidInputError{Reason: "malformed cursor"}
	}

	body := raw[8:]
	if binary.BigEndian.Uint64(raw[:8]) != xxh3.HashString(secret+string(body)) {
		return domain.Position{}, domain.InvalidInputError{Reason: "cursor checksum mismatch"}
	}

	var payload cursorPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return domain.Position{}, domain.InvalidInputError{Reason: "malformed cursor"}
	}

	if payload.Field != sort.Field || payload.Dir != int(sort.Dir) {
		return domain.Position{}, domain.InvalidInputError{Reason: "cursor does not match requested sort"}
	}

	return domain.Position{SortValue: payload.Value, ID: payload.ID}, nil
}
