package pagination

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultLimit is the standard page size when a limit is not provided.
	DefaultLimit = 25
	// MaxLimit caps how many rows any cursor query can request.
	MaxLimit = 100
)

// ErrInvalidCursor marks a cursor the caller supplied that cannot be
// decoded. Callers check it with errors.Is to classify the failure as
// a caller error rather than a storage one.
var ErrInvalidCursor = errors.New("invalid cursor")

// Params holds cursor pagination inputs from controllers or services.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor represents the pagination cursor components. Pages are keyed by
// (created_at, id) so ordering stays stable across inserts.
type Cursor struct {
	CreatedAt time.Time
	ID        int64
}

// NormalizeLimit enforces the configured default and maximum limits.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// LimitWithBuffer returns the normalization result plus one to detect the next page.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

// EncodeCursor builds a base64 cursor string from the provided values.
func EncodeCursor(cursor Cursor) string {
	payload := fmt.Sprintf("%s|%d", cursor.CreatedAt.UTC().Format(time.RFC3339Nano), cursor.ID)
	return base64.StdEncoding.EncodeToString([]byte(payload))
}

// DecodeCursor parses a cursor previously produced by EncodeCursor.
// Every decode failure wraps ErrInvalidCursor.
func DecodeCursor(raw string) (Cursor, error) {
	if strings.TrimSpace(raw) == "" {
		return Cursor{}, fmt.Errorf("%w: cursor is empty", ErrInvalidCursor)
	}
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: decoding: %v", ErrInvalidCursor, err)
	}
	parts := strings.SplitN(string(decoded), "|", 2)
	if len(parts) != 2 {
		return Cursor{}, fmt.Errorf("%w: malformed payload", ErrInvalidCursor)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: timestamp: %v", ErrInvalidCursor, err)
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: id: %v", ErrInvalidCursor, err)
	}
	return Cursor{CreatedAt: createdAt, ID: id}, nil
}
