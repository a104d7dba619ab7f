package rollout

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// maxScanPerCall bounds how many rollouts a single ListConversations call
// will scan from the database, regardless of how many the caller asked
// for, so a very large table can't turn one page fetch into a full scan.
const maxScanPerCall = 100

// ConversationSummary is one entry returned by ListConversations.
type ConversationSummary struct {
	ID        string
	Model     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Cursor is an opaque pagination token of the form "timestamp|id",
// matching the spec's cursor format so a client-side cursor can be
// round-tripped without the server holding any session state for it.
type Cursor string

// encodeCursor renders a Cursor from the last item of a page.
func encodeCursor(updatedAt time.Time, id string) Cursor {
	return Cursor(fmt.Sprintf("%s|%s", updatedAt.UTC().Format(time.RFC3339Nano), id))
}

// decode parses a Cursor back into its timestamp/id parts. An empty
// Cursor decodes to the zero time and empty id, meaning "start from the
// most recent rollout".
func (c Cursor) decode() (time.Time, string, error) {
	if c == "" {
		return time.Time{}, "", nil
	}
	parts := strings.SplitN(string(c), "|", 2)
	if len(parts) != 2 {
		return time.Time{}, "", fmt.Errorf("rollout: malformed cursor %q", c)
	}
	ts, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, "", fmt.Errorf("rollout: malformed cursor timestamp: %w", err)
	}
	return ts, parts[1], nil
}

// ListConversations returns up to limit conversations older than cursor
// (or the most recent ones if cursor is empty), newest first, plus the
// cursor to pass for the next page. Only rollouts that have recorded at
// least one user event are returned — a rollout opened but never given
// real input doesn't belong in the conversation list. Whether a rollout
// has a SessionMeta item is not checked.
// nextCursor is empty once the caller has reached the end. reachedCap
// reports whether the underlying scan hit maxScanPerCall before finding
// limit matching rows, so a caller expecting more results than came back
// can tell "truly no more" from "stopped scanning early, page again".
func ListConversations(ctx context.Context, store *Store, cursor Cursor, limit int) (out []ConversationSummary, next Cursor, reachedCap bool, err error) {
	if limit <= 0 {
		limit = 20
	}
	afterUpdatedAt, afterID, err := cursor.decode()
	if err != nil {
		return nil, "", false, err
	}

	rows, reachedCap, err := store.ListConversationsAfter(ctx, afterUpdatedAt, afterID, limit, maxScanPerCall)
	if err != nil {
		return nil, "", false, err
	}

	out = make([]ConversationSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, ConversationSummary{ID: r.ID, Model: r.Model, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt})
	}

	if len(out) == limit {
		last := out[len(out)-1]
		next = encodeCursor(last.UpdatedAt, last.ID)
	}
	return out, next, reachedCap, nil
}
