// Package pagination implements keyset paging over rows listed newest id
// first. Cursors are opaque to clients.
package pagination

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100

	cursorPrefix = "id:"
)

var errBadCursor = errors.New("malformed cursor")

// Params is what a list endpoint receives from the query string.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor resumes a listing after the row with ID. The next page holds ids
// strictly below it.
type Cursor struct {
	ID int64
}

// Size is the page size after applying the default and the cap.
func (p Params) Size() int {
	switch {
	case p.Limit <= 0:
		return DefaultLimit
	case p.Limit > MaxLimit:
		return MaxLimit
	}
	return p.Limit
}

// Fetch is how many rows a repository should load: one past the page so the
// caller can tell whether another page exists.
func (p Params) Fetch() int {
	return p.Size() + 1
}

// Decode parses the cursor. A blank cursor means the first page.
func (p Params) Decode() (*Cursor, error) {
	raw := strings.TrimSpace(p.Cursor)
	if raw == "" {
		return nil, nil
	}
	b, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return nil, errBadCursor
	}
	idText, ok := strings.CutPrefix(string(b), cursorPrefix)
	if !ok {
		return nil, errBadCursor
	}
	id, err := strconv.ParseInt(idText, 10, 64)
	if err != nil || id <= 0 {
		return nil, errBadCursor
	}
	return &Cursor{ID: id}, nil
}

func Encode(c Cursor) string {
	return base64.RawURLEncoding.EncodeToString([]byte(cursorPrefix + strconv.FormatInt(c.ID, 10)))
}

// Trim cuts rows fetched with Fetch down to the page size. The returned
// cursor is empty on the last page.
func Trim[T any](rows []T, p Params, id func(T) int64) ([]T, string) {
	size := p.Size()
	if len(rows) <= size {
		return rows, ""
	}
	rows = rows[:size]
	return rows, Encode(Cursor{ID: id(rows[size-1])})
}
