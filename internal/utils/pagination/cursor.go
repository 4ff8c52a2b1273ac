// Package pagination encodes history page positions as opaque tokens.
package pagination

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
)

// ErrInvalidToken is returned for tokens this package did not produce.
var ErrInvalidToken = errors.New("invalid pagination token")

// Cursor is the position of the next page in a filtered history.
type Cursor struct {
	Offset int `json:"offset"`
}

// Encode turns c into a URL-safe token.
func Encode(c Cursor) (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(raw), nil
}

// Decode reads a token produced by Encode. The empty token is the first
// page.
func Decode(token string) (Cursor, error) {
	var c Cursor
	if token == "" {
		return c, nil
	}
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, ErrInvalidToken
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if dec.Decode(&c) != nil || c.Offset < 0 {
		return Cursor{}, ErrInvalidToken
	}
	return c, nil
}

// Next returns the token of the page after one that started at offset and
// returned n of limit rows, or "" when that page was the last.
func Next(offset, limit, n int) string {
	if limit <= 0 || n < limit {
		return ""
	}
	tok, err := Encode(Cursor{Offset: offset + n})
	if err != nil {
		return ""
	}
	return tok
}
