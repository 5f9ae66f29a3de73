// Package permalink builds and parses content permalinks of the form
// "<slug>-<base58 id>". The slug is cosmetic; the trailing base58 segment is
// the content id and is what lookups resolve against.
package permalink

import (
	"encoding/binary"
	"regexp"
	"strings"

	"github.com/mr-tron/base58"
)

const maxSlugChars = 100

var (
	spaceRe   = regexp.MustCompile(`\s+`)
	nonWordRe = regexp.MustCompile(`[^\w\-]`)
	dashRunRe = regexp.MustCompile(`[\-_]+`)
)

type Parsed struct {
	Raw   string
	Slug  string
	ID    uint
	Valid bool
}

// Slug normalizes free text into a url-safe slug capped at 100 chars.
func Slug(text string) string {
	text = spaceRe.ReplaceAllString(text, "-")
	text = nonWordRe.ReplaceAllString(text, "")
	text = dashRunRe.ReplaceAllString(text, "-")
	text = strings.ToLower(text)
	if len(text) > maxSlugChars {
		text = text[:maxSlugChars]
	}
	return strings.Trim(text, "-")
}

// Build appends the base58-encoded id to the slug.
func Build(slug string, id uint) string {
	return slug + "-" + EncodeID(id)
}

// Parse splits a raw permalink on its last dash and decodes the id segment.
// Valid is false when the raw string has no id segment at all; a segment that
// fails to decode leaves ID zero, which no row can match.
func Parse(raw string) Parsed {
	idx := strings.LastIndex(raw, "-")
	if idx < 0 {
		return Parsed{Raw: raw}
	}
	p := Parsed{Raw: raw, Slug: raw[:idx], Valid: true}
	if id, err := DecodeID(raw[idx+1:]); err == nil {
		p.ID = id
	}
	return p
}

// EncodeID base58-encodes the big-endian bytes of id, leading zeros stripped.
func EncodeID(id uint) string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(id))
	b := buf[:]
	for len(b) > 1 && b[0] == 0 {
		b = b[1:]
	}
	return base58.Encode(b)
}

func DecodeID(s string) (uint, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return 0, err
	}
	var id uint64
	for _, c := range b {
		id = id<<8 | uint64(c)
	}
	return uint(id), nil
}
