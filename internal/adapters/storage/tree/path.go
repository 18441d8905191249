package tree

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPath is returned for empty segments or reserved characters.
var ErrInvalidPath = errors.New("invalid tree path")

// ErrNotFound is returned when decoding a snapshot of a missing node.
var ErrNotFound = errors.New("tree node not found")

const reservedChars = ".#$[]"

// Join concatenates segments with "/", skipping empty ones.
func Join(parts ...string) string {
	var b strings.Builder
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('/')
		}
		b.WriteString(p)
	}
	return b.String()
}

// ValidatePath checks a slash-separated path. The empty path names the root.
func ValidatePath(p string) error {
	if p == "" {
		return nil
	}
	for _, seg := range strings.Split(p, "/") {
		if err := validateSegment(seg); err != nil {
			return fmt.Errorf("%w: %q", err, p)
		}
	}
	return nil
}

func validateSegment(seg string) error {
	if seg == "" {
		return ErrInvalidPath
	}
	if strings.ContainsAny(seg, reservedChars+"/") {
		return ErrInvalidPath
	}
	return nil
}

// lastSegment returns the final key of a path.
func lastSegment(p string) string {
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[i+1:]
	}
	return p
}

// ancestors returns every proper prefix of p, shortest first.
func ancestors(p string) []string {
	var out []string
	for i := 0; i < len(p); i++ {
		if p[i] == '/' {
			out = append(out, p[:i])
		}
	}
	return out
}

// overlaps reports whether a write at one path can change the value seen at the other.
func overlaps(a, b string) bool {
	if a == "" || b == "" || a == b {
		return true
	}
	return strings.HasPrefix(a, b+"/") || strings.HasPrefix(b, a+"/")
}

// subtreeBounds returns the exclusive range holding every descendant of root.
// '0' is the byte after '/', so [root+"/", root+"0") covers exactly root's children.
func subtreeBounds(root string) (lo, hi string) {
	return root + "/", root + "0"
}
