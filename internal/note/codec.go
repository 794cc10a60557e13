package note

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Delimiter separates the note body from its metadata block.
const Delimiter = "---"

// DefaultTitle is used for files and display lines of untitled notes.
const DefaultTitle = "Untitled"

var (
	idPattern        = regexp.MustCompile(`^\s*id:\s*(-?\d+)\s*$`)
	importantPattern = regexp.MustCompile(`^\s*important:(.*)$`)
	titlePattern     = regexp.MustCompile(`^\s*title: ?(.*)$`)
)

// Encode renders n as a file body:
//
//	DISPLAY TITLE
//
//	content
//
//	---
//	id: 123
//	important: false
//	title: raw title
//
// Decode is its inverse for id, important, title and content.
func Encode(n Note) string {
	var b strings.Builder
	b.WriteString(displayTitle(n.Title))
	b.WriteString("\n\n")
	b.WriteString(n.Content)
	b.WriteString("\n\n")
	b.WriteString(Delimiter)
	b.WriteString("\n")
	fmt.Fprintf(&b, "id: %d\n", n.ID)
	fmt.Fprintf(&b, "important: %t\n", n.Important)
	fmt.Fprintf(&b, "title: %s\n", CleanTitle(n.Title))
	return b.String()
}

// Decode parses a file body. It never fails: missing or malformed metadata falls back
// to fallbackTitle and fallbackID.
//
// Only the first line equal to the delimiter ends the content. Content that itself
// contains such a line is truncated there.
func Decode(body, fallbackTitle string, fallbackID int64) Note {
	head, tail, found := split(body)

	n := Note{ID: fallbackID, Title: fallbackTitle}

	if len(head) > 0 {
		if first := strings.TrimSpace(head[0]); first != "" {
			n.Title = first
		}
		n.Content = content(head[1:], found)
	}

	var seenID, seenImportant, seenTitle bool
	for _, line := range tail {
		if m := idPattern.FindStringSubmatch(line); m != nil && !seenID {
			if id, err := strconv.ParseInt(m[1], 10, 64); err == nil {
				n.ID = id
				seenID = true
			}
			continue
		}
		if m := importantPattern.FindStringSubmatch(line); m != nil && !seenImportant {
			n.Important = strings.Contains(m[1], "true")
			seenImportant = true
			continue
		}
		if m := titlePattern.FindStringSubmatch(line); m != nil && !seenTitle {
			n.Title = strings.TrimSpace(m[1])
			seenTitle = true
		}
	}

	return n
}

// HasMetadata reports whether body carries a delimiter followed by an id line.
// Bodies without one still decode, using fallbacks.
func HasMetadata(body string) bool {
	_, tail, ok := split(body)
	if !ok {
		return false
	}
	for _, line := range tail {
		if idPattern.MatchString(line) {
			return true
		}
	}
	return false
}

// FileName returns the remote file name for n: <title>_<id>.md with every rune
// outside [A-Za-z0-9] replaced by '_'.
func FileName(n Note) string {
	title := n.Title
	if strings.TrimSpace(title) == "" {
		title = DefaultTitle
	}
	return fmt.Sprintf("%s_%d.md", sanitize(title), n.ID)
}

// FallbackTitle derives a title from a remote file name.
func FallbackTitle(name string) string {
	return strings.TrimSuffix(name, ".md")
}

// FallbackID derives an id from a remote file's creation time.
func FallbackID(createdAt time.Time) int64 {
	if createdAt.IsZero() {
		return 0
	}
	return createdAt.UnixMilli()
}

// content joins the lines between the title and the delimiter. Encode surrounds the
// content with exactly one blank line on each side; only those are dropped, so leading
// and trailing whitespace inside the content survives. Bodies without a delimiter were
// not written by Encode and are trimmed.
func content(lines []string, delimited bool) string {
	if !delimited {
		return strings.TrimSpace(strings.Join(lines, "\n"))
	}
	if len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

// split separates body at the first delimiter line after the title line.
func split(body string) (head, tail []string, found bool) {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	lines := strings.Split(body, "\n")
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == Delimiter {
			return lines[:i], lines[i+1:], true
		}
	}
	return lines, nil, false
}

func displayTitle(title string) string {
	title = CleanTitle(title)
	if title == "" {
		title = DefaultTitle
	}
	// Casers keep state; one per call.
	return cases.Upper(language.Und).String(title)
}

func sanitize(s string) string {
	var b strings.Builder
	for _, r := range norm.NFKD.String(s) {
		switch {
		case unicode.Is(unicode.Mn, r):
			// accents fold into their base letter
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
