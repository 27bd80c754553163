// Package face converts reply text into QQ message parts. Bracketed face names
// such as "[微笑]" become native faces and "@name" tokens that match a group
// member become mentions.
package face

import (
	"sort"
	"strings"
)

// Kind identifies what a Part carries.
type Kind uint8

const (
	KindText Kind = iota
	KindFace
	KindAt
)

// Part is one piece of an outbound message.
type Part struct {
	Kind Kind
	// Text is the literal text, the canonical face name, or the mentioned display name.
	Text   string
	FaceID int
	UserID int64
}

// Text builds a plain text part.
func Text(s string) Part {
	return Part{Kind: KindText, Text: s}
}

var ids = func() map[string]int {
	m := make(map[string]int, len(names))
	for id, name := range names {
		m[name] = id
	}
	return m
}()

// Lookup resolves a face name to its id. It also accepts the name with a
// leading "/" added or removed, as QQ clients write both forms.
func Lookup(name string) (int, bool) {
	if id, ok := ids[name]; ok {
		return id, true
	}
	if id, ok := ids["/"+name]; ok {
		return id, true
	}
	if id, ok := ids[strings.TrimLeft(name, "/")]; ok {
		return id, true
	}
	return 0, false
}

// Name returns the display name of a face id.
func Name(id int) (string, bool) {
	name, ok := names[id]
	return name, ok
}

// Convert scans s and splits it into text, face and mention parts. members maps
// display names (card or nickname) to user ids; when it is empty "@" is kept
// as plain text. Unknown bracket tokens and unterminated brackets are kept
// verbatim.
func Convert(s string, members map[string]int64) []Part {
	var (
		parts []Part
		buf   strings.Builder
	)
	flush := func() {
		if buf.Len() > 0 {
			parts = append(parts, Text(buf.String()))
			buf.Reset()
		}
	}

	candidates := mentionCandidates(members)
	runes := []rune(s)

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '[':
			end := closingBracket(runes, i+1)
			if end < 0 {
				buf.WriteRune(r)
				continue
			}
			token := string(runes[i+1 : end])
			if id, ok := Lookup(token); ok {
				flush()
				parts = append(parts, Part{Kind: KindFace, FaceID: id, Text: names[id]})
			} else {
				buf.WriteString("[" + token + "]")
			}
			i = end
		case r == '@' && len(candidates) > 0:
			name, ok := matchMention(runes[i+1:], candidates)
			if !ok {
				buf.WriteRune(r)
				continue
			}
			flush()
			parts = append(parts, Part{Kind: KindAt, Text: name, UserID: members[name]})
			i += len([]rune(name))
		default:
			buf.WriteRune(r)
		}
	}
	flush()
	return parts
}

// Plain renders parts back to text: faces as "[name]", mentions as "@name".
func Plain(parts []Part) string {
	var sb strings.Builder
	for _, p := range parts {
		switch p.Kind {
		case KindFace:
			name := p.Text
			if name == "" {
				name, _ = Name(p.FaceID)
			}
			sb.WriteString("[" + name + "]")
		case KindAt:
			sb.WriteString("@" + p.Text)
		default:
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// closingBracket returns the index of the "]" closing a token that starts at
// from, or -1 when the token is unterminated or another "[" opens first.
func closingBracket(runes []rune, from int) int {
	for j := from; j < len(runes); j++ {
		switch runes[j] {
		case ']':
			return j
		case '[':
			return -1
		}
	}
	return -1
}

// mentionCandidates lists member names longest first so "@Alice2" prefers
// "Alice2" over "Alice".
func mentionCandidates(members map[string]int64) []string {
	out := make([]string, 0, len(members))
	for name := range members {
		if name != "" {
			out = append(out, name)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		li, lj := len([]rune(out[i])), len([]rune(out[j]))
		if li != lj {
			return li > lj
		}
		return out[i] < out[j]
	})
	return out
}

func matchMention(rest []rune, candidates []string) (string, bool) {
	s := string(rest)
	for _, name := range candidates {
		if strings.HasPrefix(s, name) {
			return name, true
		}
	}
	return "", false
}
