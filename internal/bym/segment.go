package bym

import "strings"

// SplitSegments breaks a model reply into sentence-like segments on "。",
// "？" and newlines. A delimiter adjacent to an ASCII '?' does not split, so
// "??"-style runs stay intact. Segments are trimmed, empty ones are dropped,
// and a segment that ended directly in "？" keeps it.
func SplitSegments(text string) []string {
	runes := []rune(text)
	var (
		segs  []string
		start int
	)
	emit := func(end int, keepQuestion bool) {
		raw := string(runes[start:end])
		seg := strings.TrimSpace(raw)
		if seg == "" {
			return
		}
		// "？" only sticks to text that runs right up to it.
		if keepQuestion && strings.HasSuffix(raw, seg) {
			seg += "？"
		}
		segs = append(segs, seg)
	}

	for i, r := range runes {
		if r != '。' && r != '？' && r != '\n' {
			continue
		}
		if i > 0 && runes[i-1] == '?' {
			continue
		}
		if i+1 < len(runes) && runes[i+1] == '?' {
			continue
		}
		emit(i, r == '？')
		start = i + 1
	}
	emit(len(runes), false)
	return segs
}
