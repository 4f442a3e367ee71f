package tts

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Provider limits on the cleaned text, in characters.
const (
	MinTextLength = 10
	MaxTextLength = 5000
)

var (
	slideMarkerRe = regexp.MustCompile(`\[SLIDE:\d+\]\s*`)

	headingRe  = regexp.MustCompile(`#{1,6}\s`)
	boldRe     = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	italicRe   = regexp.MustCompile(`\*([^*]+)\*`)
	codeRe     = regexp.MustCompile("`([^`]+)`")
	linkRe     = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	bulletRe   = regexp.MustCompile(`(?m)^\s*[-*+]\s`)
	numberedRe = regexp.MustCompile(`(?m)^\s*\d+\.\s`)

	paragraphRe = regexp.MustCompile(`\n\n+`)
	sentenceRe  = regexp.MustCompile(`([.!?])(\s+)([A-ZА-ЯЁ])`)
	discourseRe = regexp.MustCompile(`(?i)(\. )(So|Therefore|However|Now|Let's|This|That|First|Second|Third|Finally|Remember|Important)`)
	pauseRunRe  = regexp.MustCompile(`(\.\.\.\s*){3,}`)
	pausePairRe = regexp.MustCompile(`(\.\.\.\s*){2}`)
)

// CleanText strips slide markers and markdown so only speakable text
// remains.
func CleanText(text string) string {
	s := strings.TrimSpace(text)
	s = slideMarkerRe.ReplaceAllString(s, "")
	s = headingRe.ReplaceAllString(s, "")
	s = boldRe.ReplaceAllString(s, "$1")
	s = italicRe.ReplaceAllString(s, "$1")
	s = codeRe.ReplaceAllString(s, "$1")
	s = linkRe.ReplaceAllString(s, "$1")
	s = bulletRe.ReplaceAllString(s, "")
	s = numberedRe.ReplaceAllString(s, "")
	return s
}

// AddPauses inserts ellipses the voice reads as short pauses: between
// paragraphs, after sentences and before discourse markers.
func AddPauses(text string) string {
	s := paragraphRe.ReplaceAllString(text, "\n\n... ...\n\n")
	s = sentenceRe.ReplaceAllString(s, "$1 ...$2$3")
	s = discourseRe.ReplaceAllString(s, "$1... $2")
	s = pauseRunRe.ReplaceAllString(s, "... ... ")
	s = pausePairRe.ReplaceAllString(s, "... ")
	return s
}

// PrepareText cleans text, adds pauses and enforces the length bounds.
func PrepareText(text string) (string, error) {
	s := AddPauses(CleanText(text))
	n := utf8.RuneCountInString(s)
	if n < MinTextLength {
		return "", fmt.Errorf("%w: %d characters, minimum %d", ErrTextTooShort, n, MinTextLength)
	}
	if n > MaxTextLength {
		return "", fmt.Errorf("%w: %d characters, maximum %d", ErrTextTooLong, n, MaxTextLength)
	}
	return s, nil
}
