// Package slides turns authored lesson text into numbered slides.
package slides

import (
	"math"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"lessoncast/pkg/types"
)

// MinParagraphLength is the untrimmed length, in characters, a blank-line
// paragraph must exceed to become a slide.
const MinParagraphLength = 20

var (
	slideMarker    = regexp.MustCompile(`\[SLIDE:\d+\]`)
	paragraphBreak = regexp.MustCompile(`\n\n+`)
)

// Split breaks text into slide fragments. Explicit [SLIDE:n] markers win,
// then "---" separators, then blank-line paragraphs longer than
// MinParagraphLength.
func Split(text string) []string {
	switch {
	case slideMarker.MatchString(text):
		return trimNonEmpty(slideMarker.Split(text, -1))
	case strings.Contains(text, "---"):
		return trimNonEmpty(strings.Split(text, "---"))
	default:
		var out []string
		for _, p := range paragraphBreak.Split(text, -1) {
			if utf8.RuneCountInString(p) > MinParagraphLength {
				out = append(out, strings.TrimSpace(p))
			}
		}
		return out
	}
}

func trimNonEmpty(parts []string) []string {
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Estimator derives a narration length from slide text.
type Estimator struct {
	WordsPerSecond float64
	Min            time.Duration
}

// DefaultEstimator reads at 2.5 words per second with a 2s floor.
func DefaultEstimator() Estimator {
	return Estimator{WordsPerSecond: 2.5, Min: 2 * time.Second}
}

// Estimate returns the expected narration time for text.
func (e Estimator) Estimate(text string) time.Duration {
	wps := e.WordsPerSecond
	if wps <= 0 {
		wps = 2.5
	}
	words := len(strings.Fields(text))
	ms := math.Round(float64(words) / wps * 1000)
	d := time.Duration(ms) * time.Millisecond
	if d < e.Min {
		return e.Min
	}
	return d
}

// Build splits text and numbers the fragments from 1, estimating each
// slide's duration.
func Build(text string, est Estimator) []types.Slide {
	fragments := Split(text)
	slides := make([]types.Slide, 0, len(fragments))
	for i, f := range fragments {
		slides = append(slides, types.Slide{
			Number:              i + 1,
			Title:               headingTitle(f),
			Text:                f,
			EstimatedDurationMs: est.Estimate(f).Milliseconds(),
			Theme:               types.SlideTheme{Kind: types.ThemePlain},
		})
	}
	return slides
}

// FillEstimates sets a duration on every slide that has none.
func FillEstimates(lesson *types.Lesson, est Estimator) {
	for i := range lesson.Slides {
		if lesson.Slides[i].EstimatedDurationMs == 0 {
			lesson.Slides[i].EstimatedDurationMs = est.Estimate(lesson.Slides[i].Text).Milliseconds()
		}
	}
}

// headingTitle returns the text of a leading markdown heading, if any.
func headingTitle(fragment string) string {
	line, _, _ := strings.Cut(fragment, "\n")
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "#") {
		return ""
	}
	return strings.TrimSpace(strings.TrimLeft(line, "#"))
}
