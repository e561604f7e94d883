// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package quality

import (
	"html"
	"regexp"
	"strings"
	"unicode"
)

var (
	tagPattern       = regexp.MustCompile(`<[^>]*>`)
	sentenceBoundary = regexp.MustCompile(`[.!?]+`)
	paragraphBreak   = regexp.MustCompile(`\n\s*\n`)
)

// TextFeatures are surface statistics of an item body.
type TextFeatures struct {
	Words       int     `json:"words"`
	Sentences   int     `json:"sentences"`
	Paragraphs  int     `json:"paragraphs"`
	Keywords    int     `json:"keywords"`
	Readability float64 `json:"readability"`

	// Complexity is the share of distinct alphabetic words, in percent.
	Complexity float64 `json:"complexity"`
}

// ExtractText computes text features from an HTML or plain body.
func ExtractText(body string) TextFeatures {
	clean := html.UnescapeString(tagPattern.ReplaceAllString(body, " "))
	words := strings.Fields(clean)
	if len(words) == 0 {
		return TextFeatures{}
	}

	var f TextFeatures
	f.Words = len(words)
	for _, s := range sentenceBoundary.Split(clean, -1) {
		if strings.TrimSpace(s) != "" {
			f.Sentences++
		}
	}
	for _, p := range paragraphBreak.Split(clean, -1) {
		if strings.TrimSpace(p) != "" {
			f.Paragraphs++
		}
	}

	long := 0
	unique := make(map[string]struct{})
	keywords := make(map[string]struct{})
	for _, w := range words {
		if len(w) > 6 {
			long++
		}
		trimmed := strings.TrimFunc(w, func(r rune) bool { return !unicode.IsLetter(r) })
		if trimmed == "" || !isAlpha(trimmed) {
			continue
		}
		lw := strings.ToLower(trimmed)
		unique[lw] = struct{}{}
		if len(lw) > 3 {
			keywords[lw] = struct{}{}
		}
	}
	f.Keywords = len(keywords)

	perSentence := float64(f.Words) / float64(max(f.Sentences, 1))
	density := float64(long) / float64(f.Words)
	f.Readability = clamp(206.835-1.015*perSentence-84.6*density, 0, 100)
	f.Complexity = float64(len(unique)) / float64(f.Words) * 100
	return f
}

func isAlpha(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// contentPoints is the maximum of ContentScore's point scale.
const contentPoints = 90.0

// ContentScore maps text features, tag count and title length into [0, 1].
func ContentScore(f TextFeatures, tagCount, titleLen int) float64 {
	points := 0.0

	switch {
	case f.Words > 1000:
		points += 25
	case f.Words > 500:
		points += 20
	case f.Words > 200:
		points += 15
	case f.Words > 100:
		points += 10
	}

	r := f.Readability
	switch {
	case r >= 60 && r <= 80:
		points += 20
	case (r >= 40 && r < 60) || (r > 80 && r <= 90):
		points += 15
	case (r >= 20 && r < 40) || r > 90:
		points += 10
	}

	if f.Paragraphs > 3 {
		points += 8
	}
	if f.Sentences > 10 {
		points += 7
	}
	if tagCount > 2 {
		points += 5
	}
	if f.Keywords > 5 {
		points += 5
	}

	switch {
	case titleLen >= 30 && titleLen <= 70:
		points += 10
	case (titleLen >= 20 && titleLen < 30) || (titleLen > 70 && titleLen <= 100):
		points += 7
	}

	c := f.Complexity
	switch {
	case c >= 15 && c <= 40:
		points += 10
	case (c >= 10 && c < 15) || (c > 40 && c <= 50):
		points += 7
	}

	return clamp(points/contentPoints, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
