// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package embedding

import (
	"crypto/sha256"
	"encoding/hex"
	"html"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	htmlTagRe    = regexp.MustCompile(`<[^>]*>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// Normalize lowercases text, strips HTML tags and entities and collapses whitespace.
func Normalize(text string) string {
	text = htmlTagRe.ReplaceAllString(text, " ")
	text = html.UnescapeString(text)
	text = strings.ToLower(text)
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}

// PrepareText builds the embedding input for an item. The title is repeated
// to weight it above the body.
func PrepareText(title, body string, tags []string) string {
	t := Normalize(title)
	parts := make([]string, 0, 4)
	if t != "" {
		parts = append(parts, t, t)
	}
	if b := Normalize(body); b != "" {
		parts = append(parts, b)
	}
	if len(tags) > 0 {
		norm := make([]string, 0, len(tags))
		for _, tag := range tags {
			if n := Normalize(tag); n != "" {
				norm = append(norm, n)
			}
		}
		sort.Strings(norm)
		if len(norm) > 0 {
			parts = append(parts, strings.Join(norm, " "))
		}
	}
	return strings.Join(parts, " ")
}

// ContentFingerprint is the content address of an item's embedding input.
func ContentFingerprint(title, body string, tags []string) string {
	sum := sha256.Sum256([]byte(PrepareText(title, body, tags)))
	return hex.EncodeToString(sum[:])
}

// InteractionFingerprint is the content address of an interaction set.
// Weights are rounded to 1e-6 so refolds that differ only in the last bits
// share a fingerprint.
func InteractionFingerprint(set map[string]float64) string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	h := sha256.New()
	for _, id := range ids {
		h.Write([]byte(id))
		h.Write([]byte{0})
		h.Write([]byte(strconv.FormatFloat(set[id], 'f', 6, 64)))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
