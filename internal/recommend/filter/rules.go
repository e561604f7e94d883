// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

// Package filter evaluates candidate eligibility rules written in CEL
// (Common Expression Language).
//
// Rules are compiled once and evaluated per candidate with two variables:
//
//	item.id, item.author_id, item.category, item.tags, item.status,
//	item.tier, item.tier_level, item.quality, item.age_days
//	user.tier, user.tier_level
//
// Examples:
//
//	item.quality >= 0.2
//	item.status == "published" && !("nsfw" in item.tags)
//	item.tier_level <= user.tier_level || item.category == "announcements"
//
// A candidate is eligible when every rule evaluates to true. Evaluation
// errors make the candidate ineligible.
package filter

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/rs/zerolog"

	"github.com/tomtom215/lectern/internal/recommend"
)

func newEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("item", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("user", cel.MapType(cel.StringType, cel.DynType)),
	)
}

type rule struct {
	expr string
	prg  cel.Program
}

// Rules is a compiled set of eligibility rules. It is safe for concurrent use.
type Rules struct {
	rules  []rule
	now    func() time.Time
	logger zerolog.Logger

	evalErrors atomic.Int64
}

// Compile parses and type-checks exprs. Empty expressions are skipped.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func Compile(exprs []string, logger zerolog.Logger) (*Rules, error) {
	env, err := newEnv()
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}

	r := &Rules{now: time.Now, logger: logger.With().Str("component", "filter").Logger()}
	for _, expr := range exprs {
		expr = strings.TrimSpace(expr)
		if expr == "" {
			continue
		}
		ast, issues := env.Compile(expr)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("compile %q: %w", expr, issues.Err())
		}
		if ast.OutputType() != cel.BoolType && ast.OutputType() != cel.DynType {
			return nil, fmt.Errorf("rule %q must return bool, got %s", expr, ast.OutputType())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("program %q: %w", expr, err)
		}
		r.rules = append(r.rules, rule{expr: expr, prg: prg})
	}
	return r, nil
}

// Len returns the number of compiled rules.
func (r *Rules) Len() int {
	return len(r.rules)
}

// EvalErrors returns how many evaluations failed.
func (r *Rules) EvalErrors() int64 {
	return r.evalErrors.Load()
}

// Eligible reports whether meta passes every rule for a user of tier.
func (r *Rules) Eligible(meta *recommend.ItemMeta, tier recommend.Tier) bool {
	if len(r.rules) == 0 {
		return true
	}
	input := r.input(meta, tier)
	for i := range r.rules {
		out, _, err := r.rules[i].prg.Eval(input)
		if err != nil {
			r.evalErrors.Add(1)
			r.logger.Debug().Err(err).Str("rule", r.rules[i].expr).Str("item_id", meta.ItemID).Msg("rule evaluation failed")
			return false
		}
		ok, isBool := out.Value().(bool)
		if !isBool || !ok {
			return false
		}
	}
	return true
}

func (r *Rules) input(meta *recommend.ItemMeta, tier recommend.Tier) map[string]interface{} {
	tags := meta.Tags
	if tags == nil {
		tags = []string{}
	}
	age := 0.0
	if !meta.PublishedAt.IsZero() {
		age = r.now().Sub(meta.PublishedAt).Hours() / 24
	}
	return map[string]interface{}{
		"item": map[string]interface{}{
			"id":         meta.ItemID,
			"author_id":  meta.AuthorID,
			"category":   meta.Category,
			"tags":       tags,
			"status":     string(meta.Status),
			"tier":       meta.AccessTier.String(),
			"tier_level": int64(meta.AccessTier),
			"quality":    meta.Quality,
			"age_days":   age,
		},
		"user": map[string]interface{}{
			"tier":       tier.String(),
			"tier_level": int64(tier),
		},
	}
}

var _ recommend.EligibilityRule = (*Rules)(nil)
