// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/lectern/internal/eventbus"
	"github.com/tomtom215/lectern/internal/recommend"
	"github.com/tomtom215/lectern/internal/recommend/embedding"
)

// HandleRecorded applies one committed event to the derived state. Only a
// profile update failure is returned, so the message is retried; every later
// step is best effort and repeated by maintenance.
func (p *Pipeline) HandleRecorded(ctx context.Context, r eventbus.Recorded) error {
	logger := p.logger.With().Str("user_id", r.UserID).Str("action", r.Action).Logger()

	prof, err := p.deps.Profiles.UpdateProfileAt(ctx, r.UserID, r.Timestamp)
	if err != nil {
		return fmt.Errorf("update profile %s: %w", r.UserID, err)
	}

	action := recommend.Action(r.Action)
	if r.ItemID != "" {
		p.deps.Collab.Observe(recommend.InteractionEvent{
			UserID:    r.UserID,
			ItemID:    r.ItemID,
			Action:    action,
			Magnitude: r.Magnitude,
			Timestamp: r.Timestamp,
		})

		if action.Counter() != "" {
			_, err := p.deps.Quality.Score(ctx, r.ItemID)
			if err != nil && !errors.Is(err, recommend.ErrNotFound) {
				logger.Warn().Err(err).Str("item_id", r.ItemID).Msg("quality rescore failed")
			}
		}
	}

	if err := p.refreshUserEmbedding(ctx, prof); err != nil {
		logger.Debug().Err(err).Msg("user embedding not refreshed")
	}
	return nil
}

// refreshUserEmbedding stores the profile vector under the fingerprint of
// the interaction set. An unchanged set is a no-op.
func (p *Pipeline) refreshUserEmbedding(ctx context.Context, prof *recommend.UserProfile) error {
	if prof == nil || len(prof.InteractionSet) == 0 {
		return nil
	}
	subject := embedding.User(prof.UserID)
	fp := embedding.InteractionFingerprint(prof.InteractionSet)

	cur, err := p.deps.Embeddings.Latest(ctx, subject)
	switch {
	case err == nil && cur.Matches(fp, p.deps.Embeddings.ModelVersion()):
		return nil
	case err != nil && !errors.Is(err, recommend.ErrNotFound):
		return err
	}

	vec, err := p.deps.Vectorizer.ProfileVector(ctx, prof)
	if err != nil {
		return err
	}
	_, err = p.deps.Embeddings.Put(ctx, subject, fp, prof.AsOf, vec)
	return err
}

// Handler returns the watermill handler for events.recorded messages.
// Undecodable messages are acknowledged and dropped.
func (p *Pipeline) Handler() message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		r, err := eventbus.DecodeRecorded(msg)
		if err != nil {
			p.logger.Error().Err(err).Str("message_uuid", msg.UUID).Msg("dropping malformed aggregation trigger")
			return nil
		}
		return p.HandleRecorded(msg.Context(), r)
	}
}
