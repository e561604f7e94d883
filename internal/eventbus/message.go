// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package eventbus

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Metadata keys set on every message.
const (
	MetadataUserID = "user_id"
	MetadataAction = "action"
)

// Recorded announces that an interaction was committed to the event log.
type Recorded struct {
	UserID    string    `json:"user_id"`
	ItemID    string    `json:"item_id,omitempty"`
	Action    string    `json:"action"`
	Magnitude float64   `json:"magnitude,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage encodes r as a Watermill message with a fresh UUID.
func NewMessage(ctx context.Context, r Recorded) (*message.Message, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode recorded: %w", err)
	}
	msg := message.NewMessage(uuid.NewString(), data)
	msg.Metadata.Set(MetadataUserID, r.UserID)
	msg.Metadata.Set(MetadataAction, r.Action)
	msg.SetContext(ctx)
	return msg, nil
}

// DecodeRecorded parses a message payload.
func DecodeRecorded(msg *message.Message) (Recorded, error) {
	var r Recorded
	if err := json.Unmarshal(msg.Payload, &r); err != nil {
		return r, fmt.Errorf("decode recorded %s: %w", msg.UUID, err)
	}
	if r.UserID == "" {
		return r, fmt.Errorf("recorded %s: missing user_id", msg.UUID)
	}
	return r, nil
}
