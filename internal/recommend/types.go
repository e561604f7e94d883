// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package recommend

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Action classifies a user interaction.
type Action string

const (
	ActionView       Action = "view"
	ActionClick      Action = "click"
	ActionScroll     Action = "scroll"
	ActionReadTime   Action = "read_time"
	ActionSearch     Action = "search"
	ActionLike       Action = "like"
	ActionUnlike     Action = "unlike"
	ActionBookmark   Action = "bookmark"
	ActionUnbookmark Action = "unbookmark"
	ActionShare      Action = "share"
	ActionComment    Action = "comment"
	ActionFollow     Action = "follow"
	ActionUnfollow   Action = "unfollow"
)

// Engagement counter names.
const (
	CounterViews     = "views"
	CounterLikes     = "likes"
	CounterBookmarks = "bookmarks"
	CounterComments  = "comments"
)

var knownActions = map[Action]struct{}{
	ActionView: {}, ActionClick: {}, ActionScroll: {}, ActionReadTime: {},
	ActionSearch: {}, ActionLike: {}, ActionUnlike: {}, ActionBookmark: {},
	ActionUnbookmark: {}, ActionShare: {}, ActionComment: {}, ActionFollow: {},
	ActionUnfollow: {},
}

// Known reports whether a is a recognised action.
func (a Action) Known() bool {
	_, ok := knownActions[a]
	return ok
}

// IsStrong reports whether the action changes a user's recommendations
// immediately. Strong actions invalidate the cached list; weak ones wait for
// the next aggregation pass.
func (a Action) IsStrong() bool {
	switch a {
	case ActionLike, ActionBookmark, ActionFollow:
		return true
	default:
		return false
	}
}

// Counter returns the engagement counter incremented by a, or "".
func (a Action) Counter() string {
	switch a {
	case ActionView:
		return CounterViews
	case ActionLike:
		return CounterLikes
	case ActionBookmark:
		return CounterBookmarks
	case ActionComment:
		return CounterComments
	default:
		return ""
	}
}

// BaseWeight is the per-action affinity multiplier. Undo actions are negative.
func (a Action) BaseWeight() float64 {
	switch a {
	case ActionView:
		return 1.0
	case ActionClick, ActionScroll:
		return 0.5
	case ActionReadTime:
		return 1.5
	case ActionLike, ActionComment:
		return 3.0
	case ActionBookmark, ActionShare:
		return 4.0
	case ActionFollow:
		return 2.0
	case ActionUnlike:
		return -3.0
	case ActionUnbookmark:
		return -4.0
	case ActionUnfollow:
		return -2.0
	default:
		return 0
	}
}

// IsPositive reports whether the interaction counts as positive evidence for
// collaborative filtering. readTimeThreshold applies to read_time events only.
func (a Action) IsPositive(magnitude float64, readTimeThreshold time.Duration) bool {
	switch a {
	case ActionLike, ActionBookmark, ActionShare, ActionComment:
		return true
	case ActionReadTime:
		return magnitude >= readTimeThreshold.Seconds()
	default:
		return false
	}
}

// Undoes returns the action that a cancels, or "".
func (a Action) Undoes() Action {
	switch a {
	case ActionUnlike:
		return ActionLike
	case ActionUnbookmark:
		return ActionBookmark
	case ActionUnfollow:
		return ActionFollow
	default:
		return ""
	}
}

// Tier is an ordered entitlement level.
type Tier int

const (
	TierFree Tier = iota
	TierPremium
	TierEnterprise
)

// String returns the tier name.
func (t Tier) String() string {
	switch t {
	case TierFree:
		return "free"
	case TierPremium:
		return "premium"
	case TierEnterprise:
		return "enterprise"
	default:
		return "tier(" + strconv.Itoa(int(t)) + ")"
	}
}

// Allows reports whether a holder of t may see content gated at required.
func (t Tier) Allows(required Tier) bool {
	return required <= t
}

// ParseTier parses a tier name. The empty string is free.
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "free":
		return TierFree, nil
	case "premium":
		return TierPremium, nil
	case "enterprise":
		return TierEnterprise, nil
	default:
		return TierFree, fmt.Errorf("unknown tier %q", s)
	}
}

// MarshalText encodes the tier by name.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes a tier name.
func (t *Tier) UnmarshalText(b []byte) error {
	parsed, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ItemStatus is the publication state of an item.
type ItemStatus string

const (
	StatusDraft     ItemStatus = "draft"
	StatusPublished ItemStatus = "published"
	StatusArchived  ItemStatus = "archived"
)

// InteractionEvent is one user interaction as recorded by the Event Ingestor.
type InteractionEvent struct {
	// UserID is the acting user.
	UserID string `json:"user_id" validate:"required,identifier"`

	// ItemID is the target item. Empty only for search events.
	ItemID string `json:"item_id,omitempty" validate:"omitempty,identifier"`

	// Action is the interaction kind.
	Action Action `json:"action" validate:"required"`

	// Timestamp is when the interaction happened (client clock).
	Timestamp time.Time `json:"timestamp"`

	// Magnitude is action-specific: a fraction in [0,1] for scroll, seconds
	// for read_time, and an optional multiplier (0 means 1) otherwise.
	Magnitude float64 `json:"magnitude,omitempty" validate:"gte=0"`

	// SessionID groups interactions within a visit.
	SessionID string `json:"session_id,omitempty" validate:"max=128"`

	// Query is the search text for search events.
	Query string `json:"query,omitempty" validate:"max=512"`
}

// Engagement holds an item's interaction counters.
type Engagement struct {
	Views     int64 `json:"views"`
	Likes     int64 `json:"likes"`
	Bookmarks int64 `json:"bookmarks"`
	Comments  int64 `json:"comments"`
}

// Get returns the named counter.
func (e Engagement) Get(counter string) int64 {
	switch counter {
	case CounterViews:
		return e.Views
	case CounterLikes:
		return e.Likes
	case CounterBookmarks:
		return e.Bookmarks
	case CounterComments:
		return e.Comments
	default:
		return 0
	}
}

// Inc increments the named counter. Unknown names are ignored.
func (e *Engagement) Inc(counter string) {
	switch counter {
	case CounterViews:
		e.Views++
	case CounterLikes:
		e.Likes++
	case CounterBookmarks:
		e.Bookmarks++
	case CounterComments:
		e.Comments++
	}
}

// ItemFeatures is the stored description of a content item.
type ItemFeatures struct {
	ItemID   string   `json:"item_id" validate:"required,identifier"`
	Title    string   `json:"title" validate:"required,max=512"`
	Body     string   `json:"body,omitempty"`
	AuthorID string   `json:"author_id" validate:"required,identifier"`
	Category string   `json:"category" validate:"required,max=128"`
	Tags     []string `json:"tags,omitempty" validate:"max=64,dive,max=64"`

	// ContentFingerprint is the content-addressed hash of title, body and tags.
	ContentFingerprint string `json:"content_fingerprint"`

	PublishedAt time.Time  `json:"published_at"`
	AccessTier  Tier       `json:"access_tier"`
	Status      ItemStatus `json:"status" validate:"omitempty,oneof=draft published archived"`

	// Engagement is maintained by the Event Ingestor; writes through
	// item upserts are ignored.
	Engagement Engagement `json:"engagement"`

	// Spotlight marks editorially featured items.
	Spotlight bool `json:"spotlight,omitempty"`

	// AuthorFollowers is the author's follower count at publish time.
	AuthorFollowers int64 `json:"author_followers,omitempty" validate:"gte=0"`

	WordCount          int       `json:"word_count,omitempty"`
	ReadingTimeMinutes int       `json:"reading_time_minutes,omitempty"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Published reports whether the item is visible to recommendations.
func (i *ItemFeatures) Published() bool {
	return i.Status == StatusPublished
}

// Meta returns the index metadata for the item.
func (i *ItemFeatures) Meta(quality float64) ItemMeta {
	return ItemMeta{
		ItemID:      i.ItemID,
		AuthorID:    i.AuthorID,
		Category:    i.Category,
		Tags:        i.Tags,
		AccessTier:  i.AccessTier,
		Status:      i.Status,
		PublishedAt: i.PublishedAt,
		Quality:     quality,
	}
}

// ItemMeta is the subset of item features needed to filter and order candidates.
type ItemMeta struct {
	ItemID      string     `json:"item_id"`
	AuthorID    string     `json:"author_id"`
	Category    string     `json:"category"`
	Tags        []string   `json:"tags,omitempty"`
	AccessTier  Tier       `json:"access_tier"`
	Status      ItemStatus `json:"status"`
	PublishedAt time.Time  `json:"published_at"`
	Quality     float64    `json:"quality"`
}

// UserProfile is the decayed aggregate of a user's interactions.
type UserProfile struct {
	UserID string `json:"user_id"`

	// CategoryAffinity and TagAffinity sum decayed interaction weights.
	CategoryAffinity map[string]float64 `json:"category_affinity"`
	TagAffinity      map[string]float64 `json:"tag_affinity"`

	// InteractionSet holds items with positive decayed weight.
	InteractionSet map[string]float64 `json:"interaction_set"`

	// FollowedAuthors holds authors with positive decayed follow weight.
	FollowedAuthors map[string]float64 `json:"followed_authors,omitempty"`

	Tier Tier `json:"tier"`

	// EventCount is the number of folded events.
	EventCount int `json:"event_count"`

	// AsOf is the decay reference time: the timestamp of the newest folded event.
	AsOf time.Time `json:"as_of"`

	// Cursor is the store key of the newest folded event.
	Cursor string `json:"cursor,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// NewUserProfile returns an empty profile.
func NewUserProfile(userID string) *UserProfile {
	return &UserProfile{
		UserID:           userID,
		CategoryAffinity: make(map[string]float64),
		TagAffinity:      make(map[string]float64),
		InteractionSet:   make(map[string]float64),
		FollowedAuthors:  make(map[string]float64),
	}
}

// IsEmpty reports whether the profile carries no interaction signal.
func (p *UserProfile) IsEmpty() bool {
	return p == nil || len(p.InteractionSet) == 0
}

// Clone returns a deep copy.
func (p *UserProfile) Clone() *UserProfile {
	c := *p
	c.CategoryAffinity = cloneWeights(p.CategoryAffinity)
	c.TagAffinity = cloneWeights(p.TagAffinity)
	c.InteractionSet = cloneWeights(p.InteractionSet)
	c.FollowedAuthors = cloneWeights(p.FollowedAuthors)
	return &c
}

// TopInteractions returns up to n items of the interaction set ordered by
// weight descending, then item id ascending.
func (p *UserProfile) TopInteractions(n int) []ScoredID {
	out := make([]ScoredID, 0, len(p.InteractionSet))
	for id, w := range p.InteractionSet {
		out = append(out, ScoredID{ID: id, Score: w})
	}
	SortScoredIDs(out)
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func cloneWeights(m map[string]float64) map[string]float64 {
	c := make(map[string]float64, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// Preferences are explicit user settings. They back the entitlement source.
type Preferences struct {
	UserID              string    `json:"user_id" validate:"required,identifier"`
	Tier                Tier      `json:"tier"`
	PreferredCategories []string  `json:"preferred_categories,omitempty" validate:"max=32"`
	DislikedCategories  []string  `json:"disliked_categories,omitempty" validate:"max=32"`
	PreferredAuthors    []string  `json:"preferred_authors,omitempty" validate:"max=64"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// QualityScore is the composite quality of an item.
type QualityScore struct {
	ItemID     string  `json:"item_id"`
	Content    float64 `json:"content"`
	Engagement float64 `json:"engagement"`
	Social     float64 `json:"social"`
	Author     float64 `json:"author"`
	Recency    float64 `json:"recency"`
	Overall    float64 `json:"overall"`
	Label      string  `json:"label"`

	// Snapshot and Fingerprint record the inputs the score was computed from.
	Snapshot    Engagement `json:"snapshot"`
	Fingerprint string     `json:"fingerprint"`
	ComputedAt  time.Time  `json:"computed_at"`
}

// SubjectKind distinguishes item and user embeddings.
type SubjectKind string

const (
	SubjectItem SubjectKind = "item"
	SubjectUser SubjectKind = "user"
)

// EmbeddingRecord is a cached vector for an item or user.
type EmbeddingRecord struct {
	SubjectID    string      `json:"subject_id"`
	Kind         SubjectKind `json:"kind"`
	Vector       []float32   `json:"vector"`
	Fingerprint  string      `json:"fingerprint"`
	ModelVersion string      `json:"model_version"`
	GeneratedAt  time.Time   `json:"generated_at"`

	// SourceAt is when the source the vector was built from last changed:
	// the item's update time or the profile's AsOf. A record never replaces
	// one built from a newer source.
	SourceAt time.Time `json:"source_at"`
}

// Supersedes reports whether r was built from a newer source than other.
func (r *EmbeddingRecord) Supersedes(other *EmbeddingRecord) bool {
	return r != nil && other != nil && r.SourceAt.After(other.SourceAt)
}

// Matches reports whether the record was generated for fingerprint under modelVersion.
func (r *EmbeddingRecord) Matches(fingerprint, modelVersion string) bool {
	return r != nil && r.Fingerprint == fingerprint && r.ModelVersion == modelVersion
}

// ScoredID is an id with a score.
type ScoredID struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// SortScoredIDs orders by score descending, then id ascending.
func SortScoredIDs(ids []ScoredID) {
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Score != ids[j].Score {
			return ids[i].Score > ids[j].Score
		}
		return ids[i].ID < ids[j].ID
	})
}

// Hit is a similarity index result.
type Hit struct {
	ItemMeta
	Similarity float64 `json:"similarity"`
}

// Signal sources contributing to a recommendation.
const (
	SourceContent    = "content"
	SourceCollab     = "collaborative"
	SourcePopularity = "popularity"
	SourceSimilar    = "similar"
)

// ScoredItem is a ranked recommendation.
type ScoredItem struct {
	ItemID      string    `json:"item_id"`
	Score       float64   `json:"score"`
	Category    string    `json:"category"`
	AuthorID    string    `json:"author_id,omitempty"`
	AccessTier  Tier      `json:"access_tier"`
	PublishedAt time.Time `json:"published_at"`
	Quality     float64   `json:"quality"`

	// Sources holds the normalized per-source scores.
	Sources map[string]float64 `json:"sources,omitempty"`

	// Reason is a short human-readable explanation.
	Reason string `json:"reason,omitempty"`
}

// RecommendationEntry is a cached ranked list for a user.
type RecommendationEntry struct {
	UserID      string       `json:"user_id"`
	Items       []ScoredItem `json:"items"`
	GeneratedAt time.Time    `json:"generated_at"`
	ExpiresAt   time.Time    `json:"expires_at"`

	// Exhausted is set when the ranker produced fewer items than requested
	// because no more eligible candidates existed.
	Exhausted bool `json:"exhausted"`

	// NoRecommendations mirrors Response.NoRecommendations.
	NoRecommendations bool `json:"no_recommendations,omitempty"`

	Path    string   `json:"path,omitempty"`
	Sources []string `json:"sources,omitempty"`
}

// RankState is a step of the Hybrid Ranker.
type RankState int

const (
	StateNeedProfile RankState = iota
	StateNeedCandidates
	StateScore
	StateFilter
	StateDiversify
	StateDone
)

// String returns the state name.
func (s RankState) String() string {
	switch s {
	case StateNeedProfile:
		return "need_profile"
	case StateNeedCandidates:
		return "need_candidates"
	case StateScore:
		return "score"
	case StateFilter:
		return "filter"
	case StateDiversify:
		return "diversify"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s RankState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Response is the result of a recommendation query.
type Response struct {
	Items []ScoredItem `json:"items"`

	// NoRecommendations is set when every signal source was unavailable.
	NoRecommendations bool `json:"no_recommendations"`

	Metadata ResponseMetadata `json:"metadata"`
}

// ResponseMetadata carries diagnostic information about a query.
type ResponseMetadata struct {
	RequestID string `json:"request_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`

	// Path is personalized, cold_start, similar or trending.
	Path string `json:"path"`

	// State is the last ranker state reached.
	State RankState `json:"state"`

	// Sources lists the signal sources that contributed candidates.
	Sources []string `json:"sources,omitempty"`

	// Degraded lists sources that failed or timed out.
	Degraded []string `json:"degraded,omitempty"`

	CandidateCount int       `json:"candidate_count"`
	Exhausted      bool      `json:"exhausted"`
	CacheHit       bool      `json:"cache_hit"`
	LatencyMS      int64     `json:"latency_ms"`
	Timestamp      time.Time `json:"timestamp"`
}

// Partial reports whether any source degraded while producing the response.
func (r *Response) Partial() bool {
	return len(r.Metadata.Degraded) > 0
}

// HistoryFilter narrows a user's activity history.
type HistoryFilter struct {
	Actions []Action
	Since   time.Time
	Until   time.Time
	Limit   int
}

// ReadingStats summarises a user's reading activity over a window.
type ReadingStats struct {
	UserID              string  `json:"user_id"`
	Days                int     `json:"days"`
	TotalViews          int     `json:"total_views"`
	TotalReadingSeconds float64 `json:"total_reading_seconds"`
	ReadingDays         int     `json:"reading_days"`
	AvgReadingSeconds   float64 `json:"avg_reading_seconds"`

	// Frequency is reading days divided by the window length.
	Frequency float64 `json:"frequency"`
}

// ActionMetrics aggregates one action kind of a user's history.
type ActionMetrics struct {
	Count int `json:"count"`

	// AvgMagnitude is the mean magnitude of events that carried one:
	// seconds for read_time, page fraction for scroll.
	AvgMagnitude float64 `json:"avg_magnitude,omitempty"`
}

// EngagementMetrics summarises a user's whole interaction history.
type EngagementMetrics struct {
	UserID            string                   `json:"user_id"`
	TotalEvents       int                      `json:"total_events"`
	Actions           map[Action]ActionMetrics `json:"actions"`
	AvgReadingSeconds float64                  `json:"avg_reading_seconds"`
	AvgScrollDepth    float64                  `json:"avg_scroll_depth"`
	FirstActive       *time.Time               `json:"first_active,omitempty"`
	LastActive        *time.Time               `json:"last_active,omitempty"`
}

// QualityAverages holds mean component scores.
type QualityAverages struct {
	Overall    float64 `json:"overall"`
	Content    float64 `json:"content"`
	Engagement float64 `json:"engagement"`
	Social     float64 `json:"social"`
	Author     float64 `json:"author"`
}

// QualityInsights summarises quality scores computed within a window.
type QualityInsights struct {
	Days     int             `json:"days"`
	Analyzed int             `json:"analyzed"`
	Averages QualityAverages `json:"averages"`

	// Distribution counts scores per quality label.
	Distribution map[string]int `json:"distribution"`
}
