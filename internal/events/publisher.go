package events

import (
	"encoding/json"
	"fmt"
	"log"
	"time"
)

// MatchCreatedEvent is the payload published on match.created whenever the
// scheduler commits a pairing. Downstream consumers (notification dispatch,
// interaction-session creation) key idempotency on MatchID.
type MatchCreatedEvent struct {
	User1ID   string    `json:"user1_id"`
	User2ID   string    `json:"user2_id"`
	MatchID   string    `json:"match_id"`
	Score     float64   `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}

// PublishMatchCreated emits a match.created event for a newly committed
// match attempt.
func (c *Client) PublishMatchCreated(ev MatchCreatedEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("events: marshal match created: %w", err)
	}
	if err := c.Publish(SubjectMatchCreated, data); err != nil {
		return fmt.Errorf("events: publish match created %s: %w", ev.MatchID, err)
	}

	log.Printf("[events] match published: match=%s a=%s b=%s score=%.3f",
		ev.MatchID, ev.User1ID, ev.User2ID, ev.Score)
	return nil
}
