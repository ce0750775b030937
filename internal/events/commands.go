package events

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/pairup/match-engine/internal/metrics"
	"github.com/pairup/match-engine/internal/queue"
)

// commandTimeout bounds the store/index work done for one inbound command.
const commandTimeout = 5 * time.Second

// LeaveRequest is the queue.leave payload.
type LeaveRequest struct {
	UserID string `json:"user_id"`
}

// StatusRequest is the queue.status request payload.
type StatusRequest struct {
	UserID string `json:"user_id"`
}

// Ack is the reply for join and leave commands when the sender set a reply
// subject. Error is a stable code, not prose: "already_queued",
// "rate_limited", "invalid_request" or "internal".
type Ack struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Commands wires the queue.* subjects to the queue manager. One instance
// runs inside the matcher binary; the HTTP API tier stays a thin proxy.
type Commands struct {
	client  *Client
	manager *queue.Manager
}

// NewCommands creates the command surface over the given manager.
func NewCommands(client *Client, manager *queue.Manager) *Commands {
	return &Commands{client: client, manager: manager}
}

// Start subscribes to all queue command subjects.
func (c *Commands) Start() error {
	if err := c.client.Subscribe(SubjectQueueJoin, c.handleJoin); err != nil {
		return err
	}
	if err := c.client.Subscribe(SubjectQueueLeave, c.handleLeave); err != nil {
		return err
	}
	if err := c.client.Subscribe(SubjectQueueStatus, c.handleStatus); err != nil {
		return err
	}
	if err := c.client.Subscribe(SubjectQueueStats, c.handleStats); err != nil {
		return err
	}
	log.Println("[events] queue command surface started")
	return nil
}

func (c *Commands) handleJoin(msg *nats.Msg) {
	var req queue.JoinRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		log.Printf("[events] invalid join request: %v", err)
		respond(msg, Ack{Error: "invalid_request"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	err := c.manager.Join(ctx, req)
	switch {
	case err == nil:
		metrics.QueueOps.WithLabelValues("join", "ok").Inc()
		respond(msg, Ack{OK: true})
	case errors.Is(err, queue.ErrAlreadyQueued):
		metrics.QueueOps.WithLabelValues("join", "already_queued").Inc()
		respond(msg, Ack{Error: "already_queued"})
	case errors.Is(err, queue.ErrRateLimited):
		metrics.QueueOps.WithLabelValues("join", "rate_limited").Inc()
		respond(msg, Ack{Error: "rate_limited"})
	default:
		log.Printf("[events] join %s: %v", req.UserID, err)
		metrics.QueueOps.WithLabelValues("join", "error").Inc()
		respond(msg, Ack{Error: "internal"})
	}
}

func (c *Commands) handleLeave(msg *nats.Msg) {
	var req LeaveRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		log.Printf("[events] invalid leave request: %v", err)
		respond(msg, Ack{Error: "invalid_request"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if err := c.manager.Leave(ctx, req.UserID); err != nil {
		log.Printf("[events] leave %s: %v", req.UserID, err)
		metrics.QueueOps.WithLabelValues("leave", "error").Inc()
		respond(msg, Ack{Error: "internal"})
		return
	}
	metrics.QueueOps.WithLabelValues("leave", "ok").Inc()
	respond(msg, Ack{OK: true})
}

func (c *Commands) handleStatus(msg *nats.Msg) {
	var req StatusRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		log.Printf("[events] invalid status request: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	status, err := c.manager.Status(ctx, req.UserID)
	if err != nil {
		log.Printf("[events] status %s: %v", req.UserID, err)
		return
	}
	respond(msg, status)
}

func (c *Commands) handleStats(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	stats, err := c.manager.Stats(ctx)
	if err != nil {
		log.Printf("[events] stats: %v", err)
		return
	}
	respond(msg, stats)
}

// respond replies with a JSON payload when the sender asked for one.
func respond(msg *nats.Msg, payload interface{}) {
	if msg.Reply == "" {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[events] marshal reply: %v", err)
		return
	}
	if err := msg.Respond(data); err != nil {
		log.Printf("[events] respond: %v", err)
	}
}
