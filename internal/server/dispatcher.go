package server

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/driftwire/driftwire"
	"github.com/driftwire/driftwire/internal/channel"
	"github.com/driftwire/driftwire/internal/wire"
	"github.com/driftwire/driftwire/ratelimit"
)

// endpoint is the dispatcher's view of the multiplexer: framed delivery and
// the live-connection population. Narrow on purpose so tests can stand in.
type endpoint interface {
	writeFrame(id string, frame []byte)
	clientIDs() []string
	clientCount() int
}

// dispatcher turns decoded envelopes into registry changes and replies.
// It runs on the event-loop goroutine only.
type dispatcher struct {
	registry *channel.Registry
	limiter  *ratelimit.Limiter
	ep       endpoint
	log      *slog.Logger
}

// handle routes one envelope by type. Unknown types, and join/leave without
// a channel name, are ignored without a reply.
func (d *dispatcher) handle(id string, msg driftwire.Envelope) {
	switch msg.Type {
	case driftwire.TypeJoin:
		d.join(id, msg.Channel)
	case driftwire.TypeLeave:
		d.leave(id, msg.Channel)
	case driftwire.TypeMessage:
		d.broadcast(id, msg.Channel, msg.Data)
	case driftwire.TypeStats:
		d.sendJSON(id, d.statsReply())
	default:
		d.log.Debug("unknown message type ignored", "client_id", id, "type", msg.Type)
	}
}

func (d *dispatcher) join(id, name string) {
	if name == "" {
		return
	}
	d.registry.Join(id, name)
	d.log.Debug("channel joined", "client_id", id, "channel", name)
	d.sendStatus(id, driftwire.ActionJoined, name)
}

func (d *dispatcher) leave(id, name string) {
	if name == "" {
		return
	}
	d.registry.Leave(id, name)
	d.log.Debug("channel left", "client_id", id, "channel", name)
	d.sendStatus(id, driftwire.ActionLeft, name)
}

// broadcast frames data once and writes it to every member of name, or to
// every live connection when name is empty. The originating connection is
// skipped; server pushes pass from as "".
func (d *dispatcher) broadcast(from, name string, data []byte) {
	if len(data) == 0 {
		return
	}

	var targets []string
	if name == "" {
		targets = d.ep.clientIDs()
	} else {
		targets = d.registry.Members(name)
	}
	if len(targets) == 0 {
		return
	}

	frame, err := wire.Encode(data)
	if err != nil {
		d.log.Error("broadcast encode failed", "channel", name, "error", err)
		return
	}
	for _, id := range targets {
		if id == from {
			continue
		}
		d.ep.writeFrame(id, frame)
	}
}

func (d *dispatcher) sendStatus(id, action, name string) {
	d.sendJSON(id, driftwire.StatusReply{
		Type:    driftwire.TypeStatus,
		Action:  action,
		Channel: name,
		RateLimit: driftwire.RateLimitInfo{
			RemainingRequests: d.limiter.Remaining(id),
		},
	})
}

// rejectRateLimited answers a frame the governor refused. The reply itself
// is not charged.
func (d *dispatcher) rejectRateLimited(id string) {
	reply := driftwire.RateLimitErrorReply{
		Type:              driftwire.TypeRateLimitError,
		Message:           driftwire.RateLimitExceededMessage,
		RemainingRequests: d.limiter.Remaining(id),
		LimitInfo:         limitInfo(d.limiter.Limits()),
	}
	if until := d.limiter.BlockedUntil(id); !until.IsZero() {
		u := until.UTC()
		reply.BlockedUntil = &u
	}
	d.sendJSON(id, reply)
}

func (d *dispatcher) statsReply() driftwire.StatsReply {
	ls := d.limiter.Stats()
	return driftwire.StatsReply{
		Type: driftwire.TypeStats,
		Server: driftwire.ServerStats{
			ConnectedClients: d.ep.clientCount(),
			Channels:         d.registry.Count(),
		},
		RateLimiter: driftwire.RateLimiterStats{
			ActiveKeys:    ls.ActiveKeys,
			BlockedKeys:   ls.BlockedKeys,
			TotalAllowed:  ls.TotalAllowed,
			TotalRejected: ls.TotalRejected,
			Limit:         limitInfo(ls.Limit),
		},
	}
}

func (d *dispatcher) sendJSON(id string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		d.log.Error("reply marshal failed", "error", err)
		return
	}
	frame, err := wire.Encode(data)
	if err != nil {
		d.log.Error("reply encode failed", "error", err)
		return
	}
	d.ep.writeFrame(id, frame)
}

func limitInfo(cfg ratelimit.Config) driftwire.LimitInfo {
	return driftwire.LimitInfo{
		MaxRequests:          cfg.MaxRequests,
		WindowSeconds:        int(cfg.Window / time.Second),
		BlockDurationSeconds: int(cfg.BlockDuration / time.Second),
	}
}
