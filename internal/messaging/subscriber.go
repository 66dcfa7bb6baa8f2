package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/pixil98/go-presence/internal/presence"
)

const (
	SubjectJoin  = "presence.join"
	SubjectLeave = "presence.leave"
	SubjectState = "presence.state"
	SubjectKill  = "presence.kill"
	SubjectDeath = "presence.death"
)

// EventHandler receives decoded presence events.
type EventHandler interface {
	OnJoin(context.Context, presence.JoinEvent)
	OnLeave(context.Context, presence.LeaveEvent)
	OnStateChange(context.Context, presence.StateChangeEvent)
	OnKill(context.Context, presence.KillEvent)
	OnDeath(context.Context, presence.DeathEvent)
}

// Subscriber decodes JSON events from the presence subjects and passes them
// to a handler.
type Subscriber struct {
	server  *NatsServer
	handler EventHandler
}

func NewSubscriber(server *NatsServer, handler EventHandler) *Subscriber {
	return &Subscriber{server: server, handler: handler}
}

func (s *Subscriber) Start(ctx context.Context) error {
	select {
	case <-s.server.Ready():
	case <-ctx.Done():
		return nil
	}

	subs := map[string]func([]byte){
		SubjectJoin:  decode(ctx, SubjectJoin, s.handler.OnJoin),
		SubjectLeave: decode(ctx, SubjectLeave, s.handler.OnLeave),
		SubjectState: decode(ctx, SubjectState, s.handler.OnStateChange),
		SubjectKill:  decode(ctx, SubjectKill, s.handler.OnKill),
		SubjectDeath: decode(ctx, SubjectDeath, s.handler.OnDeath),
	}

	var unsubs []func()
	defer func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}()

	for subject, handler := range subs {
		unsub, err := s.server.Subscribe(subject, handler)
		if err != nil {
			return fmt.Errorf("subscribing to %s: %w", subject, err)
		}
		unsubs = append(unsubs, unsub)
	}

	slog.InfoContext(ctx, "listening for presence events", "subjects", len(unsubs))
	<-ctx.Done()
	return nil
}

func decode[T any](ctx context.Context, subject string, fn func(context.Context, T)) func([]byte) {
	return func(data []byte) {
		var ev T
		if err := json.Unmarshal(data, &ev); err != nil {
			slog.WarnContext(ctx, "dropping malformed event", "subject", subject, "error", err)
			return
		}
		fn(ctx, ev)
	}
}
