package messaging

import (
	"encoding/json"
	"fmt"

	"github.com/pixil98/go-presence/internal/presence"
)

// NatsPublisher encodes presence events onto their subjects.
type NatsPublisher struct {
	server *NatsServer
}

func NewNatsPublisher(server *NatsServer) *NatsPublisher {
	return &NatsPublisher{server: server}
}

func (p *NatsPublisher) Join(ev presence.JoinEvent) error {
	return p.publish(SubjectJoin, ev)
}

func (p *NatsPublisher) Leave(ev presence.LeaveEvent) error {
	return p.publish(SubjectLeave, ev)
}

func (p *NatsPublisher) StateChange(ev presence.StateChangeEvent) error {
	return p.publish(SubjectState, ev)
}

func (p *NatsPublisher) Kill(ev presence.KillEvent) error {
	return p.publish(SubjectKill, ev)
}

func (p *NatsPublisher) Death(ev presence.DeathEvent) error {
	return p.publish(SubjectDeath, ev)
}

func (p *NatsPublisher) publish(subject string, ev any) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", subject, err)
	}
	if err := p.server.Publish(subject, data); err != nil {
		return fmt.Errorf("publishing %s: %w", subject, err)
	}
	return nil
}
