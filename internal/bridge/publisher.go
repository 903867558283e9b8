package bridge

import (
	"sync/atomic"

	"gridrealm.dev/internal/world"
)

// Publisher holds the latest Snapshot. Publish replaces it whole; Current
// never blocks and never observes a partial value.
type Publisher struct {
	cur atomic.Pointer[world.Snapshot]
}

func NewPublisher() *Publisher {
	p := &Publisher{}
	empty := world.Empty()
	p.cur.Store(&empty)
	return p
}

func (p *Publisher) Publish(s world.Snapshot) { p.cur.Store(&s) }

func (p *Publisher) Current() world.Snapshot { return *p.cur.Load() }
