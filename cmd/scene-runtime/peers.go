package main

import (
	"errors"
	"sync"

	"github.com/zeusync/ecsruntime/internal/transport"
)

type peer interface {
	transport.Sender
	IsClosed() bool
}

// peers fans frames out to every connected scene runtime in listen mode.
type peers struct {
	mu    sync.RWMutex
	conns map[peer]struct{}
}

func newPeers() *peers {
	return &peers{conns: make(map[peer]struct{})}
}

func (p *peers) add(c peer) {
	p.mu.Lock()
	p.conns[c] = struct{}{}
	p.mu.Unlock()
}

func (p *peers) remove(c peer) {
	p.mu.Lock()
	delete(p.conns, c)
	p.mu.Unlock()
}

func (p *peers) Send(frame []byte) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var all error
	for c := range p.conns {
		if c.IsClosed() {
			continue
		}
		all = errors.Join(all, c.Send(frame))
	}
	return all
}
