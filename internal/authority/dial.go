package authority

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Opener connects to an authority at addr.
type Opener func(ctx context.Context, addr string) (Authority, error)

var (
	openersMu sync.RWMutex
	openers   = map[string]Opener{}
)

// Register makes an authority implementation reachable through Dial for the
// given address scheme. Implementations register themselves from init.
func Register(scheme string, open Opener) {
	openersMu.Lock()
	defer openersMu.Unlock()
	if open == nil {
		panic("authority: Register opener is nil")
	}
	if _, dup := openers[scheme]; dup {
		panic("authority: Register called twice for scheme " + scheme)
	}
	openers[scheme] = open
}

// Dial opens the authority addressed by addr, picking the implementation by
// scheme ("sqlite", "file", "ws", "wss").
func Dial(ctx context.Context, addr string) (Authority, error) {
	scheme, _, ok := strings.Cut(addr, ":")
	if !ok || scheme == "" {
		return nil, fmt.Errorf("authority address %q has no scheme", addr)
	}
	openersMu.RLock()
	open, ok := openers[strings.ToLower(scheme)]
	openersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no authority registered for scheme %q", scheme)
	}
	a, err := open(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", scheme, err)
	}
	return a, nil
}
