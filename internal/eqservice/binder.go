package eqservice

import (
	"context"
	"sync"

	"github.com/satindergrewal/eqd/internal/bridge"
)

// LocalBinder binds a bridge to a service in the same process. The first
// Bind starts the service on ctx, which outlives any bridge.
type LocalBinder struct {
	ctx   context.Context
	svc   *Service
	start sync.Once
}

var _ bridge.Binder = (*LocalBinder)(nil)

// NewLocalBinder returns a binder that runs svc on ctx when first bound.
func NewLocalBinder(ctx context.Context, svc *Service) *LocalBinder {
	return &LocalBinder{ctx: ctx, svc: svc}
}

func (l *LocalBinder) Bind(notify func(bridge.Event)) {
	l.start.Do(func() {
		if l.svc.State() != Stopped {
			return
		}
		go func() {
			if err := l.svc.Run(l.ctx); err != nil {
				l.svc.log.Debug().Err(err).Msg("service already running")
			}
		}()
	})

	go func() {
		select {
		case <-l.svc.Ready():
		case <-l.svc.Done():
			notify(bridge.Event{Kind: bridge.Disconnected})
			return
		case <-l.ctx.Done():
			notify(bridge.Event{Kind: bridge.Disconnected})
			return
		}
		notify(bridge.Event{Kind: bridge.Connected, Conn: l.svc})

		<-l.svc.Done()
		notify(bridge.Event{Kind: bridge.Disconnected, Conn: l.svc})
	}()
}
