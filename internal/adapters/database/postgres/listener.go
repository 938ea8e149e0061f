package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"github.com/TaiJP119/vet-vetconnect-some/pkg/logger/types"
)

const (
	listenerMinReconnect = 10 * time.Second
	listenerMaxReconnect = time.Minute
	listenerPingInterval = 90 * time.Second
	// listenerMaxInFlight bounds the number of notifications handled at the same time.
	listenerMaxInFlight = 16
)

// Listener receives change messages published by the triggers from InstallChangeTriggers.
type Listener struct {
	dsn     string
	channel string
	logger  *types.Logger
}

func NewListener(dsn, channel string, logger *types.Logger) *Listener {
	return &Listener{
		dsn:     dsn,
		channel: channel,
		logger:  logger,
	}
}

// Listen delivers every notification payload to handle until ctx is done, at most
// listenerMaxInFlight at once. Reconnects are handled by pq.Listener.
func (l *Listener) Listen(ctx context.Context, handle func(ctx context.Context, payload []byte)) error {
	listener := pq.NewListener(l.dsn, listenerMinReconnect, listenerMaxReconnect, func(event pq.ListenerEventType, err error) {
		switch event {
		case pq.ListenerEventDisconnected:
			l.logger.Warnf("Change listener disconnected: %v", err)
		case pq.ListenerEventReconnected:
			// Notifications sent while disconnected are lost; the reminder poll covers them.
			l.logger.Info("Change listener reconnected")
		case pq.ListenerEventConnectionAttemptFailed:
			l.logger.Errorf("Change listener connection attempt failed: %v", err)
		}
	})
	defer listener.Close()

	if err := listener.Listen(l.channel); err != nil {
		return fmt.Errorf("listen %s: %w", l.channel, err)
	}
	l.logger.Infof("Listening for changes on postgres channel %s", l.channel)

	pingCtx, stopPing := context.WithCancel(ctx)
	defer stopPing()
	go func() {
		ticker := time.NewTicker(listenerPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-pingCtx.Done():
				return
			case <-ticker.C:
				if err := listener.Ping(); err != nil {
					l.logger.Warnf("Change listener ping failed: %v", err)
				}
			}
		}
	}()

	consumeNotifications(ctx, listener.Notify, handle, listenerMaxInFlight)
	return nil
}

// consumeNotifications hands payloads to handle with at most limit running, and waits
// for the running ones before returning. A nil notification marks a reconnect and is skipped.
func consumeNotifications(ctx context.Context, notify <-chan *pq.Notification, handle func(ctx context.Context, payload []byte), limit int) {
	var g errgroup.Group
	g.SetLimit(limit)
	defer func() { _ = g.Wait() }()

	for {
		select {
		case <-ctx.Done():
			return
		case n := <-notify:
			if n == nil {
				continue
			}
			payload := []byte(n.Extra)
			g.Go(func() error {
				handle(ctx, payload)
				return nil
			})
		}
	}
}
