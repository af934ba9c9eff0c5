// Package cache keeps route resolution caches coherent across instances.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"backoffice/internal/domain/rbac"
	"backoffice/pkg/logger"
)

// CatalogChannel is the NOTIFY channel raised by the rbac_permissions trigger.
const CatalogChannel = "rbac_catalog_changed"

// CatalogListener purges the route cache whenever another writer changes the
// permission catalog. It holds one pooled connection in LISTEN mode.
type CatalogListener struct {
	pool        *pgxpool.Pool
	invalidator rbac.Invalidator
	channel     string
	retryDelay  time.Duration

	lifecycleMu sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	started     bool
}

// NewCatalogListener creates a listener on CatalogChannel.
func NewCatalogListener(pool *pgxpool.Pool, invalidator rbac.Invalidator) *CatalogListener {
	return &CatalogListener{
		pool:        pool,
		invalidator: invalidator,
		channel:     CatalogChannel,
		retryDelay:  time.Second,
	}
}

// Start begins listening in the background. Calling it twice is a no-op.
func (l *CatalogListener) Start(ctx context.Context) error {
	l.lifecycleMu.Lock()
	defer l.lifecycleMu.Unlock()
	if l.started {
		return nil
	}

	l.ctx, l.cancel = context.WithCancel(ctx)
	l.started = true

	l.wg.Add(1)
	go l.listenLoop()

	logger.Info(l.ctx, "catalog listener started", "channel", l.channel)
	return nil
}

// Stop cancels the listener and waits for it to exit.
func (l *CatalogListener) Stop() {
	l.lifecycleMu.Lock()
	if !l.started {
		l.lifecycleMu.Unlock()
		return
	}
	cancel := l.cancel
	l.started = false
	l.cancel = nil
	l.lifecycleMu.Unlock()

	cancel()
	l.wg.Wait()
	logger.Info(context.Background(), "catalog listener stopped")
}

func (l *CatalogListener) listenLoop() {
	defer l.wg.Done()

	for l.ctx.Err() == nil {
		conn, err := l.pool.Acquire(l.ctx)
		if err != nil {
			logger.Error(l.ctx, "failed to acquire connection for LISTEN", "error", err)
			l.sleep()
			continue
		}

		if _, err := conn.Exec(l.ctx, "LISTEN "+l.channel); err != nil {
			logger.Error(l.ctx, "failed to LISTEN", "channel", l.channel, "error", err)
			conn.Release()
			l.sleep()
			continue
		}

		// notifications may have been missed while disconnected
		l.handle(l.channel, "reconnect")

		l.waitForNotifications(conn)
		conn.Release()
	}
}

func (l *CatalogListener) waitForNotifications(conn *pgxpool.Conn) {
	for {
		ctx, cancel := context.WithTimeout(l.ctx, 30*time.Second)
		notification, err := conn.Conn().WaitForNotification(ctx)
		cancel()

		if err != nil {
			if l.ctx.Err() != nil {
				return
			}
			if ctx.Err() != nil {
				continue
			}
			logger.Warn(l.ctx, "LISTEN connection lost", "error", err)
			return
		}

		l.handle(notification.Channel, notification.Payload)
	}
}

func (l *CatalogListener) handle(channel, payload string) {
	if channel != l.channel {
		return
	}
	logger.Debug(l.ctx, "catalog change received", "payload", payload)
	l.invalidator.InvalidateAll(l.ctx)
}

func (l *CatalogListener) sleep() {
	select {
	case <-l.ctx.Done():
	case <-time.After(l.retryDelay):
	}
}
