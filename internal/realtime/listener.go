package realtime

import (
	"context"
	"time"

	"github.com/lib/pq"

	"github.com/lapublica/platform/internal/pkg/logger"
)

// Listen subscribes to Channel and feeds notifications into hub until ctx
// is done. pq.Listener reconnects on its own; after a reconnect a nil
// notification arrives and events sent while disconnected are lost.
func Listen(ctx context.Context, dsn string, hub *Hub) error {
	report := func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnectionAttemptFailed, pq.ListenerEventDisconnected:
			logger.Warn("realtime: pg listener problem", "event", int(ev), "error", err)
		case pq.ListenerEventReconnected:
			logger.Info("realtime: pg listener reconnected")
		}
	}

	listener := pq.NewListener(dsn, 10*time.Second, time.Minute, report)
	defer listener.Close()
	if err := listener.Listen(Channel); err != nil {
		return err
	}
	logger.Info("realtime: listening", "channel", Channel)

	ping := time.NewTicker(90 * time.Second)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-listener.Notify:
			if n != nil {
				hub.DeliverRaw(n.Extra)
			}
		case <-ping.C:
			go func() {
				if err := listener.Ping(); err != nil {
					logger.Warn("realtime: pg listener ping failed", "error", err)
				}
			}()
		}
	}
}
