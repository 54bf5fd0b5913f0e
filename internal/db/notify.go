package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
)

// Notifier wraps the LISTEN/NOTIFY mechanism in PostgreSQL.  The engine
// notifies the channel after each archived turn so instructor dashboards can
// refresh a session's score without polling.
type Notifier struct {
	DB      *sql.DB
	DSN     string
	Channel string
}

// NewNotifier constructs a Notifier.  The DSN is needed because LISTEN
// requires a dedicated connection outside the shared pool.
func NewNotifier(db *sql.DB, dsn, channel string) *Notifier {
	return &Notifier{DB: db, DSN: dsn, Channel: channel}
}

// Notify sends the session id as a notification payload on the channel.
func (n *Notifier) Notify(ctx context.Context, sessionID string) error {
	_, err := n.DB.ExecContext(ctx, `SELECT pg_notify($1, $2)`, n.Channel, sessionID)
	return err
}

// Listen yields session ids as they are notified on the channel.  The
// returned channel is closed when ctx is cancelled.  pq reconnects on its
// own; a nil notification after a reconnect is skipped.
func (n *Notifier) Listen(ctx context.Context) (<-chan string, error) {
	listener := pq.NewListener(n.DSN, 10*time.Second, time.Minute, nil)
	if err := listener.Listen(n.Channel); err != nil {
		listener.Close()
		return nil, err
	}

	ch := make(chan string)
	go func() {
		defer func() {
			listener.Close()
			close(ch)
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case notice := <-listener.Notify:
				if notice == nil {
					continue
				}
				select {
				case ch <- notice.Extra:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}
