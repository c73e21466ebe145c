package remote

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"kasirinaja/posclient/internal/domain"
)

const (
	minPushBackoff = time.Second
	maxPushBackoff = 30 * time.Second
)

// Subscribe follows the authority's realtime feed until ctx is done,
// reconnecting with exponential backoff. Every store or product row change is
// handed to handle; other tables are ignored.
func Subscribe(ctx context.Context, feedURL string, token string, handle func(domain.PushEvent)) {
	backoff := minPushBackoff
	for {
		connectedAt := time.Now()
		err := consume(ctx, feedURL, token, handle)
		if ctx.Err() != nil {
			return
		}
		if time.Since(connectedAt) > maxPushBackoff {
			backoff = minPushBackoff
		}
		log.Printf("[push] WARN: feed disconnected: %v (retry in %s)", err, backoff)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxPushBackoff {
			backoff = maxPushBackoff
		}
	}
}

func consume(ctx context.Context, feedURL string, token string, handle func(domain.PushEvent)) error {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, feedURL, header)
	if err != nil {
		return err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var w wirePushEvent
		if err := json.Unmarshal(data, &w); err != nil {
			log.Printf("[push] WARN: dropping malformed event: %v", err)
			continue
		}
		event, ok := toPushEvent(w)
		if !ok {
			continue
		}
		handle(event)
	}
}
