package http

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/transiteye/tracker/internal/adapters/nats"
)

// wsMessage is sent by clients to join or leave a channel.
type wsMessage struct {
	Action  string `json:"action"`  // "subscribe" | "unsubscribe"
	Channel string `json:"channel"` // admin, users, trip_<id>, user_<id>, conductor_<id>
}

var channelPattern = regexp.MustCompile(`^(admin|users|(trip|user|conductor)_[0-9]+)$`)

// ValidChannel reports whether name is a broadcast channel clients may join.
func ValidChannel(name string) bool {
	return channelPattern.MatchString(name)
}

// WebSocketHandler relays event envelopes from NATS to the client.
// Initial channels may be given as ?channels=admin,trip_12; afterwards clients
// send {"action":"subscribe","channel":"user_12"}.
func WebSocketHandler(nc *nats.Conn) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		log := slog.Default().With("remote", c.RemoteAddr().String())
		log.Info("ws client connected")

		var mu sync.Mutex
		subs := make(map[string]*nats.Subscription) // channel -> subscription

		writeJSON := func(v any) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		subscribe := func(channel string) {
			if !ValidChannel(channel) {
				_ = writeJSON(map[string]string{"error": "unknown channel: " + channel})
				return
			}
			if _, exists := subs[channel]; exists {
				_ = writeJSON(map[string]string{"status": "already subscribed", "channel": channel})
				return
			}
			s, err := nc.Subscribe(natsadapter.Subject(channel), func(msg *nats.Msg) {
				_ = writeJSON(json.RawMessage(msg.Data))
			})
			if err != nil {
				_ = writeJSON(map[string]string{"error": "subscribe failed: " + err.Error()})
				return
			}
			subs[channel] = s
			_ = writeJSON(map[string]string{"status": "subscribed", "channel": channel})
		}

		for _, ch := range strings.Split(c.Query("channels"), ",") {
			if ch = strings.TrimSpace(ch); ch != "" {
				subscribe(ch)
			}
		}

		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				_ = writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}

			switch m.Action {
			case "subscribe":
				subscribe(m.Channel)
			case "unsubscribe":
				if s, exists := subs[m.Channel]; exists {
					_ = s.Unsubscribe()
					delete(subs, m.Channel)
					_ = writeJSON(map[string]string{"status": "unsubscribed", "channel": m.Channel})
				} else {
					_ = writeJSON(map[string]string{"error": "not subscribed to " + m.Channel})
				}
			default:
				_ = writeJSON(map[string]string{"error": "unknown action: " + m.Action})
			}
		}

		close(done)
		for _, s := range subs {
			_ = s.Unsubscribe()
		}
		log.Info("ws client disconnected")
	}
}
