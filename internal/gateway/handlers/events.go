package handlers

import (
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"

	"github.com/lingopal/lingopal-client/internal/chatlog"
	"github.com/lingopal/lingopal-client/internal/services"
)

type logEvent struct {
	Type     string            `json:"type"`
	Messages []chatlog.Message `json:"messages"`
}

// StreamEvents pushes a full log snapshot over the socket on connect and
// after every mutation, so the UI re-renders from the event instead of
// polling.
func StreamEvents(svc *services.Services) func(*websocket.Conn) {
	log := logrus.WithField("component", "events")

	return func(conn *websocket.Conn) {
		// Buffered so a slow socket never blocks a log mutation; if the
		// buffer fills, the connection is dropped and the UI reconnects.
		updates := make(chan []chatlog.Message, 16)

		unsubscribe := svc.Conversation.Log().Subscribe(func(messages []chatlog.Message) {
			select {
			case updates <- messages:
			default:
				conn.Close()
			}
		})
		defer unsubscribe()

		closed := make(chan struct{})
		go func() {
			// Reads only serve to detect the peer closing.
			defer close(closed)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		send := func(messages []chatlog.Message) bool {
			err := conn.WriteJSON(logEvent{Type: "messages", Messages: messages})
			if err != nil {
				log.WithError(err).Debug("event write failed")
				return false
			}
			return true
		}

		if !send(svc.Conversation.Log().Snapshot()) {
			return
		}

		for {
			select {
			case messages := <-updates:
				if !send(messages) {
					return
				}
			case <-closed:
				return
			}
		}
	}
}
