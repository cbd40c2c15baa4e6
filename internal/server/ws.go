package server

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/combo-overlay/internal/protocol"
)

func WSHandler(h *Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			// Dashboard and overlay pages are served from other local origins.
			OriginPatterns: []string{"localhost:*", "127.0.0.1:*"},
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan protocol.Envelope, 16)
		clientID := uuid.NewString()
		clog := log.With(zap.String("client", clientID))

		if err := h.Send(Join{ClientID: clientID, Outbox: out}); err != nil {
			conn.Close(websocket.StatusGoingAway, "server stopping")
			return
		}
		defer func() { _ = h.Send(Leave{ClientID: clientID}) }()

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for {
				select {
				case <-writeCtx.Done():
					return
				case env, ok := <-out:
					if !ok {
						// The hub dropped us: too slow, or going away.
						conn.Close(websocket.StatusGoingAway, "server going away")
						return
					}
					payload, err := protocol.Encode(env)
					if err != nil {
						continue
					}
					ctx, cancel := context.WithTimeout(writeCtx, 3*time.Second)
					_ = conn.Write(ctx, websocket.MessageText, payload)
					cancel()
				}
			}
		}()

		// Reader loop
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				// Treat clean close/going-away as normal:
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				clog.Debug("read failed", zap.Error(err))
				return
			}

			env, err := protocol.Decode(data)
			if err != nil {
				// The protocol has no error reply; drop it.
				clog.Debug("ignoring malformed frame", zap.Error(err))
				continue
			}
			if err := h.Send(FromClient{ClientID: clientID, Env: env}); err != nil {
				return
			}
		}
	}
}
