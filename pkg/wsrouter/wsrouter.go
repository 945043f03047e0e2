// Package wsrouter routes typed json messages read from a websocket
// connection to registered handlers, the way an http mux routes
// requests to paths.
package wsrouter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
)

type message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// HandlerFunc handles one decoded message. Input is decoded from the
// message payload; a decode failure never reaches the handler.
type HandlerFunc[T any] func(ctx context.Context, conn *websocket.Conn, input T) error

// Middleware wraps the untyped form of a handler. The payload the
// middleware sees is the already-decoded input value.
type Middleware func(next HandlerFunc[any]) HandlerFunc[any]

type rawHandler func(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error

type WSRouter struct {
	routes      map[string]rawHandler
	middlewares []Middleware
}

func New() *WSRouter {
	return &WSRouter{routes: make(map[string]rawHandler)}
}

// Use appends a middleware. Register middlewares before handlers: a
// handler only picks up the middlewares present at registration time.
func (r *WSRouter) Use(mw Middleware) {
	r.middlewares = append(r.middlewares, mw)
}

// Handle registers handler for messageType. Free function because
// methods cannot introduce type parameters.
func Handle[T any](r *WSRouter, messageType string, handler HandlerFunc[T]) {
	wrapped := HandlerFunc[any](func(ctx context.Context, conn *websocket.Conn, input any) error {
		return handler(ctx, conn, input.(T))
	})
	for i := len(r.middlewares) - 1; i >= 0; i-- {
		wrapped = r.middlewares[i](wrapped)
	}

	r.routes[messageType] = func(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
		var input T
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &input); err != nil {
				return fmt.Errorf("failed to unmarshal payload: %w", err)
			}
		}
		return wrapped(ctx, conn, input)
	}
}

// ServeConn reads messages until the connection drops. Handler errors
// are reported to onError and do not end the session; a read error
// does.
func (r *WSRouter) ServeConn(ctx context.Context, conn *websocket.Conn, onError func(ctx context.Context, err error)) error {
	defer conn.Close()

	for {
		var msg message
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}

		msgCtx := context.WithValue(ctx, messageTypeKey, msg.Type)
		handler, ok := r.routes[msg.Type]
		if !ok {
			if onError != nil {
				onError(msgCtx, fmt.Errorf("unknown message type %q", msg.Type))
			}
			continue
		}

		if err := handler(msgCtx, conn, msg.Payload); err != nil && onError != nil {
			onError(msgCtx, err)
		}
	}
}
