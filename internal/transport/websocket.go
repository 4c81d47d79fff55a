// SPDX-License-Identifier: MIT
package transport

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	applog "spectrogram/internal/log"
	"spectrogram/internal/observe"
)

const (
	writeTimeout   = 2 * time.Second
	broadcastQueue = 256
)

var transportAttr = metric.WithAttributes(attribute.String("transport", "websocket"))

// WebSocketOptions configures a WebSocketTransport.
type WebSocketOptions struct {
	Addr     string   // Listen address, e.g. ":8080".
	Encoding Encoding // Frame encoding; JSON when empty.

	// MetricsHandler, when set, is served on /metrics.
	MetricsHandler http.Handler
	Metrics        *observe.Metrics
}

// WebSocketTransport implements the Transport interface for WebSocket connections
type WebSocketTransport struct {
	opts      WebSocketOptions
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	broadcast chan any
	server    *http.Server
	listener  net.Listener
	done      chan struct{}
	closeOnce sync.Once
}

// NewWebSocketTransport listens on opts.Addr and starts serving /ws.
func NewWebSocketTransport(opts WebSocketOptions) (*WebSocketTransport, error) {
	if opts.Encoding == "" {
		opts.Encoding = EncodingJSON
	}
	ln, err := net.Listen("tcp", opts.Addr)
	if err != nil {
		return nil, err
	}

	wst := newWebSocketTransport(opts)
	wst.listener = ln
	wst.server = &http.Server{
		Handler:           wst.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		applog.Infof("WebSocketTransport: Starting WebSocket server on %s", ln.Addr())
		if err := wst.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			applog.Errorf("WebSocketTransport: Server error: %v", err)
		}
	}()
	return wst, nil
}

func newWebSocketTransport(opts WebSocketOptions) *WebSocketTransport {
	wst := &WebSocketTransport{
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // renderers are served from other origins
			},
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan any, broadcastQueue),
		done:      make(chan struct{}),
	}
	go wst.handleBroadcasts()
	return wst
}

// Addr is the address the server listens on, or nil when not listening.
func (wst *WebSocketTransport) Addr() net.Addr {
	if wst.listener == nil {
		return nil
	}
	return wst.listener.Addr()
}

// Handler returns the HTTP routes: /ws, /healthz and optionally /metrics.
func (wst *WebSocketTransport) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wst.handleWebSocket)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok\n"))
	})
	if wst.opts.MetricsHandler != nil {
		mux.Handle("/metrics", wst.opts.MetricsHandler)
	}
	return mux
}

// Clients returns the number of connected clients.
func (wst *WebSocketTransport) Clients() int {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	return len(wst.clients)
}

// handleWebSocket upgrades HTTP connections to WebSocket
func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		applog.Warnf("WebSocketTransport: Upgrade error: %v", err)
		return
	}

	wst.clientsMu.Lock()
	select {
	case <-wst.done:
		wst.clientsMu.Unlock()
		conn.Close()
		return
	default:
	}
	wst.clients[conn] = true
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	wst.clientDelta(r.Context(), 1)
	applog.Infof("WebSocketTransport: Client connected, total: %d", total)

	// Clients only listen; a read error means they went away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		if wst.removeClient(conn) {
			applog.Infof("WebSocketTransport: Client disconnected, total: %d", wst.Clients())
		}
	}()
}

// removeClient closes conn and reports whether it was still registered.
func (wst *WebSocketTransport) removeClient(conn *websocket.Conn) bool {
	wst.clientsMu.Lock()
	_, ok := wst.clients[conn]
	delete(wst.clients, conn)
	wst.clientsMu.Unlock()
	conn.Close()
	if ok {
		wst.clientDelta(context.Background(), -1)
	}
	return ok
}

func (wst *WebSocketTransport) clientDelta(ctx context.Context, d int64) {
	if wst.opts.Metrics != nil {
		wst.opts.Metrics.Clients.Add(ctx, d)
	}
}

// handleBroadcasts encodes each message once and writes it to every client.
func (wst *WebSocketTransport) handleBroadcasts() {
	msgType := websocket.TextMessage
	if wst.opts.Encoding.Binary() {
		msgType = websocket.BinaryMessage
	}

	for {
		var data any
		select {
		case <-wst.done:
			return
		case data = <-wst.broadcast:
		}

		payload, err := wst.opts.Encoding.Marshal(data)
		if err != nil {
			applog.Errorf("WebSocketTransport: Error encoding %T: %v", data, err)
			continue
		}

		wst.clientsMu.Lock()
		clients := make([]*websocket.Conn, 0, len(wst.clients))
		for c := range wst.clients {
			clients = append(clients, c)
		}
		wst.clientsMu.Unlock()

		for _, client := range clients {
			client.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := client.WriteMessage(msgType, payload); err != nil {
				applog.Warnf("WebSocketTransport: Error sending to client: %v", err)
				wst.removeClient(client)
			}
		}
	}
}

// Send queues data for broadcast. It never blocks: when the queue is full the
// message is dropped and counted.
func (wst *WebSocketTransport) Send(data any) error {
	select {
	case <-wst.done:
		return errors.New("websocket transport closed")
	default:
	}

	select {
	case wst.broadcast <- data:
		if wst.opts.Metrics != nil {
			wst.opts.Metrics.FramesSent.Add(context.Background(), 1, transportAttr)
		}
	default:
		if wst.opts.Metrics != nil {
			wst.opts.Metrics.FramesDropped.Add(context.Background(), 1, transportAttr)
		}
	}
	return nil
}

// Close shuts down the WebSocket server
func (wst *WebSocketTransport) Close() error {
	var err error
	wst.closeOnce.Do(func() {
		applog.Infof("WebSocketTransport: Closing server")
		close(wst.done)

		wst.clientsMu.Lock()
		n := len(wst.clients)
		for client := range wst.clients {
			client.Close()
		}
		clear(wst.clients)
		wst.clientsMu.Unlock()
		wst.clientDelta(context.Background(), -int64(n))

		if wst.server != nil {
			err = wst.server.Close()
		}
	})
	return err
}

// Ensure WebSocketTransport satisfies the interface
var _ Transport = (*WebSocketTransport)(nil)
