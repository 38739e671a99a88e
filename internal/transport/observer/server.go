package observer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"pursuit/internal/scape"
)

// frameBuffer is the number of frames queued per observer before new
// frames are dropped for it.
const frameBuffer = 64

// Hub fans episode frames out to every connected websocket observer. It
// implements scape.FrameSink and never blocks the episode loop: an
// observer whose queue is full misses frames.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader
	nextID   atomic.Uint64
	dropped  atomic.Uint64

	mu     sync.RWMutex
	subs   map[string]chan []byte
	closed bool
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		subs: make(map[string]chan []byte),
	}
}

func (h *Hub) WriteFrame(_ context.Context, frame scape.Frame) error {
	b, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return nil
	}
	for _, out := range h.subs {
		select {
		case out <- b:
		default:
			h.dropped.Add(1)
		}
	}
	return nil
}

func (h *Hub) Observers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped reports frames skipped because an observer queue was full.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Close disconnects every observer and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for sid, out := range h.subs {
		close(out)
		delete(h.subs, sid)
	}
}

func (h *Hub) register() (string, chan []byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return "", nil, errors.New("observer hub is closed")
	}
	sid := fmt.Sprintf("O%d", h.nextID.Add(1))
	out := make(chan []byte, frameBuffer)
	h.subs[sid] = out
	return sid, out, nil
}

func (h *Hub) unregister(sid string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if out, ok := h.subs[sid]; ok {
		close(out)
		delete(h.subs, sid)
	}
}

// Handler serves /ws and /healthz.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.WSHandler())
	mux.HandleFunc("/healthz", h.HealthHandler())
	return mux
}

func (h *Hub) HealthHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(map[string]any{
			"status":    "ok",
			"observers": h.Observers(),
			"dropped":   h.Dropped(),
		})
	}
}

func (h *Hub) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sid, out, err := h.register()
		if err != nil {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(time.Second))
			return
		}
		defer h.unregister(sid)
		h.logger.Info("observer connected", "session", sid, "remote", r.RemoteAddr)

		writeDone := make(chan struct{})
		go func() {
			defer close(writeDone)
			for b := range out {
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					return
				}
			}
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "episodes finished"), time.Now().Add(time.Second))
		}()

		// Observers only listen; reading detects the disconnect.
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					h.unregister(sid)
					return
				}
			}
		}()

		<-writeDone
		h.logger.Info("observer disconnected", "session", sid)
	}
}

// ListenAndServe serves the hub on addr until ctx is cancelled.
func (h *Hub) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return h.Serve(ctx, ln)
}

func (h *Hub) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           h.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	h.logger.Info("observer listening", "addr", ln.Addr().String())

	select {
	case <-ctx.Done():
		h.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
