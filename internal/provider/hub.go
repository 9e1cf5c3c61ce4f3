package provider

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"ziggly-wallet/pkg/logger"
)

// Hub 持有当前接入的浏览器桥, 同一时间只有一个 provider
type Hub struct {
	upgrader    websocket.Upgrader
	callTimeout time.Duration
	log         *zap.Logger

	mu      sync.Mutex
	current *Bridge
}

func NewHub(callTimeout time.Duration) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		callTimeout: callTimeout,
		log:         logger.Named("provider"),
	}
}

// Lookup implements Locator.
func (h *Hub) Lookup() (Provider, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current == nil {
		return nil, false
	}
	return h.current, true
}

// ServeHTTP upgrades the request and serves the bridge until the page goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	b := h.Attach(conn)
	b.readLoop()
}

// Attach 注册新连接, 旧的桥会被关闭 (页面刷新后重新注入)
func (h *Hub) Attach(conn *websocket.Conn) *Bridge {
	b := newBridge(conn, h.callTimeout, h.log, h.detach)

	h.mu.Lock()
	old := h.current
	h.current = b
	h.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	h.log.Info("wallet page attached", zap.String("remote", conn.RemoteAddr().String()))
	return b
}

func (h *Hub) detach(b *Bridge) {
	h.mu.Lock()
	if h.current == b {
		h.current = nil
	}
	h.mu.Unlock()
	h.log.Info("wallet page detached")
}

// Close 关闭当前连接
func (h *Hub) Close() {
	h.mu.Lock()
	b := h.current
	h.current = nil
	h.mu.Unlock()
	if b != nil {
		_ = b.Close()
	}
}
