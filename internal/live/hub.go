// Package live раздаёт события изменений (<collection>:changed)
// подключённым websocket-клиентам.
package live

import (
	"net/http"
	"sync"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// событие — только имя, без полезной нагрузки; происхождение не проверяем
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub держит подключённых подписчиков. Отправка не блокирует:
// клиент с забитым буфером отключается.
type Hub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]chan string
}

func NewHub() *Hub {
	return &Hub{conns: make(map[*websocket.Conn]chan string)}
}

// ServeHTTP апгрейдит запрос и держит соединение до закрытия
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		glog.V(2).Infof("live: upgrade failed: %v", err)
		return
	}

	ch := make(chan string, 16)
	h.mu.Lock()
	h.conns[conn] = ch
	h.mu.Unlock()

	go h.writer(conn, ch)

	// читаем только ради обнаружения закрытия
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.drop(conn)
}

func (h *Hub) writer(conn *websocket.Conn, ch chan string) {
	for event := range ch {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(event)); err != nil {
			h.drop(conn)
			return
		}
	}
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	ch, ok := h.conns[conn]
	if ok {
		delete(h.conns, conn)
	}
	h.mu.Unlock()
	if ok {
		close(ch)
	}
	_ = conn.Close()
}

// EmitToAll рассылает имя события всем подписчикам; медленные отпадают
func (h *Hub) EmitToAll(event string) {
	h.mu.Lock()
	var slow []*websocket.Conn
	for conn, ch := range h.conns {
		select {
		case ch <- event:
		default:
			slow = append(slow, conn)
		}
	}
	h.mu.Unlock()

	for _, conn := range slow {
		h.drop(conn)
	}
}

// Count — сколько клиентов подключено сейчас
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}
