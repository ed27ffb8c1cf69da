package websocket

import (
	"sync"
	"sync/atomic"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"polytrader/internal/service"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Hub управляет всеми активными WebSocket соединениями и рассылает
// им события control plane: переходы состояния, брейкеры, изменения
// конфигурации, решения риск-шлюза.
//
// Публикация никогда не блокирует вызывающего: при переполненном
// канале событие отбрасывается и считается в dropped. Дашборд
// переживет потерю события, торговый цикл - блокировку нет.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	stop       chan struct{}
	stopOnce   sync.Once
	dropped    atomic.Int64
	logger     *zap.Logger

	mu sync.RWMutex
}

var _ service.EventPublisher = (*Hub)(nil)

// NewHub создает новый Hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
		logger:     logger,
	}
}

// Run запускает главный цикл Hub. Должен работать в отдельной
// горутине: go hub.Run()
func (h *Hub) Run() {
	for {
		select {
		case <-h.stop:
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("ws client connected", zap.Int("total", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("ws client disconnected", zap.Int("total", total))

		case message := <-h.broadcast:
			h.deliver(message)
		}
	}
}

// deliver рассылает сообщение клиентам. Список копируется под
// коротким RLock, отправка идет без блокировки; не успевающие
// клиенты отключаются.
func (h *Hub) deliver(message []byte) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	var toRemove []*Client
	for _, client := range clients {
		select {
		case client.send <- message:
		default:
			toRemove = append(toRemove, client)
		}
	}

	if len(toRemove) > 0 {
		h.mu.Lock()
		for _, client := range toRemove {
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
		}
		total := len(h.clients)
		h.mu.Unlock()
		h.logger.Warn("slow ws clients removed",
			zap.Int("removed", len(toRemove)),
			zap.Int("total", total))
	}
}

// Stop останавливает цикл Hub и закрывает все соединения
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stop)
	})
}

// Publish отправляет событие всем подписчикам. Не блокирует:
// при переполненном канале событие отбрасывается.
func (h *Hub) Publish(eventType string, payload interface{}) {
	event := &Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      payload,
	}

	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("event marshal failed",
			zap.String("type", eventType),
			zap.Error(err))
		return
	}

	select {
	case h.broadcast <- data:
	default:
		h.dropped.Add(1)
	}
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// DroppedMessages возвращает число отброшенных событий
func (h *Hub) DroppedMessages() int64 {
	return h.dropped.Load()
}
