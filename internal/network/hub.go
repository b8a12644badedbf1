package network

import (
	"sync"

	"boardgame-server/pkg/api"
)

// Broadcaster занимается только рассылкой сообщений подписчикам матчей.
// Подписчики группируются по матчу: обновление одного матча не трогает
// клиентов других матчей.
type Broadcaster struct {
	mu sync.RWMutex
	// matchID -> clientID -> личный канал
	subscribers map[string]map[string]chan api.ServerMessage
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[string]map[string]chan api.ServerMessage),
	}
}

// Register создает личный канал клиента в матче.
func (b *Broadcaster) Register(matchID, clientID string) chan api.ServerMessage {
	b.mu.Lock()
	defer b.mu.Unlock()

	clients, ok := b.subscribers[matchID]
	if !ok {
		clients = make(map[string]chan api.ServerMessage)
		b.subscribers[matchID] = clients
	}

	// Повторное подключение того же клиента закрывает старый канал.
	if old, ok := clients[clientID]; ok {
		close(old)
	}

	ch := make(chan api.ServerMessage, 100)
	clients[clientID] = ch
	return ch
}

// Unregister удаляет подписчика.
func (b *Broadcaster) Unregister(matchID, clientID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	clients, ok := b.subscribers[matchID]
	if !ok {
		return
	}
	if ch, ok := clients[clientID]; ok {
		close(ch)
		delete(clients, clientID)
	}
	if len(clients) == 0 {
		delete(b.subscribers, matchID)
	}
}

// Broadcast отправляет сообщение всем подписчикам матча.
// Переполненные каналы молча пропускаются: медленный клиент
// дозапросит события по своему курсору.
func (b *Broadcaster) Broadcast(matchID string, msg api.ServerMessage) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers[matchID] {
		select {
		case ch <- msg:
		default:
		}
	}
}

// SendTo отправляет сообщение конкретному клиенту матча (Unicast).
func (b *Broadcaster) SendTo(matchID, clientID string, msg api.ServerMessage) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if ch, ok := b.subscribers[matchID][clientID]; ok {
		select {
		case ch <- msg:
		default:
		}
	}
}

// SubscriberCount возвращает количество подписчиков матча.
func (b *Broadcaster) SubscriberCount(matchID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[matchID])
}
