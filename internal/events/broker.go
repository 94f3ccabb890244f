package events

import "sync"

// defaultBuffer размер буфера канала подписчика
const defaultBuffer = 16

// Broker управляет подписчиками на события типа T
type Broker[T any] struct {
	subscribers map[chan T]struct{}
	mu          sync.RWMutex
	buffer      int
	closed      bool
}

// NewBroker создает новый экземпляр Broker
func NewBroker[T any]() *Broker[T] {
	return &Broker[T]{
		subscribers: make(map[chan T]struct{}),
		buffer:      defaultBuffer,
	}
}

// Subscribe добавляет нового подписчика и возвращает канал для получения событий.
// После Close возвращается уже закрытый канал.
func (b *Broker[T]) Subscribe() chan T {
	ch := make(chan T, b.buffer) // Буферизованный канал для защиты от backpressure
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe удаляет подписчика и закрывает его канал
func (b *Broker[T]) Unsubscribe(ch chan T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[ch]; ok {
		close(ch)
		delete(b.subscribers, ch)
	}
}

// Publish отправляет событие всем подписчикам.
// Если канал подписчика переполнен, событие пропускается (защита от backpressure)
func (b *Broker[T]) Publish(event T) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

// Len возвращает количество активных подписчиков
func (b *Broker[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close закрывает каналы всех подписчиков
func (b *Broker[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, ch)
	}
	b.closed = true
}
