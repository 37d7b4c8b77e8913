package bus

import (
	"sync"

	"github.com/google/uuid"
)

// Token identifies a subscription. It is returned by Subscribe and is the
// only handle that can remove it again.
type Token uuid.UUID

func (t Token) String() string {
	return uuid.UUID(t).String()
}

type subscriber[T any] struct {
	token   Token
	handler func(T)
}

// Bus is a typed publish/subscribe list. Handlers run synchronously on the
// publishing goroutine, outside the bus lock.
type Bus[T any] struct {
	mu          sync.RWMutex
	subscribers []subscriber[T]
}

func New[T any]() *Bus[T] {
	return &Bus[T]{}
}

func (b *Bus[T]) Subscribe(handler func(T)) Token {
	token := Token(uuid.New())
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, subscriber[T]{token: token, handler: handler})
	return token
}

// Unsubscribe removes the subscription and reports whether it was present.
func (b *Bus[T]) Unsubscribe(token Token) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subscribers {
		if s.token == token {
			b.subscribers = append(b.subscribers[0:i:i], b.subscribers[i+1:]...)
			return true
		}
	}
	return false
}

func (b *Bus[T]) Publish(v T) {
	b.mu.RLock()
	handlers := make([]func(T), 0, len(b.subscribers))
	for _, s := range b.subscribers {
		handlers = append(handlers, s.handler)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(v)
	}
}

func (b *Bus[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
