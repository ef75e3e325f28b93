package bus

import (
	"context"
	"sync"

	"trade_engine/internal/models"

	"go.uber.org/zap"
)

// Handler обрабатывает одно событие. Возврат из Publish гарантирует,
// что все хендлеры отработали.
type Handler func(ctx context.Context, e models.Event)

// Bus — типизированный pub/sub внутри одного процесса.
// Хендлеры одного publish выполняются конкурентно, но Publish не возвращается,
// пока все не завершатся: это и есть backpressure — медленный хендлер
// тормозит весь конвейер на этом событии, что намеренно: корректность
// индикаторов зависит от строгого порядка закрытий свечей.
type Bus struct {
	log *zap.Logger

	mu   sync.RWMutex
	subs map[models.Topic][]Handler
}

func New(log *zap.Logger) *Bus {
	return &Bus{
		log:  log,
		subs: make(map[models.Topic][]Handler),
	}
}

// Subscribe регистрирует хендлер на топик. Вызывается на сборке конвейера.
func (b *Bus) Subscribe(t models.Topic, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[t] = append(b.subs[t], h)
}

// Publish рассылает событие всем подписчикам топика и ждёт их завершения.
// Порядок между хендлерами одного события не гарантируется.
func (b *Bus) Publish(ctx context.Context, e models.Event) {
	b.mu.RLock()
	handlers := b.subs[e.EventTopic()]
	b.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}
	if len(handlers) == 1 {
		handlers[0](ctx, e)
		return
	}

	var wg sync.WaitGroup
	wg.Add(len(handlers))
	for _, h := range handlers {
		h := h
		go func() {
			defer wg.Done()
			h(ctx, e)
		}()
	}
	wg.Wait()
}

// Reset снимает все подписки. Используется на остановке движка, чтобы не
// держать ссылки на отработавшие компоненты.
func (b *Bus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = make(map[models.Topic][]Handler)
	if b.log != nil {
		b.log.Debug("[BUS] all subscriptions cleared")
	}
}

// Subscribers возвращает число подписчиков топика (для логов/тестов).
func (b *Bus) Subscribers(t models.Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[t])
}
