package audit

/*
Trail — асинхронный журнал событий аутентификации.

- Log не блокирует запрос: событие кладется в буферизованный канал,
  при переполнении событие сбрасывается с записью в лог (Load Shedding).
- Воркер копит события и пишет их пачкой по таймеру или по достижении batch size.
- Stop закрывает канал и ждет, пока воркер вычитает остаток и сделает финальный flush.
*/

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xela07ax/reflections-auth/internal/infra"
)

// Storage определяет, куда физически сохраняются события
type Storage interface {
	// WriteBatch сохраняет пачку событий за один раз
	WriteBatch(ctx context.Context, events []Event) error
}

type Auditor interface {
	Log(event Event)
}

// Nop — журнал, который ничего не пишет
type Nop struct{}

func (Nop) Log(Event) {}

type Trail struct {
	ch            chan Event
	repo          Storage
	batchSize     int
	flushInterval time.Duration
	metrics       *infra.Metrics
	logger        *zap.Logger
	wg            sync.WaitGroup
	stopOnce      sync.Once
	mu            sync.RWMutex // Log держит RLock, Stop — Lock перед close(ch)
	closed        atomic.Bool
}

func NewTrail(repo Storage, cfg infra.AuditConfig, metrics *infra.Metrics, logger *zap.Logger) *Trail {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1000
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}
	if metrics == nil {
		metrics = infra.NewMetrics(nil)
	}
	return &Trail{
		ch:            make(chan Event, cfg.BufferSize),
		repo:          repo,
		batchSize:     cfg.BatchSize,
		flushInterval: cfg.FlushInterval,
		metrics:       metrics,
		logger:        logger.Named("audit"),
	}
}

func (t *Trail) Start() {
	t.wg.Add(1)
	go t.worker()
}

// Stop запирает вход и ждет, пока воркер всё допишет.
func (t *Trail) Stop() {
	t.stopOnce.Do(func() {
		t.logger.Info("stopping audit trail: closing channel and flushing buffer...")

		t.mu.Lock()
		t.closed.Store(true)
		close(t.ch)
		t.mu.Unlock()

		t.wg.Wait()
		t.logger.Info("audit trail stopped gracefully")
	})
}

func (t *Trail) Log(event Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed.Load() {
		t.logger.Warn("audit event dropped: trail is stopping", zap.String("id", event.ID))
		return
	}

	select {
	case t.ch <- event:
		t.metrics.AuditBufferFill.Set(float64(len(t.ch)))
	default:
		// Backpressure: событие остается только в логе
		t.logger.Error("audit_buffer_overflow",
			zap.String("action", event.Action),
			zap.String("email", event.Email),
			zap.String("outcome", event.Outcome),
		)
	}
}

func (t *Trail) worker() {
	defer t.wg.Done()

	batch := make([]Event, 0, t.batchSize)
	ticker := time.NewTicker(t.flushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// Background: контекст запроса к этому моменту уже завершен
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := t.repo.WriteBatch(ctx, batch); err != nil {
			t.logger.Error("audit flush failed", zap.Int("events", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
		t.metrics.AuditBufferFill.Set(float64(len(t.ch)))
	}

	for {
		select {
		case event, ok := <-t.ch:
			if !ok {
				// Канал закрыт: остаток уже вычитан, финальный сброс
				flush()
				t.logger.Info("audit worker finished")
				return
			}
			batch = append(batch, event)
			if len(batch) >= t.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
