// Package audit асинхронная доставка записей аудита. Спин никогда не ждет аудит.
package audit

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"infinity_stones/internal/model"
)

// Kind тип записи
type Kind string

const (
	KindSpin     Kind = "spin"
	KindDesync   Kind = "desync"
	KindBuyBonus Kind = "buy_bonus"
	KindDeposit  Kind = "deposit"
)

// Record запись аудита
type Record struct {
	ID        string          `json:"id"`
	Kind      Kind            `json:"kind"`
	SessionID string          `json:"session_id"`
	RequestID string          `json:"request_id"`
	Version   int64           `json:"version,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Checksum  string          `json:"checksum,omitempty"`
	StepIndex int             `json:"step_index,omitempty"`
	Detail    string          `json:"detail,omitempty"`
	// Spin запечатанный результат и состояние до спина, только для KindSpin
	Spin *model.SpinRecord `json:"spin,omitempty"`
	// After состояние после коммита
	After *model.SessionState `json:"after,omitempty"`
	At    time.Time           `json:"at"`
}

// Sink fire-and-forget
type Sink interface {
	Publish(rec Record)
}

// Publisher синхронная доставка во внешнюю систему
type Publisher interface {
	Publish(ctx context.Context, rec Record) error
}

const drainTimeout = 2 * time.Second

// Worker буфер перед Publisher. При полном буфере запись отбрасывается
type Worker struct {
	pub     Publisher
	ch      chan Record
	logger  *zap.Logger
	dropped atomic.Int64
}

func NewWorker(pub Publisher, size int, logger *zap.Logger) *Worker {
	if size <= 0 {
		size = 1024
	}
	return &Worker{
		pub:    pub,
		ch:     make(chan Record, size),
		logger: logger,
	}
}

func (w *Worker) Publish(rec Record) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.At.IsZero() {
		rec.At = time.Now().UTC()
	}

	select {
	case w.ch <- rec:
	default:
		w.dropped.Add(1)
		w.logger.Warn("audit buffer full, record dropped",
			zap.String("kind", string(rec.Kind)),
			zap.String("session_id", rec.SessionID),
			zap.String("request_id", rec.RequestID),
		)
	}
}

// Dropped сколько записей потеряно из-за переполнения
func (w *Worker) Dropped() int64 {
	return w.dropped.Load()
}

// Run доставляет записи до отмены ctx, затем дочищает буфер с таймаутом
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case rec := <-w.ch:
			w.deliver(ctx, rec)
		case <-ctx.Done():
			w.drain()
			return nil
		}
	}
}

func (w *Worker) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	for {
		select {
		case rec := <-w.ch:
			w.deliver(ctx, rec)
		default:
			return
		}
	}
}

func (w *Worker) deliver(ctx context.Context, rec Record) {
	if err := w.pub.Publish(ctx, rec); err != nil {
		w.logger.Error("audit publish failed",
			zap.String("id", rec.ID),
			zap.String("kind", string(rec.Kind)),
			zap.Error(err),
		)
	}
}

// LogPublisher пишет записи в лог, когда брокер не настроен
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, rec Record) error {
	p.logger.Info("audit",
		zap.String("id", rec.ID),
		zap.String("kind", string(rec.Kind)),
		zap.String("session_id", rec.SessionID),
		zap.String("request_id", rec.RequestID),
		zap.Int64("version", rec.Version),
		zap.String("amount", rec.Amount.String()),
		zap.String("checksum", rec.Checksum),
		zap.String("detail", rec.Detail),
		zap.Any("spin", rec.Spin),
		zap.Any("after", rec.After),
	)
	return nil
}
