// Package memory хранилище в памяти процесса: состояние сессий, журналы спинов и покупок, кошелек.
//
// Транзакция Do сериализуется с другими транзакциями и откатывает все
// изменения через журнал отмены, если fn вернула ошибку.
package memory

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"infinity_stones/internal/errs"
	"infinity_stones/internal/model"
	"infinity_stones/internal/repository"
	"infinity_stones/pkg/codec"
)

type txKey struct{}

type journal struct {
	undo []func()
}

type entryKey struct {
	requestID string
	kind      string
}

// Store общие данные репозиториев и менеджер транзакций над ними
type Store struct {
	txMu sync.Mutex

	mu        sync.Mutex
	sessions  map[string]model.SessionState
	spins     map[string][]byte
	purchases map[string][]byte
	balances  map[string]decimal.Decimal
	entries   map[entryKey]decimal.Decimal
}

func NewStore() *Store {
	return &Store{
		sessions:  make(map[string]model.SessionState),
		spins:     make(map[string][]byte),
		purchases: make(map[string][]byte),
		balances:  make(map[string]decimal.Decimal),
		entries:   make(map[entryKey]decimal.Decimal),
	}
}

type sessions struct{ s *Store }

type spinLog struct{ s *Store }

type purchases struct{ s *Store }

type ledger struct{ s *Store }

func (s *Store) Sessions() repository.SessionRepository { return sessions{s} }

func (s *Store) SpinLog() repository.SpinLogRepository { return spinLog{s} }

func (s *Store) Purchases() repository.PurchaseRepository { return purchases{s} }

func (s *Store) Ledger() repository.LedgerRepository { return ledger{s} }

// Do выполняет fn в транзакции. Вложенный вызов переиспользует внешнюю транзакцию
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*journal); ok {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	j := &journal{}
	if err := fn(context.WithValue(ctx, txKey{}, j)); err != nil {
		s.mu.Lock()
		for i := len(j.undo) - 1; i >= 0; i-- {
			j.undo[i]()
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

// record запоминает отмену, вызывается под s.mu
func record(ctx context.Context, undo func()) {
	if j, ok := ctx.Value(txKey{}).(*journal); ok {
		j.undo = append(j.undo, undo)
	}
}

func (r sessions) LoadOrCreate(ctx context.Context, sessionID string) (model.SessionState, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[sessionID]
	if ok {
		return st, nil
	}
	st = model.NewSessionState(sessionID)
	s.sessions[sessionID] = st
	record(ctx, func() { delete(s.sessions, sessionID) })
	return st, nil
}

func (r sessions) Get(_ context.Context, sessionID string) (model.SessionState, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[sessionID]
	if !ok {
		return model.SessionState{}, errs.ErrNotFound
	}
	return st, nil
}

func (r sessions) Commit(ctx context.Context, expectedVersion int64, state model.SessionState) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.sessions[state.SessionID]
	if !ok || cur.Version != expectedVersion {
		return errs.ErrConflict
	}
	state.Version = expectedVersion + 1
	s.sessions[state.SessionID] = state
	record(ctx, func() { s.sessions[state.SessionID] = cur })
	return nil
}

// Append хранит сериализованную копию, чтобы вызывающий не мог изменить запись
func (r spinLog) Append(ctx context.Context, rec model.SpinRecord) error {
	s := r.s
	data, err := codec.Marshal(rec)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := rec.Result.RequestID
	if _, ok := s.spins[id]; ok {
		return errs.ErrDuplicateRequest
	}
	s.spins[id] = data
	record(ctx, func() { delete(s.spins, id) })
	return nil
}

func (r spinLog) Get(_ context.Context, requestID string) (model.SpinRecord, error) {
	s := r.s
	s.mu.Lock()
	data, ok := s.spins[requestID]
	s.mu.Unlock()
	if !ok {
		return model.SpinRecord{}, errs.ErrNotFound
	}

	var rec model.SpinRecord
	if err := codec.Unmarshal(data, &rec); err != nil {
		return model.SpinRecord{}, err
	}
	return rec, nil
}

func (r purchases) Append(ctx context.Context, rec model.PurchaseRecord) error {
	s := r.s
	data, err := codec.Marshal(rec)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := rec.RequestID
	if _, ok := s.purchases[id]; ok {
		return errs.ErrDuplicateRequest
	}
	s.purchases[id] = data
	record(ctx, func() { delete(s.purchases, id) })
	return nil
}

func (r purchases) Get(_ context.Context, requestID string) (model.PurchaseRecord, error) {
	s := r.s
	s.mu.Lock()
	data, ok := s.purchases[requestID]
	s.mu.Unlock()
	if !ok {
		return model.PurchaseRecord{}, errs.ErrNotFound
	}

	var rec model.PurchaseRecord
	if err := codec.Unmarshal(data, &rec); err != nil {
		return model.PurchaseRecord{}, err
	}
	return rec, nil
}

func (r ledger) Balance(_ context.Context, sessionID string) (decimal.Decimal, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[sessionID], nil
}

func (r ledger) Debit(ctx context.Context, sessionID, requestID string, amount decimal.Decimal) (decimal.Decimal, error) {
	return r.s.apply(ctx, sessionID, entryKey{requestID, "debit"}, amount.Neg())
}

func (r ledger) Credit(ctx context.Context, sessionID, requestID string, amount decimal.Decimal) (decimal.Decimal, error) {
	return r.s.apply(ctx, sessionID, entryKey{requestID, "credit"}, amount)
}

func (r ledger) Deposit(ctx context.Context, sessionID, requestID string, amount decimal.Decimal) (decimal.Decimal, error) {
	return r.s.apply(ctx, sessionID, entryKey{requestID, "deposit"}, amount)
}

func (s *Store) apply(ctx context.Context, sessionID string, key entryKey, delta decimal.Decimal) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if after, ok := s.entries[key]; ok {
		return after, nil
	}

	prev, existed := s.balances[sessionID]
	next := prev.Add(delta)
	if next.IsNegative() {
		return decimal.Zero, errs.ErrInsufficientFunds
	}
	s.balances[sessionID] = next
	s.entries[key] = next
	record(ctx, func() {
		delete(s.entries, key)
		if existed {
			s.balances[sessionID] = prev
		} else {
			delete(s.balances, sessionID)
		}
	})
	return next, nil
}
