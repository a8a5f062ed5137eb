package cascade

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"infinity_stones/internal/audit"
	"infinity_stones/internal/engine"
	"infinity_stones/internal/errs"
	"infinity_stones/internal/model"
	statsModel "infinity_stones/internal/repository/stats_repo/model"
)

func (s *serv) Open(ctx context.Context, sessionID string) (*model.OpenedSession, error) {
	if sessionID == "" {
		return nil, errs.WrapLevel(errs.Warn, errs.ErrInvalidRequest, "session id is required")
	}

	st, err := s.sessions.LoadOrCreate(ctx, sessionID)
	if err != nil {
		return nil, errs.Wrap(err, "load session")
	}
	grid, err := engine.FirstView(s.cfg.Engine(), sessionID)
	if err != nil {
		return nil, err
	}
	balance, err := s.ledger.Balance(ctx, sessionID)
	if err != nil {
		return nil, errs.Wrap(err, "balance")
	}

	s.logger.Info("session opened",
		zap.String("session_id", sessionID),
		zap.String("mode", string(st.Mode)),
		zap.Int64("version", st.Version),
	)
	return &model.OpenedSession{State: st, Grid: grid, Balance: balance}, nil
}

// CheckData Получение состояния сессии и баланса
func (s *serv) CheckData(ctx context.Context, sessionID string) (*model.CascadeData, error) {
	st, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.WrapLevel(errs.Warn, err, "session")
		}
		return nil, errs.Wrap(err, "load session")
	}
	balance, err := s.ledger.Balance(ctx, sessionID)
	if err != nil {
		return nil, errs.Wrap(err, "balance")
	}
	return &model.CascadeData{State: st, Balance: balance}, nil
}

func (s *serv) Result(ctx context.Context, sessionID, requestID string) (*model.CascadeSpinResult, error) {
	rec, err := s.record(ctx, sessionID, requestID)
	if err != nil {
		return nil, err
	}
	return &rec.Result, nil
}

func (s *serv) Verify(ctx context.Context, sessionID, requestID string) error {
	rec, err := s.record(ctx, sessionID, requestID)
	if err != nil {
		return err
	}
	if err := engine.Verify(ctx, s.cfg.Engine(), rec.Before, rec.Result); err != nil {
		s.logger.Error("spin verification failed",
			zap.String("session_id", sessionID),
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		if errors.Is(err, engine.ErrVerifyMismatch) {
			return errs.WrapLevel(errs.Warn, err, "verify")
		}
		return err
	}
	return nil
}

// ReportDesync клиент нашел расхождение хэша. Клиент уже пересинхронизировался по GridAfter,
// сервер только фиксирует факт
func (s *serv) ReportDesync(ctx context.Context, rep model.DesyncReport) error {
	rec, err := s.record(ctx, rep.SessionID, rep.RequestID)
	if err != nil {
		return err
	}

	serverHash := ""
	if rep.StepIndex >= 0 && rep.StepIndex < len(rec.Result.Steps) {
		serverHash = rec.Result.Steps[rep.StepIndex].Hash
	}
	s.logger.Warn("client desync",
		zap.String("session_id", rep.SessionID),
		zap.String("request_id", rep.RequestID),
		zap.Int("step", rep.StepIndex),
		zap.String("client_hash", rep.ClientHash),
		zap.String("server_hash", serverHash),
	)

	s.audit.Publish(audit.Record{
		Kind:      audit.KindDesync,
		SessionID: rep.SessionID,
		RequestID: rep.RequestID,
		Checksum:  rec.Result.Checksum,
		StepIndex: rep.StepIndex,
		Detail:    "client=" + rep.ClientHash + " server=" + serverHash,
	})
	return nil
}

// Deposit Пополнение, идемпотентно по request id
func (s *serv) Deposit(ctx context.Context, req model.Deposit) (decimal.Decimal, error) {
	if req.SessionID == "" || req.RequestID == "" {
		return decimal.Zero, errs.WrapLevel(errs.Warn, errs.ErrInvalidRequest, "session id and request id are required")
	}
	if !req.Amount.IsPositive() || !req.Amount.Equal(req.Amount.Truncate(2)) {
		return decimal.Zero, errs.WrapLevel(errs.Warn, errs.ErrInvalidRequest, "deposit must be positive with at most 2 decimal places")
	}

	balance, err := s.ledger.Deposit(ctx, req.SessionID, req.RequestID, req.Amount)
	if err != nil {
		return decimal.Zero, errs.Wrap(err, "deposit")
	}

	s.audit.Publish(audit.Record{
		Kind:      audit.KindDeposit,
		SessionID: req.SessionID,
		RequestID: req.RequestID,
		Amount:    req.Amount,
	})
	return balance, nil
}

func (s *serv) Stats() statsModel.Stats {
	return s.stats.Stats()
}

func (s *serv) record(ctx context.Context, sessionID, requestID string) (model.SpinRecord, error) {
	rec, err := s.spins.Get(ctx, requestID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.SpinRecord{}, errs.WrapLevel(errs.Warn, err, "spin "+requestID)
		}
		return model.SpinRecord{}, errs.Wrap(err, "read spin log")
	}
	// чужие результаты не раскрываем
	if rec.Result.SessionID != sessionID {
		return model.SpinRecord{}, errs.WrapLevel(errs.Warn, errs.ErrNotFound, "spin "+requestID)
	}
	return rec, nil
}
