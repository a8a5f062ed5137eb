package cascade

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"infinity_stones/internal/audit"
	"infinity_stones/internal/engine"
	"infinity_stones/internal/engine/rng"
	"infinity_stones/internal/errs"
	"infinity_stones/internal/logger"
	"infinity_stones/internal/model"
)

// Spin основной метод. Один спин в полете на сессию, один коммит на спин
func (s *serv) Spin(ctx context.Context, req model.CascadeSpin) (*model.CascadeSpinResult, error) {
	if req.SessionID == "" || req.RequestID == "" {
		return nil, errs.WrapLevel(errs.Warn, errs.ErrInvalidRequest, "session id and request id are required")
	}
	if err := engine.ValidateWager(req.Wager); err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// повтор запроса отдает сохраненный результат без пересчета
	if res, ok, err := s.stored(ctx, req.SessionID, req.RequestID); err != nil || ok {
		return res, err
	}

	serverSeed, err := s.seeds()
	if err != nil {
		return nil, errs.WrapLevel(errs.Fatal, err, "server seed")
	}

	log := s.logger.With(logger.Session(req.SessionID, req.RequestID)...)
	for attempt := 1; attempt <= maxCommitAttempts; attempt++ {
		res, before, after, err := s.spinOnce(ctx, req, serverSeed)
		switch {
		case err == nil:
			s.afterCommit(log, res, before, after)
			return res, nil
		case errors.Is(err, errs.ErrConflict):
			log.Warn("session version conflict, recomputing", zap.Int("attempt", attempt), zap.Int64("version", before.Version))
			continue
		case errors.Is(err, errs.ErrDuplicateRequest):
			// другой процесс успел закоммитить этот request id
			res, ok, serr := s.stored(ctx, req.SessionID, req.RequestID)
			if serr != nil {
				return nil, serr
			}
			if ok {
				return res, nil
			}
			return nil, err
		default:
			if errs.IsFatal(err) {
				log.Error("spin aborted", zap.Error(err))
			}
			return nil, err
		}
	}
	return nil, errs.WrapLevel(errs.Warn, errs.ErrConflict, "commit attempts exhausted")
}

// spinOnce загрузка, чистый расчет и атомарный коммит
func (s *serv) spinOnce(ctx context.Context, req model.CascadeSpin, serverSeed string) (*model.CascadeSpinResult, model.SessionState, model.SessionState, error) {
	before, err := s.sessions.LoadOrCreate(ctx, req.SessionID)
	if err != nil {
		return nil, model.SessionState{}, model.SessionState{}, errs.Wrap(err, "load session")
	}

	seed := model.Seed{
		ServerSeed:     serverSeed,
		ServerSeedHash: rng.HashSeed(serverSeed),
		ClientSeed:     req.SessionID,
		Nonce:          before.Version,
	}
	res, after, err := engine.Compute(ctx, s.cfg.Engine(), engine.Input{
		State:     before,
		Seed:      seed,
		RequestID: req.RequestID,
		Wager:     req.Wager,
	})
	if err != nil {
		return nil, before, after, err
	}

	// клиенту не доверяем, расхождение режима только повышает риск-скор
	if req.ClientMode != "" && req.ClientMode != before.Mode {
		after.RiskScore++
		s.logger.Warn("client mode mismatch",
			zap.String("session_id", req.SessionID),
			zap.String("client_mode", string(req.ClientMode)),
			zap.String("server_mode", string(before.Mode)),
		)
	}

	err = s.txManager.Do(ctx, func(ctx context.Context) error {
		if before.Mode == model.ModeBase {
			if _, err := s.ledger.Debit(ctx, req.SessionID, req.RequestID, res.Wager); err != nil {
				return ledgerError(err, "debit wager")
			}
		}
		balance, err := s.ledger.Credit(ctx, req.SessionID, req.RequestID, res.TotalWin)
		if err != nil {
			return ledgerError(err, "credit win")
		}
		if err := engine.Seal(&res, balance); err != nil {
			return err
		}
		if err := s.sessions.Commit(ctx, before.Version, after); err != nil {
			return err
		}
		return s.spins.Append(ctx, model.SpinRecord{Result: res, Before: before})
	})
	if err != nil {
		return nil, before, after, err
	}
	return &res, before, after, nil
}

func (s *serv) afterCommit(log *zap.Logger, res *model.CascadeSpinResult, before, after model.SessionState) {
	bet := decimal.Zero
	if before.Mode == model.ModeBase {
		bet = res.Wager
	}
	s.stats.Record(bet, res.TotalWin, before.Mode == model.ModeBonus, res.BonusTriggered)

	s.audit.Publish(audit.Record{
		Kind:      audit.KindSpin,
		SessionID: res.SessionID,
		RequestID: res.RequestID,
		Version:   before.Version + 1,
		Amount:    res.TotalWin,
		Checksum:  res.Checksum,
		Spin:      &model.SpinRecord{Result: *res, Before: before},
		After:     &after,
	})

	log.Info("spin committed",
		zap.Int64("version", before.Version+1),
		zap.String("mode", string(res.ModeBefore)),
		zap.Int("cascades", len(res.Steps)),
		zap.String("total_win", res.TotalWin.String()),
		zap.Int("applied_multiplier", res.AppliedMultiplier),
		zap.Strings("bonus_path", res.BonusPath),
	)
}

// stored результат из журнала. Чужой request id считается дублем
func (s *serv) stored(ctx context.Context, sessionID, requestID string) (*model.CascadeSpinResult, bool, error) {
	rec, err := s.spins.Get(ctx, requestID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, errs.Wrap(err, "read spin log")
	}
	if rec.Result.SessionID != sessionID {
		return nil, false, errs.WrapLevel(errs.Warn, errs.ErrDuplicateRequest, "request id belongs to another session")
	}
	return &rec.Result, true, nil
}

func ledgerError(err error, msg string) error {
	if errors.Is(err, errs.ErrInsufficientFunds) {
		return errs.WrapLevel(errs.Warn, err, msg)
	}
	return errs.Wrap(err, msg)
}
