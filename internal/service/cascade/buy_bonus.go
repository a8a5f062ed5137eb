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
)

// BuyBonus Купить бонуску: списать BuyBonusCostX ставок и сразу войти в бонус с начальным числом спинов
func (s *serv) BuyBonus(ctx context.Context, req model.BuyBonus) (*model.BuyBonusResult, error) {
	if req.SessionID == "" || req.RequestID == "" {
		return nil, errs.WrapLevel(errs.Warn, errs.ErrInvalidRequest, "session id and request id are required")
	}
	if err := engine.ValidateWager(req.Wager); err != nil {
		return nil, err
	}
	costX := s.cfg.BuyBonusCostX()
	if !costX.IsPositive() {
		return nil, errs.WrapLevel(errs.Warn, errs.ErrNotAllowed, "bonus buy is disabled")
	}
	cost := req.Wager.Mul(costX).Truncate(2)

	unlock, err := s.locker.Lock(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// повтор покупки отдает сохраненный результат до любых проверок режима
	if res, ok, err := s.purchased(ctx, req.SessionID, req.RequestID); err != nil || ok {
		return res, err
	}

	for attempt := 1; attempt <= maxCommitAttempts; attempt++ {
		res, err := s.buyOnce(ctx, req, cost)
		switch {
		case err == nil:
			return res, nil
		case errors.Is(err, errs.ErrConflict):
			continue
		case errors.Is(err, errs.ErrDuplicateRequest):
			res, ok, perr := s.purchased(ctx, req.SessionID, req.RequestID)
			if perr != nil {
				return nil, perr
			}
			if ok {
				return res, nil
			}
			return nil, err
		default:
			return nil, err
		}
	}
	return nil, errs.WrapLevel(errs.Warn, errs.ErrConflict, "commit attempts exhausted")
}

func (s *serv) buyOnce(ctx context.Context, req model.BuyBonus, cost decimal.Decimal) (*model.BuyBonusResult, error) {
	before, err := s.sessions.LoadOrCreate(ctx, req.SessionID)
	if err != nil {
		return nil, errs.Wrap(err, "load session")
	}
	if before.Mode != model.ModeBase {
		return nil, errs.WrapLevel(errs.Warn, errs.ErrNotAllowed, "bonus is already active")
	}

	after := before
	after.Mode = model.ModeBonus
	after.BonusSpinsRemaining = s.cfg.Engine().Bonus.InitialSpins
	after.CarriedMultiplier = 1
	after.BonusWager = req.Wager
	after.LastSpinID = req.RequestID

	res := &model.BuyBonusResult{Cost: cost}
	err = s.txManager.Do(ctx, func(ctx context.Context) error {
		balance, err := s.ledger.Debit(ctx, req.SessionID, buyBonusLedgerPrefix+req.RequestID, cost)
		if err != nil {
			return ledgerError(err, "debit bonus buy")
		}
		if err := s.sessions.Commit(ctx, before.Version, after); err != nil {
			return err
		}
		res.Balance = balance
		res.State = after
		res.State.Version = before.Version + 1
		return s.purchases.Append(ctx, model.PurchaseRecord{
			SessionID: req.SessionID,
			RequestID: req.RequestID,
			Wager:     req.Wager,
			Result:    *res,
		})
	})
	if err != nil {
		return nil, err
	}
	after = res.State

	s.stats.RecordPurchase(cost)
	s.audit.Publish(audit.Record{
		Kind:      audit.KindBuyBonus,
		SessionID: req.SessionID,
		RequestID: req.RequestID,
		Version:   after.Version,
		Amount:    cost,
		After:     &after,
	})
	s.logger.Info("bonus bought",
		zap.String("session_id", req.SessionID),
		zap.String("request_id", req.RequestID),
		zap.String("cost", cost.String()),
		zap.Int("spins", after.BonusSpinsRemaining),
	)
	return res, nil
}

// purchased результат из журнала покупок. Чужой request id считается дублем
func (s *serv) purchased(ctx context.Context, sessionID, requestID string) (*model.BuyBonusResult, bool, error) {
	rec, err := s.purchases.Get(ctx, requestID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, errs.Wrap(err, "read purchase log")
	}
	if rec.SessionID != sessionID {
		return nil, false, errs.WrapLevel(errs.Warn, errs.ErrDuplicateRequest, "request id belongs to another session")
	}
	return &rec.Result, true, nil
}
