package session_repo

import (
	"context"
	"errors"

	sq "github.com/Masterminds/squirrel"
	trmpgx "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"infinity_stones/internal/errs"
	"infinity_stones/internal/model"
	"infinity_stones/internal/repository"
)

const (
	table                  = "session_state"
	colSessionID           = "session_id"
	colMode                = "mode"
	colBonusSpinsRemaining = "bonus_spins_remaining"
	colCarriedMultiplier   = "carried_multiplier"
	colBonusWager          = "bonus_wager"
	colLastSpinID          = "last_spin_id"
	colRiskScore           = "risk_score"
	colVersion             = "version"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type repo struct {
	db     *pgxpool.Pool
	getter *trmpgx.CtxGetter
}

func NewSessionRepository(db *pgxpool.Pool) repository.SessionRepository {
	return &repo{
		db:     db,
		getter: trmpgx.DefaultCtxGetter,
	}
}

// LoadOrCreate - вставляет состояние по умолчанию, если сессии нет, и читает текущее
func (r *repo) LoadOrCreate(ctx context.Context, sessionID string) (model.SessionState, error) {
	def := model.NewSessionState(sessionID)
	query := psql.Insert(table).
		Columns(colSessionID, colMode, colBonusSpinsRemaining, colCarriedMultiplier, colBonusWager, colLastSpinID, colRiskScore, colVersion).
		Values(def.SessionID, string(def.Mode), def.BonusSpinsRemaining, def.CarriedMultiplier, def.BonusWager.String(), def.LastSpinID, def.RiskScore, def.Version).
		Suffix("ON CONFLICT (" + colSessionID + ") DO NOTHING")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return model.SessionState{}, err
	}
	if _, err = r.getter.DefaultTrOrDB(ctx, r.db).Exec(ctx, sqlStr, args...); err != nil {
		return model.SessionState{}, err
	}
	return r.Get(ctx, sessionID)
}

// Get - текущее состояние сессии
func (r *repo) Get(ctx context.Context, sessionID string) (model.SessionState, error) {
	query := psql.Select(colSessionID, colMode, colBonusSpinsRemaining, colCarriedMultiplier,
		colBonusWager+"::text", colLastSpinID, colRiskScore, colVersion).
		From(table).
		Where(sq.Eq{colSessionID: sessionID})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return model.SessionState{}, err
	}

	var (
		st    model.SessionState
		mode  string
		wager string
	)
	err = r.getter.DefaultTrOrDB(ctx, r.db).QueryRow(ctx, sqlStr, args...).
		Scan(&st.SessionID, &mode, &st.BonusSpinsRemaining, &st.CarriedMultiplier, &wager, &st.LastSpinID, &st.RiskScore, &st.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.SessionState{}, errs.ErrNotFound
		}
		return model.SessionState{}, err
	}

	st.Mode = model.Mode(mode)
	st.BonusWager, err = decimal.NewFromString(wager)
	if err != nil {
		return model.SessionState{}, err
	}
	return st, nil
}

// Commit - CAS по версии. Ноль обновленных строк означает, что кто-то успел раньше
func (r *repo) Commit(ctx context.Context, expectedVersion int64, state model.SessionState) error {
	query := psql.Update(table).
		Set(colMode, string(state.Mode)).
		Set(colBonusSpinsRemaining, state.BonusSpinsRemaining).
		Set(colCarriedMultiplier, state.CarriedMultiplier).
		Set(colBonusWager, state.BonusWager.String()).
		Set(colLastSpinID, state.LastSpinID).
		Set(colRiskScore, state.RiskScore).
		Set(colVersion, expectedVersion+1).
		Where(sq.Eq{colSessionID: state.SessionID, colVersion: expectedVersion})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return err
	}

	tag, err := r.getter.DefaultTrOrDB(ctx, r.db).Exec(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrConflict
	}
	return nil
}
