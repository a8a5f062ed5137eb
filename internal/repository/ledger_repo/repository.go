package ledger_repo

import (
	"context"
	"errors"

	sq "github.com/Masterminds/squirrel"
	trmpgx "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"infinity_stones/internal/errs"
	"infinity_stones/internal/repository"
)

const (
	accountsTable = "accounts"
	colSessionID  = "session_id"
	colBalance    = "balance"

	entriesTable    = "ledger_entry"
	colRequestID    = "request_id"
	colKind         = "kind"
	colAmount       = "amount"
	colBalanceAfter = "balance_after"

	kindDebit   = "debit"
	kindCredit  = "credit"
	kindDeposit = "deposit"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type repo struct {
	db     *pgxpool.Pool
	getter *trmpgx.CtxGetter
}

func NewLedgerRepository(db *pgxpool.Pool) repository.LedgerRepository {
	return &repo{
		db:     db,
		getter: trmpgx.DefaultCtxGetter,
	}
}

// Balance - баланс сессии, 0 если счета еще нет
func (r *repo) Balance(ctx context.Context, sessionID string) (decimal.Decimal, error) {
	query := psql.Select(colBalance + "::text").
		From(accountsTable).
		Where(sq.Eq{colSessionID: sessionID})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return decimal.Zero, err
	}

	var balance string
	err = r.getter.DefaultTrOrDB(ctx, r.db).QueryRow(ctx, sqlStr, args...).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return decimal.NewFromString(balance)
}

// Debit - списание ставки. Недостаточно средств -> errs.ErrInsufficientFunds
func (r *repo) Debit(ctx context.Context, sessionID, requestID string, amount decimal.Decimal) (decimal.Decimal, error) {
	return r.apply(ctx, sessionID, requestID, kindDebit, amount.Neg())
}

// Credit - зачисление выигрыша, в том числе нулевого
func (r *repo) Credit(ctx context.Context, sessionID, requestID string, amount decimal.Decimal) (decimal.Decimal, error) {
	return r.apply(ctx, sessionID, requestID, kindCredit, amount)
}

// Deposit - пополнение счета
func (r *repo) Deposit(ctx context.Context, sessionID, requestID string, amount decimal.Decimal) (decimal.Decimal, error) {
	return r.apply(ctx, sessionID, requestID, kindDeposit, amount)
}

// apply - проводка delta по счету. Повтор (requestID, kind) возвращает баланс первой проводки
func (r *repo) apply(ctx context.Context, sessionID, requestID, kind string, delta decimal.Decimal) (decimal.Decimal, error) {
	tr := r.getter.DefaultTrOrDB(ctx, r.db)

	if after, ok, err := r.entry(ctx, requestID, kind); err != nil || ok {
		return after, err
	}

	sqlStr, args, err := psql.Insert(accountsTable).
		Columns(colSessionID, colBalance).
		Values(sessionID, "0").
		Suffix("ON CONFLICT (" + colSessionID + ") DO NOTHING").
		ToSql()
	if err != nil {
		return decimal.Zero, err
	}
	if _, err = tr.Exec(ctx, sqlStr, args...); err != nil {
		return decimal.Zero, err
	}

	update := psql.Update(accountsTable).
		Set(colBalance, sq.Expr(colBalance+" + ?", delta.String())).
		Where(sq.Eq{colSessionID: sessionID}).
		Suffix("RETURNING " + colBalance + "::text")
	if delta.IsNegative() {
		update = update.Where(sq.GtOrEq{colBalance: delta.Neg().String()})
	}
	sqlStr, args, err = update.ToSql()
	if err != nil {
		return decimal.Zero, err
	}

	var balance string
	err = tr.QueryRow(ctx, sqlStr, args...).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, errs.ErrInsufficientFunds
		}
		return decimal.Zero, err
	}

	sqlStr, args, err = psql.Insert(entriesTable).
		Columns(colRequestID, colKind, colSessionID, colAmount, colBalanceAfter).
		Values(requestID, kind, sessionID, delta.String(), balance).
		ToSql()
	if err != nil {
		return decimal.Zero, err
	}
	if _, err = tr.Exec(ctx, sqlStr, args...); err != nil {
		return decimal.Zero, err
	}

	return decimal.NewFromString(balance)
}

func (r *repo) entry(ctx context.Context, requestID, kind string) (decimal.Decimal, bool, error) {
	sqlStr, args, err := psql.Select(colBalanceAfter + "::text").
		From(entriesTable).
		Where(sq.Eq{colRequestID: requestID, colKind: kind}).
		ToSql()
	if err != nil {
		return decimal.Zero, false, err
	}

	var after string
	err = r.getter.DefaultTrOrDB(ctx, r.db).QueryRow(ctx, sqlStr, args...).Scan(&after)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, false, nil
		}
		return decimal.Zero, false, err
	}
	d, err := decimal.NewFromString(after)
	return d, err == nil, err
}
