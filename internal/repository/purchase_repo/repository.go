package purchase_repo

import (
	"context"
	"errors"

	sq "github.com/Masterminds/squirrel"
	trmpgx "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"infinity_stones/internal/errs"
	"infinity_stones/internal/model"
	"infinity_stones/internal/repository"
	"infinity_stones/pkg/codec"
)

const (
	table        = "bonus_purchase"
	colRequestID = "request_id"
	colSessionID = "session_id"
	colCost      = "cost"
	colPayload   = "payload"

	uniqueViolation = "23505"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type repo struct {
	db     *pgxpool.Pool
	getter *trmpgx.CtxGetter
}

func NewPurchaseRepository(db *pgxpool.Pool) repository.PurchaseRepository {
	return &repo{
		db:     db,
		getter: trmpgx.DefaultCtxGetter,
	}
}

// Append - записывает покупку. Повтор request id дает errs.ErrDuplicateRequest
func (r *repo) Append(ctx context.Context, rec model.PurchaseRecord) error {
	payload, err := codec.Marshal(rec)
	if err != nil {
		return err
	}

	query := psql.Insert(table).
		Columns(colRequestID, colSessionID, colCost, colPayload).
		Values(rec.RequestID, rec.SessionID, rec.Result.Cost.String(), payload)

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.getter.DefaultTrOrDB(ctx, r.db).Exec(ctx, sqlStr, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return errs.ErrDuplicateRequest
		}
		return err
	}
	return nil
}

// Get - покупка по request id
func (r *repo) Get(ctx context.Context, requestID string) (model.PurchaseRecord, error) {
	query := psql.Select(colPayload).
		From(table).
		Where(sq.Eq{colRequestID: requestID})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return model.PurchaseRecord{}, err
	}

	var payload []byte
	err = r.getter.DefaultTrOrDB(ctx, r.db).QueryRow(ctx, sqlStr, args...).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.PurchaseRecord{}, errs.ErrNotFound
		}
		return model.PurchaseRecord{}, err
	}

	var rec model.PurchaseRecord
	if err := codec.Unmarshal(payload, &rec); err != nil {
		return model.PurchaseRecord{}, err
	}
	return rec, nil
}
