package spin_log_repo

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
	table        = "spin_log"
	colRequestID = "request_id"
	colSessionID = "session_id"
	colVersion   = "version"
	colTotalWin  = "total_win"
	colPayload   = "payload"

	uniqueViolation = "23505"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type repo struct {
	db     *pgxpool.Pool
	getter *trmpgx.CtxGetter
}

func NewSpinLogRepository(db *pgxpool.Pool) repository.SpinLogRepository {
	return &repo{
		db:     db,
		getter: trmpgx.DefaultCtxGetter,
	}
}

// Append - добавляет результат спина. Повтор request id дает errs.ErrDuplicateRequest
func (r *repo) Append(ctx context.Context, rec model.SpinRecord) error {
	payload, err := codec.Marshal(rec)
	if err != nil {
		return err
	}

	query := psql.Insert(table).
		Columns(colRequestID, colSessionID, colVersion, colTotalWin, colPayload).
		Values(rec.Result.RequestID, rec.Result.SessionID, rec.Before.Version+1, rec.Result.TotalWin.String(), payload)

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

// Get - запись по request id
func (r *repo) Get(ctx context.Context, requestID string) (model.SpinRecord, error) {
	query := psql.Select(colPayload).
		From(table).
		Where(sq.Eq{colRequestID: requestID})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return model.SpinRecord{}, err
	}

	var payload []byte
	err = r.getter.DefaultTrOrDB(ctx, r.db).QueryRow(ctx, sqlStr, args...).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.SpinRecord{}, errs.ErrNotFound
		}
		return model.SpinRecord{}, err
	}

	var rec model.SpinRecord
	if err := codec.Unmarshal(payload, &rec); err != nil {
		return model.SpinRecord{}, err
	}
	return rec, nil
}
