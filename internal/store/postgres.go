package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gigbook/internal/database"
	apperrors "gigbook/internal/errors"
)

// PostgresStore keeps every collection in the JSONB documents table.
type PostgresStore struct {
	db *database.DB
}

type pgTxKey struct{}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func NewPostgresStore(db *database.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) conn(ctx context.Context) (queryer, bool) {
	if tx, ok := ctx.Value(pgTxKey{}).(*sql.Tx); ok {
		return tx, true
	}
	return s.db, false
}

func (s *PostgresStore) Get(ctx context.Context, collection, id string, dst any) error {
	q, inTx := s.conn(ctx)
	query := `SELECT data FROM documents WHERE collection = $1 AND id = $2`
	if inTx {
		query += ` FOR UPDATE`
	}

	var data []byte
	err := q.QueryRowContext(ctx, query, collection, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(collection, id)
	}
	if err != nil {
		return apperrors.Internal(err, fmt.Sprintf("get %s/%s", collection, id))
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return apperrors.Internal(err, fmt.Sprintf("decode %s/%s", collection, id))
	}
	return nil
}

func (s *PostgresStore) Set(ctx context.Context, collection, id string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return apperrors.Internal(err, fmt.Sprintf("encode %s/%s", collection, id))
	}

	q, _ := s.conn(ctx)
	_, err = q.ExecContext(ctx, `
		INSERT INTO documents (collection, id, data)
		VALUES ($1, $2, $3)
		ON CONFLICT (collection, id)
		DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`,
		collection, id, data)
	if err != nil {
		return apperrors.Internal(err, fmt.Sprintf("set %s/%s", collection, id))
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	q, _ := s.conn(ctx)
	if _, err := q.ExecContext(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id); err != nil {
		return apperrors.Internal(err, fmt.Sprintf("delete %s/%s", collection, id))
	}
	return nil
}

func (s *PostgresStore) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	conn, inTx := s.conn(ctx)
	query, args := buildQuery(collection, q, inTx)

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Internal(err, fmt.Sprintf("query %s", collection))
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var doc Document
		var data []byte
		if err := rows.Scan(&doc.ID, &data); err != nil {
			return nil, apperrors.Internal(err, fmt.Sprintf("scan %s", collection))
		}
		doc.Data = data
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Internal(err, fmt.Sprintf("query %s", collection))
	}
	return out, nil
}

// buildQuery passes field names as parameters to ->> so no caller input is
// spliced into the SQL text.
func buildQuery(collection string, q Query, forUpdate bool) (string, []any) {
	var sb strings.Builder
	args := []any{collection}
	sb.WriteString(`SELECT id, data FROM documents WHERE collection = $1`)

	for _, f := range q.Where {
		args = append(args, f.Field, textOf(f.Value))
		fmt.Fprintf(&sb, ` AND data->>$%d::text = $%d`, len(args)-1, len(args))
	}

	dir := "ASC"
	if q.Desc {
		dir = "DESC"
	}
	if q.OrderBy != "" {
		args = append(args, q.OrderBy)
		fmt.Fprintf(&sb, ` ORDER BY data->>$%d::text %s, seq %s`, len(args), dir, dir)
	} else {
		fmt.Fprintf(&sb, ` ORDER BY seq %s`, dir)
	}

	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&sb, ` LIMIT $%d`, len(args))
	}
	if forUpdate {
		sb.WriteString(` FOR UPDATE`)
	}
	return sb.String(), args
}

func (s *PostgresStore) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	q, _ := s.conn(ctx)
	_, err := q.ExecContext(ctx, `
		INSERT INTO documents (collection, id, data)
		VALUES ($1, $2, jsonb_build_object($3::text, $4::bigint))
		ON CONFLICT (collection, id)
		DO UPDATE SET data = jsonb_set(
			documents.data,
			ARRAY[$3::text],
			to_jsonb(COALESCE((documents.data->>$3::text)::bigint, 0) + $4::bigint)
		), updated_at = NOW()`,
		collection, id, field, delta)
	if err != nil {
		return apperrors.Internal(err, fmt.Sprintf("increment %s of %s/%s", field, collection, id))
	}
	return nil
}

// RunInTx runs fn in a serializable transaction, retrying on serialization
// failures. Exhausted retries surface as CONFLICT.
func (s *PostgresStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, inTx := s.conn(ctx); inTx {
		return fn(ctx)
	}

	err := s.db.ExecuteTxWithRetry(ctx, func(tx *sql.Tx) error {
		return fn(context.WithValue(ctx, pgTxKey{}, tx))
	})
	if errors.Is(err, database.ErrTxRetriesExhausted) {
		return &apperrors.Error{Code: apperrors.CodeConflict, Message: "concurrent update, please retry", Err: err}
	}
	return err
}
