package hscode

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/platform/db"
	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/platform/httpx"
	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/shared"
)

const uniqueViolation = "23505"

// Repository persists HS codes. Implementations return errors matching
// httpx.ErrNotFound and httpx.ErrDuplicate.
type Repository interface {
	List(ctx context.Context, params ListParams) ([]HSCode, int, error)
	Get(ctx context.Context, id string) (HSCode, error)
	Create(ctx context.Context, code HSCode) (HSCode, error)
	// Update loads the record, applies fn and stores the result atomically.
	Update(ctx context.Context, id string, fn func(*HSCode) error) (HSCode, error)
	Delete(ctx context.Context, id string) error
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// PostgresRepository stores codes in the hs_codes table.
type PostgresRepository struct {
	pool *pgxpool.Pool
	db   dbtx
}

// NewPostgresRepository constructs a repository on pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool, db: pool}
}

const selectColumns = `id, code, description, created_at, updated_at`

func scanHSCode(row pgx.Row) (HSCode, error) {
	var c HSCode
	err := row.Scan(&c.ID, &c.Code, &c.Description, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// List returns one page ordered by code together with the total match count.
func (r *PostgresRepository) List(ctx context.Context, params ListParams) ([]HSCode, int, error) {
	where := ""
	var args []interface{}
	if s := strings.TrimSpace(params.Search); s != "" {
		where = `WHERE code ILIKE $1 ESCAPE '\' OR description ILIKE $1 ESCAPE '\'`
		args = append(args, "%"+escapeLike(s)+"%")
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM hs_codes "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count hs codes: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM hs_codes %s ORDER BY code LIMIT $%d OFFSET $%d",
		selectColumns, where, len(args)+1, len(args)+2)
	page := shared.NewPagination(params.Page, params.Limit, 0)
	args = append(args, page.Limit, page.Offset())
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list hs codes: %w", err)
	}
	defer rows.Close()

	codes := []HSCode{}
	for rows.Next() {
		c, err := scanHSCode(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan hs code: %w", err)
		}
		codes = append(codes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate hs codes: %w", err)
	}
	return codes, total, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// escapeLike makes s match literally inside a LIKE pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// Get returns the code with the given ID.
func (r *PostgresRepository) Get(ctx context.Context, id string) (HSCode, error) {
	c, err := scanHSCode(r.db.QueryRow(ctx, "SELECT "+selectColumns+" FROM hs_codes WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return HSCode{}, fmt.Errorf("hs code %s: %w", id, httpx.ErrNotFound)
		}
		return HSCode{}, fmt.Errorf("get hs code: %w", err)
	}
	return c, nil
}

// Create inserts a code. A clashing code value yields httpx.ErrDuplicate.
func (r *PostgresRepository) Create(ctx context.Context, c HSCode) (HSCode, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO hs_codes (id, code, description, created_at, updated_at)
VALUES ($1, $2, $3, $4, $4)
RETURNING `+selectColumns, c.ID, c.Code, c.Description, c.CreatedAt)
	stored, err := scanHSCode(row)
	if err != nil {
		return HSCode{}, mapWriteError(c.Code, err)
	}
	return stored, nil
}

// Update locks the row, applies fn and writes the merged record back.
func (r *PostgresRepository) Update(ctx context.Context, id string, fn func(*HSCode) error) (HSCode, error) {
	var out HSCode
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		current, err := scanHSCode(tx.QueryRow(ctx, "SELECT "+selectColumns+" FROM hs_codes WHERE id = $1 FOR UPDATE", id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("hs code %s: %w", id, httpx.ErrNotFound)
			}
			return fmt.Errorf("lock hs code: %w", err)
		}
		if err := fn(&current); err != nil {
			return err
		}
		out, err = scanHSCode(tx.QueryRow(ctx, `UPDATE hs_codes SET code = $2, description = $3, updated_at = $4
WHERE id = $1
RETURNING `+selectColumns, id, current.Code, current.Description, current.UpdatedAt))
		if err != nil {
			return mapWriteError(current.Code, err)
		}
		return nil
	})
	if err != nil {
		return HSCode{}, err
	}
	return out, nil
}

// Delete removes the code with the given ID.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, "DELETE FROM hs_codes WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete hs code: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("hs code %s: %w", id, httpx.ErrNotFound)
	}
	return nil
}

func mapWriteError(code string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: hs code %s already exists", httpx.ErrDuplicate, code)
	}
	return fmt.Errorf("write hs code: %w", err)
}
