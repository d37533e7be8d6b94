package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/boardsync/internal/domain"
)

const uniqueViolation = "23505"

type BoardRepo struct {
	pool *pgxpool.Pool
}

func NewBoardRepo(pool *pgxpool.Pool) *BoardRepo {
	return &BoardRepo{pool: pool}
}

const boardColumns = `id, title, owner_id, collaborators, created_at, updated_at`

func scanBoard(row pgx.Row) (*domain.Board, error) {
	var b domain.Board
	if err := row.Scan(&b.ID, &b.Title, &b.OwnerID, &b.Collaborators, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	if b.Collaborators == nil {
		b.Collaborators = []string{}
	}
	return &b, nil
}

func (r *BoardRepo) CreateBoard(ctx context.Context, b *domain.Board) (*domain.Board, error) {
	collaborators := b.Collaborators
	if collaborators == nil {
		collaborators = []string{}
	}

	saved, err := scanBoard(r.pool.QueryRow(ctx,
		`INSERT INTO boards (id, title, owner_id, collaborators, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+boardColumns,
		b.ID, b.Title, b.OwnerID, collaborators, b.CreatedAt, b.UpdatedAt,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("boardRepo.CreateBoard: %w", domain.ErrConflict)
		}
		return nil, fmt.Errorf("boardRepo.CreateBoard: %w", err)
	}

	return saved, nil
}

func (r *BoardRepo) FindBoardByID(ctx context.Context, id string) (*domain.Board, error) {
	b, err := scanBoard(r.pool.QueryRow(ctx,
		`SELECT `+boardColumns+` FROM boards WHERE id = $1`, id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("boardRepo.FindBoardByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("boardRepo.FindBoardByID: %w", err)
	}

	return b, nil
}

func (r *BoardRepo) FindBoardsByUser(ctx context.Context, userID string) ([]*domain.Board, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+boardColumns+` FROM boards
		 WHERE owner_id = $1 OR $1 = ANY(collaborators)
		 ORDER BY updated_at DESC
		 LIMIT 1000`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("boardRepo.FindBoardsByUser: %w", err)
	}
	defer rows.Close()

	boards := []*domain.Board{}
	for rows.Next() {
		b, err := scanBoard(rows)
		if err != nil {
			return nil, fmt.Errorf("boardRepo.FindBoardsByUser: scan: %w", err)
		}
		boards = append(boards, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("boardRepo.FindBoardsByUser: rows: %w", err)
	}

	return boards, nil
}

func (r *BoardRepo) UpdateBoard(ctx context.Context, id string, u domain.BoardUpdate) (*domain.Board, error) {
	var collaborators []string
	if u.Collaborators != nil {
		collaborators = *u.Collaborators
		if collaborators == nil {
			collaborators = []string{}
		}
	}

	b, err := scanBoard(r.pool.QueryRow(ctx,
		`UPDATE boards SET
		        title = COALESCE($2, title),
		        collaborators = CASE WHEN $3 THEN $4::text[] ELSE collaborators END,
		        updated_at = now()
		 WHERE id = $1
		 RETURNING `+boardColumns,
		id, u.Title, u.Collaborators != nil, collaborators,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("boardRepo.UpdateBoard: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("boardRepo.UpdateBoard: %w", err)
	}

	return b, nil
}

// DeleteBoard removes the board and its objects in one transaction.
func (r *BoardRepo) DeleteBoard(ctx context.Context, id string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("boardRepo.DeleteBoard: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM board_objects WHERE board_id = $1`, id); err != nil {
		return fmt.Errorf("boardRepo.DeleteBoard: objects: %w", err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM boards WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("boardRepo.DeleteBoard: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("boardRepo.DeleteBoard: %w", domain.ErrNotFound)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("boardRepo.DeleteBoard: commit: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
