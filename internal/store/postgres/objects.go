package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/boardsync/internal/domain"
)

type ObjectRepo struct {
	pool *pgxpool.Pool
}

func NewObjectRepo(pool *pgxpool.Pool) *ObjectRepo {
	return &ObjectRepo{pool: pool}
}

const objectColumns = `id, board_id, type, x, y, width, height, rotation, z_index, color, created_by, props, updated_at`

func scanObject(row pgx.Row) (*domain.BoardObject, error) {
	var (
		o     domain.BoardObject
		props []byte
	)
	if err := row.Scan(
		&o.ID, &o.BoardID, &o.Type, &o.X, &o.Y, &o.Width, &o.Height,
		&o.Rotation, &o.ZIndex, &o.Color, &o.CreatedBy, &props, &o.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := o.UnmarshalProps(props); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *ObjectRepo) FindObjectsByBoard(ctx context.Context, boardID string) ([]*domain.BoardObject, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+objectColumns+` FROM board_objects
		 WHERE board_id = $1
		 ORDER BY z_index, updated_at`,
		boardID,
	)
	if err != nil {
		return nil, fmt.Errorf("objectRepo.FindObjectsByBoard: %w", err)
	}
	defer rows.Close()

	objs := []*domain.BoardObject{}
	for rows.Next() {
		o, err := scanObject(rows)
		if err != nil {
			return nil, fmt.Errorf("objectRepo.FindObjectsByBoard: scan: %w", err)
		}
		objs = append(objs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("objectRepo.FindObjectsByBoard: rows: %w", err)
	}

	return objs, nil
}

func (r *ObjectRepo) CreateObject(ctx context.Context, o *domain.BoardObject) (*domain.BoardObject, error) {
	props, err := o.MarshalProps()
	if err != nil {
		return nil, fmt.Errorf("objectRepo.CreateObject: %w", err)
	}

	saved, err := scanObject(r.pool.QueryRow(ctx,
		`INSERT INTO board_objects (`+objectColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING `+objectColumns,
		o.ID, o.BoardID, o.Type, o.X, o.Y, o.Width, o.Height,
		o.Rotation, o.ZIndex, o.Color, o.CreatedBy, props, o.UpdatedAt,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("objectRepo.CreateObject: %w", domain.ErrConflict)
		}
		return nil, fmt.Errorf("objectRepo.CreateObject: %w", err)
	}

	return saved, nil
}

// UpdateObject applies d under a row lock so concurrent patches to different
// fields of one object do not drop each other.
func (r *ObjectRepo) UpdateObject(ctx context.Context, boardID, id string, d domain.ObjectDelta) (*domain.BoardObject, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("objectRepo.UpdateObject: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := scanObject(tx.QueryRow(ctx,
		`SELECT `+objectColumns+` FROM board_objects
		 WHERE board_id = $1 AND id = $2
		 FOR UPDATE`,
		boardID, id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("objectRepo.UpdateObject: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("objectRepo.UpdateObject: %w", err)
	}

	d.ApplyTo(o)
	o.UpdatedAt = time.Now().UTC()

	props, err := o.MarshalProps()
	if err != nil {
		return nil, fmt.Errorf("objectRepo.UpdateObject: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE board_objects SET x = $3, y = $4, width = $5, height = $6, rotation = $7,
		        z_index = $8, color = $9, props = $10, updated_at = $11
		 WHERE board_id = $1 AND id = $2`,
		boardID, id, o.X, o.Y, o.Width, o.Height, o.Rotation,
		o.ZIndex, o.Color, props, o.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("objectRepo.UpdateObject: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("objectRepo.UpdateObject: commit: %w", err)
	}
	return o, nil
}

func (r *ObjectRepo) DeleteObject(ctx context.Context, boardID, id string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM board_objects WHERE board_id = $1 AND id = $2`,
		boardID, id,
	)
	if err != nil {
		return fmt.Errorf("objectRepo.DeleteObject: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("objectRepo.DeleteObject: %w", domain.ErrNotFound)
	}

	return nil
}
