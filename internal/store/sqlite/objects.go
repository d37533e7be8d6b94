package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/gosuda/boardsync/internal/domain"
)

func (s *Store) FindObjectsByBoard(ctx context.Context, boardID string) ([]*domain.BoardObject, error) {
	var recs []objectRecord
	err := s.db.WithContext(ctx).
		Where("board_id = ?", boardID).
		Order("z_index ASC").
		Order("updated_at ASC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("sqlite.Store.FindObjectsByBoard: %w", err)
	}

	objs := make([]*domain.BoardObject, 0, len(recs))
	for i := range recs {
		o, err := recs[i].toDomain()
		if err != nil {
			return nil, fmt.Errorf("sqlite.Store.FindObjectsByBoard: %w", err)
		}
		objs = append(objs, o)
	}
	return objs, nil
}

func (s *Store) CreateObject(ctx context.Context, o *domain.BoardObject) (*domain.BoardObject, error) {
	rec, err := newObjectRecord(o)
	if err != nil {
		return nil, fmt.Errorf("sqlite.Store.CreateObject: %w", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&objectRecord{}).Where("id = ?", rec.ID).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return domain.ErrConflict
		}
		return tx.Create(rec).Error
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite.Store.CreateObject: %w", err)
	}

	saved, err := rec.toDomain()
	if err != nil {
		return nil, fmt.Errorf("sqlite.Store.CreateObject: %w", err)
	}
	return saved, nil
}

func (s *Store) UpdateObject(ctx context.Context, boardID, id string, d domain.ObjectDelta) (*domain.BoardObject, error) {
	var updated *domain.BoardObject
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec objectRecord
		if err := tx.Where("board_id = ? AND id = ?", boardID, id).Take(&rec).Error; err != nil {
			return err
		}
		o, err := rec.toDomain()
		if err != nil {
			return err
		}

		d.ApplyTo(o)
		o.UpdatedAt = time.Now().UTC()

		next, err := newObjectRecord(o)
		if err != nil {
			return err
		}
		if err := tx.Save(next).Error; err != nil {
			return err
		}
		updated = o
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("sqlite.Store.UpdateObject: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite.Store.UpdateObject: %w", err)
	}
	return updated, nil
}

func (s *Store) DeleteObject(ctx context.Context, boardID, id string) error {
	res := s.db.WithContext(ctx).Where("board_id = ? AND id = ?", boardID, id).Delete(&objectRecord{})
	if res.Error != nil {
		return fmt.Errorf("sqlite.Store.DeleteObject: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("sqlite.Store.DeleteObject: %w", domain.ErrNotFound)
	}
	return nil
}
