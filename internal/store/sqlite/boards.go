package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/gosuda/boardsync/internal/domain"
)

func (s *Store) CreateBoard(ctx context.Context, b *domain.Board) (*domain.Board, error) {
	rec, err := newBoardRecord(b)
	if err != nil {
		return nil, fmt.Errorf("sqlite.Store.CreateBoard: %w", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&boardRecord{}).Where("id = ?", rec.ID).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return domain.ErrConflict
		}
		return tx.Create(rec).Error
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite.Store.CreateBoard: %w", err)
	}

	return rec.toDomain()
}

func (s *Store) FindBoardByID(ctx context.Context, id string) (*domain.Board, error) {
	var rec boardRecord
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("sqlite.Store.FindBoardByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite.Store.FindBoardByID: %w", err)
	}

	b, err := rec.toDomain()
	if err != nil {
		return nil, fmt.Errorf("sqlite.Store.FindBoardByID: %w", err)
	}
	return b, nil
}

func (s *Store) FindBoardsByUser(ctx context.Context, userID string) ([]*domain.Board, error) {
	var recs []boardRecord
	err := s.db.WithContext(ctx).
		Where("owner_id = ? OR EXISTS (SELECT 1 FROM json_each(boards.collaborators) WHERE json_each.value = ?)", userID, userID).
		Order("updated_at DESC").
		Limit(1000).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("sqlite.Store.FindBoardsByUser: %w", err)
	}

	boards := make([]*domain.Board, 0, len(recs))
	for i := range recs {
		b, err := recs[i].toDomain()
		if err != nil {
			return nil, fmt.Errorf("sqlite.Store.FindBoardsByUser: %w", err)
		}
		boards = append(boards, b)
	}
	return boards, nil
}

func (s *Store) UpdateBoard(ctx context.Context, id string, u domain.BoardUpdate) (*domain.Board, error) {
	var rec boardRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).Take(&rec).Error; err != nil {
			return err
		}
		if u.Title != nil {
			rec.Title = *u.Title
		}
		if u.Collaborators != nil {
			collaborators := *u.Collaborators
			if collaborators == nil {
				collaborators = []string{}
			}
			raw, err := json.Marshal(collaborators)
			if err != nil {
				return err
			}
			rec.Collaborators = string(raw)
		}
		rec.UpdatedAt = time.Now().UTC()
		return tx.Save(&rec).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("sqlite.Store.UpdateBoard: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite.Store.UpdateBoard: %w", err)
	}

	return rec.toDomain()
}

// DeleteBoard removes the board and its objects.
func (s *Store) DeleteBoard(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("board_id = ?", id).Delete(&objectRecord{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&boardRecord{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("sqlite.Store.DeleteBoard: %w", err)
	}
	return nil
}
