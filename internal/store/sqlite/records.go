package sqlite

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gosuda/boardsync/internal/domain"
)

type boardRecord struct {
	ID            string    `gorm:"column:id;primaryKey;size:190"`
	Title         string    `gorm:"column:title;size:200;not null"`
	OwnerID       string    `gorm:"column:owner_id;size:190;not null;index"`
	Collaborators string    `gorm:"column:collaborators;type:text;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;not null;autoCreateTime:false"`
	UpdatedAt     time.Time `gorm:"column:updated_at;not null;autoUpdateTime:false"`
}

func (boardRecord) TableName() string { return "boards" }

func newBoardRecord(b *domain.Board) (*boardRecord, error) {
	collaborators := b.Collaborators
	if collaborators == nil {
		collaborators = []string{}
	}
	raw, err := json.Marshal(collaborators)
	if err != nil {
		return nil, fmt.Errorf("encode collaborators: %w", err)
	}
	return &boardRecord{
		ID:            b.ID,
		Title:         b.Title,
		OwnerID:       b.OwnerID,
		Collaborators: string(raw),
		CreatedAt:     b.CreatedAt.UTC(),
		UpdatedAt:     b.UpdatedAt.UTC(),
	}, nil
}

func (r *boardRecord) toDomain() (*domain.Board, error) {
	collaborators := []string{}
	if r.Collaborators != "" {
		if err := json.Unmarshal([]byte(r.Collaborators), &collaborators); err != nil {
			return nil, fmt.Errorf("decode collaborators: %w", err)
		}
	}
	return &domain.Board{
		ID:            r.ID,
		Title:         r.Title,
		OwnerID:       r.OwnerID,
		Collaborators: collaborators,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}, nil
}

type objectRecord struct {
	ID        string    `gorm:"column:id;primaryKey;size:190"`
	BoardID   string    `gorm:"column:board_id;size:190;not null;index:idx_board_objects_board_z,priority:1"`
	Type      string    `gorm:"column:type;size:32;not null"`
	X         float64   `gorm:"column:x;not null"`
	Y         float64   `gorm:"column:y;not null"`
	Width     float64   `gorm:"column:width;not null"`
	Height    float64   `gorm:"column:height;not null"`
	Rotation  float64   `gorm:"column:rotation;not null;default:0"`
	ZIndex    int       `gorm:"column:z_index;not null;default:0;index:idx_board_objects_board_z,priority:2"`
	Color     string    `gorm:"column:color;size:64;not null"`
	CreatedBy string    `gorm:"column:created_by;size:190;not null"`
	Props     string    `gorm:"column:props;type:text;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null;autoUpdateTime:false"`
}

func (objectRecord) TableName() string { return "board_objects" }

func newObjectRecord(o *domain.BoardObject) (*objectRecord, error) {
	props, err := o.MarshalProps()
	if err != nil {
		return nil, err
	}
	return &objectRecord{
		ID:        o.ID,
		BoardID:   o.BoardID,
		Type:      string(o.Type),
		X:         o.X,
		Y:         o.Y,
		Width:     o.Width,
		Height:    o.Height,
		Rotation:  o.Rotation,
		ZIndex:    o.ZIndex,
		Color:     o.Color,
		CreatedBy: o.CreatedBy,
		Props:     string(props),
		UpdatedAt: o.UpdatedAt.UTC(),
	}, nil
}

func (r *objectRecord) toDomain() (*domain.BoardObject, error) {
	o := &domain.BoardObject{
		ID:        r.ID,
		BoardID:   r.BoardID,
		Type:      domain.ObjectType(r.Type),
		X:         r.X,
		Y:         r.Y,
		Width:     r.Width,
		Height:    r.Height,
		Rotation:  r.Rotation,
		ZIndex:    r.ZIndex,
		Color:     r.Color,
		CreatedBy: r.CreatedBy,
		UpdatedAt: r.UpdatedAt.UTC(),
	}
	if err := o.UnmarshalProps([]byte(r.Props)); err != nil {
		return nil, err
	}
	return o, nil
}
