package domain

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

type ObjectType string

const (
	ObjectTypeStickyNote ObjectType = "sticky_note"
	ObjectTypeRectangle  ObjectType = "rectangle"
	ObjectTypeCircle     ObjectType = "circle"
	ObjectTypeLine       ObjectType = "line"
	ObjectTypeFrame      ObjectType = "frame"
	ObjectTypeConnector  ObjectType = "connector"
	ObjectTypeText       ObjectType = "text"
)

// Valid reports whether t is one of the known object types.
func (t ObjectType) Valid() bool {
	switch t {
	case ObjectTypeStickyNote, ObjectTypeRectangle, ObjectTypeCircle, ObjectTypeLine,
		ObjectTypeFrame, ObjectTypeConnector, ObjectTypeText:
		return true
	default:
		return false
	}
}

// Defaults for fields the client may omit.
const (
	DefaultObjectColor = "#ffffff"
	DefaultStrokeColor = "#000000"
	DefaultStrokeWidth = 1.0
	DefaultFillOpacity = 1.0
	DefaultFontSize    = 14.0
	DefaultRadius      = 50.0
	DefaultFontWeight  = "normal"
	DefaultTextAlign   = "left"
)

// BoardObject is one shape on a board. The base fields are shared by every
// type; the optional fields below them belong to specific types only and are
// reconciled by Normalize.
type BoardObject struct {
	ID        string     `json:"id"`
	BoardID   string     `json:"boardId"`
	Type      ObjectType `json:"type"`
	X         float64    `json:"x"`
	Y         float64    `json:"y"`
	Width     float64    `json:"width"`
	Height    float64    `json:"height"`
	Rotation  float64    `json:"rotation"`
	ZIndex    int        `json:"zIndex"`
	Color     string     `json:"color"`
	CreatedBy string     `json:"createdBy"`
	UpdatedAt time.Time  `json:"updatedAt"`

	Content     *string   `json:"content,omitempty"`
	FontSize    *float64  `json:"fontSize,omitempty"`
	FontWeight  *string   `json:"fontWeight,omitempty"`
	TextAlign   *string   `json:"textAlign,omitempty"`
	StrokeColor *string   `json:"strokeColor,omitempty"`
	StrokeWidth *float64  `json:"strokeWidth,omitempty"`
	FillOpacity *float64  `json:"fillOpacity,omitempty"`
	Radius      *float64  `json:"radius,omitempty"`
	Points      []float64 `json:"points,omitempty"`
	Label       *string   `json:"label,omitempty"`
	ChildIDs    []string  `json:"childIds,omitempty"`
	SourceID    *string   `json:"sourceId,omitempty"`
	TargetID    *string   `json:"targetId,omitempty"`
}

// Normalize fills type-specific defaults and drops fields that do not belong
// to the object's type.
func (o *BoardObject) Normalize() {
	if o.Color == "" {
		o.Color = DefaultObjectColor
	}

	var (
		text, font, stroke, fill, radius, points, frame, connector bool
	)
	switch o.Type {
	case ObjectTypeStickyNote:
		text = true
	case ObjectTypeRectangle:
		stroke, fill = true, true
	case ObjectTypeCircle:
		stroke, fill, radius = true, true, true
	case ObjectTypeLine:
		stroke, points = true, true
	case ObjectTypeFrame:
		frame = true
	case ObjectTypeConnector:
		stroke, points, connector = true, true, true
	case ObjectTypeText:
		text, font = true, true
	}

	if text {
		o.Content = orDefault(o.Content, "")
		o.FontSize = orDefault(o.FontSize, DefaultFontSize)
	} else {
		o.Content, o.FontSize = nil, nil
	}
	if font {
		o.FontWeight = orDefault(o.FontWeight, DefaultFontWeight)
		o.TextAlign = orDefault(o.TextAlign, DefaultTextAlign)
	} else {
		o.FontWeight, o.TextAlign = nil, nil
	}
	if stroke {
		o.StrokeColor = orDefault(o.StrokeColor, DefaultStrokeColor)
		o.StrokeWidth = orDefault(o.StrokeWidth, DefaultStrokeWidth)
	} else {
		o.StrokeColor, o.StrokeWidth = nil, nil
	}
	if fill {
		o.FillOpacity = orDefault(o.FillOpacity, DefaultFillOpacity)
	} else {
		o.FillOpacity = nil
	}
	if radius {
		o.Radius = orDefault(o.Radius, DefaultRadius)
	} else {
		o.Radius = nil
	}
	if points {
		if o.Points == nil {
			o.Points = []float64{}
		}
	} else {
		o.Points = nil
	}
	if frame {
		o.Label = orDefault(o.Label, "")
		if o.ChildIDs == nil {
			o.ChildIDs = []string{}
		}
	} else {
		o.Label, o.ChildIDs = nil, nil
	}
	if connector {
		o.SourceID = orDefault(o.SourceID, "")
		o.TargetID = orDefault(o.TargetID, "")
	} else {
		o.SourceID, o.TargetID = nil, nil
	}
}

// Clone returns a deep copy so the result can cross goroutines safely.
func (o *BoardObject) Clone() *BoardObject {
	if o == nil {
		return nil
	}
	c := *o
	c.Content = clonePtr(o.Content)
	c.FontSize = clonePtr(o.FontSize)
	c.FontWeight = clonePtr(o.FontWeight)
	c.TextAlign = clonePtr(o.TextAlign)
	c.StrokeColor = clonePtr(o.StrokeColor)
	c.StrokeWidth = clonePtr(o.StrokeWidth)
	c.FillOpacity = clonePtr(o.FillOpacity)
	c.Radius = clonePtr(o.Radius)
	c.Points = slices.Clone(o.Points)
	c.Label = clonePtr(o.Label)
	c.ChildIDs = slices.Clone(o.ChildIDs)
	c.SourceID = clonePtr(o.SourceID)
	c.TargetID = clonePtr(o.TargetID)
	return &c
}

// objectProps is the persisted form of the type-specific fields.
type objectProps struct {
	Content     *string   `json:"content,omitempty"`
	FontSize    *float64  `json:"fontSize,omitempty"`
	FontWeight  *string   `json:"fontWeight,omitempty"`
	TextAlign   *string   `json:"textAlign,omitempty"`
	StrokeColor *string   `json:"strokeColor,omitempty"`
	StrokeWidth *float64  `json:"strokeWidth,omitempty"`
	FillOpacity *float64  `json:"fillOpacity,omitempty"`
	Radius      *float64  `json:"radius,omitempty"`
	Points      []float64 `json:"points,omitempty"`
	Label       *string   `json:"label,omitempty"`
	ChildIDs    []string  `json:"childIds,omitempty"`
	SourceID    *string   `json:"sourceId,omitempty"`
	TargetID    *string   `json:"targetId,omitempty"`
}

// MarshalProps encodes the type-specific fields for a storage column.
func (o *BoardObject) MarshalProps() ([]byte, error) {
	b, err := json.Marshal(objectProps{
		Content: o.Content, FontSize: o.FontSize, FontWeight: o.FontWeight, TextAlign: o.TextAlign,
		StrokeColor: o.StrokeColor, StrokeWidth: o.StrokeWidth, FillOpacity: o.FillOpacity,
		Radius: o.Radius, Points: o.Points, Label: o.Label, ChildIDs: o.ChildIDs,
		SourceID: o.SourceID, TargetID: o.TargetID,
	})
	if err != nil {
		return nil, fmt.Errorf("domain.BoardObject.MarshalProps: %w", err)
	}
	return b, nil
}

// UnmarshalProps restores the type-specific fields and normalizes the object.
func (o *BoardObject) UnmarshalProps(data []byte) error {
	var p objectProps
	if len(data) > 0 {
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("domain.BoardObject.UnmarshalProps: %w", err)
		}
	}
	o.Content, o.FontSize, o.FontWeight, o.TextAlign = p.Content, p.FontSize, p.FontWeight, p.TextAlign
	o.StrokeColor, o.StrokeWidth, o.FillOpacity = p.StrokeColor, p.StrokeWidth, p.FillOpacity
	o.Radius, o.Points, o.Label, o.ChildIDs = p.Radius, p.Points, p.Label, p.ChildIDs
	o.SourceID, o.TargetID = p.SourceID, p.TargetID
	o.Normalize()
	return nil
}

// ObjectDelta is a partial-field patch. Only non-nil fields are applied.
type ObjectDelta struct {
	X           *float64   `json:"x,omitempty"`
	Y           *float64   `json:"y,omitempty"`
	Width       *float64   `json:"width,omitempty"`
	Height      *float64   `json:"height,omitempty"`
	Rotation    *float64   `json:"rotation,omitempty"`
	ZIndex      *int       `json:"zIndex,omitempty"`
	Color       *string    `json:"color,omitempty"`
	Content     *string    `json:"content,omitempty"`
	FontSize    *float64   `json:"fontSize,omitempty"`
	StrokeColor *string    `json:"strokeColor,omitempty"`
	StrokeWidth *float64   `json:"strokeWidth,omitempty"`
	FillOpacity *float64   `json:"fillOpacity,omitempty"`
	Label       *string    `json:"label,omitempty"`
	Points      *[]float64 `json:"points,omitempty"`
	Radius      *float64   `json:"radius,omitempty"`
}

// MoveDelta is the position-only patch produced by object:move.
func MoveDelta(x, y float64) ObjectDelta {
	return ObjectDelta{X: &x, Y: &y}
}

// IsEmpty reports whether the delta changes nothing.
func (d ObjectDelta) IsEmpty() bool {
	return d == ObjectDelta{}
}

// ApplyTo writes the set fields onto o and re-normalizes it.
func (d ObjectDelta) ApplyTo(o *BoardObject) {
	setIf(&o.X, d.X)
	setIf(&o.Y, d.Y)
	setIf(&o.Width, d.Width)
	setIf(&o.Height, d.Height)
	setIf(&o.Rotation, d.Rotation)
	setIf(&o.ZIndex, d.ZIndex)
	setIf(&o.Color, d.Color)
	if d.Content != nil {
		o.Content = clonePtr(d.Content)
	}
	if d.FontSize != nil {
		o.FontSize = clonePtr(d.FontSize)
	}
	if d.StrokeColor != nil {
		o.StrokeColor = clonePtr(d.StrokeColor)
	}
	if d.StrokeWidth != nil {
		o.StrokeWidth = clonePtr(d.StrokeWidth)
	}
	if d.FillOpacity != nil {
		o.FillOpacity = clonePtr(d.FillOpacity)
	}
	if d.Label != nil {
		o.Label = clonePtr(d.Label)
	}
	if d.Points != nil {
		o.Points = slices.Clone(*d.Points)
		if o.Points == nil {
			o.Points = []float64{}
		}
	}
	if d.Radius != nil {
		o.Radius = clonePtr(d.Radius)
	}
	o.Normalize()
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func orDefault[T any](p *T, def T) *T {
	if p != nil {
		return p
	}
	return &def
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
