package protocol

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/gosuda/boardsync/internal/domain"
)

// Command is a validated client to server event. The concrete types are the
// closed set below; the same structs are the payloads a client emits.
type Command interface {
	Event() string
	isCommand()
}

type JoinBoard struct {
	BoardID     string `json:"boardId"`
	DisplayName string `json:"displayName,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

type LeaveBoard struct {
	BoardID string `json:"boardId"`
}

type MoveCursor struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Name  string  `json:"name,omitempty"`
	Color string  `json:"color,omitempty"`
}

// CreateObject carries a normalized object. Object.ID is empty unless the
// client supplied one; Object.BoardID always equals BoardID.
type CreateObject struct {
	BoardID string              `json:"boardId"`
	Object  *domain.BoardObject `json:"object"`
}

type MoveObject struct {
	BoardID  string  `json:"boardId"`
	ObjectID string  `json:"objectId"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

type UpdateObject struct {
	BoardID  string             `json:"boardId"`
	ObjectID string             `json:"objectId"`
	Delta    domain.ObjectDelta `json:"delta"`
}

type DeleteObject struct {
	BoardID  string `json:"boardId"`
	ObjectID string `json:"objectId"`
}

func (JoinBoard) Event() string    { return EventBoardJoin }
func (LeaveBoard) Event() string   { return EventBoardLeave }
func (MoveCursor) Event() string   { return EventCursorMove }
func (CreateObject) Event() string { return EventObjectCreate }
func (MoveObject) Event() string   { return EventObjectMove }
func (UpdateObject) Event() string { return EventObjectUpdate }
func (DeleteObject) Event() string { return EventObjectDelete }

func (JoinBoard) isCommand()    {}
func (LeaveBoard) isCommand()   {}
func (MoveCursor) isCommand()   {}
func (CreateObject) isCommand() {}
func (MoveObject) isCommand()   {}
func (UpdateObject) isCommand() {}
func (DeleteObject) isCommand() {}

// Parse checks an inbound envelope against the contract of its event and
// returns the typed command. Unknown events, malformed JSON and constraint
// violations yield a *ValidationError. Unknown keys are ignored.
func Parse(env Envelope) (Command, error) {
	switch env.Event {
	case EventBoardJoin:
		return parseJoin(env.Data)
	case EventBoardLeave:
		return parseLeave(env.Data)
	case EventCursorMove:
		return parseCursor(env.Data)
	case EventObjectCreate:
		return parseCreate(env.Data)
	case EventObjectMove:
		return parseMove(env.Data)
	case EventObjectUpdate:
		return parseUpdate(env.Data)
	case EventObjectDelete:
		return parseDelete(env.Data)
	default:
		return nil, &ValidationError{Event: env.Event, Reason: "unknown event"}
	}
}

func decode(event string, data json.RawMessage, v any) error {
	if len(data) == 0 {
		return &ValidationError{Event: event, Reason: "missing payload"}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &ValidationError{Event: event, Reason: err.Error()}
	}
	return nil
}

func parseJoin(data json.RawMessage) (Command, error) {
	var in struct {
		BoardID     *string `json:"boardId"`
		DisplayName *string `json:"displayName"`
		AvatarURL   *string `json:"avatarUrl"`
	}
	if err := decode(EventBoardJoin, data, &in); err != nil {
		return nil, err
	}
	f := fields{event: EventBoardJoin}
	cmd := JoinBoard{
		BoardID:     f.id("boardId", in.BoardID),
		DisplayName: f.maxLen("displayName", in.DisplayName, MaxDisplayNameLen),
		AvatarURL:   f.maxLen("avatarUrl", in.AvatarURL, MaxAvatarURLLen),
	}
	if err := f.result(); err != nil {
		return nil, err
	}
	return cmd, nil
}

func parseLeave(data json.RawMessage) (Command, error) {
	var in struct {
		BoardID *string `json:"boardId"`
	}
	if err := decode(EventBoardLeave, data, &in); err != nil {
		return nil, err
	}
	f := fields{event: EventBoardLeave}
	cmd := LeaveBoard{BoardID: f.id("boardId", in.BoardID)}
	if err := f.result(); err != nil {
		return nil, err
	}
	return cmd, nil
}

func parseCursor(data json.RawMessage) (Command, error) {
	var in struct {
		X     *float64 `json:"x"`
		Y     *float64 `json:"y"`
		Name  *string  `json:"name"`
		Color *string  `json:"color"`
	}
	if err := decode(EventCursorMove, data, &in); err != nil {
		return nil, err
	}
	f := fields{event: EventCursorMove}
	cmd := MoveCursor{
		X:     f.num("x", in.X),
		Y:     f.num("y", in.Y),
		Name:  f.maxLen("name", in.Name, MaxDisplayNameLen),
		Color: f.maxLen("color", in.Color, 64),
	}
	if err := f.result(); err != nil {
		return nil, err
	}
	return cmd, nil
}

type rawObject struct {
	ID          *string   `json:"id"`
	BoardID     *string   `json:"boardId"`
	Type        *string   `json:"type"`
	X           *float64  `json:"x"`
	Y           *float64  `json:"y"`
	Width       *float64  `json:"width"`
	Height      *float64  `json:"height"`
	Rotation    *float64  `json:"rotation"`
	ZIndex      *float64  `json:"zIndex"`
	Color       *string   `json:"color"`
	Content     *string   `json:"content"`
	FontSize    *float64  `json:"fontSize"`
	FontWeight  *string   `json:"fontWeight"`
	TextAlign   *string   `json:"textAlign"`
	StrokeColor *string   `json:"strokeColor"`
	StrokeWidth *float64  `json:"strokeWidth"`
	FillOpacity *float64  `json:"fillOpacity"`
	Radius      *float64  `json:"radius"`
	Points      []float64 `json:"points"`
	Label       *string   `json:"label"`
	ChildIDs    []string  `json:"childIds"`
	SourceID    *string   `json:"sourceId"`
	TargetID    *string   `json:"targetId"`
}

func parseCreate(data json.RawMessage) (Command, error) {
	var in struct {
		BoardID *string    `json:"boardId"`
		Object  *rawObject `json:"object"`
	}
	if err := decode(EventObjectCreate, data, &in); err != nil {
		return nil, err
	}
	f := fields{event: EventObjectCreate}
	boardID := f.id("boardId", in.BoardID)
	if in.Object == nil {
		f.fail("object", "required")
		return nil, f.result()
	}
	raw := in.Object

	obj := &domain.BoardObject{BoardID: boardID}
	if raw.ID != nil {
		// Canonical 36-character form only, so the echo matches the
		// client's optimistic key byte for byte.
		if _, err := uuid.Parse(*raw.ID); err != nil || len(*raw.ID) != 36 {
			f.fail("object.id", "must be a UUID")
		}
		obj.ID = *raw.ID
	}
	if raw.BoardID != nil && *raw.BoardID != boardID {
		f.fail("object.boardId", "does not match boardId")
	}
	obj.Type = domain.ObjectType(f.id("object.type", raw.Type))
	if raw.Type != nil && !obj.Type.Valid() {
		f.fail("object.type", "unknown object type")
	}
	obj.X = f.num("object.x", raw.X)
	obj.Y = f.num("object.y", raw.Y)
	obj.Width = f.positive("object.width", raw.Width)
	obj.Height = f.positive("object.height", raw.Height)
	if r := f.optNum("object.rotation", raw.Rotation, nil); r != nil {
		obj.Rotation = *r
	}
	if z := f.optInt("object.zIndex", raw.ZIndex); z != nil {
		obj.ZIndex = *z
	}
	if raw.Color != nil {
		obj.Color = *raw.Color
	}

	obj.Content = raw.Content
	obj.FontSize = f.optNum("object.fontSize", raw.FontSize, gtZero)
	obj.FontWeight = f.oneOf("object.fontWeight", raw.FontWeight, "normal", "bold")
	obj.TextAlign = f.oneOf("object.textAlign", raw.TextAlign, "left", "center", "right")
	obj.StrokeColor = raw.StrokeColor
	obj.StrokeWidth = f.optNum("object.strokeWidth", raw.StrokeWidth, nonNegative)
	obj.FillOpacity = f.optNum("object.fillOpacity", raw.FillOpacity, unitInterval)
	obj.Radius = f.optNum("object.radius", raw.Radius, gtZero)
	obj.Points = f.points("object.points", raw.Points)
	obj.Label = raw.Label
	obj.ChildIDs = raw.ChildIDs
	obj.SourceID = raw.SourceID
	obj.TargetID = raw.TargetID

	if err := f.result(); err != nil {
		return nil, err
	}
	obj.Normalize()
	return CreateObject{BoardID: boardID, Object: obj}, nil
}

func parseMove(data json.RawMessage) (Command, error) {
	var in struct {
		BoardID  *string  `json:"boardId"`
		ObjectID *string  `json:"objectId"`
		X        *float64 `json:"x"`
		Y        *float64 `json:"y"`
	}
	if err := decode(EventObjectMove, data, &in); err != nil {
		return nil, err
	}
	f := fields{event: EventObjectMove}
	cmd := MoveObject{
		BoardID:  f.id("boardId", in.BoardID),
		ObjectID: f.id("objectId", in.ObjectID),
		X:        f.num("x", in.X),
		Y:        f.num("y", in.Y),
	}
	if err := f.result(); err != nil {
		return nil, err
	}
	return cmd, nil
}

type rawDelta struct {
	X           *float64   `json:"x"`
	Y           *float64   `json:"y"`
	Width       *float64   `json:"width"`
	Height      *float64   `json:"height"`
	Rotation    *float64   `json:"rotation"`
	ZIndex      *float64   `json:"zIndex"`
	Color       *string    `json:"color"`
	Content     *string    `json:"content"`
	FontSize    *float64   `json:"fontSize"`
	StrokeColor *string    `json:"strokeColor"`
	StrokeWidth *float64   `json:"strokeWidth"`
	FillOpacity *float64   `json:"fillOpacity"`
	Label       *string    `json:"label"`
	Points      *[]float64 `json:"points"`
	Radius      *float64   `json:"radius"`
}

func parseUpdate(data json.RawMessage) (Command, error) {
	var in struct {
		BoardID  *string   `json:"boardId"`
		ObjectID *string   `json:"objectId"`
		Delta    *rawDelta `json:"delta"`
	}
	if err := decode(EventObjectUpdate, data, &in); err != nil {
		return nil, err
	}
	f := fields{event: EventObjectUpdate}
	cmd := UpdateObject{
		BoardID:  f.id("boardId", in.BoardID),
		ObjectID: f.id("objectId", in.ObjectID),
	}
	if in.Delta == nil {
		f.fail("delta", "required")
		return nil, f.result()
	}
	raw := in.Delta
	d := domain.ObjectDelta{
		X:           f.optNum("delta.x", raw.X, nil),
		Y:           f.optNum("delta.y", raw.Y, nil),
		Width:       f.optNum("delta.width", raw.Width, gtZero),
		Height:      f.optNum("delta.height", raw.Height, gtZero),
		Rotation:    f.optNum("delta.rotation", raw.Rotation, nil),
		ZIndex:      f.optInt("delta.zIndex", raw.ZIndex),
		Color:       raw.Color,
		Content:     raw.Content,
		FontSize:    f.optNum("delta.fontSize", raw.FontSize, gtZero),
		StrokeColor: raw.StrokeColor,
		StrokeWidth: f.optNum("delta.strokeWidth", raw.StrokeWidth, nonNegative),
		FillOpacity: f.optNum("delta.fillOpacity", raw.FillOpacity, unitInterval),
		Label:       raw.Label,
		Radius:      f.optNum("delta.radius", raw.Radius, gtZero),
	}
	if raw.Points != nil {
		pts := f.points("delta.points", *raw.Points)
		d.Points = &pts
	}
	if d.IsEmpty() {
		f.fail("delta", "no fields to update")
	}
	if err := f.result(); err != nil {
		return nil, err
	}
	cmd.Delta = d
	return cmd, nil
}

func parseDelete(data json.RawMessage) (Command, error) {
	var in struct {
		BoardID  *string `json:"boardId"`
		ObjectID *string `json:"objectId"`
	}
	if err := decode(EventObjectDelete, data, &in); err != nil {
		return nil, err
	}
	f := fields{event: EventObjectDelete}
	cmd := DeleteObject{
		BoardID:  f.id("boardId", in.BoardID),
		ObjectID: f.id("objectId", in.ObjectID),
	}
	if err := f.result(); err != nil {
		return nil, err
	}
	return cmd, nil
}
