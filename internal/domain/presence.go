package domain

import "time"

// Identity is the resolved caller of a connection or request.
type Identity struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
}

type Cursor struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// UserPresence is the ephemeral roster entry for a user in a room. It is
// never persisted.
type UserPresence struct {
	UserID   string    `json:"userId"`
	Name     string    `json:"name"`
	Avatar   string    `json:"avatar"`
	Color    string    `json:"color"`
	Cursor   *Cursor   `json:"cursor"`
	LastSeen time.Time `json:"lastSeen"`
}

// Palette is the fixed set of presence colors.
var Palette = []string{
	"#2563eb",
	"#dc2626",
	"#16a34a",
	"#ca8a04",
	"#9333ea",
	"#0891b2",
	"#ea580c",
	"#be185d",
}

// ColorForUser picks a palette entry from a 32-bit string hash of userID, so
// a user keeps one color across sessions and servers.
func ColorForUser(userID string) string {
	var h int32
	for _, u := range utf16Units(userID) {
		h = (h << 5) - h + int32(u)
	}
	idx := int64(h)
	if idx < 0 {
		idx = -idx
	}
	return Palette[idx%int64(len(Palette))]
}

func utf16Units(s string) []uint16 {
	out := make([]uint16, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 0x10000:
			r -= 0x10000
			out = append(out, uint16(0xD800+(r>>10)), uint16(0xDC00+(r&0x3FF)))
		default:
			out = append(out, uint16(r))
		}
	}
	return out
}
