package domain

import "time"

// Cursor is the last reported pointer position of a connected user.
type Cursor struct {
	UserID    string
	UserName  string
	Position  Point
	UpdatedAt time.Time
}
