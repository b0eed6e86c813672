package relay

import "errors"

var (
	ErrNotJoined         = errors.New("sender has not joined a room")
	ErrClassroomMismatch = errors.New("payload classroom does not match connection binding")
)
