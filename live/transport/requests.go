package transport

// RoomURI binds the room path parameter. Room identifiers may contain
// slashes; clients percent-encode them and the engine keeps the encoded
// form in one segment.
type RoomURI struct {
	Room string `uri:"room" binding:"required,roomid"`
}

// StartBody is the request body for acquiring the publisher lock.
type StartBody struct {
	AudioOnly bool `json:"audioOnly"`
}
