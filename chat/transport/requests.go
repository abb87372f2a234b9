package transport

// JoinBody is the request body for entering the chat.
type JoinBody struct {
	Name string `json:"name" binding:"required,max=64"`
	Room string `json:"room" binding:"required,roomid"`
}

// MoveBody moves the account to another room.
type MoveBody struct {
	Room string `json:"room" binding:"required,roomid"`
}

// IgnoreBody toggles ignoring another identity hash.
type IgnoreBody struct {
	IHash string `json:"ihash" binding:"required"`
	On    *bool  `json:"on" binding:"required"`
}
