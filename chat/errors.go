package chat

import "github.com/kisschan/monachat-like/internal/errors"

const (
	// ErrAccountNotFound - the account ID does not resolve
	ErrAccountNotFound errors.Code = "account-not-found"
	// ErrInvalidArgument - a join or update carried an unusable value
	ErrInvalidArgument errors.Code = "invalid-argument"
)
