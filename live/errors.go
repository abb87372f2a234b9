package live

import "github.com/kisschan/monachat-like/internal/errors"

const (
	// ErrAlreadyLive - another identity holds the room's publisher lock
	ErrAlreadyLive errors.Code = "already-live"
	// ErrNotPublisher - stop requested by someone who is not the publisher
	ErrNotPublisher errors.Code = "not-publisher"
	// ErrNoLiveLock - webrtc config requested while the room is idle
	ErrNoLiveLock errors.Code = "no-live-lock"
	// ErrNotFound - the broadcast is not visible to the requester
	ErrNotFound errors.Code = "not_found"
	// ErrDisabled - live streaming is not configured on this deployment
	ErrDisabled errors.Code = "live-disabled"
	// ErrMisconfigured - the token signing secret fails the startup checks
	ErrMisconfigured errors.Code = "misconfigured"
)
