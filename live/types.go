package live

import (
	"time"
)

// Phase is the session state-machine position for a room.
type Phase string

const (
	// PhaseIdle - nobody holds the publisher lock
	PhaseIdle Phase = "idle"
	// PhaseStarting - a publisher holds the lock but the media edge has not
	// confirmed any media session yet
	PhaseStarting Phase = "starting"
	// PhaseLive - the edge confirmed the first media session
	PhaseLive Phase = "live"
)

// Session is the per-room broadcast session state. The zero value is a valid
// idle session.
type Session struct {
	PublisherID string
	StreamKey   string
	AudioOnly   bool
	Phase       Phase
	// StartedAt is set only on the transition into live.
	StartedAt time.Time
	// LastLockAt is refreshed whenever the room enters starting; it drives
	// TTL reclamation only, it is not a liveness heartbeat.
	LastLockAt time.Time
}

// Entry pairs a room identifier with its session state.
type Entry struct {
	Room    string
	Session Session
}

// Registry holds the authoritative broadcast session state, one record per
// room. Records are created lazily and reset to idle defaults, never removed.
// Every operation is atomic with respect to the room map.
type Registry interface {
	// Get returns the session for a room, creating an idle record if absent.
	Get(room string) Session

	// SetStarting acquires or refreshes the publisher lock for publisherID
	// and moves the room into starting. If the room is held by a different
	// identity the call fails with ErrAlreadyLive and no state changes.
	// A streamKey may be supplied for deterministic tests; when empty, the
	// existing key is reused if publisherID already holds the lock,
	// otherwise a fresh random key is minted.
	SetStarting(room, publisherID string, audioOnly bool, streamKey string) (Session, error)

	// MarkLive transitions starting -> live. Returns false without mutating
	// anything when the session is already live or was cleared out from
	// under the caller (duplicate edge callbacks are expected).
	MarkLive(room string) (Session, bool)

	// Clear unconditionally resets a room to idle defaults.
	Clear(room string)

	// ClearIfPublisher resets a room to idle only while accountID still
	// holds the lock, checked and applied under one lock acquisition so a
	// stale release can never wipe a lock acquired in between. An idle
	// room is a no-op. Returns the session as it was before the reset.
	ClearIfPublisher(room, accountID string) (Session, error)

	// ClearIfExpiredStarting reclaims a room stuck in starting whose lock
	// timestamp is older than ttl (or missing); reports whether it cleared.
	ClearIfExpiredStarting(room string, ttl time.Duration) bool

	// SweepExpiredStarting applies ClearIfExpiredStarting to every room and
	// returns the rooms that were reclaimed.
	SweepExpiredStarting(ttl time.Duration) []string

	// FindByStreamKey locates the room currently bound to a stream key.
	FindByStreamKey(key string) (string, Session, bool)

	// ListLiveEntries returns only rooms in the live phase, sorted by room
	// identifier so clients can diff deterministically.
	ListLiveEntries() []Entry
}

// StatusView is the public shape of a room's broadcast status.
type StatusView struct {
	Room          string `json:"room"`
	IsLive        bool   `json:"isLive"`
	PublisherID   string `json:"publisherId,omitempty"`
	PublisherName string `json:"publisherName,omitempty"`
	AudioOnly     bool   `json:"audioOnly"`
}

// StatusNotifier fans broadcast-state changes out to connected viewers.
// Implementations decide per viewer whether the full payload is visible.
type StatusNotifier interface {
	// RoomStatusChanged notifies members of room. When st.PublisherID is
	// empty (a reclaimed or stopped session) there is no identity to
	// filter on and the payload goes to every member as-is.
	RoomStatusChanged(room string, st StatusView)

	// RoomsChanged signals every connected endpoint to refetch the live
	// room list.
	RoomsChanged()
}
