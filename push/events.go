package push

// Event names pushed over the realtime transport. The set is closed,
// clients switch on the event string.
const (
	// EventLiveStatusChange is room-scoped and filtered per viewer.
	EventLiveStatusChange = "live_status_change"
	// EventLiveRoomsChanged tells every endpoint to refetch the live
	// room list. It carries no publisher identity so it is never
	// filtered.
	EventLiveRoomsChanged = "live_rooms_changed"
)

// Message is a single push frame.
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// InvalidatePayload is the body of a list-invalidation signal.
type InvalidatePayload struct {
	Type string `json:"type"`
}

// RedactedStatusPayload is what a viewer who may not observe the
// publisher receives instead of the full status event.
type RedactedStatusPayload struct {
	Room string `json:"room"`
}
