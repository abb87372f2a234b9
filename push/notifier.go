package push

import (
	"github.com/kisschan/monachat-like/chat"
	"github.com/kisschan/monachat-like/internal/log"
	"github.com/kisschan/monachat-like/live"
)

// Notifier translates broadcast-state changes into push frames, applying
// the ignore relation per viewer.
type Notifier struct {
	broadcaster Broadcaster
	directory   chat.Directory
	logger      *log.Logger
}

var _ live.StatusNotifier = (*Notifier)(nil)

func NewNotifier(b Broadcaster, d chat.Directory, logger *log.Logger) *Notifier {
	return &Notifier{
		broadcaster: b,
		directory:   d,
		logger:      logger,
	}
}

// RoomStatusChanged pushes a status event to the room. Viewers who may
// not observe the publisher receive only the room identifier, enough to
// refetch, not enough to learn who is broadcasting.
func (n *Notifier) RoomStatusChanged(room string, st live.StatusView) {
	n.broadcaster.BroadcastRoom(room, func(accountID string) (Message, bool) {
		if st.PublisherID == "" || n.directory.CanSee(accountID, st.PublisherID) {
			return Message{Event: EventLiveStatusChange, Data: st}, true
		}
		return Message{
			Event: EventLiveStatusChange,
			Data:  RedactedStatusPayload{Room: room},
		}, true
	})
	n.logger.Debug("Pushed room status", log.String("room", room))
}

// RoomsChanged tells every endpoint to refetch the live room list. The
// list surface filters per viewer on read, so the signal itself carries
// nothing to hide.
func (n *Notifier) RoomsChanged() {
	n.broadcaster.BroadcastAll(Message{
		Event: EventLiveRoomsChanged,
		Data:  InvalidatePayload{Type: "invalidate"},
	})
}
