package registry

import (
	"sort"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/kisschan/monachat-like/internal/cryptoutil"
	"github.com/kisschan/monachat-like/internal/errors"
	"github.com/kisschan/monachat-like/internal/log"
	intsync "github.com/kisschan/monachat-like/internal/sync"
	"github.com/kisschan/monachat-like/live"
)

const streamKeyBytes = 16

// record is the mutable per-room state. Only ever touched under the map lock.
type record struct {
	publisherID string
	streamKey   string
	audioOnly   bool
	phase       live.Phase
	startedAt   time.Time
	lastLockAt  time.Time
}

func (r *record) reset() {
	*r = record{phase: live.PhaseIdle}
}

func (r *record) snapshot() live.Session {
	return live.Session{
		PublisherID: r.publisherID,
		StreamKey:   r.streamKey,
		AudioOnly:   r.audioOnly,
		Phase:       r.phase,
		StartedAt:   r.startedAt,
		LastLockAt:  r.lastLockAt,
	}
}

type registryImpl struct {
	rooms  *intsync.Map[string, *record]
	clock  clockwork.Clock
	logger *log.Logger
}

func New(logger *log.Logger) live.Registry {
	return NewWithClock(logger, clockwork.NewRealClock())
}

func NewWithClock(logger *log.Logger, clock clockwork.Clock) live.Registry {
	return &registryImpl{
		rooms:  intsync.NewMap[string, *record](),
		clock:  clock,
		logger: logger,
	}
}

// ensure returns the record for a room, creating an idle one if absent.
// Must be called with the map lock held.
func ensure(view intsync.View[string, *record], room string) *record {
	rec, ok := view.Get(room)
	if ok {
		return rec
	}
	rec = &record{phase: live.PhaseIdle}
	view.Set(room, rec)
	return rec
}

func (r *registryImpl) Get(room string) live.Session {
	var st live.Session
	r.rooms.WithLock(func(view intsync.View[string, *record]) {
		st = ensure(view, room).snapshot()
	})
	return st
}

func (r *registryImpl) SetStarting(room, publisherID string, audioOnly bool, streamKey string) (live.Session, error) {
	var st live.Session
	var opErr error

	r.rooms.WithLock(func(view intsync.View[string, *record]) {
		rec := ensure(view, room)

		// the check and the transition happen under one lock, so two
		// racing starts on an idle room produce exactly one winner
		if rec.phase != live.PhaseIdle && rec.publisherID != publisherID {
			opErr = errors.Newf(live.ErrAlreadyLive,
				"room %s is locked by another publisher", room)
			return
		}

		key := streamKey
		if key == "" {
			if rec.publisherID == publisherID && rec.streamKey != "" {
				// same identity re-issuing start mid-handshake keeps
				// its key so an in-flight edge negotiation stays valid
				key = rec.streamKey
			} else {
				var err error
				key, err = cryptoutil.RandomHex(streamKeyBytes)
				if err != nil {
					opErr = errors.Wrap(live.ErrMisconfigured, err, "failed to mint stream key")
					return
				}
			}
		}

		rec.publisherID = publisherID
		rec.streamKey = key
		rec.audioOnly = audioOnly
		rec.phase = live.PhaseStarting
		rec.lastLockAt = r.clock.Now()
		rec.startedAt = time.Time{}
		st = rec.snapshot()
	})

	if opErr != nil {
		return live.Session{}, opErr
	}

	r.logger.Info("Publisher lock acquired",
		log.String("room", room),
		log.String("publisherId", publisherID),
		log.Bool("audioOnly", audioOnly))
	return st, nil
}

func (r *registryImpl) MarkLive(room string) (live.Session, bool) {
	var st live.Session
	ok := false

	r.rooms.WithLock(func(view intsync.View[string, *record]) {
		rec, found := view.Get(room)
		if !found {
			return
		}
		// no-op on duplicate edge callbacks or a session the sweeper
		// cleared out from under the edge
		if rec.phase != live.PhaseStarting || rec.publisherID == "" || rec.streamKey == "" {
			return
		}
		rec.phase = live.PhaseLive
		rec.startedAt = r.clock.Now()
		rec.lastLockAt = r.clock.Now()
		st = rec.snapshot()
		ok = true
	})

	if ok {
		r.logger.Info("Room went live",
			log.String("room", room),
			log.String("publisherId", st.PublisherID))
	}
	return st, ok
}

func (r *registryImpl) Clear(room string) {
	r.rooms.WithLock(func(view intsync.View[string, *record]) {
		ensure(view, room).reset()
	})
	r.logger.Debug("Room session cleared", log.String("room", room))
}

func (r *registryImpl) ClearIfPublisher(room, accountID string) (live.Session, error) {
	var prev live.Session
	var opErr error

	r.rooms.WithLock(func(view intsync.View[string, *record]) {
		rec := ensure(view, room)
		if rec.phase == live.PhaseIdle {
			prev = rec.snapshot()
			return
		}
		// the holder check and the reset share the lock, so a release
		// racing a reclaim-and-takeover cannot hit the new holder
		if rec.publisherID != accountID {
			opErr = errors.Newf(live.ErrNotPublisher,
				"account %s does not hold the lock", accountID)
			return
		}
		prev = rec.snapshot()
		rec.reset()
	})

	if opErr != nil {
		return live.Session{}, opErr
	}
	if prev.Phase != live.PhaseIdle {
		r.logger.Info("Publisher lock released",
			log.String("room", room),
			log.String("publisherId", accountID))
	}
	return prev, nil
}

func (r *registryImpl) ClearIfExpiredStarting(room string, ttl time.Duration) bool {
	cleared := false
	r.rooms.WithLock(func(view intsync.View[string, *record]) {
		rec, found := view.Get(room)
		if !found {
			return
		}
		cleared = clearIfExpired(rec, ttl, r.clock.Now())
	})
	return cleared
}

func (r *registryImpl) SweepExpiredStarting(ttl time.Duration) []string {
	var reclaimed []string
	now := r.clock.Now()

	r.rooms.WithLock(func(view intsync.View[string, *record]) {
		view.Range(func(room string, rec *record) bool {
			if clearIfExpired(rec, ttl, now) {
				reclaimed = append(reclaimed, room)
			}
			return true
		})
	})

	sort.Strings(reclaimed)
	return reclaimed
}

// clearIfExpired applies the reclamation rule under the map lock: the phase
// is re-checked here so a markLive that completed after the sweep began is
// never clobbered.
func clearIfExpired(rec *record, ttl time.Duration, now time.Time) bool {
	if rec.phase != live.PhaseStarting {
		return false
	}
	if !rec.lastLockAt.IsZero() && now.Sub(rec.lastLockAt) <= ttl {
		return false
	}
	rec.reset()
	return true
}

func (r *registryImpl) FindByStreamKey(key string) (string, live.Session, bool) {
	var room string
	var st live.Session
	found := false

	if key == "" {
		return "", live.Session{}, false
	}

	r.rooms.WithLock(func(view intsync.View[string, *record]) {
		view.Range(func(id string, rec *record) bool {
			if rec.streamKey == key {
				room = id
				st = rec.snapshot()
				found = true
				return false
			}
			return true
		})
	})
	return room, st, found
}

func (r *registryImpl) ListLiveEntries() []live.Entry {
	var entries []live.Entry

	r.rooms.WithLock(func(view intsync.View[string, *record]) {
		view.Range(func(room string, rec *record) bool {
			if rec.phase == live.PhaseLive {
				entries = append(entries, live.Entry{Room: room, Session: rec.snapshot()})
			}
			return true
		})
	})

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Room < entries[j].Room
	})
	return entries
}
