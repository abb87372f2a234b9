package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/kisschan/monachat-like/chat"
	"github.com/kisschan/monachat-like/internal/errors"
	"github.com/kisschan/monachat-like/internal/log"
	"github.com/kisschan/monachat-like/live"
	"github.com/kisschan/monachat-like/live/token"
)

// WebRTCConfig is what a client needs to negotiate with the media edge.
// WhipURL is only present for the publisher.
type WebRTCConfig struct {
	Role      string `json:"role"`
	WhipURL   string `json:"whipUrl,omitempty"`
	WhepURL   string `json:"whepUrl"`
	ExpiresAt int64  `json:"expiresAt"`
}

// Service is the control surface over the session registry. All
// operations take the acting account so visibility can be enforced here
// rather than in the transport.
type Service interface {
	// Start acquires the publisher lock for account in room.
	Start(ctx context.Context, room, accountID string, audioOnly bool) error

	// Stop releases the lock. Only the current publisher may stop.
	Stop(ctx context.Context, room, accountID string) error

	// Status reports the room's broadcast state as seen by viewerID.
	Status(ctx context.Context, room, viewerID string) (live.StatusView, error)

	// WebRTCConfig issues signed edge URLs for viewerID.
	WebRTCConfig(ctx context.Context, room, viewerID string) (WebRTCConfig, error)

	// Rooms lists live rooms visible to viewerID, sorted by room.
	Rooms(ctx context.Context, viewerID string) []live.StatusView

	// AdmitPublish and AdmitSubscribe back the edge auth callbacks. They
	// verify the token cryptographically and then against the registry,
	// a cleared session voids its tokens immediately. A successful
	// publish admission confirms the media session and marks the room
	// live.
	AdmitPublish(ctx context.Context, streamParam, tokenParam string) (string, token.Reason)
	AdmitSubscribe(ctx context.Context, streamParam, tokenParam string) (string, token.Reason)
}

type serviceImpl struct {
	cfg       live.Config
	registry  live.Registry
	signer    token.Signer
	directory chat.Directory
	notifier  live.StatusNotifier
	clock     clockwork.Clock
	logger    *log.Logger
}

func New(
	cfg live.Config,
	registry live.Registry,
	signer token.Signer,
	directory chat.Directory,
	notifier live.StatusNotifier,
	clock clockwork.Clock,
	logger *log.Logger,
) Service {
	return &serviceImpl{
		cfg:       cfg,
		registry:  registry,
		signer:    signer,
		directory: directory,
		notifier:  notifier,
		clock:     clock,
		logger:    logger,
	}
}

func (s *serviceImpl) Start(ctx context.Context, room, accountID string, audioOnly bool) error {
	if !s.cfg.Enabled() {
		return errors.New(live.ErrDisabled, "live streaming is not configured")
	}

	startAttempts.Add(ctx, 1)
	if _, err := s.registry.SetStarting(room, accountID, audioOnly, ""); err != nil {
		if errors.Is(err, live.ErrAlreadyLive) {
			startConflicts.Add(ctx, 1)
		}
		return err
	}
	return nil
}

func (s *serviceImpl) Stop(ctx context.Context, room, accountID string) error {
	// stopping an idle room is idempotent; the holder check happens
	// inside the registry so it cannot race a reclaim-and-takeover
	prev, err := s.registry.ClearIfPublisher(room, accountID)
	if err != nil {
		return err
	}

	if prev.Phase == live.PhaseLive {
		liveSessions.Add(ctx, -1)
		// no publisher anymore, the correction goes to everyone
		s.notifier.RoomStatusChanged(room, live.StatusView{Room: room})
		s.notifier.RoomsChanged()
	}
	return nil
}

func (s *serviceImpl) Status(_ context.Context, room, viewerID string) (live.StatusView, error) {
	st := s.registry.Get(room)
	if st.Phase != live.PhaseLive {
		// starting is deliberately reported as not live, an unconfirmed
		// publish attempt must not leak
		return live.StatusView{Room: room}, nil
	}

	if !s.directory.CanSee(viewerID, st.PublisherID) {
		return live.StatusView{}, errors.Newf(live.ErrNotFound, "room %s has nothing to show", room)
	}
	return s.statusView(room, st), nil
}

func (s *serviceImpl) WebRTCConfig(ctx context.Context, room, viewerID string) (WebRTCConfig, error) {
	if !s.cfg.Enabled() {
		return WebRTCConfig{}, errors.New(live.ErrDisabled, "live streaming is not configured")
	}

	st := s.registry.Get(room)
	if st.Phase == live.PhaseIdle {
		return WebRTCConfig{}, errors.Newf(live.ErrNoLiveLock, "no session exists for room %s", room)
	}

	expiresAt := s.clock.Now().Add(s.cfg.TokenTTL)

	if st.PublisherID == viewerID {
		tokensIssued.Add(ctx, 2)
		return WebRTCConfig{
			Role:      "publisher",
			WhipURL:   edgeURL(s.cfg.WhipBase, st.StreamKey, s.signer.Sign(st.StreamKey, expiresAt, token.ScopePublish)),
			WhepURL:   edgeURL(s.cfg.WhepBase, st.StreamKey, s.signer.Sign(st.StreamKey, expiresAt, token.ScopeSubscribe)),
			ExpiresAt: expiresAt.Unix(),
		}, nil
	}

	if !s.directory.CanSee(viewerID, st.PublisherID) {
		return WebRTCConfig{}, errors.Newf(live.ErrNotFound, "room %s has nothing to show", room)
	}

	tokensIssued.Add(ctx, 1)
	return WebRTCConfig{
		Role:      "viewer",
		WhepURL:   edgeURL(s.cfg.WhepBase, st.StreamKey, s.signer.Sign(st.StreamKey, expiresAt, token.ScopeSubscribe)),
		ExpiresAt: expiresAt.Unix(),
	}, nil
}

func (s *serviceImpl) Rooms(_ context.Context, viewerID string) []live.StatusView {
	views := []live.StatusView{}
	for _, entry := range s.registry.ListLiveEntries() {
		if !s.directory.CanSee(viewerID, entry.Session.PublisherID) {
			continue
		}
		view := s.statusView(entry.Room, entry.Session)
		// the catalogue identifies publishers by display name only
		view.PublisherID = ""
		views = append(views, view)
	}
	return views
}

func (s *serviceImpl) AdmitPublish(ctx context.Context, streamParam, tokenParam string) (string, token.Reason) {
	room, reason := s.admit(streamParam, tokenParam, token.ScopePublish)
	if reason != "" {
		edgeDenied.Add(ctx, 1)
		return "", reason
	}

	edgeAdmitted.Add(ctx, 1)
	if st, ok := s.registry.MarkLive(room); ok {
		liveSessions.Add(ctx, 1)
		s.notifier.RoomStatusChanged(room, s.statusView(room, st))
		s.notifier.RoomsChanged()
	}
	return room, ""
}

func (s *serviceImpl) AdmitSubscribe(ctx context.Context, streamParam, tokenParam string) (string, token.Reason) {
	room, reason := s.admit(streamParam, tokenParam, token.ScopeSubscribe)
	if reason != "" {
		edgeDenied.Add(ctx, 1)
		return "", reason
	}
	edgeAdmitted.Add(ctx, 1)
	return room, ""
}

func (s *serviceImpl) admit(streamParam, tokenParam string, scope token.Scope) (string, token.Reason) {
	res := s.signer.Verify(streamParam, tokenParam, scope, s.clock.Now())
	if !res.OK {
		return "", res.Reason
	}

	// state-driven revocation: a valid signature over a key the registry
	// no longer binds is just as dead as a forged one, and the two are
	// indistinguishable from outside
	room, st, ok := s.registry.FindByStreamKey(streamParam)
	if !ok || st.Phase == live.PhaseIdle || st.PublisherID == "" {
		return "", token.ReasonInvalidSignature
	}
	return room, ""
}

func (s *serviceImpl) statusView(room string, st live.Session) live.StatusView {
	name := ""
	if account, ok := s.directory.AccountByID(st.PublisherID); ok {
		name = account.Name
	}
	return live.StatusView{
		Room:          room,
		IsLive:        st.Phase == live.PhaseLive,
		PublisherID:   st.PublisherID,
		PublisherName: name,
		AudioOnly:     st.AudioOnly,
	}
}

func edgeURL(base, streamKey, tok string) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%sstream=%s&token=%s",
		base, sep, url.QueryEscape(streamKey), url.QueryEscape(tok))
}
