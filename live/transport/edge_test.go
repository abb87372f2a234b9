package transport

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/suite"

	"github.com/kisschan/monachat-like/chat"
	"github.com/kisschan/monachat-like/chat/directory"
	"github.com/kisschan/monachat-like/chat/tripper"
	"github.com/kisschan/monachat-like/internal/jwt"
	"github.com/kisschan/monachat-like/internal/log"
	"github.com/kisschan/monachat-like/live"
	"github.com/kisschan/monachat-like/live/registry"
	"github.com/kisschan/monachat-like/live/service"
	"github.com/kisschan/monachat-like/live/token"
)

type EdgeTestSuite struct {
	suite.Suite
	engine   *gin.Engine
	clock    *clockwork.FakeClock
	registry live.Registry
	signer   token.Signer
	cfg      live.Config

	publisher chat.Account
}

func TestEdgeSuite(t *testing.T) {
	suite.Run(t, new(EdgeTestSuite))
}

func (s *EdgeTestSuite) SetupTest() {
	logger := log.NewTest(s.T())
	s.clock = clockwork.NewFakeClock()
	s.registry = registry.NewWithClock(logger, s.clock)

	var err error
	s.signer, err = token.New(strings.Repeat("s", token.MinSecretLen))
	s.Require().NoError(err)

	dir := directory.New(jwt.NewAuth("edge-test-secret"), tripper.New("seed"), logger)
	s.publisher, _, err = dir.Join("publisher", "/live", "203.0.113.1")
	s.Require().NoError(err)

	s.cfg = live.Config{
		WhipBase:      "https://edge.example/whip",
		WhepBase:      "https://edge.example/whep",
		EdgeSecret:    "edge-shared-secret",
		TokenTTL:      time.Minute,
		StartingTTL:   90 * time.Second,
		SweepInterval: 10 * time.Second,
	}
	svc := service.New(s.cfg, s.registry, s.signer, dir, nopNotifier{}, s.clock, logger)

	gin.SetMode(gin.TestMode)
	s.engine = gin.New()
	NewRouter(s.engine, svc, dir, s.cfg, logger)
}

func (s *EdgeTestSuite) callback(path, secret, originalURI string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if secret != "" {
		req.Header.Set(EdgeSecretHeader, secret)
	}
	if originalURI != "" {
		req.Header.Set(OriginalURIHeader, originalURI)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func (s *EdgeTestSuite) startSession() live.Session {
	_, err := s.registry.SetStarting("/live", s.publisher.ID, false, "")
	s.Require().NoError(err)
	return s.registry.Get("/live")
}

func (s *EdgeTestSuite) originalURI(streamKey string, scope token.Scope) string {
	tok := s.signer.Sign(streamKey, s.clock.Now().Add(time.Minute), scope)
	return fmt.Sprintf("/rtc/v1/whip/?app=live&stream=%s&token=%s",
		url.QueryEscape(streamKey), url.QueryEscape(tok))
}

func (s *EdgeTestSuite) TestWhipAuth_AdmitsAndMarksLive() {
	st := s.startSession()

	w := s.callback("/internal/live/whip-auth", s.cfg.EdgeSecret,
		s.originalURI(st.StreamKey, token.ScopePublish))

	s.Require().Equal(http.StatusOK, w.Code)
	s.Empty(w.Header().Get(DenyReasonHeader))
	s.Equal(live.PhaseLive, s.registry.Get("/live").Phase)
}

func (s *EdgeTestSuite) TestWhipAuth_AuthParamAlias() {
	st := s.startSession()
	tok := s.signer.Sign(st.StreamKey, s.clock.Now().Add(time.Minute), token.ScopePublish)
	uri := fmt.Sprintf("/rtc/v1/whip/?stream=%s&auth=%s",
		url.QueryEscape(st.StreamKey), url.QueryEscape(tok))

	w := s.callback("/internal/live/whip-auth", s.cfg.EdgeSecret, uri)
	s.Equal(http.StatusOK, w.Code)
}

func (s *EdgeTestSuite) TestWhepAuth_Admits() {
	st := s.startSession()
	_, ok := s.registry.MarkLive("/live")
	s.Require().True(ok)

	w := s.callback("/internal/live/whep-auth", s.cfg.EdgeSecret,
		s.originalURI(st.StreamKey, token.ScopeSubscribe))
	s.Equal(http.StatusOK, w.Code)
}

func (s *EdgeTestSuite) TestWrongSharedSecret() {
	st := s.startSession()
	uri := s.originalURI(st.StreamKey, token.ScopePublish)

	s.Equal(http.StatusForbidden, s.callback("/internal/live/whip-auth", "wrong", uri).Code)
	s.Equal(http.StatusForbidden, s.callback("/internal/live/whip-auth", "", uri).Code)
}

func (s *EdgeTestSuite) TestMissingOriginalURI() {
	w := s.callback("/internal/live/whip-auth", s.cfg.EdgeSecret, "")
	s.Equal(http.StatusForbidden, w.Code)
	s.Equal(string(token.ReasonMissingParams), w.Header().Get(DenyReasonHeader))
}

func (s *EdgeTestSuite) TestMissingParams() {
	w := s.callback("/internal/live/whip-auth", s.cfg.EdgeSecret, "/rtc/v1/whip/?app=live")
	s.Equal(http.StatusForbidden, w.Code)
	s.Equal(string(token.ReasonMissingParams), w.Header().Get(DenyReasonHeader))
}

func (s *EdgeTestSuite) TestExpiredToken_ReasonOnlyInHeader() {
	st := s.startSession()
	uri := s.originalURI(st.StreamKey, token.ScopePublish)

	s.clock.Advance(2 * time.Minute)

	w := s.callback("/internal/live/whip-auth", s.cfg.EdgeSecret, uri)
	s.Equal(http.StatusForbidden, w.Code)
	s.Equal(string(token.ReasonExpired), w.Header().Get(DenyReasonHeader))
	// the body must stay opaque
	s.Empty(w.Body.String())
}

func (s *EdgeTestSuite) TestScopeMismatchCollapsed() {
	st := s.startSession()

	w := s.callback("/internal/live/whip-auth", s.cfg.EdgeSecret,
		s.originalURI(st.StreamKey, token.ScopeSubscribe))
	s.Equal(http.StatusForbidden, w.Code)
	s.Equal(string(token.ReasonInvalidSignature), w.Header().Get(DenyReasonHeader))
}

func (s *EdgeTestSuite) TestUnknownStreamKeyCollapsed() {
	s.startSession()

	w := s.callback("/internal/live/whip-auth", s.cfg.EdgeSecret,
		s.originalURI("some-other-key", token.ScopePublish))
	s.Equal(http.StatusForbidden, w.Code)
	s.Equal(string(token.ReasonInvalidSignature), w.Header().Get(DenyReasonHeader))
}

func (s *EdgeTestSuite) TestStoppedSessionVoidsToken() {
	st := s.startSession()
	uri := s.originalURI(st.StreamKey, token.ScopePublish)

	s.registry.Clear("/live")

	w := s.callback("/internal/live/whip-auth", s.cfg.EdgeSecret, uri)
	s.Equal(http.StatusForbidden, w.Code)
	s.Equal(string(token.ReasonInvalidSignature), w.Header().Get(DenyReasonHeader))
}
