package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kisschan/monachat-like/internal/errors"
	"github.com/kisschan/monachat-like/live"
)

// Scope is the class of media operation a stream token authorizes.
type Scope string

const (
	// ScopePublish authorizes ingest (the room's publisher).
	ScopePublish Scope = "publish"
	// ScopeSubscribe authorizes egest (a viewer).
	ScopeSubscribe Scope = "subscribe"
)

// MinSecretLen is the minimum accepted signing secret length. Anything
// shorter is a deployment bug, not a runtime condition.
const MinSecretLen = 32

// Reason classifies a failed verification.
type Reason string

const (
	ReasonMissingParams    Reason = "missing-params"
	ReasonBadFormat        Reason = "bad-format"
	ReasonExpired          Reason = "expired"
	ReasonInvalidSignature Reason = "invalid-signature"
)

// VerifyResult reports the outcome of a token check. Reason is empty on
// success.
type VerifyResult struct {
	OK     bool
	Reason Reason
}

// Signer signs and verifies stream tokens. Tokens are self-contained; the
// signature binds scope, stream key and expiry, so verification is a pure
// function of the secret and the wall clock. It does not confirm that the
// session is still active, callers needing revocation must consult the
// registry by stream key.
type Signer interface {
	// Sign issues a token for streamKey that expires at expiresAt.
	Sign(streamKey string, expiresAt time.Time, scope Scope) string

	// Verify checks a stream/token query-parameter pair against the
	// expected scope at time now.
	Verify(streamParam, tokenParam string, scope Scope, now time.Time) VerifyResult
}

type signerImpl struct {
	secret []byte
}

// New builds a Signer. The secret length is checked here so a
// misconfigured deployment fails at startup rather than when the first
// publisher connects.
func New(secret string) (Signer, error) {
	if len(secret) < MinSecretLen {
		return nil, errors.Newf(live.ErrMisconfigured,
			"stream token secret must be at least %d bytes", MinSecretLen)
	}
	return &signerImpl{secret: []byte(secret)}, nil
}

func (s *signerImpl) mac(scope Scope, streamKey string, exp int64) string {
	h := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(h, "%s:%s:%d", scope, streamKey, exp)
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

// Sign produces a token of the form "scope:mac.exp" with exp in unix
// seconds and mac base64url encoded without padding.
func (s *signerImpl) Sign(streamKey string, expiresAt time.Time, scope Scope) string {
	exp := expiresAt.Unix()
	return fmt.Sprintf("%s:%s.%d", scope, s.mac(scope, streamKey, exp), exp)
}

func (s *signerImpl) Verify(streamParam, tokenParam string, scope Scope, now time.Time) VerifyResult {
	if streamParam == "" || tokenParam == "" {
		return VerifyResult{Reason: ReasonMissingParams}
	}

	dot := strings.LastIndex(tokenParam, ".")
	if dot <= 0 {
		return VerifyResult{Reason: ReasonBadFormat}
	}
	left := tokenParam[:dot]
	exp, err := strconv.ParseInt(tokenParam[dot+1:], 10, 64)
	if err != nil || exp <= 0 {
		return VerifyResult{Reason: ReasonBadFormat}
	}

	if exp < now.Unix() {
		return VerifyResult{Reason: ReasonExpired}
	}

	colon := strings.Index(left, ":")
	if colon <= 0 {
		return VerifyResult{Reason: ReasonBadFormat}
	}

	// a scope mismatch is reported as invalid-signature so the edge
	// surface cannot be used as a scope oracle
	if left[:colon] != string(scope) {
		return VerifyResult{Reason: ReasonInvalidSignature}
	}

	got, err := base64.RawURLEncoding.DecodeString(left[colon+1:])
	if err != nil {
		return VerifyResult{Reason: ReasonInvalidSignature}
	}
	want, err := base64.RawURLEncoding.DecodeString(s.mac(scope, streamParam, exp))
	if err != nil {
		return VerifyResult{Reason: ReasonInvalidSignature}
	}
	if !hmac.Equal(got, want) {
		return VerifyResult{Reason: ReasonInvalidSignature}
	}

	return VerifyResult{OK: true}
}
