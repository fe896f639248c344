// Package access holds the unlisted-access secret on the client and checks
// it on the server.
package access

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
)

// LockedReason is shown while no valid secret is held.
const LockedReason = "This app is private. Please use a valid access link."

// ErrInvalidSecret is returned when a supplied secret does not match.
var ErrInvalidSecret = errors.New("Invalid access secret")

// Verifier compares supplied secrets with the configured one in constant time.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify returns ErrInvalidSecret unless supplied equals the configured secret.
// An empty configured secret never verifies.
func (v *Verifier) Verify(supplied string) error {
	if len(v.secret) == 0 || supplied == "" {
		return ErrInvalidSecret
	}
	if subtle.ConstantTimeCompare(v.secret, []byte(supplied)) != 1 {
		return ErrInvalidSecret
	}
	return nil
}

// Gate is the client-side holder of the access secret for this session.
// When expected is empty any non-empty secret is accepted and the remote
// service is left to reject it.
type Gate struct {
	expected *Verifier

	mu     sync.RWMutex
	secret string
}

func NewGate(expected string) *Gate {
	g := &Gate{}
	if expected != "" {
		g.expected = NewVerifier(expected)
	}
	return g
}

// Unlock stores secret if it is acceptable.
func (g *Gate) Unlock(secret string) error {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return ErrInvalidSecret
	}
	if g.expected != nil {
		if err := g.expected.Verify(secret); err != nil {
			return err
		}
	}

	g.mu.Lock()
	g.secret = secret
	g.mu.Unlock()
	return nil
}

// UnlockFromFragment unlocks with the fragment of an access link such as
// https://app.example.com/#the-secret.
func (g *Gate) UnlockFromFragment(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse access link: %w", err)
	}
	if u.Fragment == "" {
		return ErrInvalidSecret
	}
	return g.Unlock(u.Fragment)
}

// ShareLink builds an access link for the held secret by putting it in the
// fragment of base, the form UnlockFromFragment reads. ok is false while locked.
func (g *Gate) ShareLink(base string) (link string, ok bool, err error) {
	secret, unlocked := g.CurrentAccessToken()
	if !unlocked {
		return "", false, nil
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", false, fmt.Errorf("parse share base: %w", err)
	}
	u.Fragment = secret
	return u.String(), true, nil
}

// Clear forgets the held secret.
func (g *Gate) Clear() {
	g.mu.Lock()
	g.secret = ""
	g.mu.Unlock()
}

func (g *Gate) Unlocked() bool {
	_, ok := g.CurrentAccessToken()
	return ok
}

// CurrentAccessToken returns the held secret.
func (g *Gate) CurrentAccessToken() (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.secret, g.secret != ""
}

// StaticGate always hands out the same token. Empty means locked.
type StaticGate string

func (s StaticGate) CurrentAccessToken() (string, bool) {
	return string(s), s != ""
}
