// Package turnrest mints coturn-compatible ephemeral TURN credentials from a
// shared secret (the "TURN REST API" scheme):
//
//	username   = <unix expiry>:<prefix>:<session id>
//	credential = base64(hmac_sha1(secret, username))
package turnrest

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const DefaultTTL = 24 * time.Hour

// Generator mints credentials. The zero value is not usable; see New.
type Generator struct {
	secret []byte
	ttl    time.Duration
	prefix string
	now    func() time.Time
}

// Credentials is one minted username/credential pair.
type Credentials struct {
	Username   string
	Credential string
	Expires    time.Time
}

// New returns a Generator. A zero ttl uses DefaultTTL; a nil now uses time.Now.
func New(secret, prefix string, ttl time.Duration, now func() time.Time) (*Generator, error) {
	if secret == "" {
		return nil, errors.New("turn shared secret is required")
	}
	if prefix == "" {
		return nil, errors.New("turn username prefix is required")
	}
	if strings.Contains(prefix, ":") {
		return nil, errors.New("turn username prefix must not contain ':'")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Generator{secret: []byte(secret), ttl: ttl, prefix: prefix, now: now}, nil
}

// Generate mints credentials bound to sessionID.
func (g *Generator) Generate(sessionID string) (Credentials, error) {
	if sessionID == "" {
		return Credentials{}, errors.New("session id is required")
	}
	if strings.Contains(sessionID, ":") {
		return Credentials{}, errors.New("session id must not contain ':'")
	}

	expires := g.now().UTC().Add(g.ttl).Truncate(time.Second)
	username := fmt.Sprintf("%d:%s:%s", expires.Unix(), g.prefix, sessionID)
	return Credentials{
		Username:   username,
		Credential: sign(g.secret, username),
		Expires:    expires,
	}, nil
}

// GenerateRandom mints credentials for a fresh random session id.
func (g *Generator) GenerateRandom() (Credentials, error) {
	return g.Generate(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

func sign(secret []byte, username string) string {
	mac := hmac.New(sha1.New, secret)
	_, _ = mac.Write([]byte(username))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
