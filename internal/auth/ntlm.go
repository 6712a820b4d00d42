package auth

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/intrafind/ihub-apps-sub012/internal/config"
	"github.com/intrafind/ihub-apps-sub012/internal/db/models"
)

// NTLMCodec handles the NTLM message encoding. The binary message
// formats live behind this interface so the handshake logic stays
// testable without a real Windows client.
type NTLMCodec interface {
	// MessageType reports the NTLM message type (1 or 3) of raw data.
	MessageType(data []byte) (int, error)
	// ParseNegotiate validates a Type 1 message.
	ParseNegotiate(data []byte) error
	// Challenge produces a Type 2 challenge message.
	Challenge() ([]byte, error)
	// ParseAuthenticate validates a Type 3 message against the previous
	// challenge and extracts the account identification.
	ParseAuthenticate(challenge, data []byte) (username, domain string, err error)
}

// NTLMPhase tracks where a connection stands in the handshake.
type NTLMPhase int

const (
	// NTLMPhaseNegotiate means a Type 1 message was accepted and a
	// challenge was sent.
	NTLMPhaseNegotiate NTLMPhase = iota
	// NTLMPhaseAuthenticated means the Type 3 message checked out.
	NTLMPhaseAuthenticated
)

type ntlmHandshake struct {
	phase     NTLMPhase
	challenge []byte
	started   time.Time
}

// NTLMProvider negotiates Windows integrated authentication. Handshakes
// are tracked per connection; a connection that stalls past the
// configured timeout is forgotten and the request falls through to the
// next authentication mode.
type NTLMProvider struct {
	cfg   config.NTLM
	codec NTLMCodec

	mu         sync.Mutex
	handshakes map[string]*ntlmHandshake
}

// NewNTLMProvider creates a provider around the given codec.
func NewNTLMProvider(cfg config.NTLM, codec NTLMCodec) *NTLMProvider {
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 5
	}

	return &NTLMProvider{
		cfg:        cfg,
		codec:      codec,
		handshakes: make(map[string]*ntlmHandshake),
	}
}

// Codec exposes the message codec for transport-level type inspection.
func (p *NTLMProvider) Codec() NTLMCodec {
	return p.codec
}

// Negotiate handles a Type 1 message for the given connection and
// returns the challenge to send back.
func (p *NTLMProvider) Negotiate(connID string, data []byte) ([]byte, error) {
	if err := p.codec.ParseNegotiate(data); err != nil {
		return nil, ErrInvalidCredentials
	}

	challenge, err := p.codec.Challenge()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.handshakes[connID] = &ntlmHandshake{
		phase:     NTLMPhaseNegotiate,
		challenge: challenge,
		started:   time.Now(),
	}
	p.mu.Unlock()

	return challenge, nil
}

// Authenticate handles a Type 3 message. Connections with no pending
// challenge, including those expired by the timeout, are rejected so the
// client restarts the handshake.
func (p *NTLMProvider) Authenticate(connID string, data []byte) (*Identity, error) {
	p.mu.Lock()
	hs, ok := p.handshakes[connID]
	if ok {
		delete(p.handshakes, connID)
	}
	cfg := p.cfg
	p.mu.Unlock()

	if !ok || hs.phase != NTLMPhaseNegotiate {
		return nil, ErrInvalidCredentials
	}

	if time.Since(hs.started) > timeoutFor(cfg) {
		log.Debug().Str("conn", connID).Msg("ntlm handshake expired")
		return nil, ErrInvalidCredentials
	}

	username, domain, err := p.codec.ParseAuthenticate(hs.challenge, data)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if cfg.Domain != "" && !strings.EqualFold(domain, cfg.Domain) {
		log.Debug().Str("domain", domain).Msg("ntlm domain rejected")
		return nil, ErrInvalidCredentials
	}

	account := username
	if domain != "" {
		account = domain + "\\" + username
	}

	return &Identity{
		SubjectID: strings.ToLower(account),
		Username:  username,
		Method:    models.AuthMethodNTLM,
		Provider:  domain,
	}, nil
}

// Reload applies a changed configuration. Handshakes negotiated under
// the old configuration are dropped; an unchanged configuration is a
// no-op so in-flight handshakes survive unrelated reloads.
func (p *NTLMProvider) Reload(cfg config.NTLM) {
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 5
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if ntlmConfigHash(p.cfg) == ntlmConfigHash(cfg) {
		return
	}

	p.cfg = cfg
	p.handshakes = make(map[string]*ntlmHandshake)
	log.Info().Msg("ntlm configuration changed, pending handshakes dropped")
}

func ntlmConfigHash(cfg config.NTLM) [sha256.Size]byte {
	return sha256.Sum256([]byte(fmt.Sprintf("%+v", cfg)))
}

// Abandon drops any handshake state for the connection.
func (p *NTLMProvider) Abandon(connID string) {
	p.mu.Lock()
	delete(p.handshakes, connID)
	p.mu.Unlock()
}

// Sweep clears expired handshakes. Called periodically by the daemon.
func (p *NTLMProvider) Sweep() {
	p.mu.Lock()
	cutoff := time.Now().Add(-timeoutFor(p.cfg))

	for id, hs := range p.handshakes {
		if hs.started.Before(cutoff) {
			delete(p.handshakes, id)
		}
	}
	p.mu.Unlock()
}

func timeoutFor(cfg config.NTLM) time.Duration {
	return time.Duration(cfg.TimeoutSeconds) * time.Second
}
