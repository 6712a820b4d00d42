package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/intrafind/ihub-apps-sub012/internal/config"
	"github.com/intrafind/ihub-apps-sub012/internal/db/models"
)

// stubCodec fakes the NTLM message handling so the handshake state
// machine can be exercised without real Type 1/2/3 messages.
type stubCodec struct {
	negotiateErr error
	authErr      error
	username     string
	domain       string
}

func (c *stubCodec) MessageType(data []byte) (int, error) {
	if string(data) == "type1" {
		return 1, nil
	}

	return 3, nil
}

func (c *stubCodec) ParseNegotiate(_ []byte) error {
	return c.negotiateErr
}

func (c *stubCodec) Challenge() ([]byte, error) {
	return []byte("challenge"), nil
}

func (c *stubCodec) ParseAuthenticate(_, _ []byte) (string, string, error) {
	if c.authErr != nil {
		return "", "", c.authErr
	}

	return c.username, c.domain, nil
}

func TestNTLMHandshake(t *testing.T) {
	codec := &stubCodec{username: "alice", domain: "CORP"}
	p := NewNTLMProvider(config.NTLM{Domain: "CORP"}, codec)

	challenge, err := p.Negotiate("conn-1", []byte("type1"))
	if err != nil {
		t.Fatalf("negotiate failed: %v", err)
	}

	if string(challenge) != "challenge" {
		t.Fatalf("unexpected challenge: %q", challenge)
	}

	identity, err := p.Authenticate("conn-1", []byte("type3"))
	if err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}

	if identity.Method != models.AuthMethodNTLM {
		t.Fatalf("unexpected method: %v", identity.Method)
	}

	if identity.SubjectID != "corp\\alice" {
		t.Fatalf("unexpected subject: %q", identity.SubjectID)
	}
}

func TestNTLMAuthenticateWithoutNegotiate(t *testing.T) {
	p := NewNTLMProvider(config.NTLM{}, &stubCodec{username: "alice"})

	if _, err := p.Authenticate("conn-x", []byte("type3")); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestNTLMHandshakeSingleUse(t *testing.T) {
	codec := &stubCodec{username: "alice", domain: "CORP"}
	p := NewNTLMProvider(config.NTLM{Domain: "CORP"}, codec)

	if _, err := p.Negotiate("conn-1", []byte("type1")); err != nil {
		t.Fatalf("negotiate failed: %v", err)
	}

	if _, err := p.Authenticate("conn-1", []byte("type3")); err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}

	// the handshake state is consumed, a replay must restart
	if _, err := p.Authenticate("conn-1", []byte("type3")); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials on replay, got %v", err)
	}
}

func TestNTLMDomainMismatch(t *testing.T) {
	codec := &stubCodec{username: "alice", domain: "OTHER"}
	p := NewNTLMProvider(config.NTLM{Domain: "CORP"}, codec)

	if _, err := p.Negotiate("conn-1", []byte("type1")); err != nil {
		t.Fatalf("negotiate failed: %v", err)
	}

	if _, err := p.Authenticate("conn-1", []byte("type3")); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for foreign domain, got %v", err)
	}
}

func TestNTLMSweepExpiresHandshakes(t *testing.T) {
	codec := &stubCodec{username: "alice", domain: "CORP"}
	p := NewNTLMProvider(config.NTLM{Domain: "CORP", TimeoutSeconds: 1}, codec)

	if _, err := p.Negotiate("conn-1", []byte("type1")); err != nil {
		t.Fatalf("negotiate failed: %v", err)
	}

	p.mu.Lock()
	p.handshakes["conn-1"].started = time.Now().Add(-2 * time.Second)
	p.mu.Unlock()

	p.Sweep()

	if _, err := p.Authenticate("conn-1", []byte("type3")); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected expired handshake to be rejected, got %v", err)
	}
}

func TestNTLMReload(t *testing.T) {
	codec := &stubCodec{username: "alice", domain: "CORP"}
	p := NewNTLMProvider(config.NTLM{Domain: "CORP"}, codec)

	if _, err := p.Negotiate("conn-1", []byte("type1")); err != nil {
		t.Fatalf("negotiate failed: %v", err)
	}

	// unchanged config keeps the pending handshake
	p.Reload(config.NTLM{Domain: "CORP"})

	if _, err := p.Authenticate("conn-1", []byte("type3")); err != nil {
		t.Fatalf("handshake should survive a no-op reload: %v", err)
	}

	if _, err := p.Negotiate("conn-2", []byte("type1")); err != nil {
		t.Fatalf("negotiate failed: %v", err)
	}

	p.Reload(config.NTLM{Domain: "OTHER"})

	if _, err := p.Authenticate("conn-2", []byte("type3")); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected handshake dropped after config change, got %v", err)
	}
}
