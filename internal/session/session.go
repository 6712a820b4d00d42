package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/intrafind/ihub-apps-sub012/internal/auth"
	"github.com/intrafind/ihub-apps-sub012/internal/db/controller/account"
	"github.com/intrafind/ihub-apps-sub012/internal/db/controller/oauthclient"
	"github.com/intrafind/ihub-apps-sub012/internal/db/models"
)

// maxTokenAge is the absolute backstop on token lifetime. Whatever the
// configured session timeout says, a token older than this is dead.
const maxTokenAge = 7 * 24 * time.Hour

var (
	// ErrTokenInvalid covers malformed tokens, bad signatures, wrong
	// issuer and tokens whose subject no longer exists.
	ErrTokenInvalid = errors.New("session token invalid")
	// ErrTokenExpired is returned for structurally valid tokens past
	// their expiry or the absolute age backstop.
	ErrTokenExpired = errors.New("session token expired")
)

// Manager issues and validates session tokens.
type Manager struct {
	secret     []byte
	db         *gorm.DB
	reconciler *auth.Reconciler
}

// NewManager creates a manager signing with the given secret.
func NewManager(secret string, db *gorm.DB, reconciler *auth.Reconciler) *Manager {
	return &Manager{secret: []byte(secret), db: db, reconciler: reconciler}
}

// Issue signs a token for the principal with the given lifetime.
func (m *Manager) Issue(p *auth.Principal, lifetime time.Duration) (string, error) {
	now := time.Now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
		},
		Username:     p.Username,
		Name:         p.Name,
		Email:        p.Email,
		Groups:       p.Groups,
		AuthMode:     string(p.Method),
		AuthProvider: p.Provider,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return signed, nil
}

// Validate checks the token and rebuilds the live principal. The account
// behind the token is re-read every time: a deleted account invalidates
// the token, a disabled one reports auth.ErrAccountDisabled, a rotated
// client secret reports auth.ErrClientRotated. Group permissions always
// come from the current catalog, never from the token.
func (m *Manager) Validate(tokenString string) (*auth.Principal, error) {
	claims, err := m.parse(tokenString, false)
	if err != nil {
		return nil, err
	}

	return m.livePrincipal(claims)
}

// Inspect parses the token like Validate but tolerates expiry, so a
// status endpoint can tell "expired session" apart from "no session".
// The liveness re-check still applies.
func (m *Manager) Inspect(tokenString string) (*auth.Principal, *Claims, error) {
	claims, err := m.parse(tokenString, true)
	if err != nil && !errors.Is(err, ErrTokenExpired) {
		return nil, nil, err
	}

	expiredErr := err

	principal, err := m.livePrincipal(claims)
	if err != nil {
		return nil, claims, err
	}

	return principal, claims, expiredErr
}

func (m *Manager) parse(tokenString string, allowExpired bool) (*Claims, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithIssuedAt(),
	)

	expired := false

	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		// validation errors are joined, so a foreign expired token
		// would otherwise pass as merely expired
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	case errors.Is(err, jwt.ErrTokenExpired) && allowExpired:
		expired = true
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	default:
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	if claims.IssuedAt == nil {
		return nil, ErrTokenInvalid
	}

	if time.Since(claims.IssuedAt.Time) > maxTokenAge {
		if allowExpired {
			expired = true
		} else {
			return nil, ErrTokenExpired
		}
	}

	if expired {
		return claims, ErrTokenExpired
	}

	return claims, nil
}

// livePrincipal rebuilds the principal from current store state. Store
// failures fail closed: a token cannot be accepted while revocation
// state is unreadable.
func (m *Manager) livePrincipal(claims *Claims) (*auth.Principal, error) {
	if models.AuthMethod(claims.AuthMode) == models.AuthMethodOAuthClient {
		return m.liveClientPrincipal(claims)
	}

	acc, err := account.FindByID(m.db, claims.Subject)
	if errors.Is(err, account.ErrAccountNotFound) {
		return nil, ErrTokenInvalid
	}

	if err != nil {
		log.Error().Err(err).Str("subject", claims.Subject).Msg("account liveness check failed")
		return nil, auth.ErrServiceUnavailable
	}

	if !acc.Active {
		return nil, auth.ErrAccountDisabled
	}

	return m.reconciler.PrincipalForAccount(acc, claims.Groups, models.AuthMethod(claims.AuthMode), claims.AuthProvider), nil
}

func (m *Manager) liveClientPrincipal(claims *Claims) (*auth.Principal, error) {
	client, err := oauthclient.Find(m.db, claims.Subject)
	if errors.Is(err, oauthclient.ErrClientNotFound) {
		return nil, ErrTokenInvalid
	}

	if err != nil {
		log.Error().Err(err).Str("client_id", claims.Subject).Msg("client liveness check failed")
		return nil, auth.ErrServiceUnavailable
	}

	if !client.Active {
		return nil, auth.ErrClientSuspended
	}

	if client.LastRotated.After(claims.IssuedAt.Time) {
		return nil, auth.ErrClientRotated
	}

	return auth.ClientPrincipal(client), nil
}
