package auth

import "errors"

var (
	// ErrInvalidCredentials is returned for any credential-stage failure
	// (unknown user, wrong password or bind, bad TOTP code). Deliberately
	// generic so no detail leaks about which field was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccountDisabled is returned when the matched account record has
	// active=false. Distinct from not-found to give operators a clear signal.
	ErrAccountDisabled = errors.New("account is disabled")

	// ErrAccountNotFound is returned when a previously issued token
	// references an account that no longer exists.
	ErrAccountNotFound = errors.New("account not found")

	// ErrRegistrationNotAllowed is returned when no account exists and
	// self-signup is disabled for the auth mode.
	ErrRegistrationNotAllowed = errors.New("registration is not allowed for this authentication method")

	// ErrClientSuspended is returned when an OAuth client record is inactive.
	ErrClientSuspended = errors.New("oauth client is suspended")

	// ErrClientRotated is returned when a token predates the client's last
	// secret rotation.
	ErrClientRotated = errors.New("token predates client secret rotation")

	// ErrServiceUnavailable is returned when the account store cannot be
	// reached during the liveness re-check. Retryable; never interpreted
	// as "assume valid".
	ErrServiceUnavailable = errors.New("account store unavailable")

	// ErrNoIDToken is returned when the OAuth2 token response doesn't
	// contain an ID token.
	ErrNoIDToken = errors.New("no id_token in token response")
)
