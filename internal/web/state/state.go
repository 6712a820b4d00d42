// Package state tracks short-lived login flow state, most notably the
// OIDC CSRF state tokens binding an authorization redirect to its
// callback. State lives in a pluggable storage backend so multiple
// gateway instances can share it.
package state

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/storage"
)

// DefaultTTL bounds how long a login flow may take.
const DefaultTTL = 5 * time.Minute

// ErrStateNotFound is returned when a state token is unknown, expired or
// already consumed.
var ErrStateNotFound = errors.New("login state not found")

// Store is the global state store instance.
var Store storage.Storage

// Data is the payload bound to one state token.
type Data struct {
	Provider string `json:"provider"`
	Redirect string `json:"redirect,omitempty"`
}

// Init initializes the state store with the provided storage backend.
func Init(backend storage.Storage) {
	if backend == nil {
		panic("storage is nil")
	}

	Store = backend
}

// Put stores the data under the state token.
func Put(state string, data *Data, ttl time.Duration) error {
	out, err := json.Marshal(data)
	if err != nil {
		return err
	}

	return Store.Set(stateKey(state), out, ttl)
}

// Take retrieves and consumes the state token. A token can be redeemed
// exactly once.
func Take(state string) (*Data, error) {
	raw, err := Store.Get(stateKey(state))
	if err != nil {
		return nil, err
	}

	if len(raw) == 0 {
		return nil, ErrStateNotFound
	}

	if err := Store.Delete(stateKey(state)); err != nil {
		return nil, err
	}

	data := new(Data)
	if err := json.Unmarshal(raw, data); err != nil {
		return nil, err
	}

	return data, nil
}

func stateKey(state string) string {
	return "login-state:" + state
}
