// Package oidc provides the OpenID Connect login flow.
//
// Multiple providers can be configured; each gets its own login and
// callback route keyed by provider name. The state token binding a
// redirect to its callback lives in the shared state store, so callbacks
// may land on a different gateway instance than the one that started the
// flow.
package oidc
