// Package auth normalizes heterogeneous credential sources into canonical
// identities and reconciles them against persisted account records.
//
// # Identity normalization
//
// Six sources feed the gateway: local password, LDAP bind, OpenID Connect,
// Windows NTLM, Microsoft Teams SSO and the OAuth2 client-credentials
// grant. Each source has a normalizer that converts its payload into an
// Identity value carrying the subject id, profile attributes and the raw
// external group labels as reported by the provider.
//
// # Reconciliation
//
// Reconcile merges the transient Identity with the persisted, admin-curated
// UserAccount record. Two group lists come out of the merge and must not be
// conflated:
//
//   - DisplayGroups: raw external labels plus internal group ids, ordered
//     and deduplicated, external-first. Kept for operator visibility and
//     embedded in session tokens.
//   - AuthorizationGroups: mapped internal ids plus admin-assigned internal
//     groups. This set feeds permission resolution.
//
// # Error taxonomy
//
// Credential-stage failures collapse into ErrInvalidCredentials so no
// detail leaks about which field was wrong. Post-issuance revocation
// states (ErrAccountDisabled, ErrClientSuspended, ErrClientRotated) carry
// distinct reasons since the caller already authenticated once.
// ErrServiceUnavailable signals that the account store could not be
// reached; it must propagate as retryable and never degrade to
// "assume valid".
package auth
