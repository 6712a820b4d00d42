// Package uniuri generates cryptographically secure random strings,
// used for OAuth client secrets and login state tokens.
package uniuri
