// Package main provides the entry point for the ihub-auth service. It
// runs a web server using the Fiber framework that authenticates users
// against local accounts, LDAP, OpenID Connect, NTLM, Microsoft Teams
// SSO and OAuth2 machine clients, reconciles them with persisted account
// records and issues revocation-aware session tokens. The application
// uses gorm for data persistence.
package main
