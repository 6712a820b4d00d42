// Package app implements the main application commands.
package app

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ihub-auth",
	Short: "ihub-auth is the identity and authorization core of the iHub application gateway",
	Long: `ihub-auth authenticates users against local accounts, LDAP, OpenID
Connect, NTLM, Microsoft Teams SSO and OAuth2 machine clients, maps
their group memberships onto internal permission groups and issues the
signed session tokens consumed by the gateway.`,
	Args: cobra.OnlyValidArgs,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
