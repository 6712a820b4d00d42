package auth

import (
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/rs/zerolog/log"

	"github.com/intrafind/ihub-apps-sub012/internal/config"
	"github.com/intrafind/ihub-apps-sub012/internal/db/models"
)

// LDAPProvider authenticates users against a directory and normalizes
// the result. Raw group names come back as external labels; mapping to
// internal groups happens during reconciliation.
type LDAPProvider struct {
	cfg config.LDAP
}

// NewLDAPProvider creates a new LDAP provider with attribute defaults.
func NewLDAPProvider(cfg config.LDAP) *LDAPProvider {
	if cfg.UsernameAttr == "" {
		cfg.UsernameAttr = "uid"
	}

	if cfg.EmailAttr == "" {
		cfg.EmailAttr = "mail"
	}

	if cfg.NameAttr == "" {
		cfg.NameAttr = "cn"
	}

	if cfg.GroupNameAttr == "" {
		cfg.GroupNameAttr = "cn"
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = 10
	}

	return &LDAPProvider{cfg: cfg}
}

// Connect establishes a connection to the LDAP server.
func (p *LDAPProvider) Connect() (*ldap.Conn, error) {
	hostPort := net.JoinHostPort(p.cfg.Host, strconv.Itoa(p.cfg.Port))

	var ldapURL string
	if p.cfg.UseSSL {
		ldapURL = "ldaps://" + hostPort
	} else {
		ldapURL = "ldap://" + hostPort
	}

	var tlsConfig *tls.Config
	if p.cfg.UseSSL || p.cfg.UseTLS {
		tlsConfig = &tls.Config{
			InsecureSkipVerify: p.cfg.SkipVerify, //nolint:gosec // skipping verifying tls is ok
			ServerName:         p.cfg.Host,
		}
	}

	conn, err := ldap.DialURL(ldapURL, ldap.DialWithTLSConfig(tlsConfig))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to LDAP server: %w", err)
	}

	if !p.cfg.UseSSL && p.cfg.UseTLS {
		if errStartTLS := conn.StartTLS(tlsConfig); errStartTLS != nil {
			if errClose := conn.Close(); errClose != nil {
				log.Error().Err(errClose).Msg("failed to close LDAP connection")
			}

			return nil, fmt.Errorf("failed to start TLS: %w", errStartTLS)
		}
	}

	if p.cfg.Timeout > 0 {
		conn.SetTimeout(time.Duration(p.cfg.Timeout) * time.Second)
	}

	return conn, nil
}

// Authenticate binds as the user and normalizes the directory entry into
// an Identity. Bind and search failures collapse into
// ErrInvalidCredentials; connection failures surface as such so the
// caller can distinguish infrastructure trouble from bad credentials.
func (p *LDAPProvider) Authenticate(username, password string) (*Identity, error) {
	conn, err := p.Connect()
	if err != nil {
		return nil, err
	}

	defer func() {
		if errClose := conn.Close(); errClose != nil {
			log.Warn().Err(errClose).Msg("failed to close LDAP connection")
		}
	}()

	if err := p.bindService(conn); err != nil {
		return nil, err
	}

	entry, err := p.searchUserEntry(conn, username)
	if err != nil {
		return nil, err
	}

	userDN := entry.DN

	if err := conn.Bind(userDN, password); err != nil {
		log.Debug().Str("username", username).Msg("ldap user bind rejected")
		return nil, ErrInvalidCredentials
	}

	// re-bind with the service account for group searches
	if err := p.bindService(conn); err != nil {
		return nil, err
	}

	groupLabels, err := p.userGroups(conn, userDN)
	if err != nil {
		return nil, fmt.Errorf("failed to get user groups: %w", err)
	}

	return &Identity{
		SubjectID:      userDN,
		Username:       username,
		Email:          entry.GetAttributeValue(p.cfg.EmailAttr),
		Name:           entry.GetAttributeValue(p.cfg.NameAttr),
		ExternalGroups: groupLabels,
		Method:         models.AuthMethodLDAP,
		Provider:       p.cfg.Host,
	}, nil
}

func (p *LDAPProvider) bindService(conn *ldap.Conn) error {
	if p.cfg.BindDN == "" {
		return nil
	}

	if err := conn.Bind(p.cfg.BindDN, p.cfg.BindPassword); err != nil {
		return fmt.Errorf("failed to bind with service account: %w", err)
	}

	return nil
}

func (p *LDAPProvider) searchUserEntry(conn *ldap.Conn, username string) (*ldap.Entry, error) {
	userFilter := strings.ReplaceAll(p.cfg.UserFilter, "{username}", ldap.EscapeFilter(username))
	searchRequest := ldap.NewSearchRequest(
		p.cfg.BaseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0, // Size limit
		p.cfg.Timeout,
		false,
		userFilter,
		[]string{
			p.cfg.UsernameAttr,
			p.cfg.EmailAttr,
			p.cfg.NameAttr,
			"dn",
		},
		nil,
	)

	searchResult, err := conn.Search(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("failed to search for user: %w", err)
	}

	switch len(searchResult.Entries) {
	case 1:
		return searchResult.Entries[0], nil
	default:
		// zero and ambiguous matches both read as bad credentials
		return nil, ErrInvalidCredentials
	}
}

// userGroups retrieves the raw group labels for the user. The group name
// attribute is preferred; entries without it fall back to the DN.
func (p *LDAPProvider) userGroups(conn *ldap.Conn, userDN string) ([]string, error) {
	if p.cfg.GroupBaseDN == "" {
		return nil, nil
	}

	groupFilter := strings.ReplaceAll(p.cfg.GroupFilter, "{userdn}", ldap.EscapeFilter(userDN))
	searchRequest := ldap.NewSearchRequest(
		p.cfg.GroupBaseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0,
		p.cfg.Timeout,
		false,
		groupFilter,
		[]string{p.cfg.GroupNameAttr, "dn"},
		nil,
	)

	searchResult, err := conn.Search(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("failed to search for groups: %w", err)
	}

	labels := make([]string, 0, len(searchResult.Entries))

	for _, entry := range searchResult.Entries {
		if name := entry.GetAttributeValue(p.cfg.GroupNameAttr); name != "" {
			labels = append(labels, name)
		} else {
			labels = append(labels, entry.DN)
		}
	}

	return labels, nil
}

// TestConnection verifies the server connection and service bind.
func (p *LDAPProvider) TestConnection() error {
	conn, err := p.Connect()
	if err != nil {
		return err
	}

	defer func() {
		if errClose := conn.Close(); errClose != nil {
			log.Warn().Err(errClose).Msg("failed to close LDAP connection")
		}
	}()

	return p.bindService(conn)
}
