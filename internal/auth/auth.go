// Package auth resolves raw connection inputs into a single authentication
// profile. Exactly one method wins per resolution, chosen by a fixed
// precedence, and credentials that do not belong to the winning method are
// dropped before anything reaches the driver.
package auth

import (
	"crypto/rsa"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/snowflakedb/gosnowflake"
)

// Method names the authentication mechanism a resolution settled on.
type Method string

const (
	MethodPassword        Method = "password"
	MethodKeyPair         Method = "key_pair"
	MethodExternalBrowser Method = "external_browser"
	MethodOAuth           Method = "oauth"
	MethodOkta            Method = "okta"
	MethodMFA             Method = "username_password_mfa"
)

// Error reports unusable or missing credentials. Fatal at startup; during
// a live session it surfaces as a tool error without retry.
type Error struct {
	Reason string
}

func (e *Error) Error() string {
	return "auth error: " + e.Reason
}

// Inputs are the raw, unvalidated connection inputs gathered from flags
// and environment. Fields may be mutually inconsistent; Resolve sorts
// that out.
type Inputs struct {
	Account       string
	User          string
	Password      string
	Authenticator string

	// PrivateKey holds PEM bytes; PrivateKeyPath is read when it is empty.
	PrivateKey           []byte
	PrivateKeyPath       string
	PrivateKeyPassphrase string

	Token string

	Host      string
	Database  string
	Schema    string
	Warehouse string
	Role      string
}

// Profile is a resolved, sanitized authentication profile. It carries only
// the credentials its Method consumes.
type Profile struct {
	Method Method

	Account  string
	User     string
	Password string
	Token    string

	PrivateKey *rsa.PrivateKey
	OktaURL    *url.URL

	Host      string
	Database  string
	Schema    string
	Warehouse string
	Role      string
}

// spcsTokenPath is where Snowpark Container Services mounts the ambient
// OAuth token. Overridable in tests.
var spcsTokenPath = "/snowflake/session/token"

// Resolve picks the authentication method for the given inputs.
//
// Precedence:
//  1. an explicit authenticator string
//  2. a private key (key-pair / JWT)
//  3. a password
//  4. an ambient Snowpark container token
//
// Nothing matching is an error, never a silent fallback.
func Resolve(in Inputs) (*Profile, error) {
	if in.Account == "" {
		return nil, &Error{Reason: "account is required"}
	}

	key, err := loadPrivateKey(in)
	if err != nil {
		return nil, err
	}

	p := &Profile{
		Account:   in.Account,
		User:      in.User,
		Host:      in.Host,
		Database:  in.Database,
		Schema:    in.Schema,
		Warehouse: in.Warehouse,
		Role:      in.Role,
	}

	if in.Authenticator != "" {
		p, err := resolveExplicit(p, in, key)
		if err != nil {
			return nil, err
		}
		if err := requireUser(p); err != nil {
			return nil, err
		}
		return p, nil
	}

	switch {
	case key != nil:
		p.Method = MethodKeyPair
		p.PrivateKey = key
	case in.Password != "":
		p.Method = MethodPassword
		p.Password = in.Password
	default:
		token, ok := readContainerToken()
		if !ok {
			return nil, &Error{Reason: "missing credential: provide a password, a private key, an authenticator, or run inside a Snowpark container"}
		}
		p.Method = MethodOAuth
		p.Token = token
	}

	if err := requireUser(p); err != nil {
		return nil, err
	}
	return p, nil
}

// requireUser rejects profiles whose method authenticates a named user
// without one. OAuth is exempt: the token carries its own identity.
func requireUser(p *Profile) error {
	if p.Method != MethodOAuth && p.User == "" {
		return &Error{Reason: fmt.Sprintf("user is required for %s authentication", p.Method)}
	}
	return nil
}

// resolveExplicit honors a caller-named authenticator. Each branch keeps
// only the credentials the mechanism consumes.
func resolveExplicit(p *Profile, in Inputs, key *rsa.PrivateKey) (*Profile, error) {
	auth := strings.ToLower(in.Authenticator)

	switch {
	case auth == "snowflake":
		if in.Password == "" {
			return nil, &Error{Reason: "authenticator snowflake requires a password"}
		}
		p.Method = MethodPassword
		p.Password = in.Password

	case auth == "externalbrowser":
		// Browser SSO authenticates interactively; a stray password or
		// key must not ride along.
		p.Method = MethodExternalBrowser

	case auth == "oauth":
		token := in.Token
		if token == "" {
			token = in.Password
		}
		if token == "" {
			return nil, &Error{Reason: "authenticator oauth requires a token"}
		}
		p.Method = MethodOAuth
		p.Token = token

	case auth == "username_password_mfa":
		if in.Password == "" {
			return nil, &Error{Reason: "authenticator username_password_mfa requires a password"}
		}
		p.Method = MethodMFA
		p.Password = in.Password

	case auth == "snowflake_jwt":
		if key == nil {
			return nil, &Error{Reason: "authenticator snowflake_jwt requires a private key"}
		}
		p.Method = MethodKeyPair
		p.PrivateKey = key

	case strings.HasPrefix(auth, "https://"):
		u, err := url.Parse(in.Authenticator)
		if err != nil {
			return nil, &Error{Reason: fmt.Sprintf("invalid Okta URL authenticator: %v", err)}
		}
		if in.Password == "" {
			return nil, &Error{Reason: "Okta authentication requires a password"}
		}
		p.Method = MethodOkta
		p.OktaURL = u
		p.Password = in.Password

	default:
		return nil, &Error{Reason: fmt.Sprintf("unknown authenticator %q", in.Authenticator)}
	}

	return p, nil
}

func readContainerToken() (string, bool) {
	data, err := os.ReadFile(spcsTokenPath)
	if err != nil || len(data) == 0 {
		return "", false
	}
	return strings.TrimSpace(string(data)), true
}

// DriverConfig renders the profile as a gosnowflake connection config.
func (p *Profile) DriverConfig() *gosnowflake.Config {
	cfg := &gosnowflake.Config{
		Account:     p.Account,
		User:        p.User,
		Host:        p.Host,
		Database:    p.Database,
		Schema:      p.Schema,
		Warehouse:   p.Warehouse,
		Role:        p.Role,
		Application: "snowflake-mcp",
		Params:      map[string]*string{},
	}

	switch p.Method {
	case MethodPassword:
		cfg.Authenticator = gosnowflake.AuthTypeSnowflake
		cfg.Password = p.Password
	case MethodKeyPair:
		cfg.Authenticator = gosnowflake.AuthTypeJwt
		cfg.PrivateKey = p.PrivateKey
	case MethodExternalBrowser:
		cfg.Authenticator = gosnowflake.AuthTypeExternalBrowser
	case MethodOAuth:
		cfg.Authenticator = gosnowflake.AuthTypeOAuth
		cfg.Token = p.Token
	case MethodOkta:
		cfg.Authenticator = gosnowflake.AuthTypeOkta
		cfg.OktaURL = p.OktaURL
		cfg.Password = p.Password
	case MethodMFA:
		cfg.Authenticator = gosnowflake.AuthTypeUsernamePasswordMFA
		cfg.Password = p.Password
	}

	return cfg
}
