// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2026 Peter Nørlund

package snmp

import (
	"fmt"
	"os"

	"github.com/gosnmp/gosnmp"
	"golang.org/x/term"
)

// PromptFunc obtains one secret interactively. The label identifies which
// secret is being requested; the returned string is used verbatim.
type PromptFunc func(label string) (string, error)

// TerminalPrompt reads a secret from standard input without echo. It is the
// default prompt used by NewRegistry.
func TerminalPrompt(label string) (string, error) {
	fmt.Fprintf(os.Stderr, "%s: ", label)
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", configErrorf("auth", "reading secret: %s", err)
	}
	return string(secret), nil
}

// Credentials is the resolved credential object handed to the transport.
// Either Community is set (v1/v2c) or Username is (v3 USM), never both.
type Credentials struct {
	// Community is the v1/v2c shared secret
	Community string

	// Username is the v3 USM user
	Username string

	// AuthProtocol is the resolved authentication protocol
	AuthProtocol gosnmp.SnmpV3AuthProtocol

	// PrivProtocol is the resolved privacy protocol
	PrivProtocol gosnmp.SnmpV3PrivProtocol

	// AuthKey is the authentication secret
	AuthKey string

	// PrivKey is the privacy secret
	PrivKey string

	// EngineID is the authoritative engine ID, empty for discovery
	EngineID string
}

// msgFlags returns the USM security level implied by the protocols.
func (c Credentials) msgFlags() gosnmp.SnmpV3MsgFlags {
	switch {
	case c.PrivProtocol != gosnmp.NoPriv:
		return gosnmp.AuthPriv
	case c.AuthProtocol != gosnmp.NoAuth:
		return gosnmp.AuthNoPriv
	default:
		return gosnmp.NoAuthNoPriv
	}
}

func parseAuthProtocol(name string) (gosnmp.SnmpV3AuthProtocol, error) {
	switch name {
	case "", "none":
		return gosnmp.NoAuth, nil
	case "md5":
		return gosnmp.MD5, nil
	case "sha":
		return gosnmp.SHA, nil
	default:
		return 0, configErrorf("auth", "unrecognized auth protocol %q", name)
	}
}

func parsePrivProtocol(name string) (gosnmp.SnmpV3PrivProtocol, error) {
	switch name {
	case "", "none":
		return gosnmp.NoPriv, nil
	case "des":
		return gosnmp.DES, nil
	case "aes":
		return gosnmp.AES, nil
	default:
		return 0, configErrorf("auth", "unrecognized priv protocol %q", name)
	}
}

// ResolveCredentials builds a credential object from configuration.
//
// A configured community string wins outright: a Community credential is
// produced and every v3 field is ignored. Otherwise a username is required.
// Secrets missing from the config are prompted for: once, shared between
// authentication and privacy, when dual_key is false and both protocols are
// enabled; independently per required secret otherwise.
//
// The resolved secrets are never logged by this package.
func ResolveCredentials(cfg Config, prompt PromptFunc) (Credentials, error) {
	if cfg.Community != "" {
		return Credentials{Community: cfg.Community}, nil
	}
	if cfg.Username == "" {
		return Credentials{}, &Error{
			Kind:    ErrorConfig,
			Op:      "auth",
			Message: ErrMissingCredential.Error(),
			Err:     ErrMissingCredential,
		}
	}
	if prompt == nil {
		prompt = TerminalPrompt
	}

	authProto, err := parseAuthProtocol(cfg.AuthProtocol)
	if err != nil {
		return Credentials{}, err
	}
	privProto, err := parsePrivProtocol(cfg.PrivProtocol)
	if err != nil {
		return Credentials{}, err
	}
	if privProto != gosnmp.NoPriv && authProto == gosnmp.NoAuth {
		return Credentials{}, configErrorf("auth", "privacy requires an auth protocol")
	}

	creds := Credentials{
		Username:     cfg.Username,
		AuthProtocol: authProto,
		PrivProtocol: privProto,
		AuthKey:      cfg.AuthKey,
		PrivKey:      cfg.PrivKey,
		EngineID:     cfg.EngineID,
	}

	if !cfg.DualKey && authProto != gosnmp.NoAuth && privProto != gosnmp.NoPriv {
		// One secret serves both auth and privacy.
		key := cfg.AuthKey
		if key == "" {
			key, err = prompt("SNMP key")
			if err != nil {
				return Credentials{}, err
			}
		}
		creds.AuthKey = key
		creds.PrivKey = key
		return creds, nil
	}

	if authProto != gosnmp.NoAuth && creds.AuthKey == "" {
		creds.AuthKey, err = prompt("SNMP authentication key")
		if err != nil {
			return Credentials{}, err
		}
	}
	if privProto != gosnmp.NoPriv && creds.PrivKey == "" {
		creds.PrivKey, err = prompt("SNMP privacy key")
		if err != nil {
			return Credentials{}, err
		}
	}
	return creds, nil
}
