// Package models defines the core domain types for remotectl.
package models

import (
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"
)

const (
	// DefaultSSHPort is used when no port is configured.
	DefaultSSHPort = 22

	minPort = 1
	maxPort = 65535
)

// ConnectionParameters identifies a remote host and the credentials used to reach it.
// Values are only produced by NewConnectionParameters and are valid by construction.
type ConnectionParameters struct {
	host     string
	port     int
	username string
	password string
}

// NewConnectionParameters validates every field independently and returns an
// immutable parameter set. The returned error is a *ValidationErrors naming each
// offending field.
func NewConnectionParameters(host string, port int, username, password string) (ConnectionParameters, error) {
	validation := &ValidationErrors{}
	validation.Add("host", ValidateHost(host))
	validation.Add("port", ValidatePort(port))
	if username == "" {
		validation.Add("username", ErrEmptyUsername)
	}
	if password == "" {
		validation.Add("password", ErrEmptyPassword)
	}
	if err := validation.Err(); err != nil {
		return ConnectionParameters{}, err
	}

	return ConnectionParameters{
		host:     host,
		port:     port,
		username: username,
		password: password,
	}, nil
}

// ValidateHost checks that host is a dotted-quad IPv4 address.
func ValidateHost(host string) error {
	if strings.Count(host, ".") != 3 {
		return ErrInvalidHost
	}
	addr, err := netip.ParseAddr(host)
	if err != nil || !addr.Is4() {
		return ErrInvalidHost
	}
	return nil
}

// ValidatePort checks that port lies in [1, 65535].
func ValidatePort(port int) error {
	if port < minPort || port > maxPort {
		return ErrInvalidPort
	}
	return nil
}

// ParsePort converts textual input into a validated port number.
func ParsePort(value string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, ErrInvalidPort
	}
	if err := ValidatePort(port); err != nil {
		return 0, err
	}
	return port, nil
}

// Host returns the IPv4 address of the remote host.
func (p ConnectionParameters) Host() string { return p.host }

// Port returns the SSH port.
func (p ConnectionParameters) Port() int { return p.port }

// Username returns the login name.
func (p ConnectionParameters) Username() string { return p.username }

// Password returns the login secret.
func (p ConnectionParameters) Password() string { return p.password }

// IsZero reports whether p was never built through NewConnectionParameters.
func (p ConnectionParameters) IsZero() bool { return p.host == "" }

// Address returns host:port suitable for dialing.
func (p ConnectionParameters) Address() string {
	return net.JoinHostPort(p.host, strconv.Itoa(p.port))
}

// Target returns user@host.
func (p ConnectionParameters) Target() string {
	return fmt.Sprintf("%s@%s", p.username, p.host)
}

// String never includes the password.
func (p ConnectionParameters) String() string {
	return fmt.Sprintf("%s@%s", p.username, p.Address())
}
