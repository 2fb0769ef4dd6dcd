package ssh

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh/knownhosts"

	xssh "golang.org/x/crypto/ssh"

	"github.com/tOgg1/remotectl/internal/logging"
)

// RememberingHostKeys accepts unknown host keys and remembers them. Keys are
// kept in memory for the life of the value and, when a known_hosts path is
// set, appended to that file. A key that differs from a remembered one is
// rejected.
type RememberingHostKeys struct {
	mu     sync.Mutex
	path   string
	keys   map[string]xssh.PublicKey
	logger zerolog.Logger
}

// NewRememberingHostKeys creates a policy backed by knownHostsPath, which may
// be empty for memory-only operation. The file is created on first write.
func NewRememberingHostKeys(knownHostsPath string) *RememberingHostKeys {
	return &RememberingHostKeys{
		path:   knownHostsPath,
		keys:   make(map[string]xssh.PublicKey),
		logger: logging.Component("ssh"),
	}
}

// Callback returns the policy as an ssh.HostKeyCallback.
func (r *RememberingHostKeys) Callback() xssh.HostKeyCallback {
	return r.check
}

// Known reports the remembered key for hostname, if any.
func (r *RememberingHostKeys) Known(hostname string) (xssh.PublicKey, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key, ok := r.keys[knownhosts.Normalize(hostname)]
	return key, ok
}

func (r *RememberingHostKeys) check(hostname string, remote net.Addr, key xssh.PublicKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	host := knownhosts.Normalize(hostname)
	fingerprint := xssh.FingerprintSHA256(key)

	if known, ok := r.keys[host]; ok {
		if bytes.Equal(known.Marshal(), key.Marshal()) {
			return nil
		}
		return &HostKeyMismatchError{Host: host, Fingerprint: fingerprint}
	}

	if r.path != "" {
		accepted, err := r.checkFile(hostname, remote, key)
		if err != nil {
			return err
		}
		if accepted {
			r.keys[host] = key
			return nil
		}
		if err := r.appendFile(host, key); err != nil {
			r.logger.Warn().Err(err).Str("path", r.path).Msg("failed to persist host key")
		}
	}

	r.keys[host] = key
	r.logger.Info().Str("host", host).Str("fingerprint", fingerprint).Msg("remembered new host key")
	return nil
}

// checkFile returns true when the file already trusts key and an error when
// it lists a different key for the host.
func (r *RememberingHostKeys) checkFile(hostname string, remote net.Addr, key xssh.PublicKey) (bool, error) {
	if _, err := os.Stat(r.path); errors.Is(err, os.ErrNotExist) {
		return false, nil
	}

	callback, err := knownhosts.New(r.path)
	if err != nil {
		return false, fmt.Errorf("read known hosts: %w", err)
	}

	err = callback(hostname, remote, key)
	if err == nil {
		return true, nil
	}

	var keyErr *knownhosts.KeyError
	if errors.As(err, &keyErr) && len(keyErr.Want) == 0 {
		return false, nil
	}
	if errors.As(err, &keyErr) {
		return false, &HostKeyMismatchError{Host: knownhosts.Normalize(hostname), Fingerprint: xssh.FingerprintSHA256(key)}
	}
	return false, err
}

func (r *RememberingHostKeys) appendFile(host string, key xssh.PublicKey) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = fmt.Fprintln(f, knownhosts.Line([]string{host}, key))
	return err
}
