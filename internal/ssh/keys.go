package ssh

import (
	"errors"
	"fmt"
	"net"
	"os"

	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/term"

	xssh "golang.org/x/crypto/ssh"
)

// PassphrasePrompt returns the passphrase for the key at keyPath.
type PassphrasePrompt func(keyPath string) (string, error)

// authSet is what a connection offers the server, in order: key file, agent,
// password. It owns the agent socket, if one was opened.
type authSet struct {
	methods []xssh.AuthMethod
	agent   net.Conn
}

func newAuthSet(options ConnectionOptions, prompt PassphrasePrompt) (*authSet, error) {
	set := &authSet{}

	if options.KeyPath != "" {
		signer, err := loadSigner(options.KeyPath, prompt)
		if err != nil {
			return nil, err
		}
		set.methods = append(set.methods, xssh.PublicKeys(signer))
	}

	if options.UseAgent {
		conn, err := dialAgent()
		switch {
		case err == nil:
			set.agent = conn
			set.methods = append(set.methods, xssh.PublicKeysCallback(agent.NewClient(conn).Signers))
		case !errors.Is(err, ErrSSHAgentUnavailable):
			return nil, err
		}
	}

	set.methods = append(set.methods, passwordMethods(options.Password)...)
	if len(set.methods) == 0 {
		_ = set.Close()
		return nil, ErrNoAuthMethods
	}
	return set, nil
}

// Close releases the agent socket. It is safe on a nil set.
func (a *authSet) Close() error {
	if a == nil || a.agent == nil {
		return nil
	}
	err := a.agent.Close()
	a.agent = nil
	return err
}

// loadSigner parses the key at path, asking prompt for a passphrase only when
// the key is encrypted.
func loadSigner(path string, prompt PassphrasePrompt) (xssh.Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}

	signer, err := xssh.ParsePrivateKey(data)
	if err == nil {
		return signer, nil
	}
	var missing *xssh.PassphraseMissingError
	if !errors.As(err, &missing) {
		return nil, fmt.Errorf("parse private key %s: %w", path, err)
	}

	if prompt == nil {
		return nil, ErrPassphraseRequired
	}
	passphrase, err := prompt(path)
	if err != nil {
		return nil, fmt.Errorf("read passphrase: %w", err)
	}
	if passphrase == "" {
		return nil, ErrPassphraseRequired
	}

	signer, err = xssh.ParsePrivateKeyWithPassphrase(data, []byte(passphrase))
	if err != nil {
		return nil, fmt.Errorf("decrypt private key %s: %w", path, err)
	}
	return signer, nil
}

// TerminalPassphrasePrompt reads a passphrase from the controlling terminal
// without echo.
func TerminalPassphrasePrompt(path string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", ErrPassphraseRequired
	}

	fmt.Fprintf(os.Stderr, "Enter passphrase for %s: ", path)
	passphrase, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(passphrase), nil
}

func dialAgent() (net.Conn, error) {
	sock := os.Getenv("SSH_AUTH_SOCK")
	if sock == "" {
		return nil, ErrSSHAgentUnavailable
	}
	conn, err := net.Dial("unix", sock)
	if err != nil {
		return nil, fmt.Errorf("connect to ssh agent: %w", err)
	}
	return conn, nil
}

// passwordMethods answers password and keyboard-interactive challenges with
// the same secret; Windows OpenSSH servers commonly offer only the latter.
func passwordMethods(password string) []xssh.AuthMethod {
	if password == "" {
		return nil
	}
	return []xssh.AuthMethod{
		xssh.Password(password),
		xssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
			answers := make([]string, len(questions))
			for i := range answers {
				answers[i] = password
			}
			return answers, nil
		}),
	}
}
