package ssh

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	xssh "golang.org/x/crypto/ssh"

	"github.com/tOgg1/remotectl/internal/testutil"
)

// reply is what the test server sends back for one exec request.
type reply struct {
	stdout string
	stderr string
	exit   int
	delay  time.Duration
}

// testServer is a minimal in-process SSH server that answers exec requests.
type testServer struct {
	addr    *net.TCPAddr
	hostKey xssh.Signer

	mu       sync.Mutex
	commands []string
	handler  func(cmd string, attempt int) reply
}

func startTestServer(t *testing.T, password string, handler func(cmd string, attempt int) reply) *testServer {
	t.Helper()
	testutil.SkipIfNoNetwork(t)

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := xssh.NewSignerFromKey(priv)
	require.NoError(t, err)

	config := &xssh.ServerConfig{
		PasswordCallback: func(_ xssh.ConnMetadata, pass []byte) (*xssh.Permissions, error) {
			if string(pass) == password {
				return nil, nil
			}
			return nil, errors.New("access denied")
		},
	}
	config.AddHostKey(signer)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	srv := &testServer{
		addr:    ln.Addr().(*net.TCPAddr),
		hostKey: signer,
		handler: handler,
	}

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go srv.serve(conn, config)
		}
	}()
	return srv
}

func (s *testServer) serve(conn net.Conn, config *xssh.ServerConfig) {
	_, chans, reqs, err := xssh.NewServerConn(conn, config)
	if err != nil {
		_ = conn.Close()
		return
	}
	go xssh.DiscardRequests(reqs)

	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			_ = newChannel.Reject(xssh.UnknownChannelType, "unsupported")
			continue
		}
		channel, requests, err := newChannel.Accept()
		if err != nil {
			continue
		}
		go s.handle(channel, requests)
	}
}

func (s *testServer) handle(channel xssh.Channel, requests <-chan *xssh.Request) {
	defer channel.Close()

	for req := range requests {
		if req.Type != "exec" {
			if req.WantReply {
				_ = req.Reply(false, nil)
			}
			continue
		}

		var payload struct{ Command string }
		if err := xssh.Unmarshal(req.Payload, &payload); err != nil {
			_ = req.Reply(false, nil)
			return
		}
		_ = req.Reply(true, nil)

		s.mu.Lock()
		s.commands = append(s.commands, payload.Command)
		attempt := 0
		for _, c := range s.commands {
			if c == payload.Command {
				attempt++
			}
		}
		s.mu.Unlock()

		r := s.handler(payload.Command, attempt)
		if r.delay > 0 {
			time.Sleep(r.delay)
		}
		_, _ = channel.Write([]byte(r.stdout))
		_, _ = channel.Stderr().Write([]byte(r.stderr))
		_, _ = channel.SendRequest("exit-status", false, xssh.Marshal(struct{ Status uint32 }{uint32(r.exit)}))
		return
	}
}

func (s *testServer) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

func (s *testServer) Port() int { return s.addr.Port }
