package ssh

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"io"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

// reply 假服务端对一次 exec 请求的应答
type reply struct {
	stdout string
	stderr string
	exit   uint32
	delay  time.Duration
	noExit bool
	reject bool // 拒绝 exec 请求
}

// fakeServer 进程内 SSH 服务端，按预设内容应答 exec 请求
type fakeServer struct {
	t        *testing.T
	listener net.Listener
	config   *ssh.ServerConfig
	handler  func(cmd string) reply

	mu       sync.Mutex
	commands []string
}

func startFakeServer(t *testing.T, user, password string, handler func(cmd string) reply) *fakeServer {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := ssh.NewSignerFromKey(priv)
	require.NoError(t, err)

	config := &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if c.User() == user && string(pass) == password {
				return nil, nil
			}
			return nil, errors.New("access denied")
		},
	}
	config.AddHostKey(signer)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &fakeServer{t: t, listener: l, config: config, handler: handler}
	go s.serve()
	t.Cleanup(func() { _ = l.Close() })
	return s
}

func (s *fakeServer) target(user, password string) Target {
	addr := s.listener.Addr().(*net.TCPAddr)
	return Target{Host: addr.IP.String(), Port: addr.Port, User: user, Password: password}
}

func (s *fakeServer) received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

func (s *fakeServer) serve() {
	for {
		nc, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handleConn(nc)
	}
}

func (s *fakeServer) handleConn(nc net.Conn) {
	_, chans, reqs, err := ssh.NewServerConn(nc, s.config)
	if err != nil {
		_ = nc.Close()
		return
	}
	go ssh.DiscardRequests(reqs)
	for nch := range chans {
		if nch.ChannelType() != "session" {
			_ = nch.Reject(ssh.UnknownChannelType, "unsupported channel type")
			continue
		}
		ch, creqs, err := nch.Accept()
		if err != nil {
			continue
		}
		go s.handleSession(ch, creqs)
	}
}

func (s *fakeServer) handleSession(ch ssh.Channel, reqs <-chan *ssh.Request) {
	defer ch.Close()
	for req := range reqs {
		if req.Type != "exec" {
			_ = req.Reply(false, nil)
			continue
		}
		var payload struct{ Command string }
		if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
			_ = req.Reply(false, nil)
			return
		}
		s.mu.Lock()
		s.commands = append(s.commands, payload.Command)
		s.mu.Unlock()

		r := s.handler(payload.Command)
		if r.reject {
			_ = req.Reply(false, nil)
			continue
		}
		_ = req.Reply(true, nil)
		if r.delay > 0 {
			time.Sleep(r.delay)
		}
		_, _ = io.WriteString(ch, r.stdout)
		_, _ = io.WriteString(ch.Stderr(), r.stderr)
		if !r.noExit {
			_, _ = ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{r.exit}))
		}
		return
	}
}

// silentListener 接受 TCP 连接但从不进行 SSH 握手
func silentListener(t *testing.T) Target {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var mu sync.Mutex
	var conns []net.Conn
	go func() {
		for {
			nc, err := l.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, nc)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		_ = l.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, nc := range conns {
			_ = nc.Close()
		}
	})
	addr := l.Addr().(*net.TCPAddr)
	return Target{Host: addr.IP.String(), Port: addr.Port, User: "bob", Password: "pw"}
}

// closedPort 返回一个无人监听的本地地址
func closedPort(t *testing.T) Target {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	_, port, _ := net.SplitHostPort(l.Addr().String())
	require.NoError(t, l.Close())
	p, _ := strconv.Atoi(port)
	return Target{Host: "127.0.0.1", Port: p, User: "bob", Password: "pw"}
}
