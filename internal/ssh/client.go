package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"remoteqna/internal/models"
	"remoteqna/internal/qna"
)

const (
	// ConnectTimeout 拨号、握手与认证的总超时
	ConnectTimeout = 30 * time.Second
	// DefaultCommandTimeout Execute 未指定超时时使用
	DefaultCommandTimeout = 60 * time.Second
)

// State Client 的连接状态
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	}
	return "state(" + strconv.Itoa(int(s)) + ")"
}

// Target 建立会话所需的参数，Password 为明文
type Target struct {
	Host     string
	Port     int
	User     string
	Password string
}

// TargetFor 由配置和解密后的密码构造 Target
func TargetFor(p models.ConnectionProfile, password string) Target {
	return Target{Host: p.Host, Port: p.EffectivePort(), User: p.Username, Password: password}
}

func (t Target) addr() string {
	port := t.Port
	if port <= 0 {
		port = models.DefaultPort
	}
	return net.JoinHostPort(t.Host, strconv.Itoa(port))
}

// Result 一次远程命令的完整输出
type Result struct {
	Output   string `json:"output"`
	Error    string `json:"error"`
	ExitCode int    `json:"exit_code"`
	Success  bool   `json:"success"`
}

// Option 配置 Client
type Option func(*Client)

// WithLogger 设置日志
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithConnectTimeout 覆盖 ConnectTimeout
func WithConnectTimeout(d time.Duration) Option {
	return func(c *Client) { c.connectTimeout = d }
}

// WithHostKeyCallback 设置主机密钥校验，默认接受任意主机密钥
func WithHostKeyCallback(cb ssh.HostKeyCallback) Option {
	return func(c *Client) { c.hostKeyCallback = cb }
}

// Client 最多持有一个 SSH 会话
// Connect、Execute、Disconnect 由调用方依次调用；Execute 自身也串行执行，后一个命令等待前一个完成
type Client struct {
	logger          *slog.Logger
	connectTimeout  time.Duration
	hostKeyCallback ssh.HostKeyCallback

	execMu sync.Mutex

	mu    sync.Mutex
	state State
	conn  *ssh.Client
}

// NewClient 返回未连接的 Client
func NewClient(opts ...Option) *Client {
	c := &Client{
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		connectTimeout:  ConnectTimeout,
		hostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State 返回当前连接状态
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connected 是否已建立会话
func (c *Client) Connected() bool {
	return c.State() == Connected
}

// Connect 建立到 t 的会话，已有会话会先关闭
// 失败时状态为 Disconnected 并返回 *ConnectionError
func (c *Client) Connect(ctx context.Context, t Target) error {
	addr := t.addr()
	c.mu.Lock()
	if c.state == Connecting {
		c.mu.Unlock()
		return &ConnectionError{Addr: addr, Err: errors.New("another connect is in progress")}
	}
	old := c.conn
	c.conn = nil
	c.state = Connecting
	c.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}

	c.logger.Debug("connecting", "addr", addr, "user", t.User)
	conn, err := c.dial(ctx, t)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil && c.state != Connecting {
		// 握手期间调用了 Disconnect
		_ = conn.Close()
		err = errors.New("connect aborted")
	}
	if err != nil {
		c.state = Disconnected
		c.logger.Warn("connect failed", "addr", addr, "user", t.User, "err", err)
		return &ConnectionError{Addr: addr, Err: err}
	}
	c.conn = conn
	c.state = Connected
	c.logger.Info("connected", "addr", addr, "user", t.User)
	return nil
}

func (c *Client) dial(ctx context.Context, t Target) (*ssh.Client, error) {
	addr := t.addr()
	config := buildClientConfig(t.User, t.Password, c.hostKeyCallback, c.connectTimeout)

	ctx, cancel := context.WithTimeout(ctx, c.connectTimeout)
	defer cancel()

	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = nc.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { _ = nc.Close() })
	sc, chans, reqs, err := ssh.NewClientConn(nc, addr, config)
	if !stop() {
		if err == nil {
			_ = sc.Close()
		}
		return nil, ctx.Err()
	}
	if err != nil {
		_ = nc.Close()
		return nil, err
	}
	_ = nc.SetDeadline(time.Time{})
	return ssh.NewClient(sc, chans, reqs), nil
}

// buildClientConfig 仅使用密码认证，keyboard-interactive 提示同样以密码应答
func buildClientConfig(user, password string, hostKey ssh.HostKeyCallback, timeout time.Duration) *ssh.ClientConfig {
	answer := func(_, _ string, questions []string, _ []bool) ([]string, error) {
		answers := make([]string, len(questions))
		for i := range answers {
			answers[i] = password
		}
		return answers, nil
	}
	return &ssh.ClientConfig{
		User: user,
		Auth: []ssh.AuthMethod{
			ssh.Password(password),
			ssh.KeyboardInteractive(answer),
		},
		HostKeyCallback: hostKey,
		Timeout:         timeout,
	}
}

// Execute 在当前会话上执行 command，等待其结束或超时（timeout <= 0 时为 DefaultCommandTimeout）
// 非零退出码放在 Result 中，不作为 error 返回
//
// 传输错误返回 *ExecutionError，会话保持可用；
// 超时或 ctx 取消时通道状态未知，会同时断开会话
func (c *Client) Execute(ctx context.Context, command string, timeout time.Duration) (*Result, error) {
	c.execMu.Lock()
	defer c.execMu.Unlock()

	c.mu.Lock()
	conn := c.conn
	state := c.state
	c.mu.Unlock()
	if state != Connected || conn == nil {
		return nil, ErrNotConnected
	}
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}

	session, err := conn.NewSession()
	if err != nil {
		return nil, &ExecutionError{Command: command, Err: err}
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() { done <- session.Run(command) }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err = <-done:
	case <-timer.C:
		c.abort(conn)
		c.logger.Warn("command timed out", "timeout", timeout)
		return nil, &ExecutionError{Command: command, Timeout: true, Err: fmt.Errorf("no result after %s", timeout)}
	case <-ctx.Done():
		c.abort(conn)
		return nil, &ExecutionError{Command: command, Timeout: true, Err: ctx.Err()}
	}

	res := &Result{Output: stdout.String(), Error: stderr.String()}
	var exitErr *ssh.ExitError
	var missingErr *ssh.ExitMissingError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitStatus()
	case errors.As(err, &missingErr):
		res.ExitCode = -1
	default:
		c.logger.Warn("command failed", "err", err)
		return nil, &ExecutionError{Command: command, Err: err}
	}
	res.Success = res.ExitCode == 0
	c.logger.Debug("command finished", "exit_code", res.ExitCode)
	return res, nil
}

// TestFileExists 使用对应系统的探测命令判断远程主机上 path 是否为文件
func (c *Client) TestFileExists(ctx context.Context, path string, os models.OSType) (bool, error) {
	res, err := c.Execute(ctx, qna.FileExistsProbe(path, os), DefaultCommandTimeout)
	if err != nil {
		return false, err
	}
	return qna.ProbeFound(res.Output), nil
}

// Disconnect 关闭会话，未连接时调用无副作用
func (c *Client) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.state = Disconnected
	c.mu.Unlock()
	if conn == nil {
		return
	}
	if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		c.logger.Debug("close failed", "err", err)
	}
	c.logger.Info("disconnected")
}

// abort 若 conn 仍是当前会话则将其丢弃
func (c *Client) abort(conn *ssh.Client) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
		c.state = Disconnected
	}
	c.mu.Unlock()
	_ = conn.Close()
}
