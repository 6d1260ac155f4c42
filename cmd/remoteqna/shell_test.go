package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remoteqna/internal/config"
	"remoteqna/internal/debugger"
	"remoteqna/internal/models"
	"remoteqna/internal/settings"
	"remoteqna/internal/ssh"
	"remoteqna/internal/task"
)

type stubSession struct {
	connected bool
	commands  []string
	passwords []string
}

func (s *stubSession) Connect(_ context.Context, t ssh.Target) error {
	s.passwords = append(s.passwords, t.Password)
	if t.Password != "pw" {
		return &ssh.ConnectionError{Addr: t.Host, Err: errors.New("auth failed")}
	}
	s.connected = true
	return nil
}

func (s *stubSession) Execute(_ context.Context, cmd string, _ time.Duration) (*ssh.Result, error) {
	s.commands = append(s.commands, cmd)
	return &ssh.Result{Output: "A: 42\n", Success: true}, nil
}

func (s *stubSession) TestFileExists(context.Context, string, models.OSType) (bool, error) {
	return true, nil
}

func (s *stubSession) Disconnect()     { s.connected = false }
func (s *stubSession) Connected() bool { return s.connected }

func newTestOptions(t *testing.T) (*rootOptions, *stubSession) {
	t.Helper()
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := settings.Open(settings.Path(dir), logger)
	settings.RegisterDefaults(st)
	sess := &stubSession{}
	svc := debugger.New(debugger.Deps{
		Profiles: config.NewStore(config.ProfilesPath(dir), logger),
		Settings: st,
		Session:  sess,
	})
	opts := &rootOptions{
		configDir: dir,
		logger:    logger,
		settings:  st,
		service:   svc,
		runner:    task.NewRunner(logger),
	}
	p := models.ConnectionProfile{Name: "a", Host: "10.0.0.5", Username: "bob", OS: models.OSLinux, QnAPath: "/opt/BESClient/bin/QnA"}
	require.NoError(t, svc.SaveProfile(p, "", nil))
	return opts, sess
}

func TestRunShell(t *testing.T) {
	opts, sess := newTestOptions(t)
	require.NoError(t, opts.service.Connect(context.Background(), "a", "pw"))

	in := strings.NewReader(":bogus\nWindows of SSH Server\n")
	var out bytes.Buffer
	require.NoError(t, runShell(context.Background(), opts, "a", in, &out, time.Second))

	assert.Contains(t, out.String(), "unknown command :bogus")
	assert.Contains(t, out.String(), "Exit Code: 0")
	assert.Contains(t, out.String(), "A: 42")
	assert.Equal(t, []string{`echo "Windows of SSH Server" | "/opt/BESClient/bin/QnA"`}, sess.commands)
	assert.Equal(t, []string{"Windows of SSH Server"}, opts.service.Recent().List())
}

func TestRunShell_Quit(t *testing.T) {
	opts, sess := newTestOptions(t)
	in := strings.NewReader(":quit\nignored\n")
	var out bytes.Buffer
	require.NoError(t, runShell(context.Background(), opts, "a", in, &out, time.Second))
	assert.Empty(t, sess.commands)
}

func TestRunShell_NotConnected(t *testing.T) {
	opts, _ := newTestOptions(t)
	var out bytes.Buffer
	require.NoError(t, runShell(context.Background(), opts, "a", strings.NewReader("q\n"), &out, time.Second))
	assert.Contains(t, out.String(), "not connected")
}

func TestRunShell_ReconnectReusesPromptedPassword(t *testing.T) {
	opts, sess := newTestOptions(t)
	require.NoError(t, opts.service.Connect(context.Background(), "a", "pw"))
	sess.connected = false

	var out bytes.Buffer
	require.NoError(t, runShell(context.Background(), opts, "a", strings.NewReader(":reconnect\n"), &out, time.Second))

	assert.Equal(t, []string{"pw", "pw"}, sess.passwords)
	assert.Contains(t, out.String(), "connected")
	assert.NotContains(t, out.String(), "error:")
	_, ok := opts.service.Active()
	assert.True(t, ok)
}

func TestReadLines_StopsWhenDone(t *testing.T) {
	done := make(chan struct{})
	close(done)
	lines := readLines(strings.NewReader("a\nb\nc\n"), done)

	// Nobody receives, so the only ready case is done.
	time.Sleep(50 * time.Millisecond)
	select {
	case _, ok := <-lines:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("reader goroutine did not exit")
	}
}

func TestReadLine_LeavesRestUnread(t *testing.T) {
	r := strings.NewReader("pw\r\nquery one\nquery two\n")
	line, err := readLine(r)
	require.NoError(t, err)
	assert.Equal(t, "pw", line)

	rest, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "query one\nquery two\n", string(rest))

	line, err = readLine(strings.NewReader("no newline"))
	require.NoError(t, err)
	assert.Equal(t, "no newline", line)
}

func TestProfileName_DefaultsToLastUsed(t *testing.T) {
	opts, _ := newTestOptions(t)
	name, err := opts.profileName("")
	require.NoError(t, err)
	assert.Equal(t, "a", name)

	name, err = opts.profileName("other")
	require.NoError(t, err)
	assert.Equal(t, "other", name)

	require.NoError(t, opts.settings.Upsert(settings.KeyLastUsedProfile, ""))
	_, err = opts.profileName("")
	assert.Error(t, err)
}

func TestSplitQueryArgs(t *testing.T) {
	cases := []struct {
		args    []string
		file    string
		profile string
		rest    []string
	}{
		{args: []string{"a", "version of client"}, profile: "a", rest: []string{"version of client"}},
		{args: []string{"version of client"}, rest: []string{"version of client"}},
		{args: []string{"a"}, file: "q.qna", profile: "a"},
		{file: "q.qna"},
	}
	for _, tc := range cases {
		profile, rest := splitQueryArgs(tc.args, tc.file)
		assert.Equal(t, tc.profile, profile, tc.args)
		assert.Equal(t, tc.rest, rest, tc.args)
	}
}

func TestQueryText(t *testing.T) {
	q, err := queryText([]string{"names of bes computers"}, "")
	require.NoError(t, err)
	assert.Equal(t, "names of bes computers", q)

	path := filepath.Join(t.TempDir(), "q.qna")
	require.NoError(t, os.WriteFile(path, []byte("  version of client\n"), 0600))
	q, err = queryText(nil, path)
	require.NoError(t, err)
	assert.Equal(t, "version of client", q)

	_, err = queryText([]string{"x"}, path)
	assert.Error(t, err)
	_, err = queryText(nil, "")
	assert.Error(t, err)
}

func TestPrintResult(t *testing.T) {
	var out bytes.Buffer
	printResult(&out, "q", &ssh.Result{Output: "A: 1\n", Error: "E: bad\n", ExitCode: 2})
	assert.Equal(t, "Query: q\nExit Code: 2\n\nOutput:\nA: 1\nErrors:\nE: bad\n", out.String())
}
