// Package debugger ties profiles, credentials and the SSH session together
// into the save / connect / query flow used by the CLI.
package debugger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"remoteqna/internal/audit"
	"remoteqna/internal/config"
	"remoteqna/internal/models"
	"remoteqna/internal/qna"
	"remoteqna/internal/security"
	"remoteqna/internal/settings"
	"remoteqna/internal/ssh"
)

var (
	// ErrProfileNotFound is returned when no profile has the given name.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrOverwriteDeclined is returned when the caller refuses to replace
	// an existing profile.
	ErrOverwriteDeclined = errors.New("overwrite declined")
)

// Session is the remote session the service drives. *ssh.Client
// implements it.
type Session interface {
	Connect(ctx context.Context, t ssh.Target) error
	Execute(ctx context.Context, command string, timeout time.Duration) (*ssh.Result, error)
	TestFileExists(ctx context.Context, path string, os models.OSType) (bool, error)
	Disconnect()
	Connected() bool
}

// Service is the core the CLI talks to.
type Service struct {
	profiles *config.Store
	settings *settings.Store
	recent   *settings.Recent
	session  Session
	audit    *audit.Log
	logger   *slog.Logger

	mu     sync.Mutex
	active *models.ConnectionProfile
	// credentials of the last successful connect, reused by Reconnect
	lastName     string
	lastPassword string
}

// Deps are the collaborators of a Service. Audit and Logger are optional.
type Deps struct {
	Profiles *config.Store
	Settings *settings.Store
	Session  Session
	Audit    *audit.Log
	Logger   *slog.Logger
}

// New builds a Service.
func New(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		profiles: d.Profiles,
		settings: d.Settings,
		recent:   settings.NewRecent(d.Settings, settings.MaxRecentQueries),
		session:  d.Session,
		audit:    d.Audit,
		logger:   logger,
	}
}

// Profiles returns the profile store.
func (s *Service) Profiles() *config.Store { return s.profiles }

// Recent returns the recent query list.
func (s *Service) Recent() *settings.Recent { return s.recent }

// SaveProfile stores p with plaintext encrypted under p's cipher seed. When
// password saving is turned off the stored password is left empty. An empty
// plaintext keeps the secret already stored for the same name and
// username@host. If the name exists, confirm decides whether to overwrite it.
func (s *Service) SaveProfile(p models.ConnectionProfile, plaintext string, confirm func(name string) bool) error {
	p.Name = strings.TrimSpace(p.Name)
	p.Host = strings.TrimSpace(p.Host)
	p.Username = strings.TrimSpace(p.Username)
	if p.Port <= 0 {
		p.Port = models.DefaultPort
	}
	if err := p.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(p.QnAPath) == "" {
		p.QnAPath = settings.ToolPathFor(s.settings, p.OS)
	}

	p.Password = ""
	if s.settings.Bool(settings.KeySavePasswords, true) {
		switch {
		case plaintext != "":
			p.Password = security.SealPassword(p, plaintext)
			if p.Password == "" {
				s.logger.Warn("password could not be encrypted, saving without it", "profile", p.Name)
			}
		default:
			if old, ok := s.profiles.Find(p.Name); ok && old.CipherSeed() == p.CipherSeed() {
				p.Password = old.Password
			}
		}
	}

	var ok bool
	if s.profiles.Exists(p.Name) {
		if confirm == nil || !confirm(p.Name) {
			return ErrOverwriteDeclined
		}
		ok = s.profiles.Overwrite(p)
	} else {
		ok = s.profiles.Append(p)
	}
	if !ok {
		return fmt.Errorf("save profile %q: %w", p.Name, s.storeErr())
	}
	s.rememberProfile(p.Name)
	return nil
}

// DeleteProfile removes the named profile.
func (s *Service) DeleteProfile(name string) error {
	if !s.profiles.Exists(name) {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	if !s.profiles.Delete(name) {
		return fmt.Errorf("delete profile %q: %w", name, s.storeErr())
	}
	return nil
}

// Profile looks up a profile by name.
func (s *Service) Profile(name string) (models.ConnectionProfile, error) {
	p, ok := s.profiles.Find(name)
	if !ok {
		return models.ConnectionProfile{}, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	return p, nil
}

// Password decrypts the stored password of p; "" if there is none or it
// cannot be decrypted.
func (s *Service) Password(p models.ConnectionProfile) string {
	return security.OpenPassword(p)
}

// Connect opens a session for the named profile. password overrides the
// stored one when non-empty.
func (s *Service) Connect(ctx context.Context, name, password string) error {
	p, err := s.Profile(name)
	if err != nil {
		return err
	}
	if password == "" {
		password = security.OpenPassword(p)
	}

	s.audit.ConnectStart(p)
	err = s.session.Connect(ctx, ssh.TargetFor(p, password))
	s.audit.Connect(p, err)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.active = nil
		return err
	}
	s.active = &p
	s.lastName, s.lastPassword = p.Name, password
	s.rememberProfile(p.Name)
	return nil
}

// Reconnect connects the named profile again. When the last successful
// connect was to the same profile its password is reused, so a password
// typed at a prompt survives a dropped session.
func (s *Service) Reconnect(ctx context.Context, name string) error {
	s.mu.Lock()
	password := ""
	if s.lastName == name {
		password = s.lastPassword
	}
	s.mu.Unlock()
	return s.Connect(ctx, name, password)
}

// LastProfile is the name of the most recently saved or connected profile.
func (s *Service) LastProfile() string {
	return s.settings.String(settings.KeyLastUsedProfile)
}

// Active returns the profile of the open session.
func (s *Service) Active() (models.ConnectionProfile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil || !s.session.Connected() {
		return models.ConnectionProfile{}, false
	}
	return *s.active, true
}

// RunQuery records query in the recent list, builds the command for the
// active profile's OS and runs it.
func (s *Service) RunQuery(ctx context.Context, query string, timeout time.Duration) (*ssh.Result, error) {
	p, ok := s.Active()
	if !ok {
		return nil, ssh.ErrNotConnected
	}
	if err := s.recent.Add(query); err != nil {
		s.logger.Warn("could not save recent query", "err", err)
	}
	cmd := qna.BuildCommand(query, s.toolPath(p), p.OS)
	s.logger.Debug("executing", "profile", p.Name, "command", cmd)

	res, err := s.session.Execute(ctx, cmd, timeout)
	code := 0
	if res != nil {
		code = res.ExitCode
	}
	s.audit.Query(p, query, code, err)
	return res, err
}

// TestToolPath checks that the active profile's QnA tool exists remotely.
func (s *Service) TestToolPath(ctx context.Context) (bool, string, error) {
	p, ok := s.Active()
	if !ok {
		return false, "", ssh.ErrNotConnected
	}
	path := s.toolPath(p)
	found, err := s.session.TestFileExists(ctx, path, p.OS)
	return found, path, err
}

// Disconnect closes the session, if any.
func (s *Service) Disconnect() {
	s.mu.Lock()
	active := s.active
	s.active = nil
	s.mu.Unlock()
	s.session.Disconnect()
	if active != nil {
		s.audit.Disconnect(*active)
	}
}

func (s *Service) toolPath(p models.ConnectionProfile) string {
	if strings.TrimSpace(p.QnAPath) != "" {
		return p.QnAPath
	}
	return settings.ToolPathFor(s.settings, p.OS)
}

func (s *Service) rememberProfile(name string) {
	if err := s.settings.Upsert(settings.KeyLastUsedProfile, name); err != nil {
		s.logger.Warn("could not save last used profile", "err", err)
	}
}

func (s *Service) storeErr() error {
	if err := s.profiles.LastErr(); err != nil {
		return err
	}
	return errors.New("profile store rejected the write")
}
