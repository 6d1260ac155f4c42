package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"remoteqna/internal/models"
)

// AppName 用户配置目录名
const AppName = "remoteqna"

// PersistenceError 配置文件读取、解析或写入失败
type PersistenceError struct {
	Op   string // read / parse / write
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("profiles %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Dir 返回配置目录：优先 $REMOTEQNA_HOME，否则为 os.UserConfigDir()/remoteqna
// Linux 下即 ~/.config/remoteqna
func Dir() (string, error) {
	if v := os.Getenv("REMOTEQNA_HOME"); v != "" {
		return v, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, AppName), nil
}

// ProfilesPath 返回 dir 下的配置文件路径
func ProfilesPath(dir string) string {
	return filepath.Join(dir, "profiles.json")
}

// Store 将 ConnectionProfile 以 JSON 数组保存在单个文件中，每次修改都整体重写
// 不与其他进程协调，后写入者覆盖先写入者
//
// 失败不会以 error 返回：读取失败视为空列表，写入失败返回 false，
// 最近一次失败可通过 LastErr 获取
type Store struct {
	path   string
	logger *slog.Logger

	mu      sync.Mutex
	lastErr error
}

// NewStore 创建以 path 为存储文件的 Store，logger 为 nil 时丢弃日志
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{path: path, logger: logger}
}

// Path 返回存储文件路径
func (s *Store) Path() string { return s.path }

// LastErr 返回最近一次持久化失败，没有则为 nil
func (s *Store) LastErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// List 按文件顺序返回全部配置
// 文件不存在时创建空数组；无法读取或内容损坏时返回空列表，损坏的文件会被重置为空数组
func (s *Store) List() []models.ConnectionProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Exists 判断是否已保存名为 name 的配置
func (s *Store) Exists(name string) bool {
	_, ok := s.Find(name)
	return ok
}

// Find 按名称查找配置
func (s *Store) Find(name string) (models.ConnectionProfile, bool) {
	for _, p := range s.List() {
		if p.Name == name {
			return p, true
		}
	}
	return models.ConnectionProfile{}, false
}

// Append 将 p 追加到末尾，名称已存在时失败
func (s *Store) Append(p models.ConnectionProfile) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	profiles := s.load()
	if indexOf(profiles, p.Name) >= 0 {
		s.logger.Warn("profile already exists", "name", p.Name)
		return false
	}
	return s.write(append(profiles, normalize(p)))
}

// Overwrite 原位替换与 p 同名的配置，不存在时失败
func (s *Store) Overwrite(p models.ConnectionProfile) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	profiles := s.load()
	i := indexOf(profiles, p.Name)
	if i < 0 {
		s.logger.Warn("profile to overwrite not found", "name", p.Name)
		return false
	}
	profiles[i] = normalize(p)
	return s.write(profiles)
}

// Save 追加 p；同名配置已存在时仅在 confirm 返回 true 时覆盖，confirm 为 nil 视为拒绝
func (s *Store) Save(p models.ConnectionProfile, confirm func(name string) bool) bool {
	if !s.Exists(p.Name) {
		return s.Append(p)
	}
	if confirm == nil || !confirm(p.Name) {
		s.logger.Info("overwrite declined", "name", p.Name)
		return false
	}
	return s.Overwrite(p)
}

// Delete 删除名为 name 的配置；不存在时返回 false 且不改动文件
func (s *Store) Delete(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	profiles := s.load()
	kept := make([]models.ConnectionProfile, 0, len(profiles))
	for _, p := range profiles {
		if p.Name != name {
			kept = append(kept, p)
		}
	}
	if len(kept) == len(profiles) {
		return false
	}
	return s.write(kept)
}

func (s *Store) load() []models.ConnectionProfile {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.write([]models.ConnectionProfile{})
			return []models.ConnectionProfile{}
		}
		s.fail("read", err)
		return []models.ConnectionProfile{}
	}
	profiles, err := decode(data)
	if err != nil {
		s.fail("parse", err)
		s.logger.Warn("resetting corrupt profile file", "path", s.path)
		s.write([]models.ConnectionProfile{})
		return []models.ConnectionProfile{}
	}
	return profiles
}

func decode(data []byte) ([]models.ConnectionProfile, error) {
	var profiles []models.ConnectionProfile
	if err := json.Unmarshal(data, &profiles); err != nil {
		return nil, err
	}
	for i := range profiles {
		profiles[i] = normalize(profiles[i])
	}
	if profiles == nil {
		profiles = []models.ConnectionProfile{}
	}
	return profiles, nil
}

func encode(profiles []models.ConnectionProfile) ([]byte, error) {
	if profiles == nil {
		profiles = []models.ConnectionProfile{}
	}
	data, err := json.MarshalIndent(profiles, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// write 先写临时文件再 rename 替换
func (s *Store) write(profiles []models.ConnectionProfile) bool {
	data, err := encode(profiles)
	if err != nil {
		s.fail("write", err)
		return false
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		s.fail("write", err)
		return false
	}
	tmp, err := os.CreateTemp(dir, ".profiles-*.json")
	if err != nil {
		s.fail("write", err)
		return false
	}
	tmpName := tmp.Name()
	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if werr == nil {
		werr = cerr
	}
	if werr == nil {
		werr = os.Chmod(tmpName, 0600)
	}
	if werr == nil {
		werr = os.Rename(tmpName, s.path)
	}
	if werr != nil {
		_ = os.Remove(tmpName)
		s.fail("write", werr)
		return false
	}
	return true
}

func (s *Store) fail(op string, err error) {
	s.lastErr = &PersistenceError{Op: op, Path: s.path, Err: err}
	s.logger.Error("profile store failure", "op", op, "path", s.path, "err", err)
}

func indexOf(profiles []models.ConnectionProfile, name string) int {
	for i, p := range profiles {
		if p.Name == name {
			return i
		}
	}
	return -1
}

func normalize(p models.ConnectionProfile) models.ConnectionProfile {
	if p.Port <= 0 {
		p.Port = models.DefaultPort
	}
	if p.OS == "" {
		p.OS = models.OSWindows
	}
	return p
}
