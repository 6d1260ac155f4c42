package config

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"remoteqna/internal/models"
)

// Export 导出全部配置（密码仍为密文），格式与配置文件相同，便于备份或迁移
func (s *Store) Export(w io.Writer) error {
	data, err := encode(s.List())
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Import 导入 JSON 数组：replace 为 true 时整体替换，否则按名称合并
// （已存在的原位更新，新的追加到末尾），返回导入后的配置数量
func (s *Store) Import(r io.Reader, replace bool) (int, error) {
	var incoming []models.ConnectionProfile
	if err := json.NewDecoder(r).Decode(&incoming); err != nil {
		return 0, fmt.Errorf("invalid profile json: %w", err)
	}
	for i := range incoming {
		incoming[i].Name = strings.TrimSpace(incoming[i].Name)
		incoming[i].Host = strings.TrimSpace(incoming[i].Host)
		incoming[i].Username = strings.TrimSpace(incoming[i].Username)
		incoming[i].QnAPath = strings.TrimSpace(incoming[i].QnAPath)
		incoming[i] = normalize(incoming[i])
		if err := incoming[i].Validate(); err != nil {
			return 0, fmt.Errorf("profile %d: %w", i, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var profiles []models.ConnectionProfile
	if replace {
		profiles = dedupe(incoming)
	} else {
		profiles = s.load()
		for _, p := range incoming {
			if i := indexOf(profiles, p.Name); i >= 0 {
				profiles[i] = p
			} else {
				profiles = append(profiles, p)
			}
		}
	}
	if !s.write(profiles) {
		return 0, s.lastErr
	}
	return len(profiles), nil
}

// dedupe 同名配置保留最后一次出现的内容，位置取第一次出现处
func dedupe(in []models.ConnectionProfile) []models.ConnectionProfile {
	out := make([]models.ConnectionProfile, 0, len(in))
	for _, p := range in {
		if i := indexOf(out, p.Name); i >= 0 {
			out[i] = p
			continue
		}
		out = append(out, p)
	}
	return out
}
