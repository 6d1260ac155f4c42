package models

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// DefaultPort 配置未填写端口时使用
const DefaultPort = 22

// OSType 远程主机的操作系统
type OSType string

const (
	OSWindows OSType = "windows"
	OSLinux   OSType = "linux"
	OSMac     OSType = "mac"
)

// ParseOS 接受存储的名称以及常见别名（win、macos、darwin 等）
func ParseOS(s string) (OSType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "windows", "win":
		return OSWindows, nil
	case "linux":
		return OSLinux, nil
	case "mac", "macos", "darwin", "osx":
		return OSMac, nil
	}
	return "", fmt.Errorf("unknown os %q (want windows, linux or mac)", s)
}

// ConnectionProfile 表示一台远程主机的连接配置
// Password 落盘后只保存密文，不保存明文
type ConnectionProfile struct {
	Name     string `json:"name"`     // 唯一标识
	Host     string `json:"host"`     // IP 或域名
	Port     int    `json:"port"`     // 端口，默认 22
	Username string `json:"username"` // 登录用户
	Password string `json:"password"` // 加密后的密码，可为空
	OS       OSType `json:"os"`       // windows、linux、mac
	QnAPath  string `json:"qna_path"` // 远程 QnA 路径
}

// EffectivePort 返回端口，未设置时为 22
func (p ConnectionProfile) EffectivePort() int {
	if p.Port > 0 {
		return p.Port
	}
	return DefaultPort
}

// Address 返回可直接拨号的 host:port
func (p ConnectionProfile) Address() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.EffectivePort()))
}

// CipherSeed 返回派生密码密钥所用的种子 "username@host"
func (p ConnectionProfile) CipherSeed() string {
	return p.Username + "@" + p.Host
}

// Validate 检查保存和连接所必需的字段
func (p ConnectionProfile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("profile name is required")
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("profile %q: host is required", p.Name)
	}
	if strings.TrimSpace(p.Username) == "" {
		return fmt.Errorf("profile %q: username is required", p.Name)
	}
	if p.Port < 0 || p.Port > 65535 {
		return fmt.Errorf("profile %q: port %d out of range", p.Name, p.Port)
	}
	if _, err := ParseOS(string(p.OS)); err != nil {
		return fmt.Errorf("profile %q: %w", p.Name, err)
	}
	return nil
}
