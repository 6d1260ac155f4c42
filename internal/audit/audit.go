// Package audit 将连接与查询事件追加写入 access.log
package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"remoteqna/internal/models"
)

// Log 每个事件写一行并立即 Sync，确保进程异常退出时也能落盘
// 写入失败直接忽略，不影响正常使用
type Log struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

// New 返回写入 dir/access.log 的 Log
func New(dir string) *Log {
	return &Log{path: filepath.Join(dir, "access.log"), now: time.Now}
}

// Path 返回日志文件路径
func (l *Log) Path() string { return l.path }

func (l *Log) writeLine(line string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(l.path), 0700); err != nil {
		return
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return
	}
	_, _ = f.WriteString(line)
	_ = f.Sync()
	_ = f.Close()
}

func (l *Log) prefix(event string, p models.ConnectionProfile) string {
	ts := l.now().UTC().Format(time.RFC3339)
	return fmt.Sprintf("%s %s name=%s host=%s port=%d user=%s",
		ts, event, escape(p.Name), p.Host, p.EffectivePort(), escape(p.Username))
}

// ConnectStart 在握手开始前记录一次连接尝试
func (l *Log) ConnectStart(p models.ConnectionProfile) {
	if l == nil {
		return
	}
	l.writeLine(l.prefix("connect", p) + " status=started\n")
}

// Connect 记录连接结果
func (l *Log) Connect(p models.ConnectionProfile, connectErr error) {
	if l == nil {
		return
	}
	line := l.prefix("connect", p)
	if connectErr != nil {
		line += " status=failure err=" + escape(connectErr.Error())
	} else {
		line += " status=success"
	}
	l.writeLine(line + "\n")
}

// Query 记录执行的查询及退出码，未拿到结果时记录错误
func (l *Log) Query(p models.ConnectionProfile, query string, exitCode int, execErr error) {
	if l == nil {
		return
	}
	line := l.prefix("query", p) + " query=" + escape(query)
	if execErr != nil {
		line += " status=failure err=" + escape(execErr.Error())
	} else {
		line += fmt.Sprintf(" exit=%d", exitCode)
	}
	l.writeLine(line + "\n")
}

// Disconnect 记录会话结束
func (l *Log) Disconnect(p models.ConnectionProfile) {
	if l == nil {
		return
	}
	l.writeLine(l.prefix("disconnect", p) + "\n")
}

func escape(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "\t", "_")
	if strings.ContainsAny(s, "\n\"\\") {
		return fmt.Sprintf("%q", s)
	}
	return s
}
