package ssh

import (
	"errors"
	"fmt"
)

// ErrNotConnected 未建立会话时 Execute 与 TestFileExists 返回此错误，不会尝试连接
var ErrNotConnected = errors.New("not connected to remote machine")

// ConnectionError 连接失败（拨号、握手、认证或超时），之后 Client 为 Disconnected
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to %s: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ExecutionError 在已建立的会话上执行命令时的传输错误
// Timeout 为 true 时会话已断开需重新连接，否则仍可继续使用
type ExecutionError struct {
	Command string
	Timeout bool
	Err     error
}

func (e *ExecutionError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("command execution timed out: %v", e.Err)
	}
	return fmt.Sprintf("command execution failed: %v", e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
