package aruba

import (
	"errors"
	"fmt"
)

var (
	// ErrMacFormat 无法识别的 MAC 地址写法
	ErrMacFormat = errors.New("unrecognised mac address format")
	// ErrNoActiveSession show telnet 中没有带 ** 标记的当前会话
	ErrNoActiveSession = errors.New("no active session found in show telnet")
	// ErrPrivilegeEscalation enable 之后仍不是 Manager
	ErrPrivilegeEscalation = errors.New("privilege escalation failed")
	// ErrSessionIO 传输层错误，本层从不吞掉
	ErrSessionIO = errors.New("session i/o error")
	// ErrNoCandidates SendFirstAccepted 未给出任何候选命令
	ErrNoCandidates = errors.New("no candidate commands")
	// ErrCommandRejected 所有候选命令都被设备拒绝
	ErrCommandRejected = errors.New("command rejected by device")
)

// MacFormatError 携带原始输入的 MAC 格式错误
type MacFormatError struct {
	Input string
}

func (e *MacFormatError) Error() string {
	return fmt.Sprintf("unrecognised mac address format: %q", e.Input)
}

// Is 使 errors.Is(err, ErrMacFormat) 成立
func (e *MacFormatError) Is(target error) bool {
	return target == ErrMacFormat
}
