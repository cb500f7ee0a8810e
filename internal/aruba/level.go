package aruba

import (
	"fmt"
	"strings"
)

// Level 会话权限级别
type Level int

const (
	LevelUnknown Level = iota
	LevelOperator
	LevelManager
)

func (l Level) String() string {
	switch l {
	case LevelOperator:
		return "operator"
	case LevelManager:
		return "manager"
	default:
		return "unknown"
	}
}

// MarshalText 以小写名称序列化（JSON/YAML 输出）
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText 接受 operator/manager/unknown，大小写不敏感
func (l *Level) UnmarshalText(b []byte) error {
	s := strings.TrimSpace(string(b))
	lv := ParseLevel(s)
	if lv == LevelUnknown && !strings.EqualFold(s, "unknown") && s != "" {
		return fmt.Errorf("invalid privilege level %q", s)
	}
	*l = lv
	return nil
}

// ParseLevel 解析 show telnet 中的 Privilege 字段，无法识别时返回 LevelUnknown
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "operator":
		return LevelOperator
	case "manager":
		return LevelManager
	default:
		return LevelUnknown
	}
}

// State 权限状态机的显式状态，由 Driver 持有并在各操作间传递
type State struct {
	Level Level `json:"level" yaml:"level"`
}
