package logger

import (
	"slices"
	"strings"

	"github.com/sirupsen/logrus"
)

// OutputLines 命令回显的头部与尾部行
type OutputLines struct {
	HeadLines []string `json:"head_lines"`
	TailLines []string `json:"tail_lines"`
}

// ParseOutputLines 提取回显的头尾各 maxLines 行；空行会被跳过
func ParseOutputLines(output string, maxLines int) OutputLines {
	if maxLines <= 0 {
		maxLines = 5
	}

	output = strings.ReplaceAll(output, "\r\n", "\n")
	output = strings.ReplaceAll(output, "\r", "\n")

	lines := make([]string, 0)
	for _, line := range strings.Split(output, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, strings.TrimRight(line, " \t"))
	}

	total := len(lines)
	if total == 0 {
		return OutputLines{}
	}

	headCount := min(maxLines, total)
	head := slices.Clone(lines[:headCount])
	if total <= maxLines {
		return OutputLines{HeadLines: head, TailLines: slices.Clone(head)}
	}
	return OutputLines{HeadLines: head, TailLines: slices.Clone(lines[total-maxLines:])}
}

// FormatOutputLines 格式化为单行字符串，头尾相同时只输出一次
func FormatOutputLines(lines OutputLines) string {
	var parts []string
	if len(lines.HeadLines) > 0 {
		parts = append(parts, "head-lines: ["+strings.Join(lines.HeadLines, " ⟩ ")+"]")
	}
	if len(lines.TailLines) > 0 && !slices.Equal(lines.HeadLines, lines.TailLines) {
		parts = append(parts, "tail-lines: ["+strings.Join(lines.TailLines, " ⟩ ")+"]")
	}
	return strings.Join(parts, ", ")
}

// DebugCommandOutput 在 debug 级别记录设备命令回显的 head/tail-lines。
// label 是日志中展示的命令名，敏感输入（如 enable 密码）应由调用方替换。
func DebugCommandOutput(host, label, output string, maxLines int) {
	if GetLogger().Level < logrus.DebugLevel {
		return
	}

	lines := ParseOutputLines(output, maxLines)
	if len(lines.HeadLines) == 0 {
		return
	}

	WithFields(logrus.Fields{
		"device":  host,
		"command": label,
	}).Debug("Command echo: " + FormatOutputLines(lines))
}
