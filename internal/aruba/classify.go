package aruba

import "strings"

// 设备回显中的固定标记
const (
	invalidInputMarker   = "Invalid input:"
	macNotFoundMarker    = " not found."
	usernamePromptMarker = "sername:"
	passwordPromptMarker = "assword:"
)

// IsInvalidInput 命令被 CLI 解释器拒绝
func IsInvalidInput(raw string) bool {
	return strings.Contains(raw, invalidInputMarker)
}

// IsMacNotFound show mac-address 查无此地址
func IsMacNotFound(raw string) bool {
	return strings.Contains(raw, macNotFoundMarker)
}

// IsUsernamePrompt enable 要求输入管理员用户名
func IsUsernamePrompt(raw string) bool {
	return strings.Contains(raw, usernamePromptMarker)
}

// IsPasswordPrompt 设备在等待口令
func IsPasswordPrompt(raw string) bool {
	return strings.Contains(raw, passwordPromptMarker)
}
