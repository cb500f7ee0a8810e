package aruba

import (
	"regexp"
	"strings"
)

// MAC 设备规范写法 xxxx-xxxx-xxxx（小写十六进制）
type MAC string

func (m MAC) String() string { return string(m) }

var (
	colonMacRe  = regexp.MustCompile(`^[0-9a-fA-F]{2}(?::[0-9a-fA-F]{2}){5}$`)
	hyphenMacRe = regexp.MustCompile(`^[0-9a-fA-F]+(?:-[0-9a-fA-F]+)+$`)
	// 以恰好 12 位连续十六进制结尾，前面不能紧跟其他十六进制字符
	bareMacRe = regexp.MustCompile(`(?:^|[^0-9a-fA-F])([0-9a-fA-F]{12})$`)
)

// NormalizeMAC 接受三种写法：冒号分隔的 6 组、任意分组的连字符写法、以 12 位十六进制结尾的串，
// 统一输出为 4-4-4 连字符分组。其他写法返回 *MacFormatError。
func NormalizeMAC(input string) (MAC, error) {
	s := strings.TrimSpace(input)

	var digits string
	switch {
	case colonMacRe.MatchString(s):
		digits = strings.ReplaceAll(s, ":", "")
	case hyphenMacRe.MatchString(s):
		digits = strings.ReplaceAll(s, "-", "")
	default:
		if m := bareMacRe.FindStringSubmatch(s); m != nil {
			digits = m[1]
		}
	}
	if len(digits) != 12 {
		return "", &MacFormatError{Input: input}
	}

	digits = strings.ToLower(digits)
	return MAC(digits[0:4] + "-" + digits[4:8] + "-" + digits[8:12]), nil
}
