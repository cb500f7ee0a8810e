package util

import (
	"bytes"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/x/ansi"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// EnsureUTF8Bytes 将设备回显转换为 UTF-8。已是合法 UTF-8 时原样返回；
// ProCurve/ArubaOS 老固件的 banner 偶尔带 Latin-1 字节，依次尝试常见单字节编码。
func EnsureUTF8Bytes(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	if utf8.Valid(b) {
		return string(b)
	}
	encs := []encoding.Encoding{
		charmap.Windows1252,
		charmap.ISO8859_1,
	}
	for _, enc := range encs {
		if s, ok := tryDecode(enc, b); ok {
			return s
		}
	}
	return string(b)
}

func tryDecode(enc encoding.Encoding, b []byte) (string, bool) {
	reader := transform.NewReader(bytes.NewReader(b), enc.NewDecoder())
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return "", false
	}
	if utf8.Valid(decoded) {
		return string(decoded), true
	}
	return "", false
}

// NormalizeOutput 清洗终端原始回显：转 UTF-8、移除 ANSI 控制序列（Aruba 在 PTY 下
// 大量输出光标定位序列）、统一换行为 \n 并丢弃孤立的 CR 与退格。
func NormalizeOutput(b []byte) string {
	s := ansi.Strip(EnsureUTF8Bytes(b))
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\b", "")
	return s
}
