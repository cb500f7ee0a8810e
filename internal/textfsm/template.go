// Package textfsm 管理 TextFSM 模板并把设备 CLI 回显解析为结构化记录，解析由 gotextfsm 完成。
package textfsm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sirikothe/gotextfsm"
)

// TemplateError 模板语法错误
type TemplateError struct {
	Err error
}

func (e *TemplateError) Error() string { return "textfsm: template: " + e.Err.Error() }

func (e *TemplateError) Unwrap() error { return e.Err }

// ParseError 解析回显失败，包括模板中 Error 动作触发的失败
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return "textfsm: parse: " + e.Err.Error() }

func (e *ParseError) Unwrap() error { return e.Err }

// Template 已校验的 TextFSM 模板
type Template struct {
	text string
}

// Compile 校验模板语法
func Compile(text string) (*Template, error) {
	if _, err := compile(text); err != nil {
		return nil, err
	}
	return &Template{text: text}, nil
}

// MustCompile 编译失败时 panic，仅用于内置模板
func MustCompile(text string) *Template {
	t, err := Compile(text)
	if err != nil {
		panic(err)
	}
	return t
}

func compile(text string) (gotextfsm.TextFSM, error) {
	fsm := gotextfsm.TextFSM{}
	if err := fsm.ParseString(text); err != nil {
		return fsm, &TemplateError{Err: err}
	}
	return fsm, nil
}

// ParseText 解析整段回显，List 值按出现顺序以逗号拼接。
// 每次解析使用独立的 TextFSM 实例，Registry 可被多个会话并发使用。
func (t *Template) ParseText(raw string) ([]map[string]string, error) {
	fsm, err := compile(t.text)
	if err != nil {
		return nil, err
	}
	out := gotextfsm.ParserOutput{}
	if err := out.ParseTextString(raw, fsm, true); err != nil {
		return nil, &ParseError{Err: err}
	}
	rows := make([]map[string]string, 0, len(out.Dict))
	for _, d := range out.Dict {
		row := make(map[string]string, len(d))
		for k, v := range d {
			row[k] = flatten(v)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func flatten(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []string:
		return strings.Join(val, ",")
	case map[string]string:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+"="+val[k])
		}
		return strings.Join(parts, " ")
	case []map[string]string:
		parts := make([]string, 0, len(val))
		for _, m := range val {
			parts = append(parts, flatten(m))
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(val)
	}
}
