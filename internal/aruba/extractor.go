package aruba

import (
	"strings"

	"github.com/sshcollectorpro/arubatrace/internal/textfsm"
)

// 记录字段名（模板 Value 名的小写形式）
const (
	FieldSession           = "session"
	FieldUserLevel         = "user_level"
	FieldPort              = "port"
	FieldLocalPort         = "local_port"
	FieldChassisID         = "chassis_id"
	FieldPortID            = "port_id"
	FieldSystemName        = "system_name"
	FieldSystemDescription = "system_description"
	FieldPortDescription   = "port_description"
)

// Record 单条结构化记录
type Record map[string]string

// Extractor 将原始回显按模板名转换为有序记录。零条记录表示"无数据"，不是错误。
type Extractor interface {
	Extract(template, raw string) ([]Record, error)
}

// TemplateExtractor 基于 TextFSM 注册中心的 Extractor
type TemplateExtractor struct {
	registry *textfsm.Registry
}

// NewTemplateExtractor registry 为 nil 时使用内置模板
func NewTemplateExtractor(registry *textfsm.Registry) *TemplateExtractor {
	if registry == nil {
		registry = textfsm.Default()
	}
	return &TemplateExtractor{registry: registry}
}

// Extract 引擎错误原样返回
func (e *TemplateExtractor) Extract(template, raw string) ([]Record, error) {
	rows, err := e.registry.Parse(template, raw)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec := make(Record, len(row))
		for k, v := range row {
			rec[strings.ToLower(k)] = strings.TrimSpace(v)
		}
		out = append(out, rec)
	}
	return out, nil
}
