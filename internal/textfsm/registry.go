package textfsm

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// 内置模板名称
const (
	ShowTelnet               = "show_telnet"
	ShowMacAddress           = "show_mac_address"
	ShowLLDPInfoRemoteDevice = "show_lldp_info_remote_device"
	templateExt              = ".textfsm"
)

// ErrTemplateNotFound 未注册的模板名
var ErrTemplateNotFound = errors.New("textfsm: template not found")

//go:embed templates/*.textfsm
var builtin embed.FS

// Registry 按名称管理已编译的模板
type Registry struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default 返回仅包含内置模板的共享注册中心
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry 创建注册中心并载入内置模板
func NewRegistry() *Registry {
	r := &Registry{templates: map[string]*Template{}}
	entries, err := builtin.ReadDir("templates")
	if err != nil {
		panic(err)
	}
	for _, e := range entries {
		bs, err := builtin.ReadFile(path.Join("templates", e.Name()))
		if err != nil {
			panic(err)
		}
		r.templates[strings.TrimSuffix(e.Name(), templateExt)] = MustCompile(string(bs))
	}
	return r
}

// Register 编译并注册模板，同名模板会被覆盖
func (r *Registry) Register(name, text string) error {
	t, err := Compile(text)
	if err != nil {
		return fmt.Errorf("template %s: %w", name, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[name] = t
	return nil
}

// LoadDir 从目录加载 *.textfsm 文件，用于现场覆盖内置模板
func (r *Registry) LoadDir(dir string) error {
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("template dir: %w", err)
	}
	files, err := filepath.Glob(filepath.Join(dir, "*"+templateExt))
	if err != nil {
		return err
	}
	for _, f := range files {
		bs, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read template %s: %w", f, err)
		}
		if err := r.Register(strings.TrimSuffix(filepath.Base(f), templateExt), string(bs)); err != nil {
			return err
		}
	}
	return nil
}

// Names 返回已注册模板名（排序后）
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.templates))
	for n := range r.templates {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Parse 使用指定模板解析原始文本
func (r *Registry) Parse(name, raw string) ([]map[string]string, error) {
	r.mu.RLock()
	t, ok := r.templates[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	return t.ParseText(raw)
}
