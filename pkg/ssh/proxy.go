package ssh

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrIncompleteProxy 跳板机参数只给出了一部分
var ErrIncompleteProxy = errors.New("proxy host, port and username must be set together")

// ProxyConfig 跳板机（jump host）参数
type ProxyConfig struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password,omitempty" yaml:"password"`
}

// Enabled 是否配置了跳板机
func (p *ProxyConfig) Enabled() bool {
	return p != nil && (p.Host != "" || p.Port != 0 || p.Username != "")
}

// Validate 要求 host/port/username 要么全部给出，要么全部为空
func (p *ProxyConfig) Validate() error {
	if p == nil {
		return nil
	}
	set := 0
	if p.Host != "" {
		set++
	}
	if p.Port != 0 {
		set++
	}
	if p.Username != "" {
		set++
	}
	if set != 0 && set != 3 {
		return ErrIncompleteProxy
	}
	return nil
}

// Address 返回跳板机 host:port
func (p *ProxyConfig) Address() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// RenderProxyConfig 生成经跳板机访问 target 的 OpenSSH 客户端配置片段
func RenderProxyConfig(target *ConnectionInfo) (string, error) {
	if target == nil || target.Host == "" {
		return "", errors.New("target host is required")
	}
	p := target.Proxy
	if !p.Enabled() {
		return "", errors.New("proxy is not configured")
	}
	if err := p.Validate(); err != nil {
		return "", err
	}

	port := target.Port
	if port == 0 {
		port = 22
	}

	// User 为跳板机用户，登录设备的用户名由会话参数给出
	var b strings.Builder
	fmt.Fprintf(&b, "Host %s\n", target.Host)
	fmt.Fprintf(&b, "  HostName %s\n", target.Host)
	fmt.Fprintf(&b, "  User %s\n", p.Username)
	fmt.Fprintf(&b, "  Port %d\n", port)
	b.WriteString("  StrictHostKeyChecking no\n")
	proxyCmd := fmt.Sprintf("ssh %s@%s nc %%h %%p", p.Username, p.Host)
	if p.Port != 22 {
		proxyCmd = fmt.Sprintf("ssh -p %d %s@%s nc %%h %%p", p.Port, p.Username, p.Host)
	}
	fmt.Fprintf(&b, "  ProxyCommand %s\n", proxyCmd)
	return b.String(), nil
}

// WriteProxyConfigFile 将配置片段写入 dir/ssh_proxy_<host>，返回文件路径
func WriteProxyConfigFile(dir string, target *ConnectionInfo) (string, error) {
	content, err := RenderProxyConfig(target)
	if err != nil {
		return "", err
	}
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create proxy config dir: %w", err)
	}
	path := filepath.Join(dir, "ssh_proxy_"+target.Host)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return "", fmt.Errorf("failed to write proxy config: %w", err)
	}
	return path, nil
}
