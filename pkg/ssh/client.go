package ssh

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Config SSH配置
type Config struct {
	Timeout        time.Duration `yaml:"timeout"`
	KeepAlive      time.Duration `yaml:"keep_alive"`
	CommandTimeout time.Duration `yaml:"command_timeout"`
	// 开启后按 KnownHostsFile 校验主机密钥，否则接受任意主机密钥
	StrictHostKey  bool   `yaml:"strict_host_key"`
	KnownHostsFile string `yaml:"known_hosts_file"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Timeout:        30 * time.Second,
		KeepAlive:      30 * time.Second,
		CommandTimeout: 30 * time.Second,
	}
}

// ConnectionInfo SSH连接信息
type ConnectionInfo struct {
	Host     string       `json:"host"`
	Port     int          `json:"port"`
	Username string       `json:"username"`
	Password string       `json:"password"`
	Proxy    *ProxyConfig `json:"proxy,omitempty"`
}

// Address 返回 host:port，端口缺省为 22
func (i *ConnectionInfo) Address() string {
	port := i.Port
	if port == 0 {
		port = 22
	}
	return net.JoinHostPort(i.Host, strconv.Itoa(port))
}

// Client SSH客户端
type Client struct {
	config     *Config
	connection *ssh.Client
	// 经跳板机建立连接时持有跳板机连接，关闭时一并释放
	jump   *ssh.Client
	mutex  sync.RWMutex
	cancel context.CancelFunc
}

// NewClient 创建SSH客户端
func NewClient(config *Config) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	return &Client{config: config}
}

// clientConfig 构建 x/crypto/ssh 客户端配置，保留对老旧交换机的算法兼容
func (c *Client) clientConfig(user, password string) (*ssh.ClientConfig, error) {
	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if c.config.StrictHostKey {
		if c.config.KnownHostsFile == "" {
			return nil, errors.New("strict host key checking requires known_hosts_file")
		}
		cb, err := knownhosts.New(c.config.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load known hosts: %w", err)
		}
		hostKeyCallback = cb
	}

	cfg := &ssh.ClientConfig{
		User:            user,
		HostKeyCallback: hostKeyCallback,
		Timeout:         c.config.Timeout,
		Config: ssh.Config{
			// 支持旧版本的密钥交换算法
			KeyExchanges: []string{
				"curve25519-sha256",
				"curve25519-sha256@libssh.org",
				"diffie-hellman-group14-sha256",
				"diffie-hellman-group14-sha1",
				"diffie-hellman-group1-sha1",
				"diffie-hellman-group-exchange-sha256",
				"diffie-hellman-group-exchange-sha1",
				"ecdh-sha2-nistp256",
				"ecdh-sha2-nistp384",
				"ecdh-sha2-nistp521",
			},
			// 支持旧版本的加密算法
			Ciphers: []string{
				"aes128-ctr",
				"aes192-ctr",
				"aes256-ctr",
				"aes128-gcm@openssh.com",
				"aes256-gcm@openssh.com",
				"aes128-cbc",
				"aes192-cbc",
				"aes256-cbc",
				"3des-cbc",
			},
			// 支持旧版本的MAC算法
			MACs: []string{
				"hmac-sha2-256-etm@openssh.com",
				"hmac-sha2-256",
				"hmac-sha1",
				"hmac-sha1-96",
			},
		},
		HostKeyAlgorithms: []string{
			"ssh-ed25519",
			"ssh-rsa",
			"rsa-sha2-256",
			"rsa-sha2-512",
			"ecdsa-sha2-nistp256",
			"ecdsa-sha2-nistp384",
			"ecdsa-sha2-nistp521",
		},
	}

	if password != "" {
		// 同时尝试 password 与 keyboard-interactive，ArubaOS-Switch 两种方式都可能启用
		cfg.Auth = []ssh.AuthMethod{
			ssh.Password(password),
			ssh.KeyboardInteractive(func(user, instruction string, questions []string, echos []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range questions {
					answers[i] = password
				}
				return answers, nil
			}),
		}
	}
	return cfg, nil
}

// Connect 连接SSH服务器；info.Proxy 非空时先登录跳板机再由跳板机转发 TCP
func (c *Client) Connect(ctx context.Context, info *ConnectionInfo) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.connection != nil {
		return errors.New("SSH connection already established")
	}

	targetCfg, err := c.clientConfig(info.Username, info.Password)
	if err != nil {
		return err
	}
	address := info.Address()

	var conn net.Conn
	if info.Proxy.Enabled() {
		if err := info.Proxy.Validate(); err != nil {
			return err
		}
		jumpCfg, err := c.clientConfig(info.Proxy.Username, info.Proxy.Password)
		if err != nil {
			return err
		}
		jump, err := c.dial(ctx, info.Proxy.Address(), jumpCfg)
		if err != nil {
			return fmt.Errorf("failed to connect jump host %s: %w", info.Proxy.Address(), err)
		}
		conn, err = jump.Dial("tcp", address)
		if err != nil {
			jump.Close()
			return fmt.Errorf("failed to dial %s via jump host: %w", address, err)
		}
		c.jump = jump
	} else {
		dialer := &net.Dialer{Timeout: c.config.Timeout}
		conn, err = dialer.DialContext(ctx, "tcp", address)
		if err != nil {
			return fmt.Errorf("failed to dial: %w", err)
		}
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, address, targetCfg)
	if err != nil {
		conn.Close()
		if c.jump != nil {
			c.jump.Close()
			c.jump = nil
		}
		return fmt.Errorf("failed to create SSH connection: %w", err)
	}
	c.connection = ssh.NewClient(sshConn, chans, reqs)

	// 保活协程的生命周期跟随连接而不是调用方的 ctx
	kaCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go c.keepAlive(kaCtx)

	return nil
}

func (c *Client) dial(ctx context.Context, address string, cfg *ssh.ClientConfig) (*ssh.Client, error) {
	dialer := &net.Dialer{Timeout: c.config.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, address, cfg)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return ssh.NewClient(sshConn, chans, reqs), nil
}

// Close 关闭SSH连接
func (c *Client) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}

	var err error
	if c.connection != nil {
		err = c.connection.Close()
		c.connection = nil
	}
	if c.jump != nil {
		if jerr := c.jump.Close(); err == nil {
			err = jerr
		}
		c.jump = nil
	}
	return err
}

// IsConnected 检查连接状态
func (c *Client) IsConnected() bool {
	c.mutex.RLock()
	conn := c.connection
	c.mutex.RUnlock()
	if conn == nil {
		return false
	}
	// 轻量级健康检查：发送 keepalive 请求而不创建会话，避免触发设备的会话数量限制
	_, _, err := conn.SendRequest("keepalive@openssh.com", false, nil)
	return err == nil
}

// keepAlive 保持连接活跃
func (c *Client) keepAlive(ctx context.Context) {
	if c.config.KeepAlive <= 0 {
		return
	}

	ticker := time.NewTicker(c.config.KeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !c.IsConnected() {
				return
			}
		}
	}
}
