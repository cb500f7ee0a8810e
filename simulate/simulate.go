// Package simulate 提供进程内的 ArubaOS-Switch SSH 模拟器，
// 用于端到端测试与演示：支持 show telnet、enable 提权、no page、
// show mac-address 与 show lldp info remote-device。
package simulate

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"golang.org/x/crypto/ssh"

	"github.com/sshcollectorpro/arubatrace/pkg/logger"
)

// Level 会话初始权限
const (
	LevelOperator = "operator"
	LevelManager  = "manager"
)

// Config 模拟交换机配置
type Config struct {
	Listen   string `mapstructure:"listen"`
	Hostname string `mapstructure:"hostname"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	// enable 时要求输入的管理员用户名与口令；用户名为空时只询问口令
	EnableUsername string `mapstructure:"enable_username"`
	Secret         string `mapstructure:"secret"`
	StartLevel     string `mapstructure:"start_level"`
	// 非空时登录后先输出横幅并等待任意键
	Banner string `mapstructure:"banner"`
	// 大于 0 且未执行 no page 时按该行数分页输出
	PageLines int `mapstructure:"page_lines"`
	// 允许 direct-tcpip 转发，使模拟器可作为跳板机
	AllowForwarding bool       `mapstructure:"allow_forwarding"`
	MacTable        []MacEntry `mapstructure:"mac_table"`
	Neighbors       []Neighbor `mapstructure:"neighbors"`
}

// MacEntry MAC 地址表条目，MAC 使用 xxxx-xxxx-xxxx 形式
type MacEntry struct {
	MAC   string `mapstructure:"mac"`
	Port  string `mapstructure:"port"`
	VLANs string `mapstructure:"vlans"`
}

// Neighbor LLDP 邻居
type Neighbor struct {
	LocalPort         string `mapstructure:"local_port"`
	ChassisID         string `mapstructure:"chassis_id"`
	PortID            string `mapstructure:"port_id"`
	SystemName        string `mapstructure:"system_name"`
	SystemDescription string `mapstructure:"system_description"`
	PortDescription   string `mapstructure:"port_description"`
}

// DefaultConfig 返回一台处于 operator 模式的 2920 交换机
func DefaultConfig() *Config {
	return &Config{
		Listen:         "127.0.0.1:0",
		Hostname:       "HP-2920",
		Username:       "admin",
		Password:       "admin",
		EnableUsername: "admin",
		Secret:         "secret",
		StartLevel:     LevelOperator,
	}
}

// LoadConfig 读取 YAML 模拟器配置，未给出的字段使用 DefaultConfig
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(path)
	def := DefaultConfig()
	v.SetDefault("listen", def.Listen)
	v.SetDefault("hostname", def.Hostname)
	v.SetDefault("username", def.Username)
	v.SetDefault("password", def.Password)
	v.SetDefault("enable_username", def.EnableUsername)
	v.SetDefault("secret", def.Secret)
	v.SetDefault("start_level", def.StartLevel)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read simulate config: %w", err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal simulate config: %w", err)
	}
	return &cfg, nil
}

// Server 模拟交换机的 SSH 服务
type Server struct {
	cfg      *Config
	listener net.Listener
	hostKey  ssh.Signer
	log      *logrus.Entry

	mu     sync.Mutex
	conns  map[net.Conn]struct{}
	nextID int
	wg     sync.WaitGroup
}

// Start 监听并在后台接受连接
func Start(cfg *Config) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Listen == "" {
		cfg.Listen = "127.0.0.1:0"
	}
	switch strings.ToLower(cfg.StartLevel) {
	case "", LevelOperator, LevelManager:
	default:
		return nil, fmt.Errorf("invalid start_level %q", cfg.StartLevel)
	}

	// 主机密钥仅存在于内存中，每次启动重新生成
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate host key: %w", err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		return nil, fmt.Errorf("failed to init host key: %w", err)
	}

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", cfg.Listen, err)
	}

	s := &Server{
		cfg:      cfg,
		listener: ln,
		hostKey:  signer,
		conns:    make(map[net.Conn]struct{}),
		// 会话 1 固定为 Console，SSH 会话从 2 开始编号
		nextID: 2,
		log:    logger.WithFields(logrus.Fields{"component": "simulate", "hostname": cfg.Hostname}),
	}
	s.wg.Add(1)
	go s.acceptLoop()
	s.log.Infof("Simulate: listening on %s", ln.Addr())
	return s, nil
}

// Addr 实际监听地址
func (s *Server) Addr() string { return s.listener.Addr().String() }

// Host 监听地址中的主机部分
func (s *Server) Host() string {
	h, _, _ := net.SplitHostPort(s.Addr())
	return h
}

// Port 监听端口
func (s *Server) Port() int {
	_, p, _ := net.SplitHostPort(s.Addr())
	n, _ := strconv.Atoi(p)
	return n
}

// PublicKey 主机公钥，用于写入 known_hosts
func (s *Server) PublicKey() ssh.PublicKey { return s.hostKey.PublicKey() }

// Stop 关闭监听与所有活动连接并等待会话协程退出
func (s *Server) Stop() {
	_ = s.listener.Close()
	s.mu.Lock()
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.log.Warnf("Simulate: accept failed: %v", err)
			}
			return
		}
		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func(c net.Conn) {
			defer s.wg.Done()
			s.handleConn(c)
			s.mu.Lock()
			delete(s.conns, c)
			s.mu.Unlock()
		}(conn)
	}
}

func (s *Server) serverConfig() *ssh.ServerConfig {
	check := func(user, pass string) bool {
		return user == s.cfg.Username && pass == s.cfg.Password
	}
	cfg := &ssh.ServerConfig{
		PasswordCallback: func(md ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
			if check(md.User(), string(password)) {
				return nil, nil
			}
			s.log.Debugf("Simulate: auth failed (password) user=%s", md.User())
			return nil, errors.New("access denied")
		},
		KeyboardInteractiveCallback: func(md ssh.ConnMetadata, challenge ssh.KeyboardInteractiveChallenge) (*ssh.Permissions, error) {
			answers, err := challenge(md.User(), "", []string{"Password: "}, []bool{false})
			if err != nil {
				return nil, err
			}
			if len(answers) == 1 && check(md.User(), answers[0]) {
				return nil, nil
			}
			return nil, errors.New("access denied")
		},
	}
	cfg.AddHostKey(s.hostKey)
	return cfg
}

func (s *Server) handleConn(nc net.Conn) {
	defer nc.Close()
	conn, chans, reqs, err := ssh.NewServerConn(nc, s.serverConfig())
	if err != nil {
		s.log.Debugf("Simulate: SSH handshake failed: %v", err)
		return
	}
	defer conn.Close()
	go ssh.DiscardRequests(reqs)

	for ch := range chans {
		switch ch.ChannelType() {
		case "session":
		case "direct-tcpip":
			if s.cfg.AllowForwarding {
				s.wg.Add(1)
				go func(ch ssh.NewChannel) {
					defer s.wg.Done()
					s.forward(ch)
				}(ch)
				continue
			}
			_ = ch.Reject(ssh.Prohibited, "port forwarding disabled")
			continue
		default:
			_ = ch.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		channel, requests, err := ch.Accept()
		if err != nil {
			s.log.Warnf("Simulate: channel accept failed: %v", err)
			continue
		}
		s.mu.Lock()
		id := s.nextID
		s.nextID++
		s.mu.Unlock()

		sw := newSwitchSession(s.cfg, id, remoteHost(nc.RemoteAddr()), channel, s.log)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleRequests(channel, requests, sw)
		}()
	}
}

func (s *Server) handleRequests(channel ssh.Channel, requests <-chan *ssh.Request, sw *switchSession) {
	defer channel.Close()
	for req := range requests {
		switch req.Type {
		case "pty-req", "window-change", "env":
			_ = req.Reply(req.WantReply, nil)
		case "shell":
			_ = req.Reply(true, nil)
			go func() {
				sw.run()
				_ = channel.Close()
			}()
		default:
			// ArubaOS-Switch 不支持 exec 等请求
			_ = req.Reply(false, nil)
		}
	}
}

// forward 处理跳板转发：连接目标地址并双向拷贝
func (s *Server) forward(ch ssh.NewChannel) {
	var req struct {
		Host     string
		Port     uint32
		OrigHost string
		OrigPort uint32
	}
	if err := ssh.Unmarshal(ch.ExtraData(), &req); err != nil {
		_ = ch.Reject(ssh.ConnectionFailed, "malformed direct-tcpip request")
		return
	}
	target, err := net.Dial("tcp", net.JoinHostPort(req.Host, strconv.Itoa(int(req.Port))))
	if err != nil {
		_ = ch.Reject(ssh.ConnectionFailed, err.Error())
		return
	}
	channel, reqs, err := ch.Accept()
	if err != nil {
		target.Close()
		return
	}
	go ssh.DiscardRequests(reqs)
	s.log.Debugf("Simulate: forwarding to %s:%d", req.Host, req.Port)

	done := make(chan struct{}, 2)
	go func() {
		_, _ = io.Copy(target, channel)
		done <- struct{}{}
	}()
	go func() {
		_, _ = io.Copy(channel, target)
		done <- struct{}{}
	}()
	<-done
	_ = channel.Close()
	_ = target.Close()
}

func remoteHost(addr net.Addr) string {
	h, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return h
}
