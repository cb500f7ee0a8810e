package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/sshcollectorpro/arubatrace/internal/aruba"
	"github.com/sshcollectorpro/arubatrace/pkg/logger"
	"github.com/sshcollectorpro/arubatrace/pkg/ssh"
)

// Config 应用配置结构
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Device    DeviceConfig    `mapstructure:"device"`
	SSH       SSHConfig       `mapstructure:"ssh"`
	Proxy     ProxyConfig     `mapstructure:"proxy"`
	Templates TemplatesConfig `mapstructure:"templates"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// SimulateEnable 启动内置模拟交换机，便于联调
	SimulateEnable bool   `mapstructure:"simulate_enable"`
	SimulateConfig string `mapstructure:"simulate_config"`
}

// DeviceConfig 默认设备与凭据。password 为登录口令，secret 为 enable 口令，二者不同。
type DeviceConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Secret   string `mapstructure:"secret"`
}

// SSHConfig SSH配置
type SSHConfig struct {
	Timeout           time.Duration `mapstructure:"timeout"`
	KeepAliveInterval time.Duration `mapstructure:"keep_alive_interval"`
	CommandTimeout    time.Duration `mapstructure:"command_timeout"`
	StrictHostKey     bool          `mapstructure:"strict_host_key"`
	KnownHostsFile    string        `mapstructure:"known_hosts_file"`
}

// ProxyConfig 跳板机配置，host/port/username 要么全部填写要么全部为空
type ProxyConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	// ConfigDir proxy-config 生成 ssh_config 文件的目录
	ConfigDir string `mapstructure:"config_dir"`
}

// TemplatesConfig 模板配置
type TemplatesConfig struct {
	// Dir 额外模板目录，同名模板覆盖内置模板
	Dir string `mapstructure:"dir"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// ErrInvalidConfig 配置校验失败
var ErrInvalidConfig = errors.New("invalid config")

var (
	mu           sync.RWMutex
	v            *viper.Viper
	globalConfig *Config
)

// Load 加载配置文件。configPath 为空时在 ./configs 等目录查找 config.yaml，找不到时仅使用默认值与环境变量。
func Load(configPath string) (*Config, error) {
	nv := viper.New()
	nv.SetConfigType("yaml")

	// 设置默认值
	setDefaults(nv)

	if configPath != "" {
		nv.SetConfigFile(configPath)
	} else {
		// 默认配置文件路径
		nv.SetConfigName("config")
		nv.AddConfigPath("./configs")
		nv.AddConfigPath("../configs")
		nv.AddConfigPath("../../configs")
	}

	// 设置环境变量前缀，例如 ARUBATRACE_DEVICE_SECRET
	nv.SetEnvPrefix("ARUBATRACE")
	nv.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	nv.AutomaticEnv()

	if err := nv.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg, err := unmarshal(nv)
	if err != nil {
		return nil, err
	}

	mu.Lock()
	v = nv
	globalConfig = cfg
	mu.Unlock()
	return cfg, nil
}

func unmarshal(nv *viper.Viper) (*Config, error) {
	var cfg Config
	if err := nv.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(nv *viper.Viper) {
	nv.SetDefault("server.host", "0.0.0.0")
	nv.SetDefault("server.port", 8080)
	nv.SetDefault("server.mode", "release")
	nv.SetDefault("server.read_timeout", 60*time.Second)
	nv.SetDefault("server.write_timeout", 120*time.Second)
	nv.SetDefault("server.simulate_enable", false)
	nv.SetDefault("server.simulate_config", "simulate/simulate.yaml")

	nv.SetDefault("device.port", 22)

	nv.SetDefault("ssh.timeout", 30*time.Second)
	nv.SetDefault("ssh.keep_alive_interval", 30*time.Second)
	nv.SetDefault("ssh.command_timeout", 30*time.Second)
	nv.SetDefault("ssh.strict_host_key", false)

	nv.SetDefault("proxy.port", 22)
	nv.SetDefault("proxy.config_dir", "/var/tmp")

	nv.SetDefault("log.level", "info")
	nv.SetDefault("log.format", "text")
	nv.SetDefault("log.output", "console")
	nv.SetDefault("log.file_path", "./logs/arubatrace.log")
	nv.SetDefault("log.max_size", 100)
	nv.SetDefault("log.max_backups", 5)
	nv.SetDefault("log.max_age", 30)
	nv.SetDefault("log.compress", true)
}

// Get 获取全局配置
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return globalConfig
}

// Watch 监听配置文件变化：重新解析配置并重新应用日志级别，onChange 可为 nil。
// 已建立的会话不受影响，新配置只作用于之后打开的会话。
func Watch(onChange func(*Config)) {
	mu.RLock()
	nv := v
	mu.RUnlock()
	if nv == nil || nv.ConfigFileUsed() == "" {
		return
	}

	nv.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := unmarshal(nv)
		if err != nil {
			logger.Errorf("Config reload failed: %v", err)
			return
		}
		if err := cfg.Validate(); err != nil {
			logger.Errorf("Config reload rejected: %v", err)
			return
		}
		mu.Lock()
		globalConfig = cfg
		mu.Unlock()

		logger.SetLevel(cfg.Log.Level)
		logger.Infof("Config reloaded from %s", e.Name)
		if onChange != nil {
			onChange(cfg)
		}
	})
	nv.WatchConfig()
}

// Validate 校验设备凭据与跳板机配置
func (c *Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Device.Username) == "" {
		missing = append(missing, "device.username")
	}
	if c.Device.Password == "" {
		missing = append(missing, "device.password")
	}
	if c.Device.Secret == "" {
		missing = append(missing, "device.secret")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidConfig, strings.Join(missing, ", "))
	}
	if c.Device.Port < 0 || c.Device.Port > 65535 {
		return fmt.Errorf("%w: device.port %d out of range", ErrInvalidConfig, c.Device.Port)
	}
	if c.SSH.StrictHostKey && c.SSH.KnownHostsFile == "" {
		return fmt.Errorf("%w: ssh.strict_host_key requires ssh.known_hosts_file", ErrInvalidConfig)
	}
	if proxy := c.ProxyInfo(); proxy.Enabled() {
		if err := proxy.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	return nil
}

// GetServerAddr 获取服务器地址
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// LoggerConfig 转换为 pkg/logger 配置
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{
		Level:      c.Log.Level,
		Format:     c.Log.Format,
		Output:     c.Log.Output,
		FilePath:   c.Log.FilePath,
		MaxSize:    c.Log.MaxSize,
		MaxBackups: c.Log.MaxBackups,
		MaxAge:     c.Log.MaxAge,
		Compress:   c.Log.Compress,
	}
}

// SSHTransport 转换为 pkg/ssh 传输配置
func (c *Config) SSHTransport() *ssh.Config {
	return &ssh.Config{
		Timeout:        c.SSH.Timeout,
		KeepAlive:      c.SSH.KeepAliveInterval,
		CommandTimeout: c.SSH.CommandTimeout,
		StrictHostKey:  c.SSH.StrictHostKey,
		KnownHostsFile: c.SSH.KnownHostsFile,
	}
}

// ProxyInfo 跳板机配置，未配置时返回 nil
func (c *Config) ProxyInfo() *ssh.ProxyConfig {
	p := c.Proxy
	if p.Host == "" && p.Username == "" {
		return nil
	}
	return &ssh.ProxyConfig{Host: p.Host, Port: p.Port, Username: p.Username, Password: p.Password}
}

// DriverOptions 生成打开 device 的 Driver 参数。device 可为 host 或 host:port，为空时使用 device.host。
func (c *Config) DriverOptions(device string) aruba.Options {
	host, port := device, c.Device.Port
	if host == "" {
		host = c.Device.Host
	}
	if h, p, err := net.SplitHostPort(host); err == nil {
		if n, err := strconv.Atoi(p); err == nil {
			host, port = h, n
		}
	}
	return aruba.Options{
		Connection: ssh.ConnectionInfo{
			Host:     host,
			Port:     port,
			Username: c.Device.Username,
			Password: c.Device.Password,
			Proxy:    c.ProxyInfo(),
		},
		Secret: c.Device.Secret,
		SSH:    c.SSHTransport(),
	}
}
