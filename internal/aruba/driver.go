// Package aruba 实现 HP Aruba（ProCurve/ArubaOS-Switch）交换机的会话协议层：
// 回显提取、命令执行与候选回退、Operator/Manager 权限状态机、MAC 规范化以及 MAC 追踪流程。
//
// 一个 Driver 独占一个 Session，所有操作严格串行，Driver 本身不做加锁，
// 需要跨 goroutine 复用时由调用方串行化。
package aruba

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sshcollectorpro/arubatrace/pkg/logger"
	"github.com/sshcollectorpro/arubatrace/pkg/ssh"
)

// Dialer 打开到设备的 Session
type Dialer interface {
	Dial(ctx context.Context, info *ssh.ConnectionInfo) (Session, error)
}

// DialerFunc 函数形式的 Dialer
type DialerFunc func(ctx context.Context, info *ssh.ConnectionInfo) (Session, error)

// Dial 实现 Dialer
func (f DialerFunc) Dial(ctx context.Context, info *ssh.ConnectionInfo) (Session, error) {
	return f(ctx, info)
}

// SSHDialer 基于 pkg/ssh 的默认 Dialer：建立连接（可经跳板机）并打开 PTY shell
func SSHDialer(cfg *ssh.Config, shellOpts *ssh.ShellOptions) Dialer {
	return DialerFunc(func(ctx context.Context, info *ssh.ConnectionInfo) (Session, error) {
		client := ssh.NewClient(cfg)
		if err := client.Connect(ctx, info); err != nil {
			return nil, err
		}
		shell, err := client.OpenShell(ctx, shellOpts)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		return shell, nil
	})
}

// Options Driver 参数
type Options struct {
	// Connection 登录凭据与可选跳板机
	Connection ssh.ConnectionInfo
	// Secret enable 口令，与登录口令不同
	Secret string
	// SSH 传输配置，仅在 Dialer 为空时用于默认 SSHDialer
	SSH *ssh.Config
	// Dialer 为空时使用 SSHDialer
	Dialer Dialer
	// Extractor 为空时使用内置模板
	Extractor Extractor
}

// Driver 单台设备的会话驱动
type Driver struct {
	session   Session
	exec      *Executor
	priv      *PrivilegeMachine
	extractor Extractor
	state     State
	host      string
	log       *logrus.Entry
}

// Open 建立会话并查询当前权限
func Open(ctx context.Context, opts Options) (*Driver, error) {
	dialer := opts.Dialer
	if dialer == nil {
		dialer = SSHDialer(opts.SSH, nil)
	}
	info := opts.Connection
	session, err := dialer.Dial(ctx, &info)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w: %w", info.Host, ErrSessionIO, err)
	}

	d := New(session, opts)
	if _, err := d.QueryPrivilege(ctx); err != nil {
		_ = session.Close()
		return nil, err
	}
	d.log.Infof("session opened, privilege %s", d.state.Level)
	return d, nil
}

// New 基于已有 Session 构建 Driver，初始权限为 LevelUnknown
func New(session Session, opts Options) *Driver {
	extractor := opts.Extractor
	if extractor == nil {
		extractor = NewTemplateExtractor(nil)
	}
	host := opts.Connection.Host
	exec := NewExecutor(session, host)
	return &Driver{
		session:   session,
		exec:      exec,
		priv:      NewPrivilegeMachine(exec, extractor, opts.Connection.Username, opts.Secret),
		extractor: extractor,
		host:      host,
		log:       logger.WithDevice(host),
	}
}

// Close 关闭会话
func (d *Driver) Close() error {
	return d.session.Close()
}

// Privilege 当前已知的权限级别
func (d *Driver) Privilege() Level {
	return d.state.Level
}

// State 当前权限状态
func (d *Driver) State() State {
	return d.state
}

// Executor 底层命令执行器
func (d *Driver) Executor() *Executor {
	return d.exec
}

// QueryPrivilege 重新查询并记录当前权限
func (d *Driver) QueryPrivilege(ctx context.Context) (Level, error) {
	st, err := d.priv.QueryPrivilege(ctx, d.state)
	d.state = st
	return st.Level, err
}

// Escalate 提权到 Manager
func (d *Driver) Escalate(ctx context.Context) error {
	st, err := d.priv.Escalate(ctx, d.state)
	d.state = st
	return err
}

// DisablePaging 关闭分页（必要时先提权）
func (d *Driver) DisablePaging(ctx context.Context) error {
	st, err := d.priv.DisablePaging(ctx, d.state)
	d.state = st
	return err
}
