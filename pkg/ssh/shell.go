package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/sshcollectorpro/arubatrace/internal/util"
)

// ErrCommandTimeout 在 CommandTimeout 内未等到提示符或期望文本
var ErrCommandTimeout = errors.New("command timeout")

// ErrShellClosed 远端关闭了交互通道
var ErrShellClosed = errors.New("shell closed")

// AutoInteraction 自动交互对
// 当输出包含 ExpectOutput（大小写不敏感）时，自动发送 AutoSend（原样写入，不追加换行）
type AutoInteraction struct {
	ExpectOutput string
	AutoSend     string
}

// DefaultAutoInteractions ArubaOS-Switch 登录横幅与分页提示
var DefaultAutoInteractions = []AutoInteraction{
	{ExpectOutput: "Press any key to continue", AutoSend: "\n"},
	{ExpectOutput: "-- MORE --, next page: Space, next line: Enter, quit: Control-C", AutoSend: " "},
}

// ShellOptions 交互会话选项
type ShellOptions struct {
	// 命令结束符，ArubaOS-Switch 接受 \n
	Newline          string
	AutoInteractions []AutoInteraction
	// 首个提示符出现前诱发回车的间隔
	PromptNudge time.Duration
}

func (o *ShellOptions) withDefaults() ShellOptions {
	out := ShellOptions{}
	if o != nil {
		out = *o
	}
	if out.Newline == "" {
		out.Newline = "\n"
	}
	if out.AutoInteractions == nil {
		out.AutoInteractions = DefaultAutoInteractions
	}
	if out.PromptNudge <= 0 {
		out.PromptNudge = time.Second
	}
	return out
}

// anyPromptRe 首个提示符：主机名（可带配置模式后缀）后跟 > 或 #，位于输出末行。
// 主机名必须以字母或数字开头，横幅中的 ##### 之类分隔行不会被当作提示符。
var anyPromptRe = regexp.MustCompile(`(?:^|\n)[ \t]*([A-Za-z0-9][\w.\-]*)(?:\([^)\n]*\))?[>#]\s*$`)

// Shell 单个 PTY 交互会话。命令严格串行，调用方不得并发使用同一 Shell。
type Shell struct {
	client  *Client
	session *ssh.Session
	stdin   io.WriteCloser
	opts    ShellOptions
	timeout time.Duration

	mu      sync.Mutex
	buf     bytes.Buffer
	readErr error
	notify  chan struct{}
	done    chan struct{}

	hostname string
	prompt   *regexp.Regexp
}

// OpenShell 在已建立的连接上请求 PTY 并启动 shell，等待首个提示符
func (c *Client) OpenShell(ctx context.Context, opts *ShellOptions) (*Shell, error) {
	c.mutex.RLock()
	conn := c.connection
	c.mutex.RUnlock()
	if conn == nil {
		return nil, errors.New("SSH connection not established")
	}

	session, err := conn.NewSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	// 设置终端模式（启用回显，兼容网络设备CLI），并使用终端类型回退
	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	var ptyErr error
	for _, term := range []string{"vt100", "xterm", "ansi", "dumb"} {
		if ptyErr = session.RequestPty(term, 200, 24, modes); ptyErr == nil {
			break
		}
	}
	if ptyErr != nil {
		session.Close()
		return nil, fmt.Errorf("failed to request pty: %w", ptyErr)
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to get stdin: %w", err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to get stdout: %w", err)
	}
	if err := session.Shell(); err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to start shell: %w", err)
	}

	timeout := c.config.CommandTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	s := &Shell{
		client:  c,
		session: session,
		stdin:   stdin,
		opts:    opts.withDefaults(),
		timeout: timeout,
		notify:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go s.readLoop(stdout)

	if err := s.waitFirstPrompt(ctx); err != nil {
		session.Close()
		return nil, err
	}
	return s, nil
}

func (s *Shell) readLoop(r io.Reader) {
	defer close(s.done)
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			s.mu.Lock()
			s.buf.Write(buf[:n])
			s.mu.Unlock()
			select {
			case s.notify <- struct{}{}:
			default:
			}
		}
		if err != nil {
			s.mu.Lock()
			s.readErr = err
			s.mu.Unlock()
			return
		}
	}
}

// waitFirstPrompt 等待登录后的首个提示符，并据此确定主机名
func (s *Shell) waitFirstPrompt(ctx context.Context) error {
	nudge := time.NewTicker(s.opts.PromptNudge)
	defer nudge.Stop()
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		// 设备未主动输出提示符时定期发送回车，与 readUntil 并行运行
		for {
			select {
			case <-stop:
				return
			case <-nudge.C:
				s.mu.Lock()
				empty := s.buf.Len() == 0
				s.mu.Unlock()
				if empty {
					_, _ = io.WriteString(s.stdin, s.opts.Newline)
				}
			}
		}
	}()

	text, err := s.readUntil(ctx, func(text string) (int, int, bool) {
		if _, ok := firstPromptHostname(text); !ok {
			return 0, 0, false
		}
		return len(text), len(text), true
	})
	if err != nil {
		return fmt.Errorf("failed to detect prompt: %w", err)
	}
	s.hostname, _ = firstPromptHostname(text)
	s.prompt = regexp.MustCompile(`(?:^|\n)` + regexp.QuoteMeta(s.hostname) + `(?:\([^)\n]*\))?[>#]\s*$`)
	return nil
}

// firstPromptHostname 从首个提示符中取主机名，例如 HP-2920(config)# -> HP-2920
func firstPromptHostname(text string) (string, bool) {
	m := anyPromptRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Hostname 首个提示符中的设备名
func (s *Shell) Hostname() string { return s.hostname }

// SendCommand 发送命令并读取到下一个提示符，返回去掉回显与提示符的输出
func (s *Shell) SendCommand(ctx context.Context, cmd string) (string, error) {
	if err := s.write(cmd); err != nil {
		return "", err
	}
	text, err := s.readUntil(ctx, s.matchPrompt)
	if err != nil {
		return "", err
	}
	return stripEcho(text, cmd), nil
}

// SendCommandExpect 发送命令并读取到 pattern 或提示符（先出现者）为止。
// 命中 pattern 时输出包含匹配文本本身，便于调用方判断出现的是哪个提示。
func (s *Shell) SendCommandExpect(ctx context.Context, cmd, pattern string) (string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", fmt.Errorf("invalid expect pattern %q: %w", pattern, err)
	}
	if err := s.write(cmd); err != nil {
		return "", err
	}
	text, err := s.readUntil(ctx, func(text string) (int, int, bool) {
		if loc := re.FindStringIndex(text); loc != nil {
			return loc[1], loc[1], true
		}
		return s.matchPrompt(text)
	})
	if err != nil {
		return "", err
	}
	return stripEcho(text, cmd), nil
}

func (s *Shell) matchPrompt(text string) (int, int, bool) {
	loc := s.prompt.FindStringIndex(text)
	if loc == nil {
		return 0, 0, false
	}
	return loc[0], loc[1], true
}

// write 清空残留输出后写入命令
func (s *Shell) write(cmd string) error {
	s.mu.Lock()
	s.buf.Reset()
	readErr := s.readErr
	s.mu.Unlock()
	if readErr != nil {
		return fmt.Errorf("%w: %v", ErrShellClosed, readErr)
	}
	if _, err := io.WriteString(s.stdin, cmd+s.opts.Newline); err != nil {
		return fmt.Errorf("failed to write command: %w", err)
	}
	return nil
}

// readUntil 持续读取直到 match 命中。match 返回输出截止位置与消费截止位置；
// 消费位置之后的内容保留在缓冲区中供下一次读取。
func (s *Shell) readUntil(ctx context.Context, match func(text string) (end, consumed int, ok bool)) (string, error) {
	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	for {
		s.mu.Lock()
		text := util.NormalizeOutput(s.buf.Bytes())
		if reply, rest, hit := s.autoInteract(text); hit {
			s.buf.Reset()
			s.buf.WriteString(rest)
			s.mu.Unlock()
			if _, err := io.WriteString(s.stdin, reply); err != nil {
				return "", fmt.Errorf("failed to write auto interaction: %w", err)
			}
			continue
		}
		if end, consumed, ok := match(text); ok {
			s.buf.Reset()
			s.buf.WriteString(text[consumed:])
			s.mu.Unlock()
			return text[:end], nil
		}
		readErr := s.readErr
		s.mu.Unlock()

		if readErr != nil {
			return text, fmt.Errorf("%w: %v", ErrShellClosed, readErr)
		}

		select {
		case <-ctx.Done():
			return text, ctx.Err()
		case <-timer.C:
			return text, ErrCommandTimeout
		case <-s.notify:
		case <-s.done:
		}
	}
}

// autoInteract 命中自动交互时返回应答以及去掉提示文本后的剩余输出
func (s *Shell) autoInteract(text string) (string, string, bool) {
	lower := strings.ToLower(text)
	for _, ai := range s.opts.AutoInteractions {
		if ai.ExpectOutput == "" || ai.AutoSend == "" {
			continue
		}
		if i := strings.Index(lower, strings.ToLower(ai.ExpectOutput)); i >= 0 {
			return ai.AutoSend, text[:i] + text[i+len(ai.ExpectOutput):], true
		}
	}
	return "", "", false
}

// stripEcho 去掉首行命令回显与首尾空行
func stripEcho(text, cmd string) string {
	text = strings.TrimLeft(text, "\n")
	first, rest, found := strings.Cut(text, "\n")
	if c := strings.TrimSpace(cmd); c != "" && strings.HasSuffix(strings.TrimSpace(first), c) {
		if !found {
			return ""
		}
		text = rest
	}
	return strings.TrimRight(text, "\n")
}

// Close 结束会话并关闭底层连接
func (s *Shell) Close() error {
	_ = s.stdin.Close()
	err := s.session.Close()
	if errors.Is(err, io.EOF) {
		err = nil
	}
	if cerr := s.client.Close(); err == nil {
		err = cerr
	}
	return err
}
