package aruba

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sshcollectorpro/arubatrace/pkg/logger"
)

// Session 已认证的交互式命令通道（半双工，一问一答）
type Session interface {
	SendCommand(ctx context.Context, cmd string) (string, error)
	// SendCommandExpect 读取到 pattern（正则）或提示符为止
	SendCommandExpect(ctx context.Context, cmd, pattern string) (string, error)
	Close() error
}

// ReplyStatus SendFirstAccepted 的结果分类
type ReplyStatus int

const (
	// ReplyAccepted 某个候选命令被设备接受
	ReplyAccepted ReplyStatus = iota
	// ReplyAllRejected 全部候选均被拒绝，Output 为最后一次回显
	ReplyAllRejected
)

func (s ReplyStatus) String() string {
	if s == ReplyAccepted {
		return "accepted"
	}
	return "all_rejected"
}

// Reply SendFirstAccepted 的返回值
type Reply struct {
	Command string
	Output  string
	Status  ReplyStatus
}

// Accepted 是否有候选命令被接受
func (r Reply) Accepted() bool { return r.Status == ReplyAccepted }

// 调试日志中每条回显保留的首尾行数
const debugOutputLines = 5

// Executor 在单个 Session 上串行发送命令
type Executor struct {
	session Session
	host    string
	log     *logrus.Entry
}

// NewExecutor host 仅用于日志
func NewExecutor(session Session, host string) *Executor {
	return &Executor{
		session: session,
		host:    host,
		log:     logger.WithDevice(host),
	}
}

// SendOne 发送单条命令并返回原始回显，传输错误包装为 ErrSessionIO
func (e *Executor) SendOne(ctx context.Context, cmd string) (string, error) {
	return e.send(ctx, cmd, cmd)
}

// SendFirstAccepted 依次尝试候选命令，返回第一个未被拒绝的回显。
// 全部被拒绝时返回最后一次回显且 Status 为 ReplyAllRejected，由调用方决定如何处理。
func (e *Executor) SendFirstAccepted(ctx context.Context, candidates []string) (Reply, error) {
	if len(candidates) == 0 {
		return Reply{}, ErrNoCandidates
	}
	var reply Reply
	for _, cmd := range candidates {
		out, err := e.SendOne(ctx, cmd)
		if err != nil {
			return Reply{}, err
		}
		reply = Reply{Command: cmd, Output: out}
		if !IsInvalidInput(out) {
			reply.Status = ReplyAccepted
			return reply, nil
		}
		e.log.Debugf("command %q rejected, trying next candidate", cmd)
	}
	reply.Status = ReplyAllRejected
	e.log.Warnf("all %d candidate commands rejected", len(candidates))
	return reply, nil
}

// expect 发送命令并等待 pattern
func (e *Executor) expect(ctx context.Context, cmd, pattern string) (string, error) {
	out, err := e.session.SendCommandExpect(ctx, cmd, pattern)
	if err != nil {
		return "", fmt.Errorf("send %q: %w: %w", cmd, ErrSessionIO, err)
	}
	logger.DebugCommandOutput(e.host, cmd, out, debugOutputLines)
	return out, nil
}

// sendSecret 发送口令，日志与错误中不出现口令本身
func (e *Executor) sendSecret(ctx context.Context, secret string) (string, error) {
	return e.send(ctx, secret, "<secret>")
}

func (e *Executor) send(ctx context.Context, cmd, label string) (string, error) {
	out, err := e.session.SendCommand(ctx, cmd)
	if err != nil {
		return "", fmt.Errorf("send %q: %w: %w", label, ErrSessionIO, err)
	}
	logger.DebugCommandOutput(e.host, label, out, debugOutputLines)
	return out, nil
}
