package aruba

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/sshcollectorpro/arubatrace/internal/textfsm"
)

// 权限相关命令与提示
const (
	cmdShowTelnet       = "show telnet"
	cmdEnable           = "enable"
	enablePromptPattern = `[Uu]sername:|[Pp]assword:`
	passwordPattern     = `[Pp]assword:`
	activeSessionMarker = "**"
)

// pagingCommands 关闭分页的候选写法，老固件只认 no page
var pagingCommands = []string{"no page", "terminal length 1000"}

// PrivilegeMachine Operator -> Manager 的两级权限状态机。
// 状态不保存在机器内部，每个操作接收当前 State 并返回新的 State。
type PrivilegeMachine struct {
	exec      *Executor
	extractor Extractor
	username  string
	secret    string
	log       *logrus.Entry
}

// NewPrivilegeMachine username 为 enable 时回答 Username: 的管理员名，secret 为 enable 口令
func NewPrivilegeMachine(exec *Executor, extractor Extractor, username, secret string) *PrivilegeMachine {
	return &PrivilegeMachine{
		exec:      exec,
		extractor: extractor,
		username:  username,
		secret:    secret,
		log:       exec.log,
	}
}

// QueryPrivilege 通过 show telnet 读取当前会话（带 ** 标记的行）的权限
func (m *PrivilegeMachine) QueryPrivilege(ctx context.Context, st State) (State, error) {
	raw, err := m.exec.SendOne(ctx, cmdShowTelnet)
	if err != nil {
		return st, err
	}
	rows, err := m.extractor.Extract(textfsm.ShowTelnet, raw)
	if err != nil {
		return st, err
	}
	for _, row := range rows {
		if strings.HasPrefix(row[FieldSession], activeSessionMarker) {
			next := State{Level: ParseLevel(row[FieldUserLevel])}
			m.log.Debugf("current privilege: %s (%q)", next.Level, row[FieldUserLevel])
			return next, nil
		}
	}
	return st, ErrNoActiveSession
}

// Escalate 确保处于 Manager。Manager 时不发送任何命令；Unknown 时先查询；
// Operator 时在同一会话内执行 enable 并回答用户名与口令，然后复查。
// 复查仍非 Manager 时返回 ErrPrivilegeEscalation，同时返回最后观察到的状态。
func (m *PrivilegeMachine) Escalate(ctx context.Context, st State) (State, error) {
	if st.Level == LevelManager {
		return st, nil
	}
	if st.Level == LevelUnknown {
		var err error
		if st, err = m.QueryPrivilege(ctx, st); err != nil {
			return st, err
		}
	}
	switch st.Level {
	case LevelManager:
		m.log.Info("already in manager privilege level")
		return st, nil
	case LevelOperator:
	default:
		return st, fmt.Errorf("%w: unrecognised privilege level", ErrPrivilegeEscalation)
	}

	out, err := m.exec.expect(ctx, cmdEnable, enablePromptPattern)
	if err != nil {
		return st, err
	}
	if IsUsernamePrompt(out) {
		if out, err = m.exec.expect(ctx, m.username, passwordPattern); err != nil {
			return st, err
		}
	}
	if IsPasswordPrompt(out) {
		if _, err = m.exec.sendSecret(ctx, m.secret); err != nil {
			return st, err
		}
	}

	after, err := m.QueryPrivilege(ctx, st)
	if err != nil {
		return after, err
	}
	if after.Level != LevelManager {
		return after, fmt.Errorf("%w: still %s after enable", ErrPrivilegeEscalation, after.Level)
	}
	m.log.Info("changed to manager privilege level")
	return after, nil
}

// DisablePaging 关闭分页。该命令只在 Manager 下可用，因此先提权。
func (m *PrivilegeMachine) DisablePaging(ctx context.Context, st State) (State, error) {
	st, err := m.Escalate(ctx, st)
	if err != nil {
		return st, err
	}
	reply, err := m.exec.SendFirstAccepted(ctx, pagingCommands)
	if err != nil {
		return st, err
	}
	if !reply.Accepted() {
		return st, fmt.Errorf("%w: %s", ErrCommandRejected, strings.TrimSpace(reply.Output))
	}
	return st, nil
}
