package aruba

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMachine(sess *fakeSession) *PrivilegeMachine {
	return NewPrivilegeMachine(NewExecutor(sess, "10.0.0.1"), NewTemplateExtractor(nil), "admin", "s3cret")
}

func TestQueryPrivilege(t *testing.T) {
	ctx := context.Background()

	for _, tc := range []struct {
		raw  string
		want Level
	}{
		{"Operator", LevelOperator},
		{"Manager", LevelManager},
		{"Superuser", LevelUnknown},
	} {
		sess := newFakeSession(t, showTelnet(tc.raw))
		st, err := newMachine(sess).QueryPrivilege(ctx, State{})
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.want, st.Level, tc.raw)
		sess.done()
	}
}

func TestQueryPrivilegeWithoutActiveSession(t *testing.T) {
	raw := `
 Session  :     1
 Privilege: Manager
 From     : Console
 To       :
`
	sess := newFakeSession(t, exchange{cmd: "show telnet", out: raw})
	st, err := newMachine(sess).QueryPrivilege(context.Background(), State{Level: LevelOperator})
	assert.ErrorIs(t, err, ErrNoActiveSession)
	assert.Equal(t, LevelOperator, st.Level)
}

func TestQueryPrivilegeMarkedBlockWithoutTo(t *testing.T) {
	raw := `
 Session  : **  2
 Privilege: Operator
 From     : 192.168.1.1
 --------------------------------------------------------
 Session  :     3
 Privilege: Manager
 From     : Console
 To       :
`
	sess := newFakeSession(t, exchange{cmd: "show telnet", out: raw})
	st, err := newMachine(sess).QueryPrivilege(context.Background(), State{})
	require.NoError(t, err)
	assert.Equal(t, LevelOperator, st.Level)
	sess.done()
}

func TestQueryPrivilegeExtractorError(t *testing.T) {
	boom := errors.New("template broke")
	sess := newFakeSession(t, showTelnet("Manager"))
	m := NewPrivilegeMachine(NewExecutor(sess, "h"), failingExtractor{err: boom}, "admin", "s3cret")
	_, err := m.QueryPrivilege(context.Background(), State{})
	assert.ErrorIs(t, err, boom)
}

func TestEscalateManagerIsNoop(t *testing.T) {
	sess := newFakeSession(t)
	st, err := newMachine(sess).Escalate(context.Background(), State{Level: LevelManager})
	require.NoError(t, err)
	assert.Equal(t, LevelManager, st.Level)
	assert.Empty(t, sess.sent)
}

func TestEscalateFromOperator(t *testing.T) {
	sess := newFakeSession(t, script(enableExchanges(), showTelnet("Manager"))...)
	st, err := newMachine(sess).Escalate(context.Background(), State{Level: LevelOperator})
	require.NoError(t, err)
	assert.Equal(t, LevelManager, st.Level)
	assert.Equal(t, []string{"enable", "admin", "s3cret", "show telnet"}, sess.sent)
	sess.done()
}

func TestEscalatePasswordOnlyPrompt(t *testing.T) {
	sess := newFakeSession(t,
		exchange{cmd: "enable", pattern: enablePromptPattern, out: "Password:"},
		exchange{cmd: "s3cret"},
		showTelnet("Manager"),
	)
	st, err := newMachine(sess).Escalate(context.Background(), State{Level: LevelOperator})
	require.NoError(t, err)
	assert.Equal(t, LevelManager, st.Level)
	sess.done()
}

func TestEscalateUnknownQueriesFirst(t *testing.T) {
	t.Run("already manager", func(t *testing.T) {
		sess := newFakeSession(t, showTelnet("Manager"))
		st, err := newMachine(sess).Escalate(context.Background(), State{})
		require.NoError(t, err)
		assert.Equal(t, LevelManager, st.Level)
		assert.Equal(t, []string{"show telnet"}, sess.sent)
	})

	t.Run("operator", func(t *testing.T) {
		sess := newFakeSession(t, script(showTelnet("Operator"), enableExchanges(), showTelnet("Manager"))...)
		st, err := newMachine(sess).Escalate(context.Background(), State{})
		require.NoError(t, err)
		assert.Equal(t, LevelManager, st.Level)
		sess.done()
	})

	t.Run("unrecognised level", func(t *testing.T) {
		sess := newFakeSession(t, showTelnet("Superuser"))
		st, err := newMachine(sess).Escalate(context.Background(), State{})
		assert.ErrorIs(t, err, ErrPrivilegeEscalation)
		assert.Equal(t, LevelUnknown, st.Level)
		assert.Equal(t, []string{"show telnet"}, sess.sent)
	})
}

func TestEscalateWrongSecret(t *testing.T) {
	sess := newFakeSession(t, script(
		exchange{cmd: "enable", pattern: enablePromptPattern, out: "Username:"},
		exchange{cmd: "admin", pattern: passwordPattern, out: "Password:"},
		exchange{cmd: "s3cret", out: "Invalid password"},
		showTelnet("Operator"),
	)...)
	st, err := newMachine(sess).Escalate(context.Background(), State{Level: LevelOperator})
	require.ErrorIs(t, err, ErrPrivilegeEscalation)
	assert.Equal(t, LevelOperator, st.Level)
	sess.done()
}

func TestEscalateTransportError(t *testing.T) {
	sess := newFakeSession(t, exchange{cmd: "enable", pattern: enablePromptPattern, err: io.EOF})
	st, err := newMachine(sess).Escalate(context.Background(), State{Level: LevelOperator})
	assert.ErrorIs(t, err, ErrSessionIO)
	assert.NotErrorIs(t, err, ErrPrivilegeEscalation)
	assert.Equal(t, LevelOperator, st.Level)
}

func TestDisablePaging(t *testing.T) {
	ctx := context.Background()

	t.Run("manager sends no page", func(t *testing.T) {
		sess := newFakeSession(t, exchange{cmd: "no page"})
		st, err := newMachine(sess).DisablePaging(ctx, State{Level: LevelManager})
		require.NoError(t, err)
		assert.Equal(t, LevelManager, st.Level)
		assert.Equal(t, []string{"no page"}, sess.sent)
	})

	t.Run("operator escalates first", func(t *testing.T) {
		sess := newFakeSession(t, script(enableExchanges(), showTelnet("Manager"), exchange{cmd: "no page"})...)
		st, err := newMachine(sess).DisablePaging(ctx, State{Level: LevelOperator})
		require.NoError(t, err)
		assert.Equal(t, LevelManager, st.Level)
		sess.done()
	})

	t.Run("falls back to terminal length", func(t *testing.T) {
		sess := newFakeSession(t,
			exchange{cmd: "no page", out: "Invalid input: no"},
			exchange{cmd: "terminal length 1000"},
		)
		_, err := newMachine(sess).DisablePaging(ctx, State{Level: LevelManager})
		require.NoError(t, err)
		sess.done()
	})

	t.Run("all rejected", func(t *testing.T) {
		sess := newFakeSession(t,
			exchange{cmd: "no page", out: "Invalid input: no"},
			exchange{cmd: "terminal length 1000", out: "Invalid input: terminal"},
		)
		_, err := newMachine(sess).DisablePaging(ctx, State{Level: LevelManager})
		assert.ErrorIs(t, err, ErrCommandRejected)
	})

	t.Run("escalation failure sends no paging command", func(t *testing.T) {
		sess := newFakeSession(t, script(enableExchanges(), showTelnet("Operator"))...)
		_, err := newMachine(sess).DisablePaging(ctx, State{Level: LevelOperator})
		assert.ErrorIs(t, err, ErrPrivilegeEscalation)
		assert.NotContains(t, sess.sent, "no page")
	})
}

func TestLevelText(t *testing.T) {
	b, err := LevelManager.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "manager", string(b))

	var l Level
	require.NoError(t, l.UnmarshalText([]byte("Operator")))
	assert.Equal(t, LevelOperator, l)
	assert.Error(t, l.UnmarshalText([]byte("root")))
}
