package aruba

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifiers(t *testing.T) {
	assert.True(t, IsInvalidInput("Invalid input: terminal"))
	assert.False(t, IsInvalidInput("invalid"))
	assert.True(t, IsMacNotFound(macNotFoundOutput))
	assert.False(t, IsMacNotFound(macFoundOutput))
	assert.True(t, IsUsernamePrompt("Username:"))
	assert.True(t, IsPasswordPrompt("Password:"))
	assert.False(t, IsPasswordPrompt("Username:"))
}

func TestSendOne(t *testing.T) {
	sess := newFakeSession(t, exchange{cmd: "show telnet", out: "ok"})
	exec := NewExecutor(sess, "sw1")

	out, err := exec.SendOne(context.Background(), "show telnet")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	sess.done()
}

func TestSendOneWrapsTransportError(t *testing.T) {
	sess := newFakeSession(t, exchange{cmd: "show telnet", err: io.EOF})
	exec := NewExecutor(sess, "sw1")

	_, err := exec.SendOne(context.Background(), "show telnet")
	assert.ErrorIs(t, err, ErrSessionIO)
	assert.ErrorIs(t, err, io.EOF)
}

func TestSendSecretHidesSecret(t *testing.T) {
	sess := newFakeSession(t, exchange{cmd: "s3cret", err: io.ErrUnexpectedEOF})
	exec := NewExecutor(sess, "sw1")

	_, err := exec.sendSecret(context.Background(), "s3cret")
	require.ErrorIs(t, err, ErrSessionIO)
	assert.NotContains(t, err.Error(), "s3cret")
}

func TestSendFirstAccepted(t *testing.T) {
	t.Run("falls back to next candidate", func(t *testing.T) {
		sess := newFakeSession(t,
			exchange{cmd: "cmdA", out: "Invalid input: cmdA"},
			exchange{cmd: "cmdB", out: "B output"},
		)
		reply, err := NewExecutor(sess, "sw1").SendFirstAccepted(context.Background(), []string{"cmdA", "cmdB", "cmdC"})
		require.NoError(t, err)
		assert.Equal(t, Reply{Command: "cmdB", Output: "B output", Status: ReplyAccepted}, reply)
		assert.True(t, reply.Accepted())
		assert.Equal(t, []string{"cmdA", "cmdB"}, sess.sent)
		sess.done()
	})

	t.Run("first candidate accepted", func(t *testing.T) {
		sess := newFakeSession(t, exchange{cmd: "cmdA", out: "A output"})
		reply, err := NewExecutor(sess, "sw1").SendFirstAccepted(context.Background(), []string{"cmdA", "cmdB"})
		require.NoError(t, err)
		assert.Equal(t, "A output", reply.Output)
		assert.Equal(t, []string{"cmdA"}, sess.sent)
	})

	t.Run("all rejected returns last response", func(t *testing.T) {
		sess := newFakeSession(t,
			exchange{cmd: "cmdA", out: "Invalid input: cmdA"},
			exchange{cmd: "cmdB", out: "Invalid input: cmdB"},
		)
		reply, err := NewExecutor(sess, "sw1").SendFirstAccepted(context.Background(), []string{"cmdA", "cmdB"})
		require.NoError(t, err)
		assert.Equal(t, ReplyAllRejected, reply.Status)
		assert.Equal(t, "cmdB", reply.Command)
		assert.Equal(t, "Invalid input: cmdB", reply.Output)
		assert.Equal(t, "all_rejected", reply.Status.String())
	})

	t.Run("no candidates", func(t *testing.T) {
		_, err := NewExecutor(newFakeSession(t), "sw1").SendFirstAccepted(context.Background(), nil)
		assert.ErrorIs(t, err, ErrNoCandidates)
	})

	t.Run("transport error stops iteration", func(t *testing.T) {
		boom := errors.New("connection reset")
		sess := newFakeSession(t, exchange{cmd: "cmdA", err: boom})
		_, err := NewExecutor(sess, "sw1").SendFirstAccepted(context.Background(), []string{"cmdA", "cmdB"})
		assert.ErrorIs(t, err, ErrSessionIO)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, []string{"cmdA"}, sess.sent)
	})
}

type failingExtractor struct{ err error }

func (f failingExtractor) Extract(string, string) ([]Record, error) { return nil, f.err }

func TestTemplateExtractor(t *testing.T) {
	ex := NewTemplateExtractor(nil)

	rows, err := ex.Extract("show_telnet", telnetOutput("Operator"))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "**  2", rows[1][FieldSession])
	assert.Equal(t, "Operator", rows[1][FieldUserLevel])

	rows, err = ex.Extract("show_lldp_info_remote_device", lldpEmptyOutput)
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = ex.Extract("show_nothing", "")
	assert.Error(t, err)
}
