package aruba

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exchange 一次预期的命令交互
type exchange struct {
	cmd     string
	pattern string
	out     string
	err     error
}

// fakeSession 按脚本回放设备回显，记录实际发送的命令
type fakeSession struct {
	t      *testing.T
	script []exchange
	sent   []string
	closed bool
}

func newFakeSession(t *testing.T, script ...exchange) *fakeSession {
	return &fakeSession{t: t, script: script}
}

func (f *fakeSession) next(cmd, pattern string) (string, error) {
	f.sent = append(f.sent, cmd)
	require.NotEmpty(f.t, f.script, "unexpected command %q", cmd)
	ex := f.script[0]
	f.script = f.script[1:]
	assert.Equal(f.t, ex.cmd, cmd)
	assert.Equal(f.t, ex.pattern, pattern, "expect pattern for %q", cmd)
	return ex.out, ex.err
}

func (f *fakeSession) SendCommand(_ context.Context, cmd string) (string, error) {
	return f.next(cmd, "")
}

func (f *fakeSession) SendCommandExpect(_ context.Context, cmd, pattern string) (string, error) {
	return f.next(cmd, pattern)
}

func (f *fakeSession) Close() error {
	f.closed = true
	return nil
}

// done 断言脚本已全部消费
func (f *fakeSession) done() {
	assert.Empty(f.t, f.script, "unconsumed exchanges")
}

func telnetOutput(level string) string {
	return fmt.Sprintf(`
 Telnet Activity

 Source IP Selection: Outgoing Interface

 --------------------------------------------------------
 Session  :     1
 Privilege: Manager
 From     : Console
 To       :
 --------------------------------------------------------
 Session  : **  2
 Privilege: %s
 From     : 192.168.1.1
 To       :
`, level)
}

const macFoundOutput = `
 Status and Counters - Address Table - 044b-ed31-75cd

  Port   VLANs
  ------ ------------------------------
  5      1
`

const macNotFoundOutput = `
 MAC address 044b-ed31-75cd not found.
`

const lldpOutput = `
 LLDP Remote Device Information Detail

  Local Port   : 5
  ChassisType  : mac-address
  ChassisId    : 94 18 82 aa bb cc
  PortType     : local
  PortId       : 17
  SysName      : core-sw1
  System Descr : Aruba JL256A 2930F-48G-PoE+-4SFP+ Switch
  PortDescr    : 17
`

const lldpEmptyOutput = `
 LLDP Remote Device Information Detail

`

func showTelnet(level string) exchange {
	return exchange{cmd: "show telnet", out: telnetOutput(level)}
}

// enableExchanges 一次成功的 enable 交互（不含复查）
func enableExchanges() []exchange {
	return []exchange{
		{cmd: "enable", pattern: enablePromptPattern, out: "Username:"},
		{cmd: "admin", pattern: passwordPattern, out: "Password:"},
		{cmd: "s3cret", out: ""},
	}
}

func testOptions() Options {
	opts := Options{Secret: "s3cret"}
	opts.Connection.Host = "10.0.0.1"
	opts.Connection.Username = "admin"
	opts.Connection.Password = "login-pass"
	return opts
}

func script(parts ...any) []exchange {
	var out []exchange
	for _, p := range parts {
		switch v := p.(type) {
		case exchange:
			out = append(out, v)
		case []exchange:
			out = append(out, v...)
		}
	}
	return out
}
