package textfsm

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const showTelnetOutput = `
 Telnet Activity

 Source IP Selection: Outgoing Interface

 --------------------------------------------------------
 Session  :     1
 Privilege: Operator
 From     : Console
 To       :
 --------------------------------------------------------
 Session  : **  2
 Privilege: Manager
 From     : 10.20.0.15
 To       :
`

const showMacOutput = `
 Status and Counters - Address Table - 00a0c9-14c829

  Port   VLANs
  ------ ----------
  A5     1,20
`

const showLLDPOutput = `
 LLDP Remote Device Information Detail

  Local Port   : 5
  ChassisType  : mac-address
  ChassisId    : 94 18 82 aa bb cc
  PortType     : local
  PortId       : 17
  SysName      : core-sw1
  System Descr : Aruba JL256A 2930F-48G-PoE+-4SFP+ Switch, revision WC.16.10
  PortDescr    : 17

  Local Port   : 5
  ChassisType  : mac-address
  ChassisId    : 00 11 22 33 44 55
  PortType     : local
  PortId       : 2
  SysName      : ap-lobby
  System Descr : ArubaOS (MODEL: 515)
  PortDescr    : eth0
`

func TestBuiltinTemplates(t *testing.T) {
	reg := NewRegistry()
	assert.Equal(t, []string{ShowLLDPInfoRemoteDevice, ShowMacAddress, ShowTelnet}, reg.Names())

	t.Run("show telnet", func(t *testing.T) {
		rows, err := reg.Parse(ShowTelnet, showTelnetOutput)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "1", rows[0]["SESSION"])
		assert.Equal(t, "Operator", rows[0]["USER_LEVEL"])
		assert.Equal(t, "**  2", rows[1]["SESSION"])
		assert.Equal(t, "Manager", rows[1]["USER_LEVEL"])
		assert.Equal(t, "10.20.0.15", rows[1]["FROM"])
	})

	t.Run("show mac-address", func(t *testing.T) {
		rows, err := reg.Parse(ShowMacAddress, showMacOutput)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "A5", rows[0]["PORT"])
		assert.Equal(t, "1,20", rows[0]["VLANS"])
	})

	t.Run("show mac-address not found", func(t *testing.T) {
		rows, err := reg.Parse(ShowMacAddress, " MAC address 00a0c9-14c829 not found.\n")
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("show lldp info remote-device", func(t *testing.T) {
		rows, err := reg.Parse(ShowLLDPInfoRemoteDevice, showLLDPOutput)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "5", rows[0]["LOCAL_PORT"])
		assert.Equal(t, "core-sw1", rows[0]["SYSTEM_NAME"])
		assert.Equal(t, "Aruba JL256A 2930F-48G-PoE+-4SFP+ Switch, revision WC.16.10", rows[0]["SYSTEM_DESCRIPTION"])
		assert.Equal(t, "ap-lobby", rows[1]["SYSTEM_NAME"])
		assert.Equal(t, "eth0", rows[1]["PORT_DESCRIPTION"])
	})

	t.Run("unknown template", func(t *testing.T) {
		_, err := reg.Parse("show_version", "")
		assert.ErrorIs(t, err, ErrTemplateNotFound)
	})
}

func TestCompileErrors(t *testing.T) {
	cases := map[string]string{
		"missing start":      "Value A (\\S+)\n\nOther\n  ^${A}\n",
		"unknown state":      "Value A (\\S+)\n\nStart\n  ^${A} -> Nowhere\n",
		"rule without caret": "Value A (\\S+)\n\nStart\n  ${A}\n",
		"continue new state": "Value A (\\S+)\n\nStart\n  ^${A} -> Continue Other\n\nOther\n  ^x\n",
		"bad option":         "Value Sticky A (\\S+)\n\nStart\n  ^${A}\n",
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Compile(text)
			var te *TemplateError
			assert.ErrorAs(t, err, &te)
		})
	}
}

func TestValueOptions(t *testing.T) {
	tmpl := MustCompile(`Value Filldown CHASSIS (\S+)
Value Required PORT (\d+)
Value List VLAN (\d+)

Start
  ^Chassis ${CHASSIS}
  ^Port ${PORT} -> Continue
  ^Port \d+ vlan ${VLAN} -> Continue
  ^Port \d+ vlan \d+ vlan ${VLAN}
  ^-- -> Record
`)
	rows, err := tmpl.ParseText("Chassis A\nPort 1 vlan 10 vlan 20\n--\nPort 2 vlan 30\n--\nChassis B\n--\n")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, map[string]string{"CHASSIS": "A", "PORT": "1", "VLAN": "10,20"}, rows[0])
	assert.Equal(t, map[string]string{"CHASSIS": "A", "PORT": "2", "VLAN": "30"}, rows[1])
}

func TestErrorAction(t *testing.T) {
	tmpl := MustCompile(`Value HOST (\S+)

Start
  ^host ${HOST} -> Record
  ^panic -> Error "unexpected panic line"
`)
	rows, err := tmpl.ParseText("host a\nhost b\n")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "b", rows[1]["HOST"])

	_, err = tmpl.ParseText("host a\npanic\n")
	var pe *ParseError
	assert.ErrorAs(t, err, &pe)
}

func TestShowTelnetBlockWithoutTo(t *testing.T) {
	raw := `
 Session  : **  2
 Privilege: Manager
 From     : 10.20.0.15
 --------------------------------------------------------
 Session  :     3
 Privilege: Operator
 From     : Console
 To       :
`
	rows, err := NewRegistry().Parse(ShowTelnet, raw)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "**  2", rows[0]["SESSION"])
	assert.Equal(t, "Manager", rows[0]["USER_LEVEL"])
	assert.Equal(t, "3", rows[1]["SESSION"])
}

func TestConcurrentParse(t *testing.T) {
	reg := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rows, err := reg.Parse(ShowMacAddress, showMacOutput)
			assert.NoError(t, err)
			assert.Len(t, rows, 1)
		}()
	}
	wg.Wait()
}

func TestLoadDirOverridesBuiltin(t *testing.T) {
	dir := t.TempDir()
	override := "Value PORT (\\S+)\n\nStart\n  ^port ${PORT} -> Record\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ShowMacAddress+".textfsm"), []byte(override), 0o644))

	reg := NewRegistry()
	require.NoError(t, reg.LoadDir(dir))
	rows, err := reg.Parse(ShowMacAddress, "port 7\n")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "7", rows[0]["PORT"])

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.textfsm"), []byte("Value X\n"), 0o644))
	assert.Error(t, reg.LoadDir(dir))
}
