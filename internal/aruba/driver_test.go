package aruba_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sshcollectorpro/arubatrace/internal/aruba"
	"github.com/sshcollectorpro/arubatrace/pkg/ssh"
	"github.com/sshcollectorpro/arubatrace/simulate"
)

type stubSession struct {
	out    string
	closed bool
}

func (s *stubSession) SendCommand(context.Context, string) (string, error) { return s.out, nil }
func (s *stubSession) SendCommandExpect(context.Context, string, string) (string, error) {
	return s.out, nil
}
func (s *stubSession) Close() error { s.closed = true; return nil }

func TestOpenDialError(t *testing.T) {
	refused := errors.New("connection refused")
	_, err := aruba.Open(context.Background(), aruba.Options{
		Connection: ssh.ConnectionInfo{Host: "10.0.0.9"},
		Dialer: aruba.DialerFunc(func(context.Context, *ssh.ConnectionInfo) (aruba.Session, error) {
			return nil, refused
		}),
	})
	assert.ErrorIs(t, err, aruba.ErrSessionIO)
	assert.ErrorIs(t, err, refused)
}

func TestOpenClosesSessionWhenQueryFails(t *testing.T) {
	stub := &stubSession{out: "no telnet table here"}
	_, err := aruba.Open(context.Background(), aruba.Options{
		Connection: ssh.ConnectionInfo{Host: "10.0.0.9"},
		Dialer: aruba.DialerFunc(func(context.Context, *ssh.ConnectionInfo) (aruba.Session, error) {
			return stub, nil
		}),
	})
	assert.ErrorIs(t, err, aruba.ErrNoActiveSession)
	assert.True(t, stub.closed)
}

func startSwitch(t *testing.T, mutate func(*simulate.Config)) *simulate.Server {
	t.Helper()
	cfg := simulate.DefaultConfig()
	cfg.MacTable = []simulate.MacEntry{{MAC: "044b-ed31-75cd", Port: "5", VLANs: "1"}}
	cfg.Neighbors = []simulate.Neighbor{{
		LocalPort:         "5",
		ChassisID:         "94 18 82 aa bb cc",
		PortID:            "17",
		SystemName:        "core-sw1",
		SystemDescription: "Aruba JL256A 2930F-48G-PoE+-4SFP+ Switch",
		PortDescription:   "17",
	}}
	if mutate != nil {
		mutate(cfg)
	}
	srv, err := simulate.Start(cfg)
	require.NoError(t, err)
	t.Cleanup(srv.Stop)
	return srv
}

func openDriver(t *testing.T, srv *simulate.Server, secret string) *aruba.Driver {
	t.Helper()
	d, err := aruba.Open(context.Background(), aruba.Options{
		Connection: ssh.ConnectionInfo{Host: srv.Host(), Port: srv.Port(), Username: "admin", Password: "admin"},
		Secret:     secret,
		SSH:        &ssh.Config{Timeout: 5 * time.Second, CommandTimeout: 5 * time.Second},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestDriverAgainstSimulator(t *testing.T) {
	srv := startSwitch(t, nil)
	d := openDriver(t, srv, "secret")
	assert.Equal(t, aruba.LevelOperator, d.Privilege())

	ctx := context.Background()
	res, err := d.Trace(ctx, "04:4B:ED:31:75:CD")
	require.NoError(t, err)
	assert.Equal(t, aruba.LevelManager, d.Privilege())
	assert.Equal(t, aruba.TraceResult{
		Found:                 true,
		LLDPAnswer:            true,
		LocalPort:             "5",
		RemotePort:            "17",
		NextDevice:            "core-sw1",
		NextDeviceDescription: "Aruba JL256A 2930F-48G-PoE+-4SFP+ Switch",
	}, res)

	res, err = d.Trace(ctx, "00a0c9-14c829")
	require.NoError(t, err)
	assert.False(t, res.Found)

	require.NoError(t, d.DisablePaging(ctx))
}

func TestDriverWrongSecret(t *testing.T) {
	srv := startSwitch(t, nil)
	d := openDriver(t, srv, "not-the-secret")

	err := d.Escalate(context.Background())
	assert.ErrorIs(t, err, aruba.ErrPrivilegeEscalation)
	assert.Equal(t, aruba.LevelOperator, d.Privilege())
}

func TestDriverStartsAsManager(t *testing.T) {
	srv := startSwitch(t, func(c *simulate.Config) { c.StartLevel = simulate.LevelManager })
	d := openDriver(t, srv, "secret")
	assert.Equal(t, aruba.LevelManager, d.Privilege())

	rows, err := d.NeighborsDetail(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "core-sw1", rows[0][aruba.FieldSystemName])
}
