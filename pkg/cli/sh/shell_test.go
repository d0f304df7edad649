package sh

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/ecu.go/pkg/comms"
	"github.com/robotalks/ecu.go/pkg/env"
)

type sender struct {
	sent []comms.Envelope
	err  error
}

func (s *sender) Send(p comms.Packet, to comms.NetworkAddress) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, comms.Envelope{Packet: p, Addr: to})
	return nil
}

func TestParseTarget(t *testing.T) {
	addr, err := ParseTarget("ALL")
	require.NoError(t, err)
	require.Equal(t, comms.Broadcast, addr)
	addr, err = ParseTarget("10")
	require.NoError(t, err)
	require.Equal(t, comms.EngineController(10), addr)
	for _, str := range []string{"11", "-1", "x", ""} {
		_, err = ParseTarget(str)
		require.Errorf(t, err, str)
	}
}

func TestShellSend(t *testing.T) {
	tx := &sender{}
	s := New(env.Default(), tx)
	var out bytes.Buffer
	s.Out = &out
	require.NotNil(t, Find("t"))
	require.Nil(t, Find("nope"))
	require.EqualError(t, s.Exec("nope"), `unknown command "nope"`)

	require.NoError(t, s.Exec("target", "all"))
	require.NoError(t, s.Send(comms.Abort{}))
	require.Equal(t, []comms.Envelope{{Packet: comms.Abort{}, Addr: comms.Broadcast}}, tx.sent)
	require.Equal(t, "Broadcast\nBroadcast Abort OK\n", out.String())

	tx.err = errors.New("down")
	require.Error(t, s.Send(comms.Abort{}))
}
