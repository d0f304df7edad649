package engine

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/ecu.go/pkg/cli/sh"
	"github.com/robotalks/ecu.go/pkg/comms"
	"github.com/robotalks/ecu.go/pkg/env"
	"github.com/robotalks/ecu.go/pkg/hal"
)

type step struct {
	packet comms.Packet
	wait   time.Duration
}

type recorder struct {
	steps []step
	err   error
}

func (r *recorder) Send(p comms.Packet, to comms.NetworkAddress) error {
	if r.err != nil {
		return r.err
	}
	r.steps = append(r.steps, step{packet: p})
	return nil
}

func (r *recorder) sleep(d time.Duration) {
	r.steps = append(r.steps, step{wait: d})
}

func (r *recorder) packets() []comms.Packet {
	var list []comms.Packet
	for _, s := range r.steps {
		if s.packet != nil {
			list = append(list, s.packet)
		}
	}
	return list
}

func newTestShell() (*sh.Shell, *recorder, *bytes.Buffer) {
	conf := *env.Default()
	conf.Ground.Countdown = 3
	rec := &recorder{}
	s := sh.New(&conf, rec)
	var out bytes.Buffer
	s.Out, s.Sleep = &out, rec.sleep
	return s, rec, &out
}

func TestSimpleCommands(t *testing.T) {
	testCases := []struct {
		args   []string
		packet comms.Packet
	}{
		{[]string{"valve", "fuel_press", "255"}, comms.SetValve{Valve: hal.FuelPress, State: 255}},
		{[]string{"v", "gox_main", "close"}, comms.SetValve{Valve: hal.IgniterGOxMain, State: 0}},
		{[]string{"testspark", "1.5"}, comms.SetSparking{Duration: 1500 * time.Millisecond}},
		{[]string{"abort"}, comms.Abort{}},
		{[]string{"record", "on"}, comms.SetRecording{Enabled: true}},
		{[]string{"record", "off"}, comms.SetRecording{Enabled: false}},
		{[]string{"transfer"}, comms.TransferData{}},
		{[]string{"timing", "100", "2000", "3000"}, comms.ConfigureIgniterTiming{Timing: hal.IgniterTimingConfig{Prefire: 100, Fire: 2000, Purge: 3000}}},
		{[]string{"sensor", "chamber", "409.5", "3685.5", "0", "300"}, comms.ConfigureSensor{
			Sensor: hal.IgniterChamberPressure,
			Config: hal.SensorConfig{PreMin: 409.5, PreMax: 3685.5, PostMin: 0, PostMax: 300},
		}},
	}
	for _, tc := range testCases {
		s, rec, _ := newTestShell()
		require.NoError(t, s.Exec(tc.args[0], tc.args[1:]...))
		require.Equal(t, []comms.Packet{tc.packet}, rec.packets())
	}
}

func TestCommandErrors(t *testing.T) {
	testCases := [][]string{
		{"valve", "fuel_press"},
		{"valve", "nope", "1"},
		{"valve", "fuel_press", "256"},
		{"testvalve", "fuel_vent", "-1"},
		{"testspark"},
		{"fire", "x"},
		{"fire", "61"},
		{"record", "maybe"},
		{"timing", "1", "2"},
		{"timing", "1", "2", "70000"},
		{"sensor", "chamber", "1", "2", "3"},
		{"sensor", "nope", "1", "2", "3", "4"},
		{"sensor", "chamber", "1", "2", "x", "4"},
		{"target", "11"},
		{"bogus"},
	}
	for _, args := range testCases {
		s, rec, _ := newTestShell()
		require.Errorf(t, s.Exec(args[0], args[1:]...), "%v", args)
		require.Empty(t, rec.packets())
	}
}

func TestTestValve(t *testing.T) {
	s, rec, _ := newTestShell()
	require.NoError(t, s.Exec("testvalve", "fuel_vent", "2"))
	require.Equal(t, []step{
		{packet: comms.SetValve{Valve: hal.FuelVent, State: hal.ValveOpen}},
		{wait: 2 * time.Second},
		{packet: comms.SetValve{Valve: hal.FuelVent, State: hal.ValveClosed}},
	}, rec.steps)
}

func TestTestValves(t *testing.T) {
	s, rec, _ := newTestShell()
	require.NoError(t, s.Exec("testvalves"))
	packets := rec.packets()
	require.Len(t, packets, 2*len(hal.Valves))
	for n, valve := range hal.Valves {
		require.Equal(t, comms.SetValve{Valve: valve, State: hal.ValveOpen}, packets[2*n])
		require.Equal(t, comms.SetValve{Valve: valve, State: hal.ValveClosed}, packets[2*n+1])
	}
}

func TestFire(t *testing.T) {
	s, rec, out := newTestShell()
	require.NoError(t, s.Exec("fire"))
	require.Equal(t, []step{
		{wait: time.Second},
		{packet: comms.SetRecording{Enabled: true}},
		{wait: time.Second},
		{wait: time.Second},
		{packet: comms.FireIgniter{}},
	}, rec.steps)
	require.Contains(t, out.String(), "T-3\n")
	require.Contains(t, out.String(), "T-1\n")

	s, rec, _ = newTestShell()
	require.NoError(t, s.Exec("fire", "0"))
	require.Equal(t, []comms.Packet{comms.SetRecording{Enabled: true}, comms.FireIgniter{}}, rec.packets())
}

func TestFireStopsOnSendFailure(t *testing.T) {
	s, rec, _ := newTestShell()
	rec.err = errors.New("link down")
	require.EqualError(t, s.Exec("fire", "1"), "link down")
	require.Empty(t, rec.steps)
}

func TestTarget(t *testing.T) {
	s, rec, out := newTestShell()
	require.Equal(t, comms.EngineController(0), s.Target)
	require.NoError(t, s.Exec("target", "3"))
	require.Equal(t, comms.EngineController(3), s.Target)
	require.NoError(t, s.Exec("abort"))
	require.NoError(t, s.Exec("t", "all"))
	require.Equal(t, comms.Broadcast, s.Target)
	require.Len(t, rec.packets(), 1)
	require.Contains(t, out.String(), "EngineController(3) Abort OK\n")
}

func TestJSONOutput(t *testing.T) {
	s, _, out := newTestShell()
	s.OutputJSON = true
	require.NoError(t, s.Exec("record", "on"))
	require.Equal(t, `{"body":{"Enabled":true},"packet":"SetRecording","to":"EngineController(0)"}`+"\n", out.String())
}
