// Package engine provides the shell commands operating an engine controller.
package engine

import (
	"fmt"
	"strconv"
	"time"

	"github.com/robotalks/ecu.go/pkg/cli/sh"
	"github.com/robotalks/ecu.go/pkg/comms"
	"github.com/robotalks/ecu.go/pkg/hal"
)

// Timings of the test sequences.
const (
	TestValveInterval = 500 * time.Millisecond
	RecordLead        = 2
	MaxCountdown      = 60
)

func parseSeconds(str string) (time.Duration, error) {
	val, err := strconv.ParseFloat(str, 64)
	if err != nil || val < 0 {
		return 0, fmt.Errorf("invalid SECONDS %q", str)
	}
	return time.Duration(val * float64(time.Second)), nil
}

func parseFloat32(name, str string) (float32, error) {
	val, err := strconv.ParseFloat(str, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", name, err)
	}
	return float32(val), nil
}

func parseUint16(name, str string) (uint16, error) {
	val, err := strconv.ParseUint(str, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", name, err)
	}
	return uint16(val), nil
}

func parseValveState(str string) (uint8, error) {
	switch str {
	case "open", "on":
		return hal.ValveOpen, nil
	case "close", "closed", "off":
		return hal.ValveClosed, nil
	}
	val, err := strconv.ParseUint(str, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid VALUE %q", str)
	}
	return uint8(val), nil
}

var (
	// ValveCmd sets a valve.
	ValveCmd = sh.Command{
		Name:    "valve",
		Aliases: []string{"v"},
		Help:    "NAME VALUE(0-255|open|close)",
		Func: func(s *sh.Shell, args []string) error {
			if len(args) < 2 {
				return fmt.Errorf("NAME and VALUE required")
			}
			valve, err := hal.ParseValve(args[0])
			if err != nil {
				return err
			}
			state, err := parseValveState(args[1])
			if err != nil {
				return err
			}
			return s.Send(comms.SetValve{Valve: valve, State: state})
		},
	}

	// TestValveCmd opens a valve for a while.
	TestValveCmd = sh.Command{
		Name:    "testvalve",
		Aliases: []string{"tv"},
		Help:    "NAME SECONDS",
		Func: func(s *sh.Shell, args []string) error {
			if len(args) < 2 {
				return fmt.Errorf("NAME and SECONDS required")
			}
			valve, err := hal.ParseValve(args[0])
			if err != nil {
				return err
			}
			d, err := parseSeconds(args[1])
			if err != nil {
				return err
			}
			return testValve(s, valve, d)
		},
	}

	// TestValvesCmd cycles every valve.
	TestValvesCmd = sh.Command{
		Name:    "testvalves",
		Aliases: []string{"tvs"},
		Help:    "",
		Func: func(s *sh.Shell, args []string) error {
			for _, valve := range hal.Valves {
				if err := testValve(s, valve, TestValveInterval); err != nil {
					return err
				}
				s.Wait(TestValveInterval)
			}
			return nil
		},
	}

	// TestSparkCmd sparks for a while.
	TestSparkCmd = sh.Command{
		Name:    "testspark",
		Aliases: []string{"ts"},
		Help:    "SECONDS",
		Func: func(s *sh.Shell, args []string) error {
			if len(args) < 1 {
				return fmt.Errorf("SECONDS required")
			}
			d, err := parseSeconds(args[0])
			if err != nil {
				return err
			}
			return s.Send(comms.SetSparking{Duration: d})
		},
	}

	// FireCmd counts down, starts recording and fires the igniter.
	FireCmd = sh.Command{
		Name:    "fire",
		Aliases: []string{"f"},
		Help:    "[COUNTDOWN(s)]",
		Func: func(s *sh.Shell, args []string) error {
			countdown := s.Config.Ground.Countdown
			if len(args) > 0 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n < 0 || n > MaxCountdown {
					return fmt.Errorf("invalid COUNTDOWN %q", args[0])
				}
				countdown = n
			}
			return fire(s, countdown)
		},
	}

	// AbortCmd aborts the igniter sequence.
	AbortCmd = sh.Command{
		Name:    "abort",
		Aliases: []string{"a"},
		Help:    "",
		Func: func(s *sh.Shell, args []string) error {
			return s.Send(comms.Abort{})
		},
	}

	// RecordCmd turns recording on or off.
	RecordCmd = sh.Command{
		Name:    "record",
		Aliases: []string{"r"},
		Help:    "on|off",
		Func: func(s *sh.Shell, args []string) error {
			if len(args) < 1 {
				return fmt.Errorf("on or off required")
			}
			switch args[0] {
			case "on":
				return s.Send(comms.SetRecording{Enabled: true})
			case "off":
				return s.Send(comms.SetRecording{Enabled: false})
			}
			return fmt.Errorf("invalid argument %q, on or off expected", args[0])
		},
	}

	// TransferCmd requests the recorded data.
	TransferCmd = sh.Command{
		Name:    "transfer",
		Aliases: []string{"x"},
		Help:    "",
		Func: func(s *sh.Shell, args []string) error {
			return s.Send(comms.TransferData{})
		},
	}

	// TimingCmd configures the igniter sequence.
	TimingCmd = sh.Command{
		Name:    "timing",
		Help:    "PREFIRE(ms) FIRE(ms) PURGE(ms)",
		Func: func(s *sh.Shell, args []string) error {
			if len(args) < 3 {
				return fmt.Errorf("PREFIRE, FIRE and PURGE required")
			}
			var timing hal.IgniterTimingConfig
			var err error
			if timing.Prefire, err = parseUint16("PREFIRE", args[0]); err != nil {
				return err
			}
			if timing.Fire, err = parseUint16("FIRE", args[1]); err != nil {
				return err
			}
			if timing.Purge, err = parseUint16("PURGE", args[2]); err != nil {
				return err
			}
			return s.Send(comms.ConfigureIgniterTiming{Timing: timing})
		},
	}

	// SensorCmd configures a sensor calibration.
	SensorCmd = sh.Command{
		Name:    "sensor",
		Help:    "NAME PREMIN PREMAX POSTMIN POSTMAX",
		Func: func(s *sh.Shell, args []string) error {
			if len(args) < 5 {
				return fmt.Errorf("NAME PREMIN PREMAX POSTMIN POSTMAX required")
			}
			sensor, err := hal.ParseSensor(args[0])
			if err != nil {
				return err
			}
			var sc hal.SensorConfig
			fields := []*float32{&sc.PreMin, &sc.PreMax, &sc.PostMin, &sc.PostMax}
			names := []string{"PREMIN", "PREMAX", "POSTMIN", "POSTMAX"}
			for n, field := range fields {
				if *field, err = parseFloat32(names[n], args[n+1]); err != nil {
					return err
				}
			}
			return s.Send(comms.ConfigureSensor{Sensor: sensor, Config: sc})
		},
	}
)

func testValve(s *sh.Shell, valve hal.Valve, d time.Duration) error {
	if err := s.Send(comms.SetValve{Valve: valve, State: hal.ValveOpen}); err != nil {
		return err
	}
	s.Wait(d)
	return s.Send(comms.SetValve{Valve: valve, State: hal.ValveClosed})
}

func fire(s *sh.Shell, countdown int) error {
	recording := false
	for t := countdown; t > 0; t-- {
		if t <= RecordLead && !recording {
			if err := s.Send(comms.SetRecording{Enabled: true}); err != nil {
				return err
			}
			recording = true
		}
		s.Printf("T-%d\n", t)
		s.Wait(time.Second)
	}
	if !recording {
		if err := s.Send(comms.SetRecording{Enabled: true}); err != nil {
			return err
		}
	}
	return s.Send(comms.FireIgniter{})
}

func init() {
	sh.AddCmds(
		&ValveCmd,
		&TestValveCmd,
		&TestValvesCmd,
		&TestSparkCmd,
		&FireCmd,
		&AbortCmd,
		&RecordCmd,
		&TransferCmd,
		&TimingCmd,
		&SensorCmd,
	)
}
