package env

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/ecu.go/pkg/ecu"
	"github.com/robotalks/ecu.go/pkg/hal"
)

const testYAML = `
transport: canfd
control_period: 2ms
ecu:
  index: 3
  telemetry_period: 10ms
  igniter_timing:
    prefire_ms: 100
    fire_ms: 500
    purge_ms: 800
  sensors:
    chamber:
      pre_min: 0
      pre_max: 4095
      post_min: 0
      post_max: 1000
ground:
  remote: 10.0.0.2:9000
  watchdog_timeout: 3s
`

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ecu.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testYAML), 0644))

	conf := Config{ECU: ecu.DefaultConfig(), Transport: TransportEthernet, Listen: "keep"}
	require.NoError(t, LoadFile(path, &conf))
	require.Equal(t, TransportCANFD, conf.Transport)
	require.Equal(t, "keep", conf.Listen)
	require.Equal(t, 2*time.Millisecond, conf.ControlPeriod)
	require.Equal(t, uint8(3), conf.ECU.Index)
	require.Equal(t, 10*time.Millisecond, conf.ECU.TelemetryPeriod)
	require.Equal(t, ecu.DefaultRecordPeriod, conf.ECU.RecordPeriod)
	require.Equal(t, hal.IgniterTimingConfig{Prefire: 100, Fire: 500, Purge: 800}, conf.ECU.IgniterTiming)
	require.Equal(t, hal.SensorConfig{PreMax: 4095, PostMax: 1000}, conf.ECU.Sensors["chamber"])
	require.Equal(t, "10.0.0.2:9000", conf.Ground.Remote)
	require.Equal(t, 3*time.Second, conf.Ground.WatchdogTimeout)
	require.NoError(t, conf.Validate())
}

func TestLoadFileErrors(t *testing.T) {
	var conf Config
	require.Error(t, LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), &conf))

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("control_period: [1"), 0644))
	require.Error(t, LoadFile(path, &conf))
}

func TestApplyEnv(t *testing.T) {
	vars := map[string]string{
		"ECU_INDEX":     "4",
		"ECU_TRANSPORT": "canfd",
		"ECU_PEER":      "127.0.0.1:7000",
		"ECU_MQTT_URL":  "mqtt://broker:1883/test/",
	}
	var conf Config
	applyEnv(&conf, func(key string) string { return vars[key] })
	require.Equal(t, uint8(4), conf.ECU.Index)
	require.Equal(t, TransportCANFD, conf.Transport)
	require.Equal(t, "127.0.0.1:7000", conf.Peer)
	require.Equal(t, "mqtt://broker:1883/test/", conf.Ground.MQTTBrokerURL)

	vars["ECU_INDEX"] = "300"
	applyEnv(&conf, func(key string) string { return vars[key] })
	require.Equal(t, uint8(4), conf.ECU.Index)
}

func TestValidate(t *testing.T) {
	conf := defaultConfig
	require.NoError(t, conf.Validate())
	require.NotEmpty(t, conf.Ground.ClientID)
	require.Len(t, conf.ECU.Sensors, hal.SensorCount)

	conf.Transport = "serial"
	require.Error(t, conf.Validate())
	conf = defaultConfig
	conf.ControlPeriod = 0
	require.Error(t, conf.Validate())
	conf = defaultConfig
	conf.ECU.TelemetryPeriod = 0
	require.Error(t, conf.Validate())
}

func TestUint8Value(t *testing.T) {
	var n uint8
	v := uint8Value{&n}
	require.NoError(t, v.Set("10"))
	require.Equal(t, uint8(10), n)
	require.Equal(t, "10", v.String())
	require.Error(t, v.Set("256"))
	require.Error(t, v.Set("x"))
}
