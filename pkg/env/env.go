// Package env provides the common configuration of the controller and
// the ground tools: defaults, environment variables, an optional YAML file
// and command line flags, in increasing precedence.
package env

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/denisbrodbeck/machineid"
	"gopkg.in/yaml.v3"

	"github.com/robotalks/ecu.go/pkg/comms"
	"github.com/robotalks/ecu.go/pkg/ecu"
	"github.com/robotalks/ecu.go/pkg/hal"
)

// Transports.
const (
	TransportEthernet = "ethernet"
	TransportCANFD    = "canfd"
)

// Config is the configuration shared by all commands.
type Config struct {
	ECU ecu.Config `yaml:"ecu"`

	// Transport selects the ECU link, ethernet or canfd.
	Transport string `yaml:"transport"`
	// Listen is the UDP address of the ECU, or of the transceiver when the
	// ECU is on CAN-FD.
	Listen string `yaml:"listen"`
	// Peer is the UDP address of mission control. Empty learns the address
	// from the first datagram.
	Peer string `yaml:"peer"`
	// ControlPeriod is the control loop period.
	ControlPeriod time.Duration `yaml:"control_period"`
	// PulseInterval is the transceiver heartbeat period.
	PulseInterval time.Duration `yaml:"pulse_interval"`

	Ground GroundConfig `yaml:"ground"`
}

// GroundConfig configures the ground station tools.
type GroundConfig struct {
	// Listen is the UDP address of the ground station.
	Listen string `yaml:"listen"`
	// Remote is the UDP address of the transceiver or ECU.
	Remote string `yaml:"remote"`
	// ClientID identifies the station, defaults to the machine id.
	ClientID string `yaml:"client_id"`
	// MQTTBrokerURL specifies the MQTT broker to bridge telemetry, empty disables.
	// e.g. mqtt://host:port/topic-prefix
	MQTTBrokerURL string `yaml:"mqtt_url"`
	// FeedAddr is the listen address of the websocket feed, empty disables.
	FeedAddr string `yaml:"feed_addr"`
	// WatchdogTimeout is how long a node may stay silent.
	WatchdogTimeout time.Duration `yaml:"watchdog_timeout"`
	// Countdown is the default fire countdown in seconds.
	Countdown int `yaml:"countdown"`
	// EngineCount is the number of engine controllers watched.
	EngineCount int `yaml:"engine_count"`
}

// DefaultSensors is the calibration of the stock transducers: 0.5V to
// 4.5V on a 12-bit 5V ADC.
var DefaultSensors = map[string]hal.SensorConfig{
	hal.IgniterThroatTemp.String():           {PreMin: 0, PreMax: 4095, PostMin: 0, PostMax: 1250},
	hal.IgniterFuelInjectorPressure.String(): {PreMin: 409.5, PreMax: 3685.5, PostMin: 0, PostMax: 300},
	hal.IgniterGOxInjectorPressure.String():  {PreMin: 409.5, PreMax: 3685.5, PostMin: 0, PostMax: 300},
	hal.IgniterChamberPressure.String():      {PreMin: 409.5, PreMax: 3685.5, PostMin: 0, PostMax: 300},
	hal.FuelTankPressure.String():            {PreMin: 409.5, PreMax: 3685.5, PostMin: 0, PostMax: 500},
}

var (
	defaultConfig = Config{
		ECU:           ecu.DefaultConfig(),
		Transport:     TransportEthernet,
		Listen:        "127.0.0.1:9000",
		Peer:          "127.0.0.1:9001",
		ControlPeriod: time.Millisecond,
		PulseInterval: 100 * time.Millisecond,
		Ground: GroundConfig{
			Listen:          "127.0.0.1:9001",
			Remote:          "127.0.0.1:9000",
			MQTTBrokerURL:   "mqtt://localhost:1883/ecu/",
			FeedAddr:        ":8080",
			WatchdogTimeout: time.Second,
			Countdown:       10,
			EngineCount:     1,
		},
	}

	configFile string
)

func init() {
	defaultConfig.ECU.Sensors = make(map[string]hal.SensorConfig, len(DefaultSensors))
	for name, sc := range DefaultSensors {
		defaultConfig.ECU.Sensors[name] = sc
	}
	defaultConfig.Ground.ClientID = MachineID()
	applyEnv(&defaultConfig, os.Getenv)
}

func applyEnv(c *Config, getenv func(string) string) {
	if val := getenv("ECU_INDEX"); val != "" {
		if n, err := strconv.ParseUint(val, 10, 8); err == nil {
			c.ECU.Index = uint8(n)
		}
	}
	if val := getenv("ECU_TRANSPORT"); val != "" {
		c.Transport = val
	}
	if val := getenv("ECU_LISTEN"); val != "" {
		c.Listen = val
	}
	if val := getenv("ECU_PEER"); val != "" {
		c.Peer = val
	}
	if val := getenv("ECU_REMOTE"); val != "" {
		c.Ground.Remote = val
	}
	if val := getenv("ECU_MQTT_URL"); val != "" {
		c.Ground.MQTTBrokerURL = val
	}
	if val := getenv("ECU_FEED_ADDR"); val != "" {
		c.Ground.FeedAddr = val
	}
	if val := getenv("ECU_CONFIG"); val != "" {
		configFile = val
	}
}

// MachineID retrieves the unique ID identifying the machine, the host
// name if unavailable.
func MachineID() string {
	id, err := machineid.ProtectedID("ecu.go")
	if err == nil {
		return id
	}
	if name, err := os.Hostname(); err == nil {
		return name
	}
	return "unknown"
}

// SetupFlags sets up the flags shared by all commands.
func SetupFlags() {
	flag.StringVar(&configFile, "config", configFile, "YAML config file")
	flag.StringVar(&defaultConfig.Transport, "transport", defaultConfig.Transport, "ECU link: ethernet or canfd")
	flag.StringVar(&defaultConfig.Listen, "listen", defaultConfig.Listen, "UDP address of the ECU or transceiver")
	flag.StringVar(&defaultConfig.Peer, "peer", defaultConfig.Peer, "UDP address of mission control, empty to learn")
	flag.DurationVar(&defaultConfig.ControlPeriod, "period", defaultConfig.ControlPeriod, "Control loop period")
	flag.DurationVar(&defaultConfig.ECU.TelemetryPeriod, "telemetry", defaultConfig.ECU.TelemetryPeriod, "Telemetry period")
	flag.Var(uint8Value{&defaultConfig.ECU.Index}, "index", "Engine controller index")
	flag.StringVar(&defaultConfig.Ground.Remote, "remote", defaultConfig.Ground.Remote, "UDP address of the transceiver or ECU")
	flag.StringVar(&defaultConfig.Ground.Listen, "station", defaultConfig.Ground.Listen, "UDP address of the ground station")
}

// SetupGroundFlags sets up the flags of the ground tools.
func SetupGroundFlags() {
	flag.StringVar(&defaultConfig.Ground.ClientID, "id", defaultConfig.Ground.ClientID, "Station ID")
	flag.StringVar(&defaultConfig.Ground.MQTTBrokerURL, "mqtt", defaultConfig.Ground.MQTTBrokerURL, "MQTT broker URL, empty to disable")
	flag.StringVar(&defaultConfig.Ground.FeedAddr, "feed", defaultConfig.Ground.FeedAddr, "Websocket feed address, empty to disable")
	flag.DurationVar(&defaultConfig.Ground.WatchdogTimeout, "watchdog", defaultConfig.Ground.WatchdogTimeout, "Watchdog timeout")
	flag.IntVar(&defaultConfig.Ground.Countdown, "countdown", defaultConfig.Ground.Countdown, "Fire countdown in seconds")
	flag.IntVar(&defaultConfig.Ground.EngineCount, "engines", defaultConfig.Ground.EngineCount, "Number of engine controllers")
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// LoadFile reads a YAML file into out.
func LoadFile(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// NewConfig creates a Config from defaults, the config file and flags.
// It must be called after flag.Parse.
func NewConfig() (*Config, error) {
	if configFile != "" {
		set := make(map[string]string)
		flag.Visit(func(f *flag.Flag) {
			set[f.Name] = f.Value.String()
		})
		if err := LoadFile(configFile, &defaultConfig); err != nil {
			return nil, err
		}
		for name, val := range set {
			if err := flag.Set(name, val); err != nil {
				return nil, err
			}
		}
	}
	conf := defaultConfig
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}

// MustNewConfig creates Config and fails on error.
func MustNewConfig() *Config {
	conf, err := NewConfig()
	if err != nil {
		log.Fatalln(err)
	}
	return conf
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch c.Transport {
	case TransportEthernet, TransportCANFD:
	default:
		return fmt.Errorf("unknown transport %q", c.Transport)
	}
	if c.ControlPeriod <= 0 {
		return fmt.Errorf("invalid control period %s", c.ControlPeriod)
	}
	if c.Ground.EngineCount < 0 || c.Ground.EngineCount > comms.MaxEngineControllers {
		return fmt.Errorf("invalid engine count %d", c.Ground.EngineCount)
	}
	return c.ECU.Validate()
}

type uint8Value struct {
	p *uint8
}

func (v uint8Value) String() string {
	if v.p == nil {
		return "0"
	}
	return strconv.Itoa(int(*v.p))
}

func (v uint8Value) Set(s string) error {
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return err
	}
	*v.p = uint8(n)
	return nil
}
