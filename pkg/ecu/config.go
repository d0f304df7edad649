package ecu

import (
	"fmt"
	"time"

	"github.com/robotalks/ecu.go/pkg/comms"
	"github.com/robotalks/ecu.go/pkg/hal"
)

// DefaultTelemetryPeriod is the telemetry rate until configured.
const DefaultTelemetryPeriod = 500 * time.Microsecond

// Config defines the static configuration of an ECU.
type Config struct {
	Index           uint8                       `yaml:"index" json:"index"`
	TelemetryPeriod time.Duration               `yaml:"telemetry_period" json:"telemetryPeriod"`
	RecordPeriod    time.Duration               `yaml:"record_period" json:"recordPeriod"`
	TransferPeriod  time.Duration               `yaml:"transfer_period" json:"transferPeriod"`
	StorageSize     int                         `yaml:"storage_size" json:"storageSize"`
	IgniterTiming   hal.IgniterTimingConfig     `yaml:"igniter_timing" json:"igniterTiming"`
	Sensors         map[string]hal.SensorConfig `yaml:"sensors" json:"sensors"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		TelemetryPeriod: DefaultTelemetryPeriod,
		RecordPeriod:    DefaultRecordPeriod,
		TransferPeriod:  DefaultTransferPeriod,
		StorageSize:     RecordStorageSize,
		IgniterTiming:   DefaultIgniterTiming,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Index >= comms.MaxEngineControllers {
		return fmt.Errorf("index %d out of range [0, %d)", c.Index, comms.MaxEngineControllers)
	}
	if c.TelemetryPeriod <= 0 {
		return fmt.Errorf("telemetry %w", ErrNonPositivePeriod)
	}
	if c.RecordPeriod <= 0 {
		return fmt.Errorf("record %w", ErrNonPositivePeriod)
	}
	if c.TransferPeriod <= 0 {
		return fmt.Errorf("transfer %w", ErrNonPositivePeriod)
	}
	if c.StorageSize <= 0 {
		return fmt.Errorf("invalid storage size %d", c.StorageSize)
	}
	for name := range c.Sensors {
		if _, err := hal.ParseSensor(name); err != nil {
			return err
		}
	}
	return nil
}

// Address returns the network address of the ECU.
func (c *Config) Address() comms.NetworkAddress {
	return comms.EngineController(c.Index)
}
