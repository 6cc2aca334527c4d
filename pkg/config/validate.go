package config

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/marmos91/ovsdp/internal/bytesize"
)

// ReadBufferRange bounds device.read_buffer_size when it is set.
var ReadBufferRange = bytesize.Range{Min: 4 * bytesize.KiB, Max: 16 * bytesize.MiB}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks struct tags first, then rules spanning several fields.
// It does not normalize values; ApplyDefaults does that.
func Validate(cfg *Config) error {
	if err := getValidator().Struct(cfg); err != nil {
		return err
	}

	if rb := cfg.Device.ReadBufferSize; rb != 0 {
		if err := ReadBufferRange.Check("device.read_buffer_size", rb); err != nil {
			return err
		}
	}
	if cfg.Device.MaxConnections > 0 && cfg.Device.MaxConnections > cfg.Datapath.MaxSessions {
		return fmt.Errorf("device.max_connections (%d) exceeds datapath.max_sessions (%d)",
			cfg.Device.MaxConnections, cfg.Datapath.MaxSessions)
	}
	return nil
}
