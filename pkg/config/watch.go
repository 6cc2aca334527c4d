package config

import (
	"context"
	"errors"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/marmos91/ovsdp/internal/logger"
)

// Watch reloads the file at path whenever it is written and hands every
// valid result to fn. Invalid edits are logged and skipped. fn is not
// called after ctx is done.
//
// Only settings that can change at runtime should be applied by fn;
// the datapath identity and socket are fixed for the life of the process.
func Watch(ctx context.Context, path string, fn func(*Config)) error {
	if path == "" {
		return errors.New("config watch needs an explicit file path")
	}

	v := viper.New()
	setupViper(v, path)
	if _, err := readConfigFile(v); err != nil {
		return err
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if ctx.Err() != nil {
			return
		}
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := decode(v)
		if err != nil {
			logger.Warn("Ignoring invalid configuration change", "path", e.Name, logger.Err(err))
			return
		}
		logger.Info("Configuration reloaded", "path", e.Name)
		fn(cfg)
	})
	v.WatchConfig()
	return nil
}
