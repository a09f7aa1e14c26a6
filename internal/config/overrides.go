package config

import (
	"fmt"
	"strings"
)

// RuntimeOverrides holds configuration values that can be overridden at runtime
// via CLI flags or other means
type RuntimeOverrides struct {
	ActiveModel *string
	MaxTokens   *int
	Temperature *float64
	LogLevel    *string
	LogFile     *string
	Addr        *string
	DBPath      *string
}

func (o *RuntimeOverrides) apply(cfg *ConfigSchema) error {
	if o == nil {
		return nil
	}

	if o.ActiveModel != nil {
		name := strings.ToLower(*o.ActiveModel)
		if _, exists := cfg.ModelPresets[name]; !exists {
			return fmt.Errorf("model %q not found in configuration", *o.ActiveModel)
		}
		cfg.ActiveModel = name
	}

	if preset, ok := cfg.ModelPresets[cfg.ActiveModel]; ok {
		if o.MaxTokens != nil {
			preset.MaxTokens = *o.MaxTokens
		}
		if o.Temperature != nil {
			preset.Temperature = *o.Temperature
		}
		cfg.ModelPresets[cfg.ActiveModel] = preset
	}

	if o.LogLevel != nil {
		cfg.Log.LogLevel = strings.ToUpper(*o.LogLevel)
	}
	if o.LogFile != nil {
		cfg.Log.LogFile = *o.LogFile
	}
	if o.Addr != nil {
		cfg.Server.Addr = *o.Addr
	}
	if o.DBPath != nil {
		cfg.DBPath = *o.DBPath
	}
	return nil
}
