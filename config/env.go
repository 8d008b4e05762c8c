package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// EnvPrefix names every environment variable read by ApplyEnv, as in
// BOOKCRAWL_OUTPUT_DIR.
const EnvPrefix = "BOOKCRAWL"

// envReader resolves config keys against BOOKCRAWL_* variables.
type envReader struct {
	v *viper.Viper
}

func newEnvReader(keys ...string) (*envReader, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind %s: %w", envName(key), err)
		}
	}
	return &envReader{v: v}, nil
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(key)
}

// lookup returns the trimmed value of key and whether it was set.
func (e *envReader) lookup(key string) (string, bool) {
	if !e.v.IsSet(key) {
		return "", false
	}
	value := strings.TrimSpace(e.v.GetString(key))
	return value, value != ""
}

func (e *envReader) intValue(key string) (int, bool, error) {
	value, ok := e.lookup(key)
	if !ok {
		return 0, false, nil
	}
	n, err := cast.ToIntE(value)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", envName(key), err)
	}
	return n, true, nil
}

func (e *envReader) durationValue(key string) (time.Duration, bool, error) {
	value, ok := e.lookup(key)
	if !ok {
		return 0, false, nil
	}
	d, err := cast.ToDurationE(value)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", envName(key), err)
	}
	return d, true, nil
}

func (e *envReader) boolValue(key string) (bool, bool, error) {
	value, ok := e.lookup(key)
	if !ok {
		return false, false, nil
	}
	b, err := cast.ToBoolE(value)
	if err != nil {
		return false, false, fmt.Errorf("%s: %w", envName(key), err)
	}
	return b, true, nil
}

// ApplyEnv overrides cfg fields from BOOKCRAWL_* variables. Keys follow the
// config file names, so delay is read from BOOKCRAWL_DELAY.
func ApplyEnv(cfg *Config) error {
	strs := map[string]*string{
		"base_url":      &cfg.BaseURL,
		"output_dir":    &cfg.OutputDir,
		"output_format": &cfg.OutputFormat,
		"user_agent":    &cfg.UserAgent,
		"metrics_addr":  &cfg.MetricsAddr,
	}
	ints := map[string]*int{
		"max_attempts":    &cfg.MaxAttempts,
		"max_index_pages": &cfg.MaxIndexPages,
		"dedupe_max_size": &cfg.DedupeMaxSize,
	}
	durations := map[string]*time.Duration{
		"delay":             &cfg.Delay,
		"random_delay":      &cfg.RandomDelay,
		"timeout":           &cfg.Timeout,
		"retry_backoff":     &cfg.RetryBackoff,
		"retry_backoff_max": &cfg.RetryBackoffMax,
	}
	bools := map[string]*bool{
		"download_images": &cfg.DownloadImages,
		"verbose":         &cfg.Verbose,
	}

	var keys []string
	for key := range strs {
		keys = append(keys, key)
	}
	for key := range ints {
		keys = append(keys, key)
	}
	for key := range durations {
		keys = append(keys, key)
	}
	for key := range bools {
		keys = append(keys, key)
	}
	env, err := newEnvReader(keys...)
	if err != nil {
		return err
	}

	for key, dst := range strs {
		if value, ok := env.lookup(key); ok {
			*dst = value
		}
	}
	for key, dst := range ints {
		value, ok, err := env.intValue(key)
		if err != nil {
			return err
		}
		if ok {
			*dst = value
		}
	}
	for key, dst := range durations {
		value, ok, err := env.durationValue(key)
		if err != nil {
			return err
		}
		if ok {
			*dst = value
		}
	}
	for key, dst := range bools {
		value, ok, err := env.boolValue(key)
		if err != nil {
			return err
		}
		if ok {
			*dst = value
		}
	}
	return nil
}
