package rpclient

import (
	"encoding/json"
	"fmt"
	"time"
)

// Config — параметры соединения, читается из conf/*.json.
type Config struct {
	URL          string   `json:"url"`
	PingInterval Duration `json:"ping_interval"` // 0 — без ping/pong
	WriteTimeout Duration `json:"write_timeout"`
	ReadLimit    int64    `json:"read_limit"`
	Reconnect    bool     `json:"reconnect"`
	MinBackoff   Duration `json:"min_backoff"`
	MaxBackoff   Duration `json:"max_backoff"`
}

func DefaultConfig() Config {
	return Config{
		PingInterval: Duration{10 * time.Second},
		WriteTimeout: Duration{5 * time.Second},
		ReadLimit:    64 << 20,
		MinBackoff:   Duration{time.Second},
		MaxBackoff:   Duration{30 * time.Second},
	}
}

// withDefaults — незаданные поля берутся из DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.WriteTimeout.Duration <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = d.ReadLimit
	}
	if c.MinBackoff.Duration <= 0 {
		c.MinBackoff = d.MinBackoff
	}
	if c.MaxBackoff.Duration < c.MinBackoff.Duration {
		c.MaxBackoff = Duration{max(d.MaxBackoff.Duration, c.MinBackoff.Duration)}
	}
	if c.PingInterval.Duration < 0 {
		c.PingInterval = Duration{}
	}
	return c
}

// Duration — time.Duration, который в JSON пишется строкой ("10s") и
// принимает как строку, так и число наносекунд.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case float64:
		d.Duration = time.Duration(x)
	case string:
		dur, err := time.ParseDuration(x)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", x, err)
		}
		d.Duration = dur
	default:
		return fmt.Errorf("invalid duration %s", b)
	}
	return nil
}
