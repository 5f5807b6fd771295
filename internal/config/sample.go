package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bnema/relayd/internal/application"
	"github.com/bnema/relayd/internal/domain"
	toml "github.com/pelletier/go-toml/v2"
)

const (
	sampleFileMode = 0o600
	sampleDirMode  = 0o700
)

var ErrConfigExists = errors.New("config file already exists")

// Durations are strings so the written file stays human-editable.
type sampleFile struct {
	Sessions struct {
		Dir string `toml:"dir"`
	} `toml:"sessions"`
	Ledger struct {
		Path string `toml:"path"`
	} `toml:"ledger"`
	HTTP struct {
		Addr   string   `toml:"addr"`
		Tokens []string `toml:"tokens"`
	} `toml:"http"`
	Telegram struct {
		Token      string `toml:"token"`
		OperatorID int64  `toml:"operator_id"`
	} `toml:"telegram"`
	Gateway struct {
		URL   string `toml:"url"`
		Token string `toml:"token"`
	} `toml:"gateway"`
	Relay struct {
		CountryCode string `toml:"country_code"`
	} `toml:"relay"`
	Supervisor struct {
		PairingDelay string `toml:"pairing_delay"`
		Backoff      struct {
			Initial     string  `toml:"initial"`
			Max         string  `toml:"max"`
			Multiplier  float64 `toml:"multiplier"`
			MaxAttempts int     `toml:"max_attempts"`
		} `toml:"backoff"`
	} `toml:"supervisor"`
}

func newSample(dir string) sampleFile {
	backoff := domain.DefaultBackoffPolicy()

	var s sampleFile
	s.Sessions.Dir = filepath.Join(dir, "sessions")
	s.Ledger.Path = filepath.Join(dir, "sessions.json")
	s.HTTP.Addr = DefaultHTTPAddr
	s.HTTP.Tokens = []string{}
	s.Gateway.URL = "ws://127.0.0.1:7070/sessions"
	s.Relay.CountryCode = application.DefaultCountryCode
	s.Supervisor.PairingDelay = application.DefaultPairingDelay.String()
	s.Supervisor.Backoff.Initial = backoff.Initial.String()
	s.Supervisor.Backoff.Max = backoff.Max.String()
	s.Supervisor.Backoff.Multiplier = backoff.Multiplier
	s.Supervisor.Backoff.MaxAttempts = backoff.MaxAttempts
	return s
}

// WriteSample writes a starter config with every key set. Existing files are kept
// unless overwrite is set.
func WriteSample(path string, overwrite bool) error {
	if path == "" {
		return errors.New("config path is empty")
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s: %w", path, ErrConfigExists)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("stat config file: %w", err)
		}
	}

	dir, err := Dir()
	if err != nil {
		return err
	}

	data, err := toml.Marshal(newSample(dir))
	if err != nil {
		return fmt.Errorf("encode sample config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), sampleDirMode); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, sampleFileMode); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
