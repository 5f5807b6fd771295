package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bnema/relayd/internal/application"
	"github.com/bnema/relayd/internal/domain"
	"github.com/spf13/viper"
)

const (
	configName = "relayd"
	configType = "toml"
	configDir  = ".relayd"
	envPrefix  = "RELAYD"

	KeySessionsDir        = "sessions.dir"
	KeyLedgerPath         = "ledger.path"
	KeyHTTPAddr           = "http.addr"
	KeyHTTPTokens         = "http.tokens"
	KeyTelegramToken      = "telegram.token"
	KeyTelegramOperatorID = "telegram.operator_id"
	KeyGatewayURL         = "gateway.url"
	KeyGatewayToken       = "gateway.token"
	KeyRelayCountryCode   = "relay.country_code"
	KeyPairingDelay       = "supervisor.pairing_delay"
	KeyBackoffInitial     = "supervisor.backoff.initial"
	KeyBackoffMax         = "supervisor.backoff.max"
	KeyBackoffMultiplier  = "supervisor.backoff.multiplier"
	KeyBackoffMaxAttempts = "supervisor.backoff.max_attempts"

	DefaultHTTPAddr = "127.0.0.1:8080"
)

type Config struct {
	// File is the config file that was read, empty when running on defaults.
	File        string
	SessionsDir string
	LedgerPath  string
	HTTP        HTTP
	Telegram    Telegram
	Gateway     Gateway
	Relay       application.RelayConfig
	Supervisor  application.SupervisorConfig
}

type HTTP struct {
	Addr   string
	Tokens []string
}

type Telegram struct {
	Token      string
	OperatorID int64
}

func (t Telegram) Enabled() bool {
	return t.Token != ""
}

type Gateway struct {
	URL   string
	Token string
}

// Dir returns the default configuration directory, $HOME/.relayd.
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(homeDir, configDir), nil
}

// DefaultPath is where `config init` writes when no path is given.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configName+"."+configType), nil
}

// Load reads relayd.toml from explicitPath, or from $HOME/.relayd and the
// working directory, layering RELAYD_* environment variables on top.
func Load(v *viper.Viper, explicitPath string) (Config, error) {
	if v == nil {
		v = viper.New()
	}

	dir, err := Dir()
	if err != nil {
		return Config{}, err
	}

	setDefaults(v, dir)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType(configType)
		v.AddConfigPath(dir)
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if explicitPath != "" || !errors.As(err, &configNotFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := Config{
		File:        v.ConfigFileUsed(),
		SessionsDir: v.GetString(KeySessionsDir),
		LedgerPath:  v.GetString(KeyLedgerPath),
		HTTP: HTTP{
			Addr:   v.GetString(KeyHTTPAddr),
			Tokens: tokenList(v.GetStringSlice(KeyHTTPTokens)),
		},
		Telegram: Telegram{
			Token:      strings.TrimSpace(v.GetString(KeyTelegramToken)),
			OperatorID: v.GetInt64(KeyTelegramOperatorID),
		},
		Gateway: Gateway{
			URL:   strings.TrimSpace(v.GetString(KeyGatewayURL)),
			Token: v.GetString(KeyGatewayToken),
		},
		Relay: application.RelayConfig{
			CountryCode: strings.TrimSpace(v.GetString(KeyRelayCountryCode)),
		},
		Supervisor: application.SupervisorConfig{
			PairingDelay: v.GetDuration(KeyPairingDelay),
			Backoff: domain.BackoffPolicy{
				Initial:     v.GetDuration(KeyBackoffInitial),
				Max:         v.GetDuration(KeyBackoffMax),
				Multiplier:  v.GetFloat64(KeyBackoffMultiplier),
				MaxAttempts: v.GetInt(KeyBackoffMaxAttempts),
			},
		},
	}

	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, dir string) {
	backoff := domain.DefaultBackoffPolicy()

	v.SetDefault(KeySessionsDir, filepath.Join(dir, "sessions"))
	v.SetDefault(KeyLedgerPath, filepath.Join(dir, "sessions.json"))
	v.SetDefault(KeyHTTPAddr, DefaultHTTPAddr)
	v.SetDefault(KeyHTTPTokens, []string{})
	v.SetDefault(KeyTelegramToken, "")
	v.SetDefault(KeyTelegramOperatorID, 0)
	v.SetDefault(KeyGatewayURL, "")
	v.SetDefault(KeyGatewayToken, "")
	v.SetDefault(KeyRelayCountryCode, application.DefaultCountryCode)
	v.SetDefault(KeyPairingDelay, application.DefaultPairingDelay)
	v.SetDefault(KeyBackoffInitial, backoff.Initial)
	v.SetDefault(KeyBackoffMax, backoff.Max)
	v.SetDefault(KeyBackoffMultiplier, backoff.Multiplier)
	v.SetDefault(KeyBackoffMaxAttempts, backoff.MaxAttempts)
}

func (c *Config) normalize() error {
	var err error
	if c.SessionsDir, err = absPath(KeySessionsDir, c.SessionsDir); err != nil {
		return err
	}
	if c.LedgerPath, err = absPath(KeyLedgerPath, c.LedgerPath); err != nil {
		return err
	}
	if err := domain.ValidateCountryCode(c.Relay.CountryCode); err != nil {
		return fmt.Errorf("%s: %w", KeyRelayCountryCode, err)
	}
	if c.Supervisor.PairingDelay < 0 {
		return fmt.Errorf("%s must not be negative", KeyPairingDelay)
	}
	if err := c.Supervisor.Backoff.Validate(); err != nil {
		return fmt.Errorf("supervisor.backoff: %w", err)
	}
	if c.Telegram.Enabled() && c.Telegram.OperatorID == 0 {
		return fmt.Errorf("%s is required when a telegram token is set", KeyTelegramOperatorID)
	}
	return nil
}

func absPath(key, path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", fmt.Errorf("%s is empty", key)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", key, err)
	}
	return abs, nil
}

// tokenList accepts both TOML arrays and comma separated env values.
func tokenList(raw []string) []string {
	var tokens []string
	for _, entry := range raw {
		for _, token := range strings.Split(entry, ",") {
			if token = strings.TrimSpace(token); token != "" {
				tokens = append(tokens, token)
			}
		}
	}
	return tokens
}
