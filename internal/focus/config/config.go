package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// AppConfig holds configuration values parsed from environment variables.
type AppConfig struct {
	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	// LogLevel controls log verbosity: "debug", "info", "warn", or "error".
	LogLevel string `koanf:"log_level" validate:"required,oneof=debug info warn error"`

	// StatusURL is the companion application's focus status endpoint.
	StatusURL string `koanf:"status_url" validate:"required,url"`

	// StatusTimeout bounds a single status request.
	StatusTimeout time.Duration `koanf:"status_timeout" validate:"required,gt=0"`

	PollInterval time.Duration `koanf:"poll_interval" validate:"required,gt=0"`

	// DBPath is the bbolt file holding the block and allow lists.
	DBPath string `koanf:"db_path" validate:"required"`

	// MaxRules is the ceiling on installed regex rules. Browsers cap regex
	// rules at 1000.
	MaxRules int `koanf:"max_rules" validate:"required,gte=1,lte=1000"`

	// InterstitialURL is where blocked navigations are redirected.
	InterstitialURL string `koanf:"interstitial_url" validate:"required,url"`

	LookupAttempts int           `koanf:"lookup_attempts" validate:"required,gte=1"`
	LookupDelay    time.Duration `koanf:"lookup_delay" validate:"gte=0"`

	// BridgeAddr is the host:port the extension bridge listens on.
	BridgeAddr string `koanf:"bridge_addr" validate:"required,listen_addr"`

	// BridgeOrigins are the origin host patterns accepted on the bridge,
	// e.g. the extension id. Empty accepts same-origin and non-browser clients.
	BridgeOrigins []string `koanf:"bridge_origins"`

	// MatcherCacheSize is the compiled pattern LRU size; 0 disables caching.
	MatcherCacheSize int `koanf:"matcher_cache_size" validate:"gte=0"`

	BloomFPRate float64 `koanf:"bloom_fp_rate" validate:"gt=0,lt=1"`
}

// DEFAULT_APP_CONFIG defines the default settings for the focusgate daemon.
var DEFAULT_APP_CONFIG = AppConfig{
	Env:              "prod",
	LogLevel:         "info",
	StatusURL:        "http://127.0.0.1:42069/status",
	StatusTimeout:    time.Second,
	PollInterval:     2 * time.Second,
	DBPath:           "/var/lib/focusgate/lists.db",
	MaxRules:         1000,
	InterstitialURL:  "http://127.0.0.1:42070/blocked",
	LookupAttempts:   3,
	LookupDelay:      50 * time.Millisecond,
	BridgeAddr:       "127.0.0.1:42070",
	BridgeOrigins:    []string{},
	MatcherCacheSize: 2048,
	BloomFPRate:      0.001,
}

// validListenAddr accepts "host:port" and ":port" where host is an IP or a
// hostname and port is between 1 and 65535.
func validListenAddr(fl validator.FieldLevel) bool {
	addr := fl.Field().String()
	host, port, err := net.SplitHostPort(addr)
	if err != nil || port == "" {
		return false
	}
	if host != "" && net.ParseIP(host) == nil && strings.ContainsAny(host, " /@") {
		return false
	}
	portNum, err := strconv.ParseUint(port, 10, 16)
	return err == nil && portNum > 0
}

// envLoader loads environment variables with the prefix "FOCUS_".
// Keys are lowercased with the prefix removed; values containing spaces or
// commas become lists. It can be replaced in tests.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: "FOCUS_",
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, "FOCUS_"))
			value = strings.TrimSpace(value)

			if value == "" {
				return key, value
			}

			if strings.Contains(value, " ") || strings.Contains(value, ",") {
				parts := strings.FieldsFunc(value, func(r rune) bool {
					return r == ' ' || r == ','
				})
				return key, parts
			}

			return key, value
		},
	}), nil)
}

// defaultLoader loads DEFAULT_APP_CONFIG through the structs provider.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

// registerValidation registers the "listen_addr" tag.
var registerValidation = func(v *validator.Validate) error {
	return v.RegisterValidation("listen_addr", validListenAddr)
}

// Load parses environment variables and returns an AppConfig instance.
// It applies default values and runs validation automatically.
func Load() (*AppConfig, error) {
	k := koanf.New(".")

	err := defaultLoader(k)
	if err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}

	err = envLoader(k)
	if err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	err = registerValidation(validate)
	if err != nil {
		return nil, fmt.Errorf("error registering validation: %w", err)
	}

	err = validate.Struct(&cfg)
	if err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}
