// Package ops loads the JSON runtime configuration and resolves it into the
// concrete pieces the binaries wire together.
package ops

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"main/internal/commission"
	"main/internal/connector"
	"main/internal/reconnect"
	"main/internal/security"
)

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Registry   RegistryConfig  `json:"registry"`
	Connector  ConnectorConfig `json:"connector"`
	Commission []RuleConfig    `json:"commission"`
	Reconnect  ReconnectConfig `json:"reconnect"`
	Remote     RemoteConfig    `json:"remote"`
	Storage    StorageConfig   `json:"storage"`
	Profiling  ProfilingConfig `json:"profiling"`
}

// RegistryConfig defines board and instrument mappings.
type RegistryConfig struct {
	Boards     []string         `json:"boards"`
	Securities []SecurityConfig `json:"securities"`
}

// SecurityConfig describes one instrument entry.
type SecurityConfig struct {
	Symbol string `json:"symbol"`
	Board  string `json:"board"`
}

// ConnectorConfig tunes queue sizes and the unsubscribe grace period.
type ConnectorConfig struct {
	QueueCapacity        int `json:"queueCapacity"`
	EventCapacity        int `json:"eventCapacity"`
	UnsubscribeTimeoutMs int `json:"unsubscribeTimeoutMs"`
}

// RuleConfig describes one commission rule.
type RuleConfig struct {
	Kind   string          `json:"kind"` // perTrade, turnover, perOrder
	Amount decimal.Decimal `json:"amount"`
}

// ReconnectConfig tunes the automatic reconnection wrapper.
type ReconnectConfig struct {
	Attempts int `json:"attempts"`
	DelayMs  int `json:"delayMs"`
}

// RemoteConfig points at the gateway endpoint.
type RemoteConfig struct {
	URL string `json:"url"`
}

// StorageConfig selects the market data drive backend.
type StorageConfig struct {
	Kind string `json:"kind"` // fs, leveldb, postgres
	Path string `json:"path"`
	DSN  string `json:"dsn"`
}

// ProfilingConfig enables continuous profiling when an address is set.
type ProfilingConfig struct {
	ServerAddress   string `json:"serverAddress"`
	ApplicationName string `json:"applicationName"`
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Registry   *security.Registry
	Connector  connector.Options
	Commission []commission.Rule
	Reconnect  reconnect.Options
	Remote     RemoteConfig
	Storage    StorageConfig
	Profiling  ProfilingConfig
}

// Load reads a JSON config file and resolves every section.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, err
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, err
	}
	registry, err := buildRegistry(cfg.Registry)
	if err != nil {
		return Loaded{}, err
	}
	rules, err := buildRules(cfg.Commission)
	if err != nil {
		return Loaded{}, err
	}
	return Loaded{
		Registry: registry,
		Connector: connector.Options{
			QueueCapacity:      cfg.Connector.QueueCapacity,
			EventCapacity:      cfg.Connector.EventCapacity,
			UnsubscribeTimeout: time.Duration(cfg.Connector.UnsubscribeTimeoutMs) * time.Millisecond,
		},
		Commission: rules,
		Reconnect: reconnect.Options{
			Attempts: cfg.Reconnect.Attempts,
			Delay:    time.Duration(cfg.Reconnect.DelayMs) * time.Millisecond,
		},
		Remote:    cfg.Remote,
		Storage:   cfg.Storage,
		Profiling: cfg.Profiling,
	}, nil
}

func buildRegistry(cfg RegistryConfig) (*security.Registry, error) {
	reg := security.NewRegistry()
	for _, board := range cfg.Boards {
		if err := reg.AddBoard(board); err != nil {
			return nil, err
		}
	}
	for _, sec := range cfg.Securities {
		if _, err := reg.AddSecurity(sec.Symbol, sec.Board); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func buildRules(cfgs []RuleConfig) ([]commission.Rule, error) {
	rules := make([]commission.Rule, 0, len(cfgs))
	for _, cfg := range cfgs {
		switch cfg.Kind {
		case "perTrade":
			rules = append(rules, &commission.PerTradeRule{Fee: cfg.Amount})
		case "turnover":
			rules = append(rules, &commission.TurnoverRule{Percent: cfg.Amount})
		case "perOrder":
			rules = append(rules, &commission.PerOrderRule{Fee: cfg.Amount})
		default:
			return nil, fmt.Errorf("unknown commission rule kind: %s", cfg.Kind)
		}
	}
	return rules, nil
}
