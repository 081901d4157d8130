// Package config loads RuleForge settings from defaults, an optional config
// file, RULEFORGE_* environment variables and command-line flags, in rising
// order of precedence.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"unicode"

	burntsushi "github.com/BurntSushi/toml"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	rferrors "ruleforge/internal/errors"
	"ruleforge/internal/paths"
)

// EnvPrefix prefixes every environment override, e.g. RULEFORGE_CHUNK_SIZE.
const EnvPrefix = "RULEFORGE"

// Clustering method names.
const (
	MethodHAC      = "hac"
	MethodAP       = "ap"
	MethodDBSCAN   = "dbscan"
	MethodMDBSCAN  = "mdbscan"
	MethodExternal = "external"
)

// Methods lists the accepted clustering methods.
var Methods = []string{MethodHAC, MethodAP, MethodDBSCAN, MethodMDBSCAN, MethodExternal}

// Config is the complete RuleForge configuration.
type Config struct {
	Wordlist        string `json:"wordlist" mapstructure:"wordlist" toml:"wordlist" yaml:"wordlist"`
	RuleFile        string `json:"ruleFile" mapstructure:"ruleFile" toml:"ruleFile" yaml:"ruleFile"`
	Method          string `json:"method" mapstructure:"method" toml:"method" yaml:"method"`
	ChunkSize       int    `json:"chunkSize" mapstructure:"chunkSize" toml:"chunkSize" yaml:"chunkSize"`
	MaxDistance     int    `json:"maxDistance" mapstructure:"maxDistance" toml:"maxDistance" yaml:"maxDistance"`
	Precomputed     bool   `json:"precomputed" mapstructure:"precomputed" toml:"precomputed" yaml:"precomputed"`
	RemoveOutliers  bool   `json:"removeOutliers" mapstructure:"removeOutliers" toml:"removeOutliers" yaml:"removeOutliers"`
	MostFrequent    int    `json:"mostFrequent" mapstructure:"mostFrequent" toml:"mostFrequent" yaml:"mostFrequent"`
	RulePriority    string `json:"rulePriority" mapstructure:"rulePriority" toml:"rulePriority" yaml:"rulePriority"`
	Granularity     string `json:"granularity" mapstructure:"granularity" toml:"granularity" yaml:"granularity"`
	CaseInsensitive bool   `json:"caseInsensitive" mapstructure:"caseInsensitive" toml:"caseInsensitive" yaml:"caseInsensitive"`

	HAC     HACConfig     `json:"hac" mapstructure:"hac" toml:"hac" yaml:"hac"`
	AP      APConfig      `json:"ap" mapstructure:"ap" toml:"ap" yaml:"ap"`
	DBSCAN  DBSCANConfig  `json:"dbscan" mapstructure:"dbscan" toml:"dbscan" yaml:"dbscan"`
	Logging LoggingConfig `json:"logging" mapstructure:"logging" toml:"logging" yaml:"logging"`
	History HistoryConfig `json:"history" mapstructure:"history" toml:"history" yaml:"history"`
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics" toml:"metrics" yaml:"metrics"`
}

// HACConfig configures single-linkage hierarchical clustering.
type HACConfig struct {
	DistanceThreshold float64 `json:"distanceThreshold" mapstructure:"distanceThreshold" toml:"distanceThreshold" yaml:"distanceThreshold"`
}

// APConfig configures affinity propagation.
type APConfig struct {
	Damping         float64 `json:"damping" mapstructure:"damping" toml:"damping" yaml:"damping"`
	ConvergenceIter int     `json:"convergenceIter" mapstructure:"convergenceIter" toml:"convergenceIter" yaml:"convergenceIter"`
	MaxIter         int     `json:"maxIter" mapstructure:"maxIter" toml:"maxIter" yaml:"maxIter"`
	Seed            uint64  `json:"seed" mapstructure:"seed" toml:"seed" yaml:"seed"`
}

// DBSCANConfig configures DBSCAN and MDBSCAN.
type DBSCANConfig struct {
	Eps       int     `json:"eps" mapstructure:"eps" toml:"eps" yaml:"eps"`
	MinPoints int     `json:"minPoints" mapstructure:"minPoints" toml:"minPoints" yaml:"minPoints"`
	Eps2      float64 `json:"eps2" mapstructure:"eps2" toml:"eps2" yaml:"eps2"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format     string `json:"format" mapstructure:"format" toml:"format" yaml:"format"`
	Level      string `json:"level" mapstructure:"level" toml:"level" yaml:"level"`
	File       string `json:"file" mapstructure:"file" toml:"file" yaml:"file"`
	MaxSize    string `json:"maxSize" mapstructure:"maxSize" toml:"maxSize" yaml:"maxSize"`
	MaxBackups int    `json:"maxBackups" mapstructure:"maxBackups" toml:"maxBackups" yaml:"maxBackups"`
}

// HistoryConfig controls the run history database.
type HistoryConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled" toml:"enabled" yaml:"enabled"`
	Path    string `json:"path" mapstructure:"path" toml:"path" yaml:"path"`
}

// MetricsConfig controls the Prometheus textfile written after a run.
type MetricsConfig struct {
	Textfile string `json:"textfile" mapstructure:"textfile" toml:"textfile" yaml:"textfile"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		RuleFile:    "rules.rule",
		ChunkSize:   10000,
		MaxDistance: 100,
		Granularity: "combo",
		HAC: HACConfig{
			DistanceThreshold: 3,
		},
		AP: APConfig{
			Damping:         0.7,
			ConvergenceIter: 15,
			MaxIter:         200,
		},
		DBSCAN: DBSCANConfig{
			Eps:       1,
			MinPoints: 3,
			Eps2:      0.25,
		},
		Logging: LoggingConfig{
			Format:     "text",
			Level:      "info",
			MaxBackups: 3,
		},
	}
}

// defaults flattens DefaultConfig into viper keys.
func defaults() map[string]any {
	d := DefaultConfig()
	return map[string]any{
		"wordlist":              d.Wordlist,
		"ruleFile":              d.RuleFile,
		"method":                d.Method,
		"chunkSize":             d.ChunkSize,
		"maxDistance":           d.MaxDistance,
		"precomputed":           d.Precomputed,
		"removeOutliers":        d.RemoveOutliers,
		"mostFrequent":          d.MostFrequent,
		"rulePriority":          d.RulePriority,
		"granularity":           d.Granularity,
		"caseInsensitive":       d.CaseInsensitive,
		"hac.distanceThreshold": d.HAC.DistanceThreshold,
		"ap.damping":            d.AP.Damping,
		"ap.convergenceIter":    d.AP.ConvergenceIter,
		"ap.maxIter":            d.AP.MaxIter,
		"ap.seed":               d.AP.Seed,
		"dbscan.eps":            d.DBSCAN.Eps,
		"dbscan.minPoints":      d.DBSCAN.MinPoints,
		"dbscan.eps2":           d.DBSCAN.Eps2,
		"logging.format":        d.Logging.Format,
		"logging.level":         d.Logging.Level,
		"logging.file":          d.Logging.File,
		"logging.maxSize":       d.Logging.MaxSize,
		"logging.maxBackups":    d.Logging.MaxBackups,
		"history.enabled":       d.History.Enabled,
		"history.path":          d.History.Path,
		"metrics.textfile":      d.Metrics.Textfile,
	}
}

// Keys returns every config key in sorted order.
func Keys() []string {
	return slices.Sorted(maps.Keys(defaults()))
}

// NewViper returns a viper instance with defaults and environment bindings.
// Commands bind their flags to it before calling Load.
func NewViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults() {
		v.SetDefault(key, value)
		_ = v.BindEnv(key, EnvName(key))
	}
	return v
}

// EnvName maps a config key to its environment variable:
// "hac.distanceThreshold" becomes RULEFORGE_HAC_DISTANCE_THRESHOLD.
func EnvName(key string) string {
	var b strings.Builder
	b.WriteString(EnvPrefix)
	b.WriteByte('_')
	for i, r := range key {
		switch {
		case r == '.':
			b.WriteByte('_')
		case unicode.IsUpper(r):
			if i > 0 && key[i-1] != '.' {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

// Load reads configFile, or .ruleforge.{json,toml,yaml} from the working
// directory when configFile is empty, into v and decodes the result. A
// missing default config file is not an error.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(paths.ConfigBaseName())
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, rferrors.New(rferrors.ConfigInvalid, "cannot read config file", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, rferrors.New(rferrors.ConfigInvalid, "cannot decode config", err)
	}
	return &cfg, nil
}

// Validate checks value ranges. Errors carry code CONFIG_ERROR and wrap a
// *ConfigError naming the field.
func (c *Config) Validate() error {
	check := func(ok bool, field, msg string) error {
		if ok {
			return nil
		}
		ce := &ConfigError{Field: field, Message: msg}
		return rferrors.New(rferrors.ConfigInvalid, ce.Error(), ce)
	}

	for _, err := range []error{
		check(c.ChunkSize > 0, "chunkSize", "must be positive"),
		check(c.MaxDistance > 0, "maxDistance", "must be positive"),
		check(c.MostFrequent >= 0, "mostFrequent", "must not be negative"),
		check(c.HAC.DistanceThreshold > 0, "hac.distanceThreshold", "must be positive"),
		check(c.AP.Damping >= 0.5 && c.AP.Damping < 1, "ap.damping", "must be in [0.5, 1)"),
		check(c.AP.ConvergenceIter > 0, "ap.convergenceIter", "must be positive"),
		check(c.AP.MaxIter > 0, "ap.maxIter", "must be positive"),
		check(c.DBSCAN.Eps >= 0, "dbscan.eps", "must not be negative"),
		check(c.DBSCAN.MinPoints > 0, "dbscan.minPoints", "must be positive"),
		check(c.DBSCAN.Eps2 >= 0 && c.DBSCAN.Eps2 <= 1, "dbscan.eps2", "must be in [0, 1]"),
		check(oneOf(strings.ToLower(c.Granularity), "combo", "atomic", "both"), "granularity", "must be combo, atomic or both"),
		check(oneOf(strings.ToLower(c.Logging.Format), "text", "json"), "logging.format", "must be text or json"),
		check(c.Method == "" || oneOf(c.Method, Methods...), "method", "must be one of "+strings.Join(Methods, ", ")),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}

// RequireMethod fails with NO_CLUSTER_METHOD when no method is selected.
func (c *Config) RequireMethod() error {
	if c.Method == "" {
		return rferrors.New(rferrors.NoClusterMethod, "no clustering method selected", nil)
	}
	return nil
}

func oneOf(s string, options ...string) bool {
	return slices.Contains(options, s)
}

// Encode writes the configuration as json, toml or yaml.
func (c *Config) Encode(w io.Writer, format string) error {
	switch strings.ToLower(format) {
	case "", "json":
		data, err := json.MarshalIndent(c, "", "  ")
		if err != nil {
			return err
		}
		_, err = w.Write(append(data, '\n'))
		return err
	case "toml":
		return toml.NewEncoder(w).Encode(c)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(c); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q (want json, toml or yaml)", format)
	}
}

const templateHeader = `# RuleForge configuration.
# Values here are overridden by RULEFORGE_* environment variables and flags.
# method: hac, ap, dbscan, mdbscan or external.
# granularity: combo, atomic or both.

`

// WriteTemplate writes the default configuration as a commented TOML file.
func WriteTemplate(w io.Writer) error {
	if _, err := io.WriteString(w, templateHeader); err != nil {
		return err
	}
	return burntsushi.NewEncoder(w).Encode(DefaultConfig())
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
