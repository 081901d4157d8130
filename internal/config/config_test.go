package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	burntsushi "github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	rferrors "ruleforge/internal/errors"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.ChunkSize != 10000 {
		t.Errorf("ChunkSize = %d, want 10000", cfg.ChunkSize)
	}
	if cfg.MaxDistance != 100 {
		t.Errorf("MaxDistance = %d, want 100", cfg.MaxDistance)
	}
	if cfg.RuleFile != "rules.rule" {
		t.Errorf("RuleFile = %q, want rules.rule", cfg.RuleFile)
	}
	if cfg.Granularity != "combo" {
		t.Errorf("Granularity = %q, want combo", cfg.Granularity)
	}
	if cfg.HAC.DistanceThreshold != 3 {
		t.Errorf("HAC.DistanceThreshold = %v, want 3", cfg.HAC.DistanceThreshold)
	}
	if cfg.AP.Damping != 0.7 || cfg.AP.ConvergenceIter != 15 || cfg.AP.MaxIter != 200 {
		t.Errorf("AP = %+v, want damping 0.7, convergence 15, max 200", cfg.AP)
	}
	if cfg.DBSCAN.Eps != 1 || cfg.DBSCAN.MinPoints != 3 || cfg.DBSCAN.Eps2 != 0.25 {
		t.Errorf("DBSCAN = %+v, want eps 1, minPoints 3, eps2 0.25", cfg.DBSCAN)
	}
	if cfg.Method != "" {
		t.Errorf("Method = %q, want empty", cfg.Method)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestEnvName(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"wordlist", "RULEFORGE_WORDLIST"},
		{"chunkSize", "RULEFORGE_CHUNK_SIZE"},
		{"hac.distanceThreshold", "RULEFORGE_HAC_DISTANCE_THRESHOLD"},
		{"dbscan.eps2", "RULEFORGE_DBSCAN_EPS2"},
		{"logging.maxBackups", "RULEFORGE_LOGGING_MAX_BACKUPS"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := EnvName(tt.key); got != tt.want {
				t.Errorf("EnvName(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestLoadWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(NewViper(), "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ChunkSize != 10000 {
		t.Errorf("ChunkSize = %d, want default 10000", cfg.ChunkSize)
	}
	if cfg.AP.MaxIter != 200 {
		t.Errorf("AP.MaxIter = %d, want default 200", cfg.AP.MaxIter)
	}
}

func TestLoadTOMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ruleforge.toml")
	content := `
wordlist = "leaked.txt"
method = "mdbscan"
chunkSize = 500
granularity = "both"

[dbscan]
eps = 2
eps2 = 0.4

[logging]
level = "debug"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(NewViper(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Wordlist != "leaked.txt" {
		t.Errorf("Wordlist = %q, want leaked.txt", cfg.Wordlist)
	}
	if cfg.Method != MethodMDBSCAN {
		t.Errorf("Method = %q, want mdbscan", cfg.Method)
	}
	if cfg.ChunkSize != 500 {
		t.Errorf("ChunkSize = %d, want 500", cfg.ChunkSize)
	}
	if cfg.DBSCAN.Eps != 2 || cfg.DBSCAN.Eps2 != 0.4 {
		t.Errorf("DBSCAN = %+v, want eps 2, eps2 0.4", cfg.DBSCAN)
	}
	// Untouched keys in a touched table keep their defaults.
	if cfg.DBSCAN.MinPoints != 3 {
		t.Errorf("DBSCAN.MinPoints = %d, want default 3", cfg.DBSCAN.MinPoints)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoadDefaultFileName(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.WriteFile(filepath.Join(dir, ".ruleforge.json"), []byte(`{"method":"hac","hac":{"distanceThreshold":5}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(NewViper(), "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Method != MethodHAC {
		t.Errorf("Method = %q, want hac", cfg.Method)
	}
	if cfg.HAC.DistanceThreshold != 5 {
		t.Errorf("HAC.DistanceThreshold = %v, want 5", cfg.HAC.DistanceThreshold)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(NewViper(), filepath.Join(t.TempDir(), "absent.toml"))
	if err == nil {
		t.Fatal("Load() should fail for a missing explicit config file")
	}
	if !rferrors.Is(err, rferrors.ConfigInvalid) {
		t.Errorf("error code = %q, want CONFIG_ERROR", rferrors.CodeOf(err))
	}
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ruleforge.yaml")
	if err := os.WriteFile(path, []byte("chunkSize: 500\nmethod: ap\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("RULEFORGE_CHUNK_SIZE", "42")
	t.Setenv("RULEFORGE_AP_DAMPING", "0.9")
	t.Setenv("RULEFORGE_CASE_INSENSITIVE", "true")

	cfg, err := Load(NewViper(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ChunkSize != 42 {
		t.Errorf("ChunkSize = %d, want env override 42", cfg.ChunkSize)
	}
	if cfg.AP.Damping != 0.9 {
		t.Errorf("AP.Damping = %v, want env override 0.9", cfg.AP.Damping)
	}
	if !cfg.CaseInsensitive {
		t.Error("CaseInsensitive should be set from environment")
	}
	if cfg.Method != MethodAP {
		t.Errorf("Method = %q, want ap from file", cfg.Method)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{"zero chunk size", func(c *Config) { c.ChunkSize = 0 }, "chunkSize"},
		{"negative max distance", func(c *Config) { c.MaxDistance = -1 }, "maxDistance"},
		{"negative most frequent", func(c *Config) { c.MostFrequent = -5 }, "mostFrequent"},
		{"zero threshold", func(c *Config) { c.HAC.DistanceThreshold = 0 }, "hac.distanceThreshold"},
		{"low damping", func(c *Config) { c.AP.Damping = 0.3 }, "ap.damping"},
		{"damping of one", func(c *Config) { c.AP.Damping = 1 }, "ap.damping"},
		{"zero min points", func(c *Config) { c.DBSCAN.MinPoints = 0 }, "dbscan.minPoints"},
		{"eps2 above one", func(c *Config) { c.DBSCAN.Eps2 = 1.5 }, "dbscan.eps2"},
		{"unknown granularity", func(c *Config) { c.Granularity = "fine" }, "granularity"},
		{"unknown log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"unknown method", func(c *Config) { c.Method = "kmeans" }, "method"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() should fail")
			}
			if !rferrors.Is(err, rferrors.ConfigInvalid) {
				t.Errorf("error code = %q, want CONFIG_ERROR", rferrors.CodeOf(err))
			}
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("error should wrap *ConfigError, got %T", err)
			}
			if ce.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", ce.Field, tt.wantField)
			}
		})
	}
}

func TestValidateAcceptsEveryMethod(t *testing.T) {
	for _, m := range Methods {
		cfg := DefaultConfig()
		cfg.Method = m
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() with method %q: %v", m, err)
		}
	}
}

func TestRequireMethod(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.RequireMethod()
	if !rferrors.Is(err, rferrors.NoClusterMethod) {
		t.Errorf("RequireMethod() = %v, want NO_CLUSTER_METHOD", err)
	}
	if rferrors.ExitCode(err) != 2 {
		t.Errorf("ExitCode = %d, want 2", rferrors.ExitCode(err))
	}

	cfg.Method = MethodDBSCAN
	if err := cfg.RequireMethod(); err != nil {
		t.Errorf("RequireMethod() with dbscan = %v", err)
	}
}

func TestConfigError(t *testing.T) {
	err := &ConfigError{Field: "chunkSize", Message: "must be positive"}
	want := "config error in field 'chunkSize': must be positive"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestEncode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Method = MethodHAC
	cfg.Wordlist = "words.txt"

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		if err := cfg.Encode(&buf, "json"); err != nil {
			t.Fatal(err)
		}
		var back Config
		if err := json.Unmarshal(buf.Bytes(), &back); err != nil {
			t.Fatalf("output is not JSON: %v", err)
		}
		if back.Method != MethodHAC || back.ChunkSize != cfg.ChunkSize {
			t.Errorf("decoded %+v, want method hac and chunk size %d", back, cfg.ChunkSize)
		}
	})

	t.Run("toml", func(t *testing.T) {
		var buf bytes.Buffer
		if err := cfg.Encode(&buf, "toml"); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(buf.String(), "[dbscan]") {
			t.Errorf("TOML output should contain a [dbscan] table:\n%s", buf.String())
		}
		var back Config
		if _, err := burntsushi.Decode(buf.String(), &back); err != nil {
			t.Fatalf("output is not TOML: %v", err)
		}
		if back.Wordlist != "words.txt" {
			t.Errorf("Wordlist = %q, want words.txt", back.Wordlist)
		}
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		if err := cfg.Encode(&buf, "yaml"); err != nil {
			t.Fatal(err)
		}
		var back Config
		if err := yaml.Unmarshal(buf.Bytes(), &back); err != nil {
			t.Fatalf("output is not YAML: %v", err)
		}
		if back.AP.MaxIter != 200 {
			t.Errorf("AP.MaxIter = %d, want 200", back.AP.MaxIter)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		if err := cfg.Encode(&bytes.Buffer{}, "ini"); err == nil {
			t.Error("Encode() should reject unknown formats")
		}
	})
}

func TestWriteTemplate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".ruleforge.toml")

	var buf bytes.Buffer
	if err := WriteTemplate(&buf); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), "# RuleForge configuration.") {
		t.Errorf("template should start with a comment header:\n%s", buf.String())
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(NewViper(), path)
	if err != nil {
		t.Fatalf("Load(template) error = %v", err)
	}
	if cfg.ChunkSize != DefaultConfig().ChunkSize {
		t.Errorf("ChunkSize = %d, want %d", cfg.ChunkSize, DefaultConfig().ChunkSize)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("template should validate: %v", err)
	}
}

func TestKeys(t *testing.T) {
	keys := Keys()
	if len(keys) != len(defaults()) {
		t.Fatalf("len(Keys()) = %d, want %d", len(keys), len(defaults()))
	}
	for i := 1; i < len(keys); i++ {
		if keys[i-1] >= keys[i] {
			t.Errorf("Keys() not sorted at %d: %q >= %q", i, keys[i-1], keys[i])
		}
	}
}
