// Package config loads the engine's YAML configuration through viper,
// following the teacher's infra/config package.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Usenet holds the single server's connection and auth settings (spec §6).
// Multi-server failover is an explicit non-goal, so there is exactly one.
type Usenet struct {
	Server          string `mapstructure:"server"`
	Port            int    `mapstructure:"port"`
	SSL             bool   `mapstructure:"ssl"`
	VerifySSLCerts  bool   `mapstructure:"verify_ssl_certs"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	Connections     int    `mapstructure:"connections"`
}

type Download struct {
	Dir             string `mapstructure:"dir"`
	ForceRedownload bool   `mapstructure:"force_redownload"`
}

type Memory struct {
	IOBufferSize int `mapstructure:"io_buffer_size"`
}

type Tuning struct {
	PipelineSize           int `mapstructure:"pipeline_size"`
	ConnectionWaitTimeout  int `mapstructure:"connection_wait_timeout"` // seconds
}

type PostProcessing struct {
	AutoPar2Repair        bool `mapstructure:"auto_par2_repair"`
	AutoExtractRar        bool `mapstructure:"auto_extract_rar"`
	DeobfuscateFileNames  bool `mapstructure:"deobfuscate_file_names"`
	DeletePar2AfterRepair bool `mapstructure:"delete_par2_after_repair"`
	DeleteRarAfterExtract bool `mapstructure:"delete_rar_after_extract"`
}

type Log struct {
	Path  string `mapstructure:"path"`
	Level string `mapstructure:"level"`
}

// Config is the full recognized configuration surface (spec §6).
type Config struct {
	Usenet         Usenet         `mapstructure:"usenet"`
	Download       Download       `mapstructure:"download"`
	Memory         Memory         `mapstructure:"memory"`
	Tuning         Tuning         `mapstructure:"tuning"`
	PostProcessing PostProcessing `mapstructure:"post_processing"`
	Log            Log            `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("usenet.port", 119)
	v.SetDefault("usenet.ssl", false)
	v.SetDefault("usenet.verify_ssl_certs", true)
	v.SetDefault("usenet.connections", 10)
	v.SetDefault("download.dir", "./downloads")
	v.SetDefault("download.force_redownload", false)
	v.SetDefault("memory.io_buffer_size", 1<<20)
	v.SetDefault("tuning.pipeline_size", 100)
	v.SetDefault("tuning.connection_wait_timeout", 300)
	v.SetDefault("post_processing.auto_par2_repair", true)
	v.SetDefault("post_processing.auto_extract_rar", true)
	v.SetDefault("post_processing.deobfuscate_file_names", true)
	v.SetDefault("post_processing.delete_par2_after_repair", false)
	v.SetDefault("post_processing.delete_rar_after_extract", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.path", "gonzb.log")
}

// Load reads path (YAML) and environment overrides (GONZB_ prefix) into a
// Config, applying defaults for anything unset.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)
	v.SetEnvPrefix("GONZB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file %q not found: create it from the sample config, or pass --config", path)
		}
		return nil, fmt.Errorf("reading config %q: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the invariants the engine relies on: a non-empty server
// name, a positive port and a positive connection pool size. It does not
// contact the server.
func (c *Config) Validate() error {
	if c.Usenet.Server == "" {
		return fmt.Errorf("config: usenet.server is required")
	}
	if c.Usenet.Port <= 0 {
		return fmt.Errorf("config: usenet.port must be positive")
	}
	if c.Usenet.Connections <= 0 {
		return fmt.Errorf("config: usenet.connections must be positive")
	}
	return nil
}

// Exists reports whether a config file is present at path, for the
// ConfigInfo{path,exists,...} external interface (spec §6).
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
