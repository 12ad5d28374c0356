package main

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	defaultScale      = 100000
	defaultCachePages = 256
	defaultDataDir    = "data"
	defaultOut        = "results.csv"
	defaultLogLevel   = "info"
	envPrefix         = "SCANBENCH"
)

var defaultDegrees = []int{8, 32, 128}

// Config holds the benchmark settings. Values come from flags, then
// SCANBENCH_* environment variables, then the optional config file.
type Config struct {
	Scale      int    `mapstructure:"scale"`
	Degrees    []int  `mapstructure:"degrees"`
	CachePages int    `mapstructure:"cache-pages"`
	DataDir    string `mapstructure:"data-dir"`
	Out        string `mapstructure:"out"`
	Plot       string `mapstructure:"plot"`
	LogLevel   string `mapstructure:"log-level"`
	LogFile    string `mapstructure:"log-file"`
	Smoke      bool   `mapstructure:"smoke"`
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("scanbench", pflag.ContinueOnError)
	fs.StringP("config", "c", "", "config file (yml, toml or json)")
	fs.Int("scale", defaultScale, "number of rows loaded into each structure")
	fs.IntSlice("degrees", defaultDegrees, "max keys per page for the in-memory trees")
	fs.Int("cache-pages", defaultCachePages, "pager cache size in pages")
	fs.String("data-dir", defaultDataDir, "directory for the B+ tree file and the pebble store")
	fs.String("out", defaultOut, "CSV results file")
	fs.String("plot", "", "write a latency chart to this file (png, svg or pdf)")
	fs.String("log-level", defaultLogLevel, "trace, debug, info, warn, error, critical or off")
	fs.String("log-file", "", "also write logs to this file, rotated")
	fs.Bool("smoke", false, "run the B+ tree smoke check instead of the benchmark")
	return fs
}

// loadConfig parses args and merges environment and config file settings.
func loadConfig(args []string) (*Config, error) {
	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, errors.Wrap(err, "bind flags")
	}

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", file)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Scale < 1 {
		return errors.Newf("scale must be positive, got %d", c.Scale)
	}
	if len(c.Degrees) == 0 {
		return errors.New("at least one degree is required")
	}
	for _, d := range c.Degrees {
		if d < 3 {
			return errors.Newf("degree %d is below the minimum of 3", d)
		}
	}
	if c.CachePages < 1 {
		return errors.Newf("cache-pages must be positive, got %d", c.CachePages)
	}
	return nil
}
