// Package config loads runtime defaults for query options and server
// settings from a cpdrouter.yaml file, CPDROUTER_* environment variables,
// and CLI flags, in that ascending order of precedence, via viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Query holds the default get_path options, mirroring search.Options so
// callers don't need to import pkg/search just to read config.
type Query struct {
	CostCutoff      float64
	ExpansionCutoff uint32
	TimeCutoffNano  int64
	HScale          float64
	QualityRatio    float64
	KMovesMax       uint32
}

// Server holds HTTP and service listener settings.
type Server struct {
	Address     string
	CORSOrigins []string
	Threads     int
}

// Build holds CPD build orchestrator defaults.
type Build struct {
	Threads int
}

// Config is the fully-resolved configuration.
type Config struct {
	Query  Query
	Server Server
	Build  Build
}

// Load reads cpdrouter.yaml from the given search paths (working directory
// is always searched too), overlays CPDROUTER_* environment variables, and
// finally overlays any flags already registered on fs that have been
// changed from their defaults. fs may be nil to skip flag binding.
func Load(configPaths []string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigName("cpdrouter")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	for _, p := range configPaths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix("CPDROUTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("config: read cpdrouter.yaml: %w", err)
		}
	}

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, fmt.Errorf("config: bind flags: %w", err)
		}
	}

	cfg := &Config{
		Query: Query{
			CostCutoff:      v.GetFloat64("query.cost_cutoff"),
			ExpansionCutoff: uint32(v.GetUint("query.expansion_cutoff")),
			TimeCutoffNano:  v.GetInt64("query.time_cutoff_nano"),
			HScale:          v.GetFloat64("query.hscale"),
			QualityRatio:    v.GetFloat64("query.quality_ratio"),
			KMovesMax:       uint32(v.GetUint("query.k_moves_max")),
		},
		Server: Server{
			Address:     v.GetString("server.address"),
			CORSOrigins: v.GetStringSlice("server.cors_origins"),
			Threads:     v.GetInt("server.threads"),
		},
		Build: Build{
			Threads: v.GetInt("build.threads"),
		},
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("query.cost_cutoff", float64(-1)) // negative == unset, normalized to +Inf by callers
	v.SetDefault("query.expansion_cutoff", 0)
	v.SetDefault("query.time_cutoff_nano", int64((30 * time.Second).Nanoseconds()))
	v.SetDefault("query.hscale", 1.0)
	v.SetDefault("query.quality_ratio", 1.0)
	v.SetDefault("query.k_moves_max", 0)

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.threads", 0) // 0 == twice runtime.NumCPU()

	v.SetDefault("build.threads", 0) // 0 == GOMAXPROCS
}
