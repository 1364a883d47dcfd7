package main

import (
	"os"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// EngineSettings is the subset of mcts.Config exposed through config.yaml —
// grounded on the teacher's fluent Config.With* setters (pkg/mcts/config.go),
// just expressed as struct tags instead of a fluent chain since this side
// comes from a file, not code.
type EngineSettings struct {
	PUCTConst        float64 `yaml:"puct_const"`
	FPUReduction     float64 `yaml:"fpu_reduction"`
	RootFPUReduction float64 `yaml:"root_fpu_reduction"`
	MinPolicyRatio   float64 `yaml:"min_policy_ratio"`
	NumThreads       int     `yaml:"num_threads"`
	UseSymmetries    bool    `yaml:"use_symmetries"`
	ResignPercentage float64 `yaml:"resign_percentage"`
	HandicapStones   int     `yaml:"handicap_stones"`
	MaxTreeNodes     int64   `yaml:"max_tree_nodes"`
	MaxCacheBytes    int64   `yaml:"max_cache_bytes"`
}

// Config is searchctl's process-wide configuration, loaded from YAML and
// hot-reloaded on change.
type Config struct {
	Engine      EngineSettings `yaml:"engine"`
	ModelPath   string         `yaml:"model_path"`
	MetricsAddr string         `yaml:"metrics_addr"`
	WSAddr      string         `yaml:"ws_addr"`
	Movetime    time.Duration  `yaml:"movetime"`
}

func defaultConfig() Config {
	return Config{
		Engine: EngineSettings{
			PUCTConst:        0.8,
			FPUReduction:     0.25,
			RootFPUReduction: 0.1,
			MinPolicyRatio:   0.02,
			NumThreads:       4,
			UseSymmetries:    true,
			ResignPercentage: 0.1,
			MaxTreeNodes:     4_000_000,
			MaxCacheBytes:    1 << 30,
		},
		MetricsAddr: ":9100",
		WSAddr:      ":9101",
		Movetime:    1 * time.Second,
	}
}

func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn().Str("path", path).Msg("searchctl: no config file found, using defaults")
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// liveConfig holds the most recently loaded Config behind an atomic
// pointer, refreshed by watch. Only the serve command runs watch, and it
// reads the config once at startup: the engine it builds keeps those
// settings, and later reloads are not applied to it. The teacher has no
// config file at all, so this is grounded on the rest of the pack's fsnotify-driven reload watchers instead (e.g.
// services/trace/graph/file_watcher.go's watch loop).
type liveConfig struct {
	path string
	v    atomic.Pointer[Config]
}

func newLiveConfig(path string) (*liveConfig, error) {
	cfg, err := loadConfig(path)
	if err != nil {
		return nil, err
	}
	lc := &liveConfig{path: path}
	lc.v.Store(&cfg)
	return lc, nil
}

func (lc *liveConfig) get() Config { return *lc.v.Load() }

// watch reloads the config whenever path changes on disk, until stop is
// closed. Reload errors are logged and otherwise ignored — the previous
// config stays live rather than the process crashing on a bad edit.
func (lc *liveConfig) watch(stop <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(lc.path); err != nil {
		log.Warn().Err(err).Str("path", lc.path).Msg("searchctl: cannot watch config file")
		return nil
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := loadConfig(lc.path)
			if err != nil {
				log.Warn().Err(err).Msg("searchctl: config reload failed, keeping previous settings")
				continue
			}
			lc.v.Store(&cfg)
			log.Info().Str("path", lc.path).Msg("searchctl: config reloaded")
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("searchctl: config watcher error")
		case <-stop:
			return nil
		}
	}
}
