/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package config loads docfleetd's configuration via viper, with fsnotify
// hot-reload for every field except WorkerCount, which only takes effect on
// the next restart (changing pool size live would strand in-flight builds).
package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config is docfleetd's runtime configuration.
type Config struct {
	// DataDir is the root directory for workspaces, published artifacts and
	// the single-instance lock file.
	DataDir string `mapstructure:"data_dir"`

	// WorkerCount is the size of the build worker pool. Read once at
	// startup; changes require a restart.
	WorkerCount int `mapstructure:"worker_count"`

	// GitTimeout is loaded and reported on reload, but the git driver does
	// not apply it: clone/checkout/remote-head subprocess calls are bounded
	// only by the context they run under.
	GitTimeout time.Duration `mapstructure:"git_timeout"`

	// DocBuildTimeout bounds the documentation generation step.
	DocBuildTimeout time.Duration `mapstructure:"doc_build_timeout"`

	// DefaultEnvBackend is used for targets that don't override it.
	DefaultEnvBackend string `mapstructure:"default_env_backend"`

	// DefaultInterpreterConstraint is the semver constraint applied when a
	// manifest doesn't pin one (e.g. ">=3.10").
	DefaultInterpreterConstraint string `mapstructure:"default_interpreter_constraint"`

	// AutoBuildInterval is how often the auto-build monitor sweeps tracked
	// targets for new commits.
	AutoBuildInterval time.Duration `mapstructure:"auto_build_interval"`

	// QueueCapacity is loaded but not applied by docfleetd: the queue does
	// not limit how many jobs may be queued.
	QueueCapacity int `mapstructure:"queue_capacity"`

	// RedisAddr, if set, enables a Redis pub/sub channel used to wake a
	// sibling docfleetd process's queue dispatcher across processes.
	RedisAddr string `mapstructure:"redis_addr"`

	// DatabaseURL is the Postgres DSN for the persistence store.
	DatabaseURL string `mapstructure:"database_url"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "/var/lib/docfleet")
	v.SetDefault("worker_count", 4)
	v.SetDefault("git_timeout", "5m")
	v.SetDefault("doc_build_timeout", "15m")
	v.SetDefault("default_env_backend", "fast")
	v.SetDefault("default_interpreter_constraint", ">=3.9")
	v.SetDefault("auto_build_interval", "5m")
	v.SetDefault("queue_capacity", 500)
}

// Loader wraps a viper instance and exposes hot-reloaded snapshots of
// Config to callers without exposing viper itself.
type Loader struct {
	v *viper.Viper

	mu  sync.RWMutex
	cur Config
}

// NewLoader reads configuration from path (if non-empty) and the
// DOCFLEET_-prefixed environment, applying defaults for anything unset.
func NewLoader(path string) (*Loader, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("docfleet")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	l := &Loader{v: v}
	if err := l.reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// WatchAndReload installs an fsnotify-backed watch on the config file. On
// change, every field is hot-reloaded except WorkerCount, which keeps its
// startup value. onReload, if non-nil, is called after each successful
// reload with the new snapshot.
func (l *Loader) WatchAndReload(onReload func(Config)) {
	l.v.OnConfigChange(func(_ fsnotify.Event) {
		startupWorkers := l.Current().WorkerCount
		if err := l.reload(); err != nil {
			return
		}
		l.mu.Lock()
		l.cur.WorkerCount = startupWorkers
		snapshot := l.cur
		l.mu.Unlock()
		if onReload != nil {
			onReload(snapshot)
		}
	})
	l.v.WatchConfig()
}

func (l *Loader) reload() error {
	var c Config
	if err := l.v.Unmarshal(&c); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	l.mu.Lock()
	l.cur = c
	l.mu.Unlock()
	return nil
}

// Current returns the latest loaded Config snapshot.
func (l *Loader) Current() Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cur
}
