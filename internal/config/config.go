// Package config loads tether's settings from two sources: a
// repo-local pair file (.tether/pair.toml) describing the code/threads
// repository pair, and TETHER_* environment variables for operational
// tunables. The merged result is an explicit Config value handed to
// constructors; nothing in this package is process-global.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"

	"github.com/mschirtzinger/tether/internal/lock"
	"github.com/mschirtzinger/tether/internal/parity"
	"github.com/mschirtzinger/tether/internal/syncer"
)

// PairFileName is the pair file location relative to the code
// repository root.
const PairFileName = ".tether/pair.toml"

// PairFile is the checked-in description of a repository pair.
type PairFile struct {
	// CodePath and ThreadsPath are the working copy locations.
	// CodePath defaults to the directory containing .tether/.
	CodePath    string `toml:"code_path"`
	ThreadsPath string `toml:"threads_path"`

	// ThreadsRemoteURL is the threads repository remote. Empty means
	// local-only operation.
	ThreadsRemoteURL string `toml:"threads_remote_url"`

	// RemoteName is the git remote name, default "origin".
	RemoteName string `toml:"remote_name"`

	// TrunkBranch is the shared trunk, default "main".
	TrunkBranch string `toml:"trunk_branch"`

	// ProtectedBranches are glob patterns refused for destructive
	// remediation. Defaults to the trunk plus "master".
	ProtectedBranches []string `toml:"protected_branches"`
}

// Config is the fully resolved configuration: pair file merged with
// environment tunables.
type Config struct {
	Pair PairFile

	// Lock tunes advisory lock acquisition.
	Lock lock.Options

	// MaxPushRetries bounds pull-rebase-push cycles after a rejected
	// push.
	MaxPushRetries int

	// AutoProvision and ProvisionCmd control remote creation for
	// missing threads repositories.
	AutoProvision bool
	ProvisionCmd  string

	// RemoteAllowed gates all network operations.
	RemoteAllowed bool

	// LogFile, when set, mirrors log output to a rotating file.
	LogFile string
}

// Load reads the pair file under codeRoot and overlays environment
// tunables. A missing pair file is not an error; the zero pair with
// defaults describes a local-only setup rooted at codeRoot.
func Load(codeRoot string) (*Config, error) {
	cfg := &Config{
		Lock:           lock.DefaultOptions(),
		MaxPushRetries: 3,
		RemoteAllowed:  true,
	}

	pairPath := filepath.Join(codeRoot, PairFileName)
	if _, err := os.Stat(pairPath); err == nil {
		if _, err := toml.DecodeFile(pairPath, &cfg.Pair); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", pairPath, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read %s: %w", pairPath, err)
	}
	cfg.Pair.applyDefaults(codeRoot)

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills zero pair-file values.
func (p *PairFile) applyDefaults(codeRoot string) {
	if p.CodePath == "" {
		p.CodePath = codeRoot
	}
	if p.ThreadsPath == "" {
		if p.ThreadsRemoteURL != "" {
			p.ThreadsPath = syncer.DefaultPath(filepath.Dir(codeRoot), p.ThreadsRemoteURL)
		} else {
			p.ThreadsPath = filepath.Join(filepath.Dir(codeRoot), filepath.Base(codeRoot)+"-threads")
		}
	}
	if p.RemoteName == "" {
		p.RemoteName = "origin"
	}
	if p.TrunkBranch == "" {
		p.TrunkBranch = "main"
	}
	if len(p.ProtectedBranches) == 0 {
		p.ProtectedBranches = []string{p.TrunkBranch, "master"}
	}
}

// applyEnv overlays TETHER_* environment variables onto the config.
func (c *Config) applyEnv() error {
	v := viper.New()
	v.SetEnvPrefix("tether")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("lock-timeout", c.Lock.Timeout)
	v.SetDefault("lock-ttl", c.Lock.TTL)
	v.SetDefault("quick-retry-delay", c.Lock.RetryDelay)
	v.SetDefault("push-retries", c.MaxPushRetries)
	v.SetDefault("auto-provision", c.AutoProvision)
	v.SetDefault("provision-cmd", c.ProvisionCmd)
	v.SetDefault("remote-allowed", c.RemoteAllowed)
	v.SetDefault("log-file", c.LogFile)

	var err error
	if c.Lock.Timeout, err = durationSetting(v, "lock-timeout"); err != nil {
		return err
	}
	if c.Lock.TTL, err = durationSetting(v, "lock-ttl"); err != nil {
		return err
	}
	if c.Lock.RetryDelay, err = durationSetting(v, "quick-retry-delay"); err != nil {
		return err
	}
	c.MaxPushRetries = v.GetInt("push-retries")
	if c.MaxPushRetries <= 0 {
		return fmt.Errorf("TETHER_PUSH_RETRIES must be positive, got %d", c.MaxPushRetries)
	}
	c.AutoProvision = v.GetBool("auto-provision")
	c.ProvisionCmd = v.GetString("provision-cmd")
	c.RemoteAllowed = v.GetBool("remote-allowed")
	c.LogFile = v.GetString("log-file")

	return nil
}

// durationSetting reads a duration tunable, accepting Go duration
// strings ("45s", "10m").
func durationSetting(v *viper.Viper, key string) (time.Duration, error) {
	d := v.GetDuration(key)
	if d <= 0 {
		return 0, fmt.Errorf("TETHER_%s must be a positive duration, got %q",
			strings.ToUpper(strings.ReplaceAll(key, "-", "_")), v.GetString(key))
	}
	return d, nil
}

// ThreadsSyncerConfig builds the sync manager configuration for the
// threads repository.
func (c *Config) ThreadsSyncerConfig() syncer.Config {
	return syncer.Config{
		RemoteURL:      c.Pair.ThreadsRemoteURL,
		Path:           c.Pair.ThreadsPath,
		RemoteName:     c.Pair.RemoteName,
		RemoteAllowed:  c.RemoteAllowed && c.Pair.ThreadsRemoteURL != "",
		AutoProvision:  c.AutoProvision,
		ProvisionCmd:   c.ProvisionCmd,
		MaxPushRetries: c.MaxPushRetries,
	}
}

// CodeSyncerConfig builds the sync manager configuration for the code
// repository. The code repo is always attached in place, never cloned
// or provisioned by tether.
func (c *Config) CodeSyncerConfig() syncer.Config {
	return syncer.Config{
		Path:           c.Pair.CodePath,
		RemoteName:     c.Pair.RemoteName,
		RemoteAllowed:  c.RemoteAllowed,
		MaxPushRetries: c.MaxPushRetries,
	}
}

// ParityConfig builds the coordinator configuration.
func (c *Config) ParityConfig() parity.Config {
	return parity.Config{
		TrunkBranch:       c.Pair.TrunkBranch,
		ProtectedBranches: c.Pair.ProtectedBranches,
		Lock:              c.Lock,
	}
}
