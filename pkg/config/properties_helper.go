package config

import (
	"os"
	"strings"
	"time"

	"github.com/downfa11-org/shmlog/pkg/instance"
	"github.com/downfa11-org/shmlog/util"
)

// Default returns a normalized configuration without reading flags or files.
func Default() *Config {
	cfg := &Config{
		EpochWaitTimeoutMS:  5000,
		EpochPollIntervalMS: 50,
		ReopenRetries:       5,
		ReopenBackoffMS:     10,
		RotationPollMS:      1000,
		ExporterPort:        9100,
		LogLevel:            util.LogLevelInfo,
		ClassGlob:           "*",
	}
	cfg.Normalize()
	return cfg
}

func (cfg *Config) Normalize() {
	// instance
	if strings.TrimSpace(cfg.InstanceDir) == "" {
		cfg.InstanceDir = instance.DefaultBaseDir
	}
	if strings.TrimSpace(cfg.SegmentFile) == "" {
		cfg.SegmentFile = instance.DefaultFileName
	}

	// attach
	if cfg.EpochWaitTimeoutMS <= 0 {
		cfg.EpochWaitTimeoutMS = 5000
	}
	if cfg.EpochPollIntervalMS <= 0 {
		cfg.EpochPollIntervalMS = 50
	}
	if cfg.EpochPollIntervalMS > cfg.EpochWaitTimeoutMS {
		util.Warn("epoch_poll_interval_ms (%d) exceeds epoch_wait_timeout_ms (%d), clamping",
			cfg.EpochPollIntervalMS, cfg.EpochWaitTimeoutMS)
		cfg.EpochPollIntervalMS = cfg.EpochWaitTimeoutMS
	}

	// rotation
	// 0 selects the default; any negative value disables silent retries.
	if cfg.ReopenRetries == 0 {
		cfg.ReopenRetries = 5
	}
	if cfg.ReopenRetries < 0 {
		cfg.ReopenRetries = -1
	}
	if cfg.ReopenBackoffMS < 0 {
		cfg.ReopenBackoffMS = 0
	}
	if cfg.RotationPollMS <= 0 {
		cfg.RotationPollMS = 1000
	}

	if cfg.ExporterPort <= 0 {
		cfg.ExporterPort = 9100
	}
	if strings.TrimSpace(cfg.ClassGlob) == "" {
		cfg.ClassGlob = "*"
	}
}

func (cfg *Config) EpochWaitTimeout() time.Duration {
	return time.Duration(cfg.EpochWaitTimeoutMS) * time.Millisecond
}

func (cfg *Config) EpochPollInterval() time.Duration {
	return time.Duration(cfg.EpochPollIntervalMS) * time.Millisecond
}

func (cfg *Config) ReopenBackoff() time.Duration {
	return time.Duration(cfg.ReopenBackoffMS) * time.Millisecond
}

// SilentRetries returns how many quiet open attempts follow a rotation.
func (cfg *Config) SilentRetries() int {
	if cfg.ReopenRetries < 0 {
		return 0
	}
	return cfg.ReopenRetries
}

func (cfg *Config) RotationPoll() time.Duration {
	return time.Duration(cfg.RotationPollMS) * time.Millisecond
}

func applyEnvOverrides(cfg *Config) {
	overrideEnvString(&cfg.InstanceName, "SHMLOG_INSTANCE")
	overrideEnvString(&cfg.InstanceDir, "SHMLOG_INSTANCE_DIR")
	overrideEnvString(&cfg.SegmentFile, "SHMLOG_SEGMENT_FILE")
	overrideEnvInt(&cfg.EpochWaitTimeoutMS, "SHMLOG_EPOCH_WAIT_TIMEOUT_MS")
	overrideEnvInt(&cfg.EpochPollIntervalMS, "SHMLOG_EPOCH_POLL_MS")
	overrideEnvInt(&cfg.ReopenRetries, "SHMLOG_REOPEN_RETRIES")
	overrideEnvInt(&cfg.ReopenBackoffMS, "SHMLOG_REOPEN_BACKOFF_MS")
	overrideEnvInt(&cfg.RotationPollMS, "SHMLOG_ROTATION_POLL_MS")
	overrideEnvBool(&cfg.EnableExporter, "SHMLOG_EXPORTER")
	overrideEnvInt(&cfg.ExporterPort, "SHMLOG_EXPORTER_PORT")
	if v := os.Getenv("SHMLOG_LOG_LEVEL"); v != "" {
		cfg.LogLevel = util.ParseLogLevel(v)
	}
}

func overrideEnvInt(target *int, key string) {
	if v := os.Getenv(key); v != "" {
		*target = util.ParseInt(v, *target)
	}
}

func overrideEnvBool(target *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*target = util.ParseBool(v, *target)
	}
}

func overrideEnvString(target *string, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}
