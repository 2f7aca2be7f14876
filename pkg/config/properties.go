package config

import (
	"encoding/json"
	"flag"
	"os"
	"strings"

	"github.com/downfa11-org/shmlog/util"
	"gopkg.in/yaml.v3"
)

// Config represents the reader configuration including segment attach tunables
type Config struct {
	// Instance resolution
	InstanceName string `yaml:"instance_name" json:"instance.name"`
	InstanceDir  string `yaml:"instance_dir" json:"instance.dir"`
	SegmentFile  string `yaml:"segment_file" json:"segment.file"`

	// Attach
	EpochWaitTimeoutMS  int `yaml:"epoch_wait_timeout_ms" json:"epoch.wait.timeout.ms"`
	EpochPollIntervalMS int `yaml:"epoch_poll_interval_ms" json:"epoch.poll.interval.ms"`

	// Rotation
	ReopenRetries   int  `yaml:"reopen_retries" json:"reopen.retries"`
	ReopenBackoffMS int  `yaml:"reopen_backoff_ms" json:"reopen.backoff.ms"`
	RotationPollMS  int  `yaml:"rotation_poll_ms" json:"rotation.poll.ms"`
	DisableRotation bool `yaml:"disable_rotation" json:"rotation.disable"`

	// Observability
	EnableExporter bool          `yaml:"enable_exporter" json:"enable.exporter"`
	ExporterPort   int           `yaml:"exporter_port" json:"exporter.port"`
	LogLevel       util.LogLevel `yaml:"log_level" json:"log_level"`

	// Listing
	ClassGlob string `yaml:"class_glob" json:"class.glob"`
	Once      bool   `yaml:"once" json:"once"`
}

// LoadConfig parses command-line flags, an optional YAML/JSON file and
// SHMLOG_* environment overrides, in that order of increasing precedence
// except that explicitly set flags always win over the file.
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(flag.CommandLine, os.Args[1:])
}

// LoadConfigFrom is LoadConfig over an explicit flag set and argument list.
func LoadConfigFrom(fs *flag.FlagSet, args []string) (*Config, error) {
	cfg := &Config{}

	configPath := fs.String("config", "", "Path to YAML/JSON config file")
	fs.StringVar(&cfg.InstanceName, "n", "", "Instance name (default: host name)")
	fs.StringVar(&cfg.InstanceDir, "instance-dir", "", "Base directory holding instance directories")
	fs.StringVar(&cfg.SegmentFile, "segment-file", "", "Segment file name inside the instance directory")
	fs.IntVar(&cfg.EpochWaitTimeoutMS, "epoch-wait-timeout-ms", 5000, "Maximum wait for an uninitialised segment (ms)")
	fs.IntVar(&cfg.EpochPollIntervalMS, "epoch-poll-ms", 50, "Poll interval while waiting for the segment epoch (ms)")
	fs.IntVar(&cfg.ReopenRetries, "reopen-retries", 5, "Silent open attempts after a rotation (negative disables)")
	fs.IntVar(&cfg.ReopenBackoffMS, "reopen-backoff-ms", 10, "Pause between reopen attempts (ms)")
	fs.IntVar(&cfg.RotationPollMS, "rotation-poll-ms", 1000, "Rotation check interval (ms)")
	fs.BoolVar(&cfg.DisableRotation, "no-rotation", false, "Do not follow segment rotation")
	fs.BoolVar(&cfg.EnableExporter, "exporter", false, "Enable Prometheus exporter")
	fs.IntVar(&cfg.ExporterPort, "exporter-port", 9100, "Exporter port")
	logLevelStr := fs.String("log-level", "info", "Log Level (debug, info, warn, error)")
	fs.StringVar(&cfg.ClassGlob, "class", "*", "Only list chunks whose class matches this glob")
	fs.BoolVar(&cfg.Once, "once", false, "List once and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg.LogLevel = util.ParseLogLevel(*logLevelStr)

	if *configPath == "" {
		*configPath = os.Getenv("CONFIG_PATH")
	}

	if *configPath != "" {
		explicit := *cfg
		if err := loadFile(cfg, *configPath); err != nil {
			return nil, err
		}
		applyExplicitFlags(cfg, &explicit, fs)
	}

	applyEnvOverrides(cfg)
	cfg.Normalize()
	util.SetLevel(cfg.LogLevel)

	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if strings.HasSuffix(path, ".json") {
		return json.Unmarshal(data, cfg)
	}
	return yaml.Unmarshal(data, cfg)
}

// applyExplicitFlags copies back every flag the user actually set, so that
// the command line overrides the config file.
func applyExplicitFlags(cfg, flags *Config, fs *flag.FlagSet) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "n":
			cfg.InstanceName = flags.InstanceName
		case "instance-dir":
			cfg.InstanceDir = flags.InstanceDir
		case "segment-file":
			cfg.SegmentFile = flags.SegmentFile
		case "epoch-wait-timeout-ms":
			cfg.EpochWaitTimeoutMS = flags.EpochWaitTimeoutMS
		case "epoch-poll-ms":
			cfg.EpochPollIntervalMS = flags.EpochPollIntervalMS
		case "reopen-retries":
			cfg.ReopenRetries = flags.ReopenRetries
		case "reopen-backoff-ms":
			cfg.ReopenBackoffMS = flags.ReopenBackoffMS
		case "rotation-poll-ms":
			cfg.RotationPollMS = flags.RotationPollMS
		case "no-rotation":
			cfg.DisableRotation = flags.DisableRotation
		case "exporter":
			cfg.EnableExporter = flags.EnableExporter
		case "exporter-port":
			cfg.ExporterPort = flags.ExporterPort
		case "log-level":
			cfg.LogLevel = flags.LogLevel
		case "class":
			cfg.ClassGlob = flags.ClassGlob
		case "once":
			cfg.Once = flags.Once
		}
	})
}
