package logger

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	DefaultLevel  string                  `yaml:"default_level" json:"default_level" mapstructure:"default_level"` // default log level for all modules
	Timezone      string                  `yaml:"timezone" json:"timezone" mapstructure:"timezone"`                // "Local", "UTC" or an IANA name
	Console       *ConsoleOutput          `yaml:"console" json:"console" mapstructure:"console"`
	FileOutput    *FileOutput             `yaml:"file_output" json:"file_output" mapstructure:"file_output"`
	ModuleOutputs map[string]ModuleOutput `yaml:"modules" json:"modules" mapstructure:"modules"`                   // per-module file routing
	ModuleLevels  map[string]string       `yaml:"module_levels" json:"module_levels" mapstructure:"module_levels"` // per-module log levels
}

// ConsoleOutput is human-readable text without timestamps; journald or
// docker add their own.
type ConsoleOutput struct {
	Enabled bool   `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	Level   string `yaml:"level" json:"level" mapstructure:"level"`
}

// FileOutput is JSON with RFC3339 timestamps.
type FileOutput struct {
	Enabled bool   `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" json:"path" mapstructure:"path"`
	Level   string `yaml:"level" json:"level" mapstructure:"level"`
}

// ModuleOutput routes one module to a dedicated file
type ModuleOutput struct {
	Enabled     bool   `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	FilePath    string `yaml:"file_path" json:"file_path" mapstructure:"file_path"`
	Level       string `yaml:"level" json:"level" mapstructure:"level"`
	ConsoleAlso bool   `yaml:"console_also" json:"console_also" mapstructure:"console_also"`
}

// Defaults, kept in sync with conf/defaults.go
const (
	DefaultLogLevel       = "info"
	DefaultLogPath        = "logs/wildlife.log"
	DefaultAccessLogPath  = "logs/access.log"
	DefaultPollerLogPath  = "logs/poller.log"
	DefaultEdgeLogPath    = "logs/edge.log"
	DefaultConsoleEnabled = true
	DefaultFileEnabled    = false
)

func ensureModuleOutput(cfg *LoggingConfig, module, filePath string) {
	if _, exists := cfg.ModuleOutputs[module]; !exists {
		cfg.ModuleOutputs[module] = ModuleOutput{
			Enabled:  true,
			FilePath: filePath,
			Level:    DefaultLogLevel,
		}
	}
}

// applyConfigDefaults fills nil sections so a config file without a logging
// block still logs to the console.
func applyConfigDefaults(cfg *LoggingConfig) {
	if cfg == nil {
		return
	}

	if cfg.DefaultLevel == "" {
		cfg.DefaultLevel = DefaultLogLevel
	}

	if cfg.Console == nil {
		cfg.Console = &ConsoleOutput{
			Enabled: DefaultConsoleEnabled,
			Level:   DefaultLogLevel,
		}
	}

	if cfg.FileOutput == nil {
		cfg.FileOutput = &FileOutput{
			Enabled: DefaultFileEnabled,
			Path:    DefaultLogPath,
			Level:   DefaultLogLevel,
		}
	}

	// Dedicated module files are only defaulted when the user configured none
	// and file logging is on at all
	if cfg.ModuleOutputs != nil {
		return
	}
	cfg.ModuleOutputs = make(map[string]ModuleOutput)
	if !cfg.FileOutput.Enabled {
		return
	}

	// HTTP access and API
	ensureModuleOutput(cfg, "access", DefaultAccessLogPath)
	ensureModuleOutput(cfg, "api", DefaultAccessLogPath)

	// Remote feed ingestion is high volume when backfilling
	ensureModuleOutput(cfg, "poller", DefaultPollerLogPath)
	ensureModuleOutput(cfg, "ingest", DefaultPollerLogPath)

	ensureModuleOutput(cfg, "edge", DefaultEdgeLogPath)
}
