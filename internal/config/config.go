package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid config")

const envPrefix = "PIXELWORKER_"

type OperationSpec struct {
	Name   string             `yaml:"name"`
	Params map[string]float64 `yaml:"params"`
}

// Param returns the named parameter or def when absent.
func (o OperationSpec) Param(key string, def float64) float64 {
	if v, ok := o.Params[key]; ok {
		return v
	}
	return def
}

type SyntheticConfig struct {
	Count  int   `yaml:"count"`
	Width  int   `yaml:"width"`
	Height int   `yaml:"height"`
	Seed   int64 `yaml:"seed"`
}

type Config struct {
	// Threads is nil when unset, which means one worker. 0 runs in-process.
	Threads     *int            `yaml:"threads"`
	QueueLimit  int             `yaml:"queue_limit"`
	Granularity string          `yaml:"granularity"`
	Operations  []OperationSpec `yaml:"operations"`
	Meta        map[string]any  `yaml:"meta"`
	Inputs      []string        `yaml:"inputs"`
	Overlay     string          `yaml:"overlay"`
	OutputDir   string          `yaml:"output_dir"`
	Format      string          `yaml:"format"`
	LogLevel    string          `yaml:"log_level"`
	Synthetic   SyntheticConfig `yaml:"synthetic"`
}

// LoadFromEnv returns defaults overridden by PIXELWORKER_* variables.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	return cfg, nil
}

// Load reads a YAML file, then applies environment overrides and defaults. An
// empty path behaves like LoadFromEnv.
func Load(path string) (*Config, error) {
	if path == "" {
		return LoadFromEnv()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	return &cfg, nil
}

func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv(envPrefix + "THREADS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %sTHREADS: %w", ErrInvalidConfig, envPrefix, err)
		}
		c.Threads = &n
	}
	if v := getenv(envPrefix + "QUEUE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %sQUEUE_LIMIT: %w", ErrInvalidConfig, envPrefix, err)
		}
		c.QueueLimit = n
	}
	if v := getenv(envPrefix + "GRANULARITY"); v != "" {
		c.Granularity = v
	}
	if v := getenv(envPrefix + "OUTPUT_DIR"); v != "" {
		c.OutputDir = v
	}
	if v := getenv(envPrefix + "LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	return nil
}

type Flags struct {
	threads     *int
	queueLimit  *int
	granularity *string
	outputDir   *string
	format      *string
	logLevel    *string
}

// RegisterFlags adds the override flags to fs. Unset flags leave the config alone.
func RegisterFlags(fs *flag.FlagSet) *Flags {
	return &Flags{
		threads:     fs.Int("threads", -1, "Number of workers (0 runs in-process)"),
		queueLimit:  fs.Int("queue", 0, "Maximum pending jobs, older ones are dropped"),
		granularity: fs.String("granularity", "", "pixel or image"),
		outputDir:   fs.String("out", "", "Output directory"),
		format:      fs.String("format", "", "Output format: png or jpg"),
		logLevel:    fs.String("log-level", "", "Log level"),
	}
}

func (c *Config) ApplyFlags(f *Flags) {
	if *f.threads >= 0 {
		n := *f.threads
		c.Threads = &n
	}
	if *f.queueLimit > 0 {
		c.QueueLimit = *f.queueLimit
	}
	if *f.granularity != "" {
		c.Granularity = *f.granularity
	}
	if *f.outputDir != "" {
		c.OutputDir = *f.outputDir
	}
	if *f.format != "" {
		c.Format = *f.format
	}
	if *f.logLevel != "" {
		c.LogLevel = *f.logLevel
	}
}

func (c *Config) ThreadCount() int {
	if c.Threads == nil {
		return 1
	}
	return *c.Threads
}

func (c *Config) setDefaults() {
	if c.Granularity == "" {
		c.Granularity = "pixel"
	}
	if c.OutputDir == "" {
		c.OutputDir = "out"
	}
	if c.Format == "" {
		c.Format = "png"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Synthetic.Count > 0 {
		if c.Synthetic.Width == 0 {
			c.Synthetic.Width = 256
		}
		if c.Synthetic.Height == 0 {
			c.Synthetic.Height = 256
		}
	}
}

func (c *Config) Validate() error {
	var problems []string
	if c.ThreadCount() < 0 {
		problems = append(problems, "threads must be >= 0")
	}
	if c.QueueLimit < 0 {
		problems = append(problems, "queue_limit must be >= 0")
	}
	if c.Granularity != "pixel" && c.Granularity != "image" {
		problems = append(problems, fmt.Sprintf("unknown granularity %q", c.Granularity))
	}
	if len(c.Operations) == 0 {
		problems = append(problems, "at least one operation is required")
	}
	for i, op := range c.Operations {
		if op.Name == "" {
			problems = append(problems, fmt.Sprintf("operation %d has no name", i))
		}
	}
	switch strings.ToLower(c.Format) {
	case "png", "jpg", "jpeg":
	default:
		problems = append(problems, fmt.Sprintf("unsupported format %q", c.Format))
	}
	if c.Synthetic.Count < 0 || c.Synthetic.Width < 0 || c.Synthetic.Height < 0 {
		problems = append(problems, "synthetic values must be >= 0")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
