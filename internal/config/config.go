package config

import (
	"errors"
	"strings"

	"github.com/spf13/viper"
)

// Config is the root configuration for veonim.
type Config struct {
	Editor  EditorConfig `mapstructure:"editor" yaml:"editor"`
	Serve   ServeConfig  `mapstructure:"serve" yaml:"serve"`
	Attach  AttachConfig `mapstructure:"attach" yaml:"attach"`
	LogFile string       `mapstructure:"log_file" yaml:"log_file"`
}

// EditorConfig configures the embedded editor process.
type EditorConfig struct {
	Command string   `mapstructure:"command" yaml:"command"`
	Args    []string `mapstructure:"args" yaml:"args"`
	Cols    int      `mapstructure:"cols" yaml:"cols"`
	Rows    int      `mapstructure:"rows" yaml:"rows"`
}

// ServeConfig configures session sharing.
type ServeConfig struct {
	Listen        string    `mapstructure:"listen" yaml:"listen"`
	BasePath      string    `mapstructure:"base" yaml:"base"`
	BufferBatches int       `mapstructure:"buffer_batches" yaml:"buffer_batches"`
	TLS           TLSConfig `mapstructure:"tls" yaml:"tls"`
}

// AttachConfig configures viewer defaults.
type AttachConfig struct {
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
	Insecure bool   `mapstructure:"insecure" yaml:"insecure"`
}

// TLSConfig configures TLS behavior for the serve listener.
type TLSConfig struct {
	Mode     string   `mapstructure:"mode" yaml:"mode"`
	Bundle   []string `mapstructure:"bundle" yaml:"bundle"`
	Hostname string   `mapstructure:"hostname" yaml:"hostname"`
	Dir      string   `mapstructure:"dir" yaml:"dir"`
	CacheDir string   `mapstructure:"cache_dir" yaml:"cache_dir"`
}

// Loader wraps Viper configuration loading for veonim.
type Loader struct {
	v          *viper.Viper
	configFile string
}

// NewLoader initializes a Loader with standard defaults.
func NewLoader() *Loader {
	v := viper.New()
	v.SetEnvPrefix("VEONIM")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/veonim")
	v.AddConfigPath("$HOME/.veonim")

	return &Loader{v: v}
}

// Viper exposes the underlying Viper instance for flag binding and defaults.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// SetConfigFile sets an explicit config file path.
func (l *Loader) SetConfigFile(path string) {
	l.configFile = strings.TrimSpace(path)
}

// ReadInConfig reads configuration from file if available.
func (l *Loader) ReadInConfig() error {
	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	}

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	return nil
}

// Load reads configuration and unmarshals it into a Config struct.
func (l *Loader) Load() (Config, error) {
	if err := l.ReadInConfig(); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
