package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	Path           string        `mapstructure:"path"`
	Front          string        `mapstructure:"front"`
	Addr           string        `mapstructure:"addr"`
	Debounce       time.Duration `mapstructure:"debounce"`
	Grace          time.Duration `mapstructure:"grace"`
	LogLevel       string        `mapstructure:"log_level"`
	LogFormat      string        `mapstructure:"log_format"`
	CORSOrigins    []string      `mapstructure:"cors_origins"`
	Shell          string        `mapstructure:"shell"`
	PostSaveHook   string        `mapstructure:"post_save_hook"`
	PostReloadHook string        `mapstructure:"post_reload_hook"`
	Metrics        bool          `mapstructure:"metrics"`
}

// C is the global config instance
var C Config

// Init initializes configuration with viper
func Init() error {
	viper.SetDefault("path", "canvas.md")
	viper.SetDefault("front", "")
	viper.SetDefault("addr", "127.0.0.1:3100")
	viper.SetDefault("debounce", 500*time.Millisecond)
	viper.SetDefault("grace", time.Second)
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "console")
	viper.SetDefault("cors_origins", []string{"http://localhost:3100", "http://127.0.0.1:3100", "http://localhost:5173"})
	viper.SetDefault("shell", getDefaultShell())
	viper.SetDefault("post_save_hook", "")
	viper.SetDefault("post_reload_hook", "")
	viper.SetDefault("metrics", true)

	viper.SetConfigName("dungeon")
	viper.SetConfigType("yaml")

	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".config", "dungeon"))
		viper.AddConfigPath(home)
	}
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("DUNGEON")
	viper.AutomaticEnv()

	// A missing config file is fine, defaults and env cover everything
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}

	return viper.Unmarshal(&C)
}

// GetPath returns the canvas file path with tilde expansion
func GetPath() string {
	return expandTilde(viper.GetString("path"))
}

// GetFront returns the directory of the renderer's static files
func GetFront() string {
	return expandTilde(viper.GetString("front"))
}

func GetAddr() string {
	return viper.GetString("addr")
}

func GetDebounce() time.Duration {
	return viper.GetDuration("debounce")
}

// GetGrace returns how long file events are ignored after a save
func GetGrace() time.Duration {
	return viper.GetDuration("grace")
}

func GetLogLevel() string {
	return viper.GetString("log_level")
}

func GetLogFormat() string {
	return viper.GetString("log_format")
}

// GetCORSOrigins returns the origins allowed to call the server from a browser
func GetCORSOrigins() []string {
	return viper.GetStringSlice("cors_origins")
}

// GetShell returns the shell hooks run in
func GetShell() string {
	return viper.GetString("shell")
}

// GetPostSaveHook returns the command run after an update is saved
func GetPostSaveHook() string {
	return viper.GetString("post_save_hook")
}

// GetPostReloadHook returns the command run after the file is reloaded
func GetPostReloadHook() string {
	return viper.GetString("post_reload_hook")
}

func GetMetrics() bool {
	return viper.GetBool("metrics")
}

// SetPath sets path at runtime
func SetPath(path string) {
	viper.Set("path", path)
	C.Path = path
}

// expandTilde expands ~ to the user's home directory
func expandTilde(path string) string {
	if len(path) == 0 {
		return path
	}
	if path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

func getDefaultShell() string {
	if shell := os.Getenv("SHELL"); shell != "" {
		return shell
	}
	return "/bin/sh"
}
