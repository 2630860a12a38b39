package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/printforge/timelapse-exporter/internal/errors"
	"github.com/printforge/timelapse-exporter/internal/sdcp"
)

type AppConfig struct {
	File     string          `json:"-"`
	Device   *DeviceConfig   `json:"device,omitempty"`
	Export   *ExportConfig   `json:"export,omitempty"`
	Download *DownloadConfig `json:"download,omitempty"`
	History  *HistoryConfig  `json:"history,omitempty"`
	Verbose  bool            `json:"verbose,omitempty"`
	LogFile  string          `json:"logFile,omitempty"`
}

type DeviceConfig struct {
	Host   string `json:"host"`
	WSPort int    `json:"wsPort"`
}

type ExportConfig struct {
	File     string `json:"file"`
	Latest   bool   `json:"latest"`
	ListPath string `json:"listPath"`
	Timeout  int    `json:"timeout"` // seconds
	Check    bool   `json:"check"`
	OutDir   string `json:"outDir"`
	URLOnly  bool   `json:"urlOnly"`
}

type DownloadConfig struct {
	Retries int `json:"retries"`
}

type HistoryConfig struct {
	Path  string `json:"path"`
	Show  bool   `json:"-"`
	Limit int    `json:"-"`
}

func LoadConfig() (*AppConfig, error) {
	bindFlagsAndEnv()

	configFile := getConfigFilePath()
	if configFile != "" {
		if err := loadFromFile(configFile); err != nil {
			return nil, err
		}
	}

	cfg := buildAppConfig(configFile)
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func bindFlagsAndEnv() {
	pflag.String("config_file", "", "Configuration file in JSON format")

	// export
	pflag.Bool("latest", false, "Discover the latest item from the listing, then export and download it")
	pflag.String("list_path", "/local/aic_tlp/", "Listing path on the device")
	pflag.Bool("check", false, "Probe the HTTP endpoint once more after a push confirmation")
	pflag.Int("timeout", 180, "Max seconds to wait for completion")
	pflag.String("out_dir", ".", "Directory to save the downloaded artifact")
	pflag.Bool("url_only", false, "Print the download URL without downloading")

	// device
	pflag.Int("ws_port", sdcp.DefaultPort, "Websocket control port on the device")

	// download
	pflag.Int("retries", 5, "Download attempts before giving up")

	// history
	pflag.String("history_db", defaultHistoryPath(), "Path of the local export history database (empty disables recording)")
	pflag.Bool("history", false, "List recorded exports and exit")
	pflag.Int("history_limit", 20, "Max records shown by --history")

	pflag.Bool("verbose", false, "Log extra connection and download detail")
	pflag.String("log_file", "", "Mirror logs into this file")

	pflag.Parse()

	_ = viper.BindPFlags(pflag.CommandLine)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Explicit mapping
	_ = viper.BindEnv("list_path", "TLE_LIST_PATH")
	_ = viper.BindEnv("ws_port", "TLE_WS_PORT")
	_ = viper.BindEnv("out_dir", "TLE_OUT_DIR")
	_ = viper.BindEnv("history_db", "TLE_HISTORY_DB")
}

func getConfigFilePath() string {
	file := viper.GetString("config_file")
	if file == "" {
		file = os.Getenv("TLE_CONFIG_FILE")
	}
	return file
}

func loadFromFile(path string) error {
	viper.SetConfigFile(path)
	viper.SetConfigType("json")
	if err := viper.ReadInConfig(); err != nil {
		return errors.Config(fmt.Sprintf("could not load config file: %s", err.Error()))
	}
	return nil
}

func buildAppConfig(file string) *AppConfig {
	cfg := &AppConfig{
		File: file,
		Device: &DeviceConfig{
			WSPort: viper.GetInt("ws_port"),
		},
		Export: &ExportConfig{
			Latest:   viper.GetBool("latest"),
			ListPath: viper.GetString("list_path"),
			Timeout:  viper.GetInt("timeout"),
			Check:    viper.GetBool("check"),
			OutDir:   viper.GetString("out_dir"),
			URLOnly:  viper.GetBool("url_only"),
		},
		Download: &DownloadConfig{
			Retries: viper.GetInt("retries"),
		},
		History: &HistoryConfig{
			Path:  viper.GetString("history_db"),
			Show:  viper.GetBool("history"),
			Limit: viper.GetInt("history_limit"),
		},
		Verbose: viper.GetBool("verbose"),
		LogFile: viper.GetString("log_file"),
	}

	// Positional arguments: <host> [file]
	args := pflag.Args()
	if len(args) > 0 {
		cfg.Device.Host = args[0]
	}
	if len(args) > 1 {
		cfg.Export.File = args[1]
	}
	return cfg
}

func validateConfig(cfg *AppConfig) error {
	if cfg.History.Show {
		// History listing needs no device at all.
		return nil
	}
	if cfg.Device.Host == "" {
		return errors.Config("device host is required")
	}
	if cfg.Export.File == "" && !cfg.Export.Latest {
		return errors.Config("provide a file path or use --latest")
	}
	if cfg.Export.Timeout <= 0 {
		return errors.Config("timeout must be positive")
	}
	if cfg.Export.ListPath == "" {
		return errors.Config("listing path is required")
	}
	return nil
}

func defaultHistoryPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "timelapse-history.db"
	}
	return filepath.Join(dir, "timelapse-exporter", "history.db")
}
