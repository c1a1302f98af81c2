package app

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/shrimpsizemoose/trekker/logger"
)

type HeaderConfig struct {
	Name  string `toml:"name"`
	Value string `toml:"value"`
}

type GSheetConfig struct {
	CredentialsPath string `toml:"credentials_path"`
	SpreadsheetID   string `toml:"spreadsheet_id"`
	SheetName       string `toml:"sheet_name"`
	Schedule        string `toml:"schedule"`
}

type Config struct {
	Server struct {
		Port       string `toml:"port"`
		EnableAuth bool   `toml:"enable_auth"`
	} `toml:"server"`

	Auth struct {
		RedisURL         string `toml:"redis_url"`
		TokenHeader      string `toml:"token_header"`
		TokenKeyTemplate string `toml:"token_key_template"`
	} `toml:"auth"`

	API struct {
		OperatorIDHeader string         `toml:"operator_id_header"`
		RequiredHeaders  []HeaderConfig `toml:"required_headers"`
	} `toml:"api"`

	Database struct {
		DSN           string `toml:"dsn"`
		MigrationsDir string `toml:"migrations_dir"`
	} `toml:"database"`

	Biostar struct {
		Driver                 string   `toml:"driver"`
		DSN                    string   `toml:"dsn"`
		Table                  string   `toml:"table"`
		QueryTimeoutSeconds    int      `toml:"query_timeout_seconds"`
		ClockOffsetMinutes     int      `toml:"clock_offset_minutes"`
		ExcludedDevicePrefixes []string `toml:"excluded_device_prefixes"`
	} `toml:"biostar"`

	Attendance struct {
		LateCountsAsPresent bool `toml:"late_counts_as_present"`
		BatchParallelism    int  `toml:"batch_parallelism"`
	} `toml:"attendance"`

	Display struct {
		TimestampFormat string `toml:"timestamp_format"`
	} `toml:"display"`

	// GSheet export targets keyed by campus label, one or more per campus.
	GSheet map[string][]GSheetConfig `toml:"gsheet"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf(
			"error reading config file %s\n> Error: %w\n> Content:\n%s",
			path,
			err,
			string(data),
		)
	}

	if config.Server.Port == "" {
		return nil, fmt.Errorf("Server port is not specified in config, use a value like :9999")
	}
	if config.Biostar.DSN == "" {
		return nil, fmt.Errorf("Biostar DSN is not specified in config")
	}
	if config.Biostar.Driver == "" {
		config.Biostar.Driver = "postgres"
	}

	logger.Debug.Printf("Loaded biostar config: offset=%dm excluded=%v",
		config.Biostar.ClockOffsetMinutes, config.Biostar.ExcludedDevicePrefixes)

	return &config, nil
}
