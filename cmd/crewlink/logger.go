// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/kadirpekel/crewlink/pkg/config"
	"github.com/kadirpekel/crewlink/pkg/logger"
)

const (
	// LogFileEnvVar is the environment variable name for log file path
	LogFileEnvVar = "LOG_FILE"
	// LogLevelEnvVar is the environment variable name for log level
	LogLevelEnvVar = "LOG_LEVEL"
	// LogFormatEnvVar is the environment variable name for log format
	LogFormatEnvVar = "LOG_FORMAT"
)

// loggerSettings are the resolved logger values.
type loggerSettings struct {
	config.LoggerConfig

	// Explicit is set when a CLI flag or env var chose any value. The
	// config file's logger section is then ignored.
	Explicit bool
}

// resolveLoggerSettings applies the priority CLI flags > env vars > defaults.
func resolveLoggerSettings(cliLevel, cliFile, cliFormat string) loggerSettings {
	pick := func(flag, env string) string {
		if flag != "" {
			return flag
		}
		return os.Getenv(env)
	}

	s := loggerSettings{LoggerConfig: config.LoggerConfig{
		Level:  pick(cliLevel, LogLevelEnvVar),
		File:   pick(cliFile, LogFileEnvVar),
		Format: pick(cliFormat, LogFormatEnvVar),
	}}
	s.Explicit = s.Level != "" || s.File != "" || s.Format != ""
	s.SetDefaults()
	return s
}

// initLoggerFromCLI initializes the logger from CLI flags and environment
// variables. The returned cleanup closes the log file, if any.
func initLoggerFromCLI(cliLevel, cliFile, cliFormat string) (func(), error) {
	s := resolveLoggerSettings(cliLevel, cliFile, cliFormat)
	return initLogger(s.LoggerConfig)
}

// initLoggerFromConfig re-initializes the logger from the config file,
// unless flags or env vars already chose the settings.
func initLoggerFromConfig(cli *CLI, cfg config.LoggerConfig) (func(), error) {
	if resolveLoggerSettings(cli.LogLevel, cli.LogFile, cli.LogFormat).Explicit {
		return nil, nil
	}
	return initLogger(cfg)
}

func initLogger(cfg config.LoggerConfig) (func(), error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var output io.Writer = os.Stderr
	var cleanup func()
	if cfg.File != "" {
		file, closeFn, err := logger.OpenLogFile(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		output = file
		cleanup = closeFn
	}

	logger.Init(logger.ParseLevel(cfg.Level), output, cfg.Format)
	return cleanup, nil
}
