package main

import (
	"fmt"
	"strings"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/serialio/go-pl2303/logger"
)

const (
	logLevelDebug = "debug"
	logLevelInfo  = "info"
	logLevelWarn  = "warn"
	logLevelError = "error"
)

var availableLogLevels = strings.Join([]string{
	logLevelDebug,
	logLevelInfo,
	logLevelWarn,
	logLevelError,
}, ", ")

// initConfig defines config flags, config file, and envs
func initConfig() error {
	cfgFile := flag.String("config", "", "Path to the config file.")
	flag.Int("port", 0, "Index of the PL2303 device to open, in bus enumeration order.")
	flag.Int("baud", 9600, "Requested baud rate. Quantized to the nearest supported rate.")
	flag.String("log-level", logLevelInfo, fmt.Sprintf("Log level to use. Possible values: %s", availableLogLevels))
	flag.Bool("status", false, "Log modem status line changes.")

	flag.Parse()
	if err := viper.BindPFlags(flag.CommandLine); err != nil {
		return fmt.Errorf("failed to bind config: %w", err)
	}

	if *cfgFile != "" {
		viper.SetConfigFile(*cfgFile)
	} else {
		viper.SetConfigName("pl2303cat")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("/etc/pl2303cat/")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("pl2303cat")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; ignore error
		} else {
			// Config file was found but another error was produced
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return nil
}

func configuredLogLevel() (logger.Level, error) {
	switch lv := viper.GetString("log-level"); lv {
	case logLevelDebug:
		return logger.DebugLevel, nil
	case logLevelInfo:
		return logger.InfoLevel, nil
	case logLevelWarn:
		return logger.WarnLevel, nil
	case logLevelError:
		return logger.ErrorLevel, nil
	default:
		return 0, fmt.Errorf("log level %v unknown; possible values are: %s", lv, availableLogLevels)
	}
}
