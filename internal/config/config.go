// Package config defines the CLI structure and configuration for the
// fraucheky tool.
package config

import (
	"github.com/RaymiiOrg/fraucheky/internal/cmd"
)

type Log struct {
	Level   string `help:"Log level: trace, debug, info, warn, error" default:"info" env:"FRAUCHEKY_LOG_LEVEL"`
	File    string `help:"Log file path (default: none; logs only to console)" env:"FRAUCHEKY_LOG_FILE"`
	NoColor bool   `help:"Disable ANSI colors in console output" env:"FRAUCHEKY_LOG_NO_COLOR"`
}

// CLI is the root command structure for Kong CLI parsing.
type CLI struct {
	Log `embed:"" prefix:"log."`

	Config string `help:"Path to a config file (JSON, YAML or TOML)" env:"FRAUCHEKY_CONFIG"`

	Dump  cmd.Dump  `cmd:"" help:"Build the USB descriptor tables and print them"`
	Check cmd.Check `cmd:"" help:"Run the responder through a scripted host enumeration and verify its replies"`
}
