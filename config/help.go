package config

import (
	"flag"
	"fmt"
)

const HelpMessage = `
trip-dispatch - trip request dispatch service

Usage:
  dispatch [flags]

Flags:
  -config-path string   Path to the config yaml file (default "config.yaml")
  -help                 Show this message

Configuration is read from the yaml file and overridden by environment
variables (DATABASE_HOST, RABBITMQ_HOST, REDIS_HOST, AUTH_JWT_SECRET, ...).
`

func PrintHelp() {
	if HelpMessage != "" {
		fmt.Printf("%s", HelpMessage)
	} else {
		flag.Usage()
	}
}
