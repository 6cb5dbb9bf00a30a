// ABOUTME: Package documentation for the config package
// ABOUTME: Describes YAML loading, env var expansion, and validation

// Package config handles configuration loading for fold-assistant.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Configuration File
//
//	assistant:
//	  api_key: "${FOLD_API_KEY}"
//	  assistant_id: "asst_abc123"
//	  model: "gpt-4o"
//
//	database:
//	  path: "./assistant.db"
//
//	pricing:
//	  margin: "0.16"
//	  minimum_charge: "0.01"
//	  unit_prices:
//	    output_text: "0.000002"
//
//	run:
//	  poll_interval: "3s"
//	  max_run_duration: "60m"
//	  short_message_threshold: 100
//	  voice_reply_chance: 10
//
//	session:
//	  thread_ttl: "1h"
//	  initial_balance: "1.00"
//
//	logging:
//	  level: "info"
//	  file: "./assistant.log"
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	assistant:
//	  api_key: "${FOLD_API_KEY}"
//
// Unset variables expand to the empty string.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax ("3s", "60m",
// "1h"). Unset durations stay zero; callers apply their defaults.
//
// # Logging
//
// SetupLogger builds the process logger from the logging section: a
// text handler on stderr always, plus a JSON handler fanned out to
// logging.file when one is configured.
package config
