// Package config loads the framefeed client configuration.
//
// Values are resolved in three passes, later passes overriding earlier
// ones: built-in defaults, a JSON file named by -c/-config, then individual
// command-line flags.
package config
