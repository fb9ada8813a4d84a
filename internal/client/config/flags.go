package config

import (
	"flag"
	"os"
	"strings"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-b string   backend kind: memory, rest, postgres
//	-u string   base URL of the hosted platform
//	-k string   platform API key
//	-d string   postgres connection string
//
// The function filters os.Args to only include the flags it knows about,
// using filterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := filterArgs(os.Args[1:], []string{"-b", "-u", "-k", "-d"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.Backend, "b", cfg.Backend, "backend kind (memory, rest, postgres)")
	fs.StringVar(&cfg.BaseURL, "u", cfg.BaseURL, "base URL of the hosted platform")
	fs.StringVar(&cfg.APIKey, "k", cfg.APIKey, "platform API key")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "postgres connection string")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}

// jsonConfigFlags inspects command-line arguments and extracts the config
// file path provided via the -c or -config flags. Other arguments are
// ignored, so packages can parse their own flags without interfering.
func jsonConfigFlags() string {
	var config string

	args := filterArgs(os.Args[1:], []string{"-c", "-config"})

	fs := flag.NewFlagSet("json", flag.ContinueOnError)
	fs.StringVar(&config, "config", "", "Path to config file")
	fs.StringVar(&config, "c", "", "Path to config file (short)")
	_ = fs.Parse(args)

	return config
}

// filterArgs returns a slice of command-line arguments that only contains
// the allowed flags (and their values). Both "-f value" and "--flag=value"
// forms are supported.
func filterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			name := strings.SplitN(arg, "=", 2)[0]
			if _, ok := allowed[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, ok := allowed[arg]; ok {
			filtered = append(filtered, arg)
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				filtered = append(filtered, args[i+1])
				i++
			}
		}
	}

	return filtered
}
