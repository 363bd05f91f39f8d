package main

import (
	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Config holds the settings ecapnpdump reads from a TOML file,
// mirroring the containers.conf-style configuration the teacher's
// own tools load: read traversal/depth limits for decoding untrusted
// input, a flow-control byte budget for the serve subcommand's vat,
// and a restorer object-id namespace.
type Config struct {
	// TraverseLimit bounds the bytes a single decode may touch. Zero
	// uses the library default.
	TraverseLimit int64 `toml:"traverse_limit"`
	// DepthLimit bounds pointer nesting depth. Zero uses the library
	// default.
	DepthLimit uint `toml:"depth_limit"`
	// FlowLimitBytes bounds the message bytes the serve subcommand's
	// connection writes to its transport at once. Zero disables the
	// limiter.
	FlowLimitBytes int64 `toml:"flow_limit_bytes"`
	// RestorerNamespace is decoded from the file; no subcommand reads
	// it.
	RestorerNamespace string `toml:"restorer_namespace"`
}

// defaultConfig mirrors the library's own zero-value defaults, so an
// absent config file behaves exactly like an empty one.
func defaultConfig() Config {
	return Config{}
}

// loadConfig reads and decodes the TOML file at path. A missing path
// (the common case, since the flag defaults to "") returns the
// default Config rather than an error.
func loadConfig(path string) (Config, error) {
	if path == "" {
		return defaultConfig(), nil
	}
	cfg := defaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "load config %q", path)
	}
	return cfg, nil
}
