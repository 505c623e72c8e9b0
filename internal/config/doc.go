// Package config defines webmirror's runtime configuration, its defaults,
// validation, and the optional per-host YAML configuration file.
package config
