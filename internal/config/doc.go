// Package config provides the configuration of citenet: crawl limits, fetch
// politeness, identity matching thresholds and the storage location.
// Values come from defaults, an optional YAML file, a .env file or the
// environment, and command line flags, in increasing precedence.
package config
