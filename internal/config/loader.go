package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".citenet"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File is the structure of the YAML configuration file.
// Every field is optional; only the fields present override the defaults.
type File struct {
	Seeds    []string     `yaml:"seeds,omitempty"`
	Clusters []string     `yaml:"clusters,omitempty"`
	Crawl    CrawlFile    `yaml:"crawl,omitempty"`
	Fetch    FetchFile    `yaml:"fetch,omitempty"`
	Matching MatchingFile `yaml:"matching,omitempty"`
	Storage  StorageFile  `yaml:"storage,omitempty"`
}

// CrawlFile is the crawl section.
type CrawlFile struct {
	MaxDepth          *int     `yaml:"max_depth,omitempty"`
	Budget            *int     `yaml:"budget,omitempty"`
	SeedPages         *int     `yaml:"seed_pages,omitempty"`
	MaxCitersPerEntry *int     `yaml:"max_citers_per_entry,omitempty"`
	CitersPercent     *float64 `yaml:"citers_percent,omitempty"`
	Workers           *int     `yaml:"workers,omitempty"`
}

// FetchFile is the fetch section.
type FetchFile struct {
	BaseURL     string            `yaml:"base_url,omitempty"`
	PageSize    *int              `yaml:"page_size,omitempty"`
	Delay       *time.Duration    `yaml:"delay,omitempty"`
	Jitter      *bool             `yaml:"jitter,omitempty"`
	MaxRetries  *int              `yaml:"max_retries,omitempty"`
	BackoffBase *time.Duration    `yaml:"backoff_base,omitempty"`
	BackoffMax  *time.Duration    `yaml:"backoff_max,omitempty"`
	Timeout     *time.Duration    `yaml:"timeout,omitempty"`
	MaxBodySize *int64            `yaml:"max_body_size,omitempty"`
	Proxy       string            `yaml:"proxy,omitempty"`
	Cookie      string            `yaml:"cookie,omitempty"`
	UserAgent   string            `yaml:"user_agent,omitempty"`
	Headers     map[string]string `yaml:"headers,omitempty"`
}

// MatchingFile is the matching section.
type MatchingFile struct {
	MinTitleLength *int     `yaml:"min_title_length,omitempty"`
	YearTolerance  *int     `yaml:"year_tolerance,omitempty"`
	AuthorKey      string   `yaml:"author_key,omitempty"`
	Strategies     []string `yaml:"strategies,omitempty"`
}

// StorageFile is the storage section.
type StorageFile struct {
	Path string `yaml:"path,omitempty"`
}

// LoadConfigFile loads a YAML configuration file.
// If the file does not exist, it returns ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &cf, nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .citenet in the current directory
// 3. Look for .citenet in the user's home directory
// 4. Look for config.yaml in the XDG config directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	var candidates []string
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}
	candidates = append(candidates, filepath.Join(XDGConfigDir(), "config.yaml"))

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

// Apply overrides c with the fields set in f.
func (f *File) Apply(c *Config) {
	if len(f.Seeds) > 0 {
		c.Seeds = f.Seeds
	}
	if len(f.Clusters) > 0 {
		c.Clusters = f.Clusters
	}

	setInt(&c.MaxDepth, f.Crawl.MaxDepth)
	setInt(&c.Budget, f.Crawl.Budget)
	setInt(&c.SeedPages, f.Crawl.SeedPages)
	setInt(&c.MaxCitersPerEntry, f.Crawl.MaxCitersPerEntry)
	setInt(&c.Workers, f.Crawl.Workers)
	if f.Crawl.CitersPercent != nil {
		c.CitersPercent = *f.Crawl.CitersPercent
	}

	setString(&c.BaseURL, f.Fetch.BaseURL)
	setInt(&c.PageSize, f.Fetch.PageSize)
	setDuration(&c.Delay, f.Fetch.Delay)
	setDuration(&c.BackoffBase, f.Fetch.BackoffBase)
	setDuration(&c.BackoffMax, f.Fetch.BackoffMax)
	setDuration(&c.Timeout, f.Fetch.Timeout)
	setInt(&c.MaxRetries, f.Fetch.MaxRetries)
	if f.Fetch.Jitter != nil {
		c.Jitter = *f.Fetch.Jitter
	}
	if f.Fetch.MaxBodySize != nil {
		c.MaxBodySize = *f.Fetch.MaxBodySize
	}
	setString(&c.Proxy, f.Fetch.Proxy)
	setString(&c.Cookie, f.Fetch.Cookie)
	setString(&c.UserAgent, f.Fetch.UserAgent)
	if len(f.Fetch.Headers) > 0 {
		if c.Headers == nil {
			c.Headers = make(map[string]string, len(f.Fetch.Headers))
		}
		for k, v := range f.Fetch.Headers {
			c.Headers[k] = v
		}
	}

	setInt(&c.MinTitleLength, f.Matching.MinTitleLength)
	setInt(&c.YearTolerance, f.Matching.YearTolerance)
	setString(&c.AuthorKey, f.Matching.AuthorKey)
	if len(f.Matching.Strategies) > 0 {
		c.Strategies = f.Matching.Strategies
	}

	setString(&c.DBPath, f.Storage.Path)
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *time.Duration) {
	if v != nil {
		*dst = *v
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
