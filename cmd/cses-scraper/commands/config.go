package commands

import (
	"cses-scraper/internal/scrapers/cses"
	"cses-scraper/lib/configutil"
	configlibsql "cses-scraper/lib/configutil/libsql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

const defaultConfigPath = "cses.json5"

type Config struct {
	BaseUrl        string `json:"base_url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	// DelayMs is a pointer so that an explicit 0 disables the pause.
	DelayMs *int64 `json:"delay_ms"`
	// Headers are merged onto the default headers, an empty value removes
	// a default header.
	Headers          map[string]string   `json:"headers"`
	Extraction       string              `json:"extraction"`
	CloudflareBypass *bool               `json:"cloudflare_bypass"`
	Database         configlibsql.Struct `json:"database"`
	DumpHttp         string              `json:"dump_http"`
}

// loadConfig reads path and its local override. A missing file is only an
// error when the path was chosen explicitly.
func loadConfig(path string, explicit bool) (Config, error) {
	cfg, err := configutil.ReadConfig[Config](path)
	if errors.Is(err, os.ErrNotExist) && !explicit {
		return Config{}, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return cfg, nil
}

// Flags holds the command line overrides, empty values leave the config
// untouched.
type Flags struct {
	Db         string
	Extraction string
	DumpHttp   string
}

func (c Config) WithFlags(flags Flags) Config {
	if flags.Db != "" {
		c.Database = configlibsql.Struct{File: flags.Db}
	}
	if flags.Extraction != "" {
		c.Extraction = flags.Extraction
	}
	if flags.DumpHttp != "" {
		c.DumpHttp = flags.DumpHttp
	}
	return c
}

// ScraperOptions converts the config into scraper options, anything left
// unset keeps its default.
func (c Config) ScraperOptions() (cses.Options, error) {
	opts := cses.DefaultOptions()

	if c.BaseUrl != "" {
		opts.BaseUrl = strings.TrimSuffix(c.BaseUrl, "/")
	}
	if c.TimeoutSeconds < 0 {
		return cses.Options{}, fmt.Errorf("timeout_seconds must not be negative, got %d", c.TimeoutSeconds)
	}
	if c.TimeoutSeconds > 0 {
		opts.Timeout = time.Duration(c.TimeoutSeconds) * time.Second
	}
	if c.DelayMs != nil {
		if *c.DelayMs < 0 {
			return cses.Options{}, fmt.Errorf("delay_ms must not be negative, got %d", *c.DelayMs)
		}
		opts.Delay = time.Duration(*c.DelayMs) * time.Millisecond
	}
	if c.CloudflareBypass != nil {
		opts.CloudflareBypass = *c.CloudflareBypass
	}

	extraction, err := cses.ParseExtraction(c.Extraction)
	if err != nil {
		return cses.Options{}, err
	}
	opts.Extraction = extraction

	if len(c.Headers) > 0 {
		baseUrl, err := url.Parse(opts.BaseUrl)
		if err != nil {
			return cses.Options{}, fmt.Errorf("parse base url: %w", err)
		}
		opts.Headers = cses.DefaultHeaders(baseUrl).Merge(c.Headers)
	}

	return opts, nil
}
