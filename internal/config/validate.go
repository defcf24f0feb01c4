package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.Crawler.Workers < 1 {
		return fmt.Errorf("crawler.workers must be >= 1, got %d", cfg.Crawler.Workers)
	}
	if cfg.Crawler.Workers > 64 {
		return fmt.Errorf("crawler.workers must be <= 64, got %d", cfg.Crawler.Workers)
	}
	if cfg.Crawler.PolitenessDelay < 0 {
		return fmt.Errorf("crawler.politeness_delay must be >= 0")
	}
	if cfg.Crawler.RequestTimeout <= 0 {
		return fmt.Errorf("crawler.request_timeout must be > 0")
	}
	if cfg.Crawler.Cooldown < 0 {
		return fmt.Errorf("crawler.cooldown must be >= 0")
	}
	if cfg.Crawler.MaxRetries < 0 {
		return fmt.Errorf("crawler.max_retries must be >= 0, got %d", cfg.Crawler.MaxRetries)
	}
	for i, target := range cfg.Crawler.Targets {
		if err := ValidateTarget(target); err != nil {
			return fmt.Errorf("crawler.targets[%d]: %w", i, err)
		}
	}

	if cfg.Fetcher.Type != "browser" && cfg.Fetcher.Type != "http" {
		return fmt.Errorf("fetcher.type must be 'browser' or 'http', got %q", cfg.Fetcher.Type)
	}
	if cfg.Fetcher.MaxBodySize <= 0 {
		return fmt.Errorf("fetcher.max_body_size must be > 0")
	}

	if cfg.Store.Backend != "mongo" && cfg.Store.Backend != "memory" {
		return fmt.Errorf("store.backend must be 'mongo' or 'memory', got %q", cfg.Store.Backend)
	}
	if cfg.Store.Backend == "mongo" && cfg.Store.URI == "" {
		return fmt.Errorf("store.uri is required for the mongo backend")
	}

	if cfg.ETL.Interval <= 0 {
		return fmt.Errorf("etl.interval must be > 0")
	}
	if cfg.ETL.OutputDir == "" {
		return fmt.Errorf("etl.output_dir is required")
	}

	if cfg.API.Enabled {
		if cfg.API.Port < 1 || cfg.API.Port > 65535 {
			return fmt.Errorf("api.port must be 1-65535, got %d", cfg.API.Port)
		}
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	return nil
}

// ValidateTarget checks a single crawl target. The template must be an
// http(s) URL and must carry either a {page} placeholder or a page_param to
// append.
func ValidateTarget(t Target) error {
	if t.URLTemplate == "" {
		return fmt.Errorf("url_template is required")
	}
	probe := strings.ReplaceAll(t.URLTemplate, "{page}", "1")
	u, err := url.Parse(probe)
	if err != nil {
		return fmt.Errorf("invalid url_template: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url_template scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("url_template must have a host")
	}
	if !strings.Contains(t.URLTemplate, "{page}") && t.PageParam == "" {
		return fmt.Errorf("url_template needs a {page} placeholder or a page_param")
	}
	return nil
}
