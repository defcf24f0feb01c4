package config

import "testing"

func TestValidateDefaults(t *testing.T) {
	if err := Validate(DefaultConfig()); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero workers", func(c *Config) { c.Crawler.Workers = 0 }},
		{"too many workers", func(c *Config) { c.Crawler.Workers = 128 }},
		{"unknown fetcher", func(c *Config) { c.Fetcher.Type = "carrier-pigeon" }},
		{"unknown backend", func(c *Config) { c.Store.Backend = "couch" }},
		{"mongo without uri", func(c *Config) { c.Store.URI = "" }},
		{"zero etl interval", func(c *Config) { c.ETL.Interval = 0 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"bad api port", func(c *Config) { c.API.Enabled = true; c.API.Port = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidateTarget(t *testing.T) {
	tests := []struct {
		name    string
		target  Target
		wantErr bool
	}{
		{"placeholder template", Target{URLTemplate: "https://shop.example/catalog/?p={page}"}, false},
		{"page param", Target{URLTemplate: "https://shop.example/catalog/", PageParam: "page"}, false},
		{"no pagination handle", Target{URLTemplate: "https://shop.example/catalog/"}, true},
		{"empty", Target{}, true},
		{"bad scheme", Target{URLTemplate: "ftp://shop.example/?p={page}"}, true},
		{"no host", Target{URLTemplate: "https:///catalog/?p={page}"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTarget(tt.target)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTarget = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
