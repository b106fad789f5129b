package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dukerupert/calwidget/internal/model"
)

// Config is the service configuration: server settings plus the calendar
// widgets it exposes.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
	Widgets  []WidgetConfig `yaml:"widgets"`
}

type ServerConfig struct {
	Port         string        `yaml:"port"`
	BaseURL      string        `yaml:"baseUrl"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
	// RateLimit is the number of event fetches allowed per client and minute.
	RateLimit int `yaml:"rateLimit"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
	// Migrate applies the bundled schema. Turn it off when pointing the
	// widgets at a database owned by another application.
	Migrate *bool `yaml:"migrate"`
}

type AuthConfig struct {
	Method     string `yaml:"method"` // "none" or "apikey"
	APIKeyHash string `yaml:"apiKeyHash,omitempty"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SearchConfig holds the default search options of a widget.
type SearchConfig struct {
	Mode  string `yaml:"mode"`
	Scope string `yaml:"scope"`
}

// FilterConfig is a named condition the client may switch on with
// filter[name]=value. The condition uses ? for the value and @ for the
// model table.
type FilterConfig struct {
	Name      string `yaml:"name"`
	Label     string `yaml:"label"`
	Condition string `yaml:"condition"`
}

// WidgetConfig declares one calendar bound to a host table.
type WidgetConfig struct {
	Alias                 string           `yaml:"alias"`
	Model                 model.Definition `yaml:"model"`
	Columns               ColumnList       `yaml:"columns"`
	ColumnsFile           string           `yaml:"columnsFile"`
	RecordURL             string           `yaml:"recordUrl"`
	RecordOnClick         string           `yaml:"recordOnClick"`
	RecordID              string           `yaml:"recordId"`
	RecordTitle           string           `yaml:"recordTitle"`
	RecordStart           string           `yaml:"recordStart"`
	RecordEnd             string           `yaml:"recordEnd"`
	AvailableDisplayModes []string         `yaml:"availableDisplayModes"`
	Editable              bool             `yaml:"editable"`
	CSSClasses            []string         `yaml:"cssClasses"`
	Search                SearchConfig     `yaml:"search"`
	Filters               []FilterConfig   `yaml:"filters"`
}

// Filter returns the named filter.
func (w *WidgetConfig) Filter(name string) (FilterConfig, bool) {
	for _, f := range w.Filters {
		if f.Name == name {
			return f, true
		}
	}
	return FilterConfig{}, false
}

// LoadFromFile loads configuration from a YAML file, resolves columnsFile
// references relative to it, applies defaults and environment overrides and
// validates the result.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	for i := range cfg.Widgets {
		w := &cfg.Widgets[i]
		if w.ColumnsFile == "" {
			continue
		}
		cols, err := loadColumnsFile(filepath.Join(dir, w.ColumnsFile))
		if err != nil {
			return nil, fmt.Errorf("widget %q: %w", w.Alias, err)
		}
		w.Columns = append(w.Columns, cols...)
	}

	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes a configuration document and applies defaults. It does not
// read columnsFile references or the environment.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func loadColumnsFile(path string) (ColumnList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}
	var doc struct {
		Columns ColumnList `yaml:"columns"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse columns %s: %w", path, err)
	}
	return doc.Columns, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 5 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 120 * time.Second
	}
	if c.Server.RateLimit == 0 {
		c.Server.RateLimit = 120
	}
	if c.Database.Path == "" {
		c.Database.Path = "calwidget.db"
	}
	if c.Database.Migrate == nil {
		migrate := true
		c.Database.Migrate = &migrate
	}
	if c.Auth.Method == "" {
		c.Auth.Method = "none"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	for i := range c.Widgets {
		if c.Widgets[i].RecordID == "" {
			c.Widgets[i].RecordID = "id"
		}
	}
}

// ApplyEnv overrides settings from CALWIDGET_* variables.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("CALWIDGET_PORT"); v != "" {
		c.Server.Port = v
	}
	if v := getenv("CALWIDGET_BASE_URL"); v != "" {
		c.Server.BaseURL = v
	}
	if v := getenv("CALWIDGET_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := getenv("CALWIDGET_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := getenv("CALWIDGET_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := getenv("CALWIDGET_API_KEY_HASH"); v != "" {
		c.Auth.Method = "apikey"
		c.Auth.APIKeyHash = v
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = "http://localhost:" + c.Server.Port
	}
}

// Validate checks the widget declarations.
func (c *Config) Validate() error {
	var errs []error
	if c.Auth.Method != "none" && c.Auth.Method != "apikey" {
		errs = append(errs, fmt.Errorf("auth.method %q must be none or apikey", c.Auth.Method))
	}
	if c.Auth.Method == "apikey" && c.Auth.APIKeyHash == "" {
		errs = append(errs, errors.New("auth.apiKeyHash is required for apikey auth"))
	}

	seen := make(map[string]bool)
	for i, w := range c.Widgets {
		if w.Alias == "" {
			errs = append(errs, fmt.Errorf("widgets[%d]: alias is required", i))
			continue
		}
		if seen[w.Alias] {
			errs = append(errs, fmt.Errorf("widget %q: duplicate alias", w.Alias))
		}
		seen[w.Alias] = true

		if w.Model.Table == "" {
			errs = append(errs, fmt.Errorf("widget %q: model.table is required", w.Alias))
		}
		if w.RecordTitle == "" || w.RecordStart == "" || w.RecordEnd == "" {
			errs = append(errs, fmt.Errorf("widget %q: recordTitle, recordStart and recordEnd are required", w.Alias))
		}
		for _, f := range w.Filters {
			if f.Name == "" || f.Condition == "" {
				errs = append(errs, fmt.Errorf("widget %q: filters need a name and a condition", w.Alias))
			}
		}
	}
	return errors.Join(errs...)
}

// Widget returns the widget declared with alias.
func (c *Config) Widget(alias string) (*WidgetConfig, bool) {
	for i := range c.Widgets {
		if c.Widgets[i].Alias == alias {
			return &c.Widgets[i], true
		}
	}
	return nil, false
}
