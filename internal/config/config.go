package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration decodes YAML strings such as "3s" or "5m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	if strings.TrimSpace(s) == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Clinician is one API key holder.
type Clinician struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	Specialty string `yaml:"specialty"`
}

type Config struct {
	Server struct {
		Port            int      `yaml:"port"`
		ShutdownTimeout Duration `yaml:"shutdownTimeout"`
		CORSOrigins     []string `yaml:"corsOrigins"`
		RateLimit       struct {
			Capacity  int `yaml:"capacity"`
			PerMinute int `yaml:"perMinute"`
		} `yaml:"rateLimit"`
	} `yaml:"server"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	Database struct {
		Driver   string `yaml:"driver"` // mysql, postgres or sqlite
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
		Path     string `yaml:"path"` // sqlite file
		Migrate  bool   `yaml:"migrate"`
	} `yaml:"database"`

	Minio struct {
		Enabled    bool   `yaml:"enabled"`
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	Attachments struct {
		UploadDir string `yaml:"uploadDir"`
		MaxCount  int    `yaml:"maxCount"`
		MaxBytes  int64  `yaml:"maxBytes"`
	} `yaml:"attachments"`

	AnalysisService struct {
		BaseURL        string   `yaml:"baseURL"`
		APIKey         string   `yaml:"apiKey"`
		RequestTimeout Duration `yaml:"requestTimeout"`
	} `yaml:"analysisService"`

	Polling struct {
		Interval             Duration `yaml:"interval"`
		MaxPolls             int      `yaml:"maxPolls"`
		MaxConsecutiveErrors int      `yaml:"maxConsecutiveErrors"`
		MaxBackoff           Duration `yaml:"maxBackoff"`
	} `yaml:"polling"`

	Tracker struct {
		Retention     Duration `yaml:"retention"`
		PruneInterval Duration `yaml:"pruneInterval"`
	} `yaml:"tracker"`

	Reanalysis struct {
		Backend string   `yaml:"backend"` // service or openai
		Timeout Duration `yaml:"timeout"`
	} `yaml:"reanalysis"`

	OpenAI struct {
		APIKey    string            `yaml:"apiKey"`
		Model     string            `yaml:"model"`
		BaseURL   string            `yaml:"baseURL"`
		Modifiers map[string]string `yaml:"specialtyModifiers"`
	} `yaml:"openai"`

	Auth struct {
		// Clinicians maps an API key to the identity it acts as.
		Clinicians map[string]Clinician `yaml:"clinicians"`
	} `yaml:"auth"`
}

// Default returns the settings used for anything the file leaves out.
func Default() *Config {
	var c Config
	c.Server.Port = 8080
	c.Server.ShutdownTimeout = Duration(15 * time.Second)
	c.Server.CORSOrigins = []string{"*"}
	c.Server.RateLimit.Capacity = 60
	c.Server.RateLimit.PerMinute = 60
	c.Log.Level = "info"
	c.Log.Format = "text"
	c.Database.Driver = "mysql"
	c.Database.Port = 3306
	c.Database.SSLMode = "disable"
	c.Database.Path = "data/roundsiq.db"
	c.Attachments.UploadDir = "uploads"
	c.Attachments.MaxCount = 8
	c.Attachments.MaxBytes = 20 << 20
	c.AnalysisService.RequestTimeout = Duration(30 * time.Second)
	c.Polling.Interval = Duration(3 * time.Second)
	c.Polling.MaxPolls = 400
	c.Polling.MaxConsecutiveErrors = 20
	c.Polling.MaxBackoff = Duration(30 * time.Second)
	c.Tracker.Retention = Duration(time.Hour)
	c.Tracker.PruneInterval = Duration(5 * time.Minute)
	c.Reanalysis.Backend = "service"
	c.Reanalysis.Timeout = Duration(300 * time.Second)
	c.OpenAI.Model = "gpt-5"
	return &c
}

// Load baca file config.yaml, lalu override secret dari env
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and applies environment overrides.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Database.Driver == "postgres" && cfg.Database.Port == 3306 {
		cfg.Database.Port = 5432
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	for env, dst := range map[string]*string{
		"DB_PASSWORD":      &c.Database.Password,
		"ANALYSIS_API_KEY": &c.AnalysisService.APIKey,
		"OPENAI_API_KEY":   &c.OpenAI.APIKey,
		"MINIO_SECRET_KEY": &c.Minio.SecretKey,
	} {
		if v, ok := os.LookupEnv(env); ok && v != "" {
			*dst = v
		}
	}
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	switch c.Database.Driver {
	case "mysql", "postgres":
		if c.Database.Host == "" || c.Database.Name == "" {
			errs = append(errs, fmt.Errorf("database.host and database.name are required for %s", c.Database.Driver))
		}
	case "sqlite":
		if c.Database.Path == "" {
			errs = append(errs, errors.New("database.path is required for sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("database.driver %q is not one of mysql, postgres, sqlite", c.Database.Driver))
	}
	if u, err := url.Parse(c.AnalysisService.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("analysisService.baseURL %q is not an absolute URL", c.AnalysisService.BaseURL))
	}
	if c.Polling.Interval <= 0 {
		errs = append(errs, errors.New("polling.interval must be positive"))
	}
	if c.Polling.MaxPolls < 0 || c.Polling.MaxConsecutiveErrors < 0 {
		errs = append(errs, errors.New("polling caps must not be negative"))
	}
	if c.Tracker.PruneInterval <= 0 {
		errs = append(errs, errors.New("tracker.pruneInterval must be positive"))
	}
	switch c.Reanalysis.Backend {
	case "service":
	case "openai":
		if c.OpenAI.APIKey == "" {
			errs = append(errs, errors.New("openai.apiKey is required when reanalysis.backend is openai"))
		}
	default:
		errs = append(errs, fmt.Errorf("reanalysis.backend %q is not one of service, openai", c.Reanalysis.Backend))
	}
	if c.Minio.Enabled && (c.Minio.Endpoint == "" || c.Minio.BucketName == "") {
		errs = append(errs, errors.New("minio.endpoint and minio.bucketName are required when minio is enabled"))
	}
	for key, cl := range c.Auth.Clinicians {
		if strings.TrimSpace(key) == "" || cl.ID == "" {
			errs = append(errs, errors.New("auth.clinicians entries need a key and an id"))
			break
		}
	}
	return errors.Join(errs...)
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// PostgresDSN builds a lib/pq connection string.
func (c *Config) PostgresDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Database.User, c.Database.Password),
		Host:     fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port),
		Path:     "/" + c.Database.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.Database.SSLMode),
	}
	return u.String()
}
