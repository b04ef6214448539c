package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"siteimage/internal/model"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Enabled reports whether an object store is configured.
func (c MinIOConfig) Enabled() bool {
	return c.Endpoint != "" && c.Bucket != ""
}

// LocalConfig holds the local disk backend settings.
type LocalConfig struct {
	// Folder is the storage root.
	Folder string
	// URL is the public path or URL the folder is served from.
	URL string
}

// CloudinaryConfig holds the remote backend credentials and endpoints.
type CloudinaryConfig struct {
	CloudName  string
	APIKey     string
	APISecret  string
	BaseURL    string
	SecureURL  string
	APIBaseURL string
	// PlaceholderSource is uploaded as the placeholder when transformations are built.
	PlaceholderSource string
}

// Tag index backends.
const (
	TagIndexJSON     = "json"
	TagIndexPostgres = "postgres"
)

// ImagesConfig selects and configures the image host.
type ImagesConfig struct {
	Provider string
	// Placeholder is a file path for the local backend and a public id for cloudinary.
	Placeholder         string
	TransformationsFile string
	Transformations     model.Transformations
	TagIndex            string
	Local               LocalConfig
	Cloudinary          CloudinaryConfig
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost  string
	Port     string
	LogLevel string
	Database DatabaseConfig
	MinIO    MinIOConfig
	Images   ImagesConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
// It fails only when the transformation file cannot be read.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		AppHost:  getEnv("APP_HOST", "localhost:8080"),
		Port:     getEnv("PORT", "8080"), // default only for non-sensitive value
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", ""),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		Images: ImagesConfig{
			Provider:            strings.ToLower(getEnv("SITE_IMAGE_PROVIDER", "local")),
			Placeholder:         getEnv("SITE_IMAGE_PLACEHOLDER", "placeholder.png"),
			TransformationsFile: getEnv("SITE_IMAGE_TRANSFORMATIONS", ""),
			TagIndex:            strings.ToLower(getEnv("SITE_IMAGE_TAG_INDEX", TagIndexJSON)),
			Local: LocalConfig{
				Folder: getEnv("SITE_IMAGE_LOCAL_FOLDER", "public/uploads"),
				URL:    getEnv("SITE_IMAGE_LOCAL_URL", "/uploads"),
			},
			Cloudinary: CloudinaryConfig{
				CloudName:         getEnv("CLOUDINARY_CLOUD_NAME", ""),
				APIKey:            getEnv("CLOUDINARY_API_KEY", ""),
				APISecret:         getEnv("CLOUDINARY_API_SECRET", ""),
				BaseURL:           getEnv("CLOUDINARY_BASE_URL", ""),
				SecureURL:         getEnv("CLOUDINARY_SECURE_URL", ""),
				APIBaseURL:        getEnv("CLOUDINARY_API_BASE_URL", ""),
				PlaceholderSource: getEnv("CLOUDINARY_PLACEHOLDER_SOURCE", ""),
			},
		},
	}

	ts, err := LoadTransformations(cfg.Images.TransformationsFile)
	if err != nil {
		return nil, err
	}
	cfg.Images.Transformations = ts
	return cfg, nil
}

// LoadTransformations reads the transformation table from a YAML file:
//
//	thumbnail:
//	  width: 100
//	  height: 100
//	  crop: thumb
//	  gravity: face:center
//	  effect: sepia
//
// Keys other than width, height, crop, gravity and default_image are kept in Extra.
// An empty path yields model.DefaultTransformations.
func LoadTransformations(path string) (model.Transformations, error) {
	if path == "" {
		return model.DefaultTransformations(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read transformations: %w", err)
	}
	ts := model.Transformations{}
	if err := yaml.Unmarshal(data, &ts); err != nil {
		return nil, fmt.Errorf("parse transformations %s: %w", path, err)
	}
	for name := range ts {
		if strings.TrimSpace(name) == "" || strings.ContainsAny(name, `/\`) {
			return nil, fmt.Errorf("invalid transformation name %q", name)
		}
	}
	return ts, nil
}

// Validate checks the settings the selected provider needs.
func (c *AppConfig) Validate() error {
	var errs []error
	switch c.Images.Provider {
	case "local":
		if c.Images.Local.Folder == "" {
			errs = append(errs, errors.New("SITE_IMAGE_LOCAL_FOLDER is required for the local provider"))
		}
	case "cloudinary":
		cl := c.Images.Cloudinary
		if cl.CloudName == "" || cl.APIKey == "" || cl.APISecret == "" {
			errs = append(errs, errors.New("CLOUDINARY_CLOUD_NAME, CLOUDINARY_API_KEY and CLOUDINARY_API_SECRET are required for the cloudinary provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown SITE_IMAGE_PROVIDER %q", c.Images.Provider))
	}

	switch c.Images.TagIndex {
	case TagIndexJSON:
	case TagIndexPostgres:
		if c.Database.Host == "" || c.Database.Name == "" || c.Database.User == "" {
			errs = append(errs, errors.New("DB_HOST, DB_NAME and DB_USER are required for the postgres tag index"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown SITE_IMAGE_TAG_INDEX %q", c.Images.TagIndex))
	}
	return errors.Join(errs...)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}
