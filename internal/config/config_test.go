package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siteimage/internal/model"
)

func TestLoad(t *testing.T) {
	// Save current env and restore later
	origHost := os.Getenv("DB_HOST")
	defer os.Setenv("DB_HOST", origHost)

	os.Setenv("DB_HOST", "test-host")
	os.Setenv("DB_MAX_OPEN_CONNS", "20")
	os.Setenv("MINIO_USE_SSL", "true")

	os.Setenv("SITE_IMAGE_PROVIDER", "Cloudinary")
	defer os.Unsetenv("SITE_IMAGE_PROVIDER")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "test-host", cfg.Database.Host)
	assert.Equal(t, 20, cfg.Database.MaxOpenConns)
	assert.True(t, cfg.MinIO.UseSSL)
	assert.Equal(t, "cloudinary", cfg.Images.Provider)
	assert.Equal(t, TagIndexJSON, cfg.Images.TagIndex)
	assert.Equal(t, "/uploads", cfg.Images.Local.URL)
	assert.Equal(t, model.DefaultTransformations(), cfg.Images.Transformations)
}

func TestLoadTransformations(t *testing.T) {
	dir := t.TempDir()

	t.Run("yaml with extra keys", func(t *testing.T) {
		p := filepath.Join(dir, "transformations.yaml")
		require.NoError(t, os.WriteFile(p, []byte(`
thumbnail:
  width: 100
  height: 100
  crop: thumb
  gravity: face:center
banner:
  width: 1200
  effect: sepia
  quality: 80
`), 0o644))

		ts, err := LoadTransformations(p)
		require.NoError(t, err)
		assert.Equal(t, []string{"banner", "thumbnail"}, ts.Names())
		assert.Equal(t, model.Transformation{Width: 100, Height: 100, Crop: "thumb", Gravity: "face:center"}, ts["thumbnail"])
		assert.Equal(t, 1200, ts["banner"].Width)
		assert.Equal(t, map[string]any{"effect": "sepia", "quality": 80}, ts["banner"].Extra)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadTransformations(filepath.Join(dir, "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("invalid name", func(t *testing.T) {
		p := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(p, []byte("\"a/b\":\n  width: 1\n"), 0o644))
		_, err := LoadTransformations(p)
		assert.Error(t, err)
	})

	t.Run("default", func(t *testing.T) {
		ts, err := LoadTransformations("")
		require.NoError(t, err)
		assert.Contains(t, ts, "thumbnail")
	})
}

func TestAppConfig_Validate(t *testing.T) {
	valid := func() *AppConfig {
		return &AppConfig{Images: ImagesConfig{
			Provider: "local",
			TagIndex: TagIndexJSON,
			Local:    LocalConfig{Folder: "uploads"},
		}}
	}

	tests := []struct {
		name    string
		mutate  func(c *AppConfig)
		wantErr bool
	}{
		{name: "local", mutate: func(c *AppConfig) {}},
		{name: "local without folder", mutate: func(c *AppConfig) { c.Images.Local.Folder = "" }, wantErr: true},
		{name: "unknown provider", mutate: func(c *AppConfig) { c.Images.Provider = "s3" }, wantErr: true},
		{name: "cloudinary without credentials", mutate: func(c *AppConfig) { c.Images.Provider = "cloudinary" }, wantErr: true},
		{name: "cloudinary", mutate: func(c *AppConfig) {
			c.Images.Provider = "cloudinary"
			c.Images.Cloudinary = CloudinaryConfig{CloudName: "demo", APIKey: "k", APISecret: "s"}
		}},
		{name: "postgres index without database", mutate: func(c *AppConfig) { c.Images.TagIndex = TagIndexPostgres }, wantErr: true},
		{name: "postgres index", mutate: func(c *AppConfig) {
			c.Images.TagIndex = TagIndexPostgres
			c.Database = DatabaseConfig{Host: "db", Name: "images", User: "app"}
		}},
		{name: "unknown index", mutate: func(c *AppConfig) { c.Images.TagIndex = "redis" }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGetEnv(t *testing.T) {
	key := "TEST_ENV_VAR"
	os.Setenv(key, "value")
	defer os.Unsetenv(key)

	assert.Equal(t, "value", getEnv(key, "default"))
	assert.Equal(t, "default", getEnv("NON_EXISTENT", "default"))
}

func TestGetEnvBool(t *testing.T) {
	key := "TEST_BOOL_VAR"

	os.Setenv(key, "true")
	assert.True(t, getEnvBool(key, false))

	os.Setenv(key, "false")
	assert.False(t, getEnvBool(key, true))

	os.Setenv(key, "invalid")
	assert.True(t, getEnvBool(key, true))

	os.Unsetenv(key)
	assert.True(t, getEnvBool(key, true))
}

func TestGetEnvInt(t *testing.T) {
	key := "TEST_INT_VAR"

	os.Setenv(key, "123")
	assert.Equal(t, 123, getEnvInt(key, 0))

	os.Setenv(key, "invalid")
	assert.Equal(t, 10, getEnvInt(key, 10))

	os.Unsetenv(key)
	assert.Equal(t, 10, getEnvInt(key, 10))
}
