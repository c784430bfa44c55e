package config

import (
	"os"
	"strconv"
)

type Config struct {
	DB     DBConfig
	MinIO  MinIOConfig
	JWT    JWTConfig
	Server ServerConfig
	Media  MediaConfig
	Admin  AdminConfig
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type JWTConfig struct {
	Secret          string
	ExpirationHours int
}

type ServerConfig struct {
	Port       string
	Production bool
}

// MediaConfig holds the public origin used to resolve relative media paths
// into absolute URLs at response time.
type MediaConfig struct {
	BaseURL string
}

// AdminConfig carries the deprecated machine-to-machine credentials and the
// bootstrap admin account seeded on first start.
type AdminConfig struct {
	APIKey       string
	LegacyToken  string
	SeedName     string
	SeedEmail    string
	SeedPassword string
}

func Load() *Config {
	return &Config{
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "wildatlas"),
			Password: getEnv("DB_PASSWORD", "wildatlas_secret"),
			Name:     getEnv("DB_NAME", "wildatlas"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: getEnv("MINIO_ACCESS_KEY", "wildatlas"),
			SecretKey: getEnv("MINIO_SECRET_KEY", "wildatlas_secret"),
			Bucket:    getEnv("MINIO_BUCKET", "wildatlas-media"),
			UseSSL:    getEnvAsBool("MINIO_USE_SSL", false),
		},
		JWT: JWTConfig{
			Secret:          getEnv("JWT_SECRET", "change-me-in-production"),
			ExpirationHours: getEnvAsInt("JWT_EXPIRATION_HOURS", 168),
		},
		Server: ServerConfig{
			Port:       getEnv("SERVER_PORT", "8080"),
			Production: getEnv("APP_ENV", "development") == "production",
		},
		Media: MediaConfig{
			BaseURL: getEnv("MEDIA_BASE_URL", "http://localhost:9000/wildatlas-media"),
		},
		Admin: AdminConfig{
			APIKey:       getEnv("ADMIN_API_KEY", ""),
			LegacyToken:  getEnv("ADMIN_BEARER_TOKEN", ""),
			SeedName:     getEnv("ADMIN_NAME", "System Admin"),
			SeedEmail:    getEnv("ADMIN_EMAIL", "admin@wildatlas.local"),
			SeedPassword: getEnv("ADMIN_PASSWORD", "admin123"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}
