package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Storage drivers understood by store.Open.
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

// Config holds application level configuration loaded from environment variables.
type Config struct {
	ServerPort    string
	StorageDriver string
	MySQLDSN      string
	SQLitePath    string
	MongoURI      string
	MongoDatabase string
	RedisAddr     string
	RedisDB       int
	RedisPass     string
	JWTSecret     string
	SwaggerHost   string
	Timezone      string
	LogLevel      string
	RolloverAt    string
	BcryptCost    int
	ResetDB       bool
}

// Load builds Config from environment with sensible defaults. Values from a
// local .env file are applied first without overriding the real environment.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServerPort:    getEnv("SERVER_PORT", "8080"),
		StorageDriver: strings.ToLower(getEnv("STORAGE_DRIVER", DriverMySQL)),
		MySQLDSN:      getEnv("MYSQL_DSN", "user:password@tcp(localhost:3306)/todo?charset=utf8mb4&parseTime=True&loc=UTC"),
		SQLitePath:    getEnv("SQLITE_PATH", "todo.db"),
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnv("MONGO_DATABASE", "todoapp"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		RedisPass:     os.Getenv("REDIS_PASSWORD"),
		JWTSecret:     getEnv("JWT_SECRET", "change-me"),
		SwaggerHost:   os.Getenv("SWAGGER_HOST"),
		Timezone:      getEnv("APP_TIMEZONE", "Asia/Kolkata"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		RolloverAt:    getEnv("ROLLOVER_AT", "00:05"),
		BcryptCost:    getEnvInt("BCRYPT_COST", 10),
		ResetDB:       os.Getenv("RESET_DB") == "true",
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}
