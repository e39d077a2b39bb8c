package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
type Config struct {
	ListenAddr     string
	TempDir        string // 队列条目的临时下载目录，启动时清空
	JWTSecret      string
	AllowedOrigins []string

	// 媒体解析
	YtDlpPath          string
	YtDlpCookieBrowser string
	YtDlpProxy         string
	AudioFormat        string
	FFprobePath        string
	DownloadWorkers    int
	ThumbnailSize      int
	MetadataCacheTTL   time.Duration

	// 数据库配置（DBHost 为空时不做成员校验）
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Redis配置（RedisHost 为空时关闭在线状态与元数据缓存）
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	PresenceTTL   time.Duration

	LogLevel string
	LogFile  string
}

const envPrefix = "STUFFCHAT_"

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(envPrefix + key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(envPrefix + key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(envPrefix + key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on existing environment variables and defaults.")
	}

	return &Config{
		ListenAddr:     getEnv("LISTEN_ADDR", ":8080"),
		TempDir:        getEnv("TEMP_DIR", "temp"),
		JWTSecret:      getEnv("JWT_SECRET", "dev-secret-change-me"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "")),

		YtDlpPath:          getEnv("YTDLP_PATH", "yt-dlp"),
		YtDlpCookieBrowser: getEnv("YTDLP_COOKIES_BROWSER", ""),
		YtDlpProxy:         getEnv("YTDLP_PROXY", ""),
		AudioFormat:        getEnv("AUDIO_FORMAT", "opus"),
		FFprobePath:        getEnv("FFPROBE_PATH", "ffprobe"),
		DownloadWorkers:    getEnvInt("DOWNLOAD_WORKERS", 8),
		ThumbnailSize:      getEnvInt("THUMBNAIL_SIZE", 320),
		MetadataCacheTTL:   getEnvDuration("METADATA_CACHE_TTL", 24*time.Hour),

		DBHost:     getEnv("DB_HOST", ""),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv(envPrefix + "DB_PASSWORD"),
		DBName:     getEnv("DB_NAME", "stuffchat"),

		RedisHost:     getEnv("REDIS_HOST", ""),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		PresenceTTL:   getEnvDuration("PRESENCE_TTL", 60*time.Second),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),
	}
}

// DatabaseEnabled 是否配置了 MySQL
func (c *Config) DatabaseEnabled() bool {
	return c.DBHost != ""
}

// RedisEnabled 是否配置了 Redis
func (c *Config) RedisEnabled() bool {
	return c.RedisHost != ""
}
