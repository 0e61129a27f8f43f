package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          int
	StoreDriver   string // "sqlite" or "redis"
	DBDSN         string
	DBMaxConns    int
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	ShortBaseURL  string // prefix of the shortUrl returned by /shorten
	FrontendURL   string // redirect target that records the visit
	IDLength      int
	CacheEnabled  bool
	CacheMaxItems int
	CacheTTLSecs  int
	CachePrewarm  int
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// Load reads the environment, after applying an optional .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port:          getint("PORT", 3004),
		StoreDriver:   getenv("STORE_DRIVER", "sqlite"),
		DBDSN:         getenv("DB_DSN", "file:linktally.db?_foreign_keys=on&_busy_timeout=5000&_txlock=immediate&_journal_mode=WAL"),
		DBMaxConns:    getint("DB_MAX_CONNS", 25),
		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       getint("REDIS_DB", 0),
		ShortBaseURL:  getenv("SHORT_BASE_URL", "https://pickand-partner-ten.vercel.app"),
		FrontendURL:   getenv("FRONTEND_URL", "https://finger-print-clicks.vercel.app"),
		IDLength:      getint("ID_LENGTH", 9),
		CacheEnabled:  getbool("CACHE_ENABLED", true),
		CacheMaxItems: getint("CACHE_MAX_ITEMS", 10000),
		CacheTTLSecs:  getint("CACHE_TTL_SECONDS", 3600),
		CachePrewarm:  getint("CACHE_PREWARM", 100),
	}
}
