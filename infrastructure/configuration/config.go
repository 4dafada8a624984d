package configuration

import (
	"fmt"
	"os"

	"yt-fetcher/infrastructure/logger"

	"github.com/spf13/viper"
)

type Config struct {
	Database    Database    `json:"database"`
	App         App         `json:"app"`
	Pubsub      Pubsub      `json:"pubsub"`
	RedisClient RedisClient `json:"redisClient"`
	Logger      Logger      `json:"logger"`
	YouTube     YouTube     `json:"youtube"`
	Sync        Sync        `json:"sync"`
}

type App struct {
	Name string `json:"name"`
}

type Database struct {
	Psql  Db `json:"psql"`
	MySql Db `json:"mysql"`
	Mssql Db `json:"mssql"`
}

type Db struct {
	Name     string `json:"name"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	SSLMode  string `json:"sslMode"`
}

type Pubsub struct {
	ProjectID       string `json:"projectID"`
	KeyTopic        string `json:"keyTopic"`
	KeySubscription string `json:"keySubscription"`
}

type RedisClient struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Password string `json:"password"`
	Database int    `json:"database"`
	Username string `json:"username"`
	Prefix   string `json:"prefix"`
}

type Logger struct {
	Format string `json:"format"`
	Level  string `json:"level"`
}

// YouTube holds the raw client settings. Durations are Go duration strings ("1s", "1h").
type YouTube struct {
	APIKeys           []string `json:"apiKeys"`
	Endpoint          string   `json:"endpoint"`
	Timeout           string   `json:"timeout"`
	MaxAttempts       int      `json:"maxAttempts"`
	BackoffBase       string   `json:"backoffBase"`
	BackoffCap        string   `json:"backoffCap"`
	CacheTTL          string   `json:"cacheTTL"`
	CacheBackend      string   `json:"cacheBackend"`
	MaxPages          int      `json:"maxPages"`
	BatchSize         int      `json:"batchSize"`
	MaxConcurrency    int      `json:"maxConcurrency"`
	RequestsPerSecond float64  `json:"requestsPerSecond"`
	QuotaCooldown     string   `json:"quotaCooldown"`
	KeySource         string   `json:"keySource"`
	KeyCacheTTL       string   `json:"keyCacheTTL"`
}

// Sync configures the periodic channel sync job.
type Sync struct {
	Channels   []string `json:"channels"`
	Interval   string   `json:"interval"`
	Lookback   string   `json:"lookback"`
	MaxResults int      `json:"maxResults"`
}

var C Config

func init() {
	LoadConfig()
	initDatabase(&C)
	initLogger(&C)
}

func LoadConfig() {
	name := getConfig()
	viper.SetConfigName(name)
	viper.SetConfigType("json")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../")
	viper.AddConfigPath("../../")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			logger.GetLogger().Warn("Config file not found")
		} else {
			logger.GetLogger().WithField("error", err).Error("Error reading config file")
		}
	}

	logger.GetLogger().WithField("config", name).Info("Config set up successfully")
	if err := viper.Unmarshal(&C); err != nil {
		logger.GetLogger().WithField("error", err).Error("Viper unable to decode into struct")
	}
}

func getConfig() string {
	name := "config"
	env := os.Getenv("ENV")
	if env != "" {
		name = fmt.Sprintf("%s-%s", name, env)
	}
	return name
}

func initDatabase(C *Config) {
	C.Database.Psql.Name = getConfigValue(C.Database.Psql.Name, "DB_NAME", "")
	C.Database.Psql.Host = getConfigValue(C.Database.Psql.Host, "DB_HOST", "")
	C.Database.Psql.Port = getConfigValue(C.Database.Psql.Port, "DB_PORT", "5432")
	C.Database.Psql.User = getConfigValue(C.Database.Psql.User, "DB_USER", "")
	C.Database.Psql.Password = getConfigValue(C.Database.Psql.Password, "DB_PASSWORD", "")
	C.Database.Psql.SSLMode = getConfigValue(C.Database.Psql.SSLMode, "DB_SSLMODE", "disable")

	C.Database.MySql.Name = getConfigValue(C.Database.MySql.Name, "MYSQL_DB_NAME", "")
	C.Database.MySql.Host = getConfigValue(C.Database.MySql.Host, "MYSQL_HOST", "")
	C.Database.MySql.Port = getConfigValue(C.Database.MySql.Port, "MYSQL_PORT", "3306")
	C.Database.MySql.User = getConfigValue(C.Database.MySql.User, "MYSQL_USER", "")
	C.Database.MySql.Password = getConfigValue(C.Database.MySql.Password, "MYSQL_PASSWORD", "")

	// Optional MSSQL config via environment variables (Azure SQL in production)
	C.Database.Mssql.Name = getConfigValue(C.Database.Mssql.Name, "MSSQL_DB_NAME", "")
	C.Database.Mssql.Host = getConfigValue(C.Database.Mssql.Host, "MSSQL_HOST", "localhost")
	C.Database.Mssql.Port = getConfigValue(C.Database.Mssql.Port, "MSSQL_PORT", "1433")
	C.Database.Mssql.User = getConfigValue(C.Database.Mssql.User, "MSSQL_USER", "sa")
	C.Database.Mssql.Password = getConfigValue(C.Database.Mssql.Password, "MSSQL_PASSWORD", "")

	logger.GetLogger().WithFields(map[string]interface{}{
		"psqlHost":  C.Database.Psql.Host,
		"mysqlHost": C.Database.MySql.Host,
		"mssqlHost": C.Database.Mssql.Host,
	}).Info("Database configuration")
}

func initLogger(C *Config) {
	// LOG_LEVEL in the environment was already applied by the logger package.
	if os.Getenv("LOG_LEVEL") == "" && C.Logger.Level != "" {
		logger.SetLevel(C.Logger.Level)
	}
}
