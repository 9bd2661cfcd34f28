package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ==================== 配置结构 ====================

type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	DB      DBConfig      `mapstructure:"db"`
	Scrape  ScrapeConfig  `mapstructure:"scrape"`
	Rakuten RakutenConfig `mapstructure:"rakuten"`
	Amazon  AmazonConfig  `mapstructure:"amazon"`
	Catalog CatalogConfig `mapstructure:"catalog"`
	Storage StorageConfig `mapstructure:"storage"`
	AI      AIConfig      `mapstructure:"ai"`
	Cron    CronConfig    `mapstructure:"cron"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// RateLimit 每个客户端每秒请求数，0 表示不限流
	RateLimit float64 `mapstructure:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Encoding    string `mapstructure:"encoding"`
	Development bool   `mapstructure:"development"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogSQL          bool          `mapstructure:"log_sql"`
}

// ScrapeConfig 抓取客户端配置
type ScrapeConfig struct {
	UserAgent    string        `mapstructure:"user_agent"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Retries      int           `mapstructure:"retries"`
	Backoff      time.Duration `mapstructure:"backoff"`
	ProductDelay time.Duration `mapstructure:"product_delay"`
}

type RakutenConfig struct {
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	BaseURL      string        `mapstructure:"base_url"`
	Scope        string        `mapstructure:"scope"`
	Timeout      time.Duration `mapstructure:"timeout"`
	SyncMax      int           `mapstructure:"sync_max"`
}

type AmazonConfig struct {
	ShopID        string        `mapstructure:"shop_id"`
	BaseURL       string        `mapstructure:"base_url"`
	AssociateTag  string        `mapstructure:"associate_tag"`
	ChecklistPath string        `mapstructure:"checklist_path"`
	MaxPages      int           `mapstructure:"max_pages"`
	CycleDelay    time.Duration `mapstructure:"cycle_delay"`
}

// CatalogConfig 目录相关文件路径
type CatalogConfig struct {
	CategoriesFile string `mapstructure:"categories_file"`
	FiltersFile    string `mapstructure:"filters_file"`
	TempProducts   string `mapstructure:"temp_products"`
}

type StorageConfig struct {
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Endpoint  string `mapstructure:"endpoint"`
	CDNDomain string `mapstructure:"cdn_domain"`
	BasePath  string `mapstructure:"base_path"`
}

type AIConfig struct {
	APIKey    string `mapstructure:"api_key"`
	TextModel string `mapstructure:"text_model"`
}

type CronConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	ThreadBackfill string        `mapstructure:"thread_backfill"`
	RakutenSync    string        `mapstructure:"rakuten_sync"`
	RunTimeout     time.Duration `mapstructure:"run_timeout"`
}

// ==================== 加载 ====================

// legacyEnv 兼容旧脚本使用的环境变量名
var legacyEnv = map[string]string{
	"db.dsn":                "DATABASE_URL",
	"rakuten.client_id":     "RAKUTEN_CLIENT_ID",
	"rakuten.client_secret": "RAKUTEN_CLIENT_SECRET",
	"ai.api_key":            "GEMINI_API_KEY",
	"storage.bucket":        "AWS_BUCKET",
	"storage.region":        "AWS_REGION",
	"storage.access_key":    "AWS_ACCESS_KEY_ID",
	"storage.secret_key":    "AWS_SECRET_ACCESS_KEY",
	"storage.cdn_domain":    "AWS_CDN_DOMAIN",
	"amazon.associate_tag":  "AMAZON_ASSOCIATE_TAG",
}

// LoadDotEnv 依次加载 .env.local 与 .env，已存在的变量不会被覆盖
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env.local", ".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		_ = godotenv.Load(f)
	}
}

// Load 读取配置，path 为空或文件不存在时只使用默认值与环境变量
func Load(path string) (Config, error) {
	LoadDotEnv()

	v := viper.New()
	v.SetEnvPrefix("ELFBABY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	for key, env := range legacyEnv {
		_ = v.BindEnv(key, "ELFBABY_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env)
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return Config{}, err
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.rate_limit", 20)
	v.SetDefault("server.rate_burst", 40)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("db.dsn", "host=localhost user=elfbaby password=elfbaby dbname=elfbaby port=5432 sslmode=disable")
	v.SetDefault("db.max_open_conns", 100)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", "1h")
	v.SetDefault("db.log_sql", false)

	v.SetDefault("scrape.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	v.SetDefault("scrape.timeout", "30s")
	v.SetDefault("scrape.retries", 3)
	v.SetDefault("scrape.backoff", "2s")
	v.SetDefault("scrape.product_delay", "0s")

	v.SetDefault("rakuten.base_url", "https://api.linksynergy.com")
	v.SetDefault("rakuten.scope", "PRODUCTION")
	v.SetDefault("rakuten.timeout", "30s")
	v.SetDefault("rakuten.sync_max", 20)

	v.SetDefault("amazon.shop_id", "9f947e90-eae1-4651-ba9f-7f8174375be8")
	v.SetDefault("amazon.base_url", "https://www.amazon.com")
	v.SetDefault("amazon.checklist_path", "agents/data/amazon-bestsellers-checklist.md")
	v.SetDefault("amazon.max_pages", 10)
	v.SetDefault("amazon.cycle_delay", "2s")

	v.SetDefault("catalog.categories_file", "agents/data/categories.md")
	v.SetDefault("catalog.filters_file", "agents/data/filters.md")
	v.SetDefault("catalog.temp_products", "products-temp.json")

	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.base_path", "elfbaby")
	v.SetDefault("ai.text_model", "gemini-1.5-flash")

	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.thread_backfill", "0 0 * * * *")
	v.SetDefault("cron.rakuten_sync", "")
	v.SetDefault("cron.run_timeout", "1h")
}
