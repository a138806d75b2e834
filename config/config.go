package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "CUTOUT"

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Upload  UploadConfig  `mapstructure:"upload"`
	Segment SegmentConfig `mapstructure:"segment"`
	Matte   MatteConfig   `mapstructure:"matte"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Sweep   SweepConfig   `mapstructure:"sweep"`
	Log     LogConfig     `mapstructure:"log"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type UploadConfig struct {
	MaxSize     int64    `mapstructure:"max_size"`
	WorkDir     string   `mapstructure:"work_dir"`
	AllowedExts []string `mapstructure:"allowed_exts"`
}

// SegmentConfig 描述候选掩码来源（模型）以及推理并发
type SegmentConfig struct {
	Model         string        `mapstructure:"model"`
	Endpoint      string        `mapstructure:"endpoint"`
	Checkpoint    string        `mapstructure:"checkpoint"`
	InstallDir    string        `mapstructure:"install_dir"`
	Cascade       string        `mapstructure:"cascade"`
	MaxConcurrent int           `mapstructure:"max_concurrent"`
	QueueTimeout  time.Duration `mapstructure:"queue_timeout"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxSide       int           `mapstructure:"max_side"`
}

type MatteConfig struct {
	KernelSize int `mapstructure:"kernel_size"`
}

type CacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type SweepConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Schedule string        `mapstructure:"schedule"`
	MaxAge   time.Duration `mapstructure:"max_age"`
}

type LogConfig struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// Load 从 YAML 文件加载配置，环境变量 CUTOUT_* 覆盖文件中的值
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// New 使用默认配置路径加载配置
func New() *Config {
	// .env 不存在时忽略
	_ = godotenv.Load()

	cfg, err := Load("config.yaml")
	if err != nil {
		return getDefaultConfig()
	}
	return cfg
}

// Validate 检查会让流水线无法工作的取值
func (c *Config) Validate() error {
	if c.Matte.KernelSize <= 0 || c.Matte.KernelSize%2 == 0 {
		return fmt.Errorf("matte.kernel_size must be a positive odd number, got %d", c.Matte.KernelSize)
	}
	if c.Segment.MaxConcurrent <= 0 {
		return fmt.Errorf("segment.max_concurrent must be positive, got %d", c.Segment.MaxConcurrent)
	}
	if c.Segment.Model == "" {
		return fmt.Errorf("segment.model is required")
	}
	if len(c.Upload.AllowedExts) == 0 {
		return fmt.Errorf("upload.allowed_exts must not be empty")
	}
	// 请求扩展名按小写比较，这里统一成 ".png" 形式
	for i, ext := range c.Upload.AllowedExts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" || ext == "." {
			return fmt.Errorf("upload.allowed_exts contains an empty entry")
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		c.Upload.AllowedExts[i] = ext
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 5*time.Minute)

	v.SetDefault("upload.max_size", 10*1024*1024)
	v.SetDefault("upload.work_dir", "./uploads")
	v.SetDefault("upload.allowed_exts", []string{".png", ".jpg", ".jpeg"})

	v.SetDefault("segment.model", "sam_vit_b")
	v.SetDefault("segment.endpoint", "http://127.0.0.1:8188")
	v.SetDefault("segment.checkpoint", "segment-anything/sam_vit_b_01ec64.pth")
	v.SetDefault("segment.install_dir", "")
	v.SetDefault("segment.cascade", "haarcascade_frontalface_default.xml")
	v.SetDefault("segment.max_concurrent", 1)
	v.SetDefault("segment.queue_timeout", 30*time.Second)
	v.SetDefault("segment.timeout", 2*time.Minute)
	v.SetDefault("segment.max_side", 1024)

	v.SetDefault("matte.kernel_size", 21)

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.addr", "localhost:6379")
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.ttl", 24*time.Hour)

	v.SetDefault("sweep.enabled", true)
	v.SetDefault("sweep.schedule", "@every 10m")
	v.SetDefault("sweep.max_age", 30*time.Minute)

	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)
}

func getDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         ":8080",
			Mode:         "debug",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 5 * time.Minute,
		},
		Upload: UploadConfig{
			MaxSize:     10 * 1024 * 1024,
			WorkDir:     "./uploads",
			AllowedExts: []string{".png", ".jpg", ".jpeg"},
		},
		Segment: SegmentConfig{
			Model:         "sam_vit_b",
			Endpoint:      "http://127.0.0.1:8188",
			Checkpoint:    "segment-anything/sam_vit_b_01ec64.pth",
			Cascade:       "haarcascade_frontalface_default.xml",
			MaxConcurrent: 1,
			QueueTimeout:  30 * time.Second,
			Timeout:       2 * time.Minute,
			MaxSide:       1024,
		},
		Matte: MatteConfig{
			KernelSize: 21,
		},
		Cache: CacheConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			DB:      0,
			TTL:     24 * time.Hour,
		},
		Sweep: SweepConfig{
			Enabled:  true,
			Schedule: "@every 10m",
			MaxAge:   30 * time.Minute,
		},
		Log: LogConfig{
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
	}
}

// Default 返回内置默认配置，供 CLI 与测试使用
func Default() *Config {
	return getDefaultConfig()
}
