package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Upload    UploadConfig    `mapstructure:"upload"`
	Limits    LimitsConfig    `mapstructure:"limits"`
	Predict   PredictConfig   `mapstructure:"predict"`
	Dispatch  DispatchConfig  `mapstructure:"dispatch"`
	Segmenter SegmenterConfig `mapstructure:"segmenter"`
	Store     StoreConfig     `mapstructure:"store"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxConcurrent   int           `mapstructure:"max_concurrent"`
	QueueTimeout    time.Duration `mapstructure:"queue_timeout"`
}

type UploadConfig struct {
	MaxSize int64 `mapstructure:"max_size"`
}

type LimitsConfig struct {
	MaxPixels int `mapstructure:"max_pixels"`
}

// PredictConfig 请求未携带阈值时的默认值
type PredictConfig struct {
	BoxThreshold  float64 `mapstructure:"box_threshold"`
	TextThreshold float64 `mapstructure:"text_threshold"`
}

// DispatchConfig 两种模式的重叠抑制阈值，枚举模式更宽松
type DispatchConfig struct {
	EverythingIoU float64 `mapstructure:"everything_iou"`
	TargetedIoU   float64 `mapstructure:"targeted_iou"`
	// 仅限定向模式，枚举模式返回全部区域
	MaxCandidates int `mapstructure:"max_candidates"`
}

type SegmenterConfig struct {
	Backend string        `mapstructure:"backend"`
	Palette PaletteConfig `mapstructure:"palette"`
	Contour ContourConfig `mapstructure:"contour"`
	Remote  RemoteConfig  `mapstructure:"remote"`
	OCR     OCRConfig     `mapstructure:"ocr"`
}

type PaletteConfig struct {
	MaxSide        int     `mapstructure:"max_side"`
	BlurRadius     float64 `mapstructure:"blur_radius"`
	MergeTolerance float64 `mapstructure:"merge_tolerance"`
	MinAreaRatio   float64 `mapstructure:"min_area_ratio"`
}

type ContourConfig struct {
	MaxSide      int     `mapstructure:"max_side"`
	KernelSize   int     `mapstructure:"kernel_size"`
	MinAreaRatio float64 `mapstructure:"min_area_ratio"`
}

type RemoteConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
	Token   string        `mapstructure:"token"`
}

type OCRConfig struct {
	Language    string `mapstructure:"language"`
	TessdataDir string `mapstructure:"tessdata_dir"`
}

type StoreConfig struct {
	Backend    string        `mapstructure:"backend"`
	TTL        time.Duration `mapstructure:"ttl"`
	SQLitePath string        `mapstructure:"sqlite_path"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LogConfig struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// Load 从 YAML 文件加载配置，环境变量 MASKKIT_* 覆盖文件中的值
func Load(configPath string) (*Config, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	v := newViper()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return unmarshal(v)
}

// New 使用默认配置路径加载配置
func New() *Config {
	cfg, err := Load("config.yaml")
	if err != nil {
		// 如果加载失败，使用默认值和环境变量
		cfg, err = unmarshal(newViper())
		if err != nil {
			return getDefaultConfig()
		}
	}
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("MASKKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 检查取值范围
func (c *Config) Validate() error {
	if c.Server.MaxConcurrent < 1 {
		return fmt.Errorf("server.max_concurrent must be positive, got %d", c.Server.MaxConcurrent)
	}
	for name, v := range map[string]float64{
		"predict.box_threshold":   c.Predict.BoxThreshold,
		"predict.text_threshold":  c.Predict.TextThreshold,
		"dispatch.everything_iou": c.Dispatch.EverythingIoU,
		"dispatch.targeted_iou":   c.Dispatch.TargetedIoU,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be within [0,1], got %v", name, v)
		}
	}
	switch c.Store.Backend {
	case "none", "memory", "redis", "sqlite":
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	d := getDefaultConfig()

	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.mode", d.Server.Mode)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.max_concurrent", d.Server.MaxConcurrent)
	v.SetDefault("server.queue_timeout", d.Server.QueueTimeout)

	v.SetDefault("upload.max_size", d.Upload.MaxSize)
	v.SetDefault("limits.max_pixels", d.Limits.MaxPixels)

	v.SetDefault("predict.box_threshold", d.Predict.BoxThreshold)
	v.SetDefault("predict.text_threshold", d.Predict.TextThreshold)

	v.SetDefault("dispatch.everything_iou", d.Dispatch.EverythingIoU)
	v.SetDefault("dispatch.targeted_iou", d.Dispatch.TargetedIoU)
	v.SetDefault("dispatch.max_candidates", d.Dispatch.MaxCandidates)

	v.SetDefault("segmenter.backend", d.Segmenter.Backend)
	v.SetDefault("segmenter.palette.max_side", d.Segmenter.Palette.MaxSide)
	v.SetDefault("segmenter.palette.blur_radius", d.Segmenter.Palette.BlurRadius)
	v.SetDefault("segmenter.palette.merge_tolerance", d.Segmenter.Palette.MergeTolerance)
	v.SetDefault("segmenter.palette.min_area_ratio", d.Segmenter.Palette.MinAreaRatio)
	v.SetDefault("segmenter.contour.max_side", d.Segmenter.Contour.MaxSide)
	v.SetDefault("segmenter.contour.kernel_size", d.Segmenter.Contour.KernelSize)
	v.SetDefault("segmenter.contour.min_area_ratio", d.Segmenter.Contour.MinAreaRatio)
	v.SetDefault("segmenter.remote.url", d.Segmenter.Remote.URL)
	v.SetDefault("segmenter.remote.timeout", d.Segmenter.Remote.Timeout)
	v.SetDefault("segmenter.remote.token", d.Segmenter.Remote.Token)
	v.SetDefault("segmenter.ocr.language", d.Segmenter.OCR.Language)
	v.SetDefault("segmenter.ocr.tessdata_dir", d.Segmenter.OCR.TessdataDir)

	v.SetDefault("store.backend", d.Store.Backend)
	v.SetDefault("store.ttl", d.Store.TTL)
	v.SetDefault("store.sqlite_path", d.Store.SQLitePath)

	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.password", d.Redis.Password)
	v.SetDefault("redis.db", d.Redis.DB)

	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)
	v.SetDefault("log.compress", d.Log.Compress)
}

func getDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            ":8080",
			Mode:            "debug",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxConcurrent:   2,
			QueueTimeout:    60 * time.Second,
		},
		Upload: UploadConfig{
			MaxSize: 20 * 1024 * 1024,
		},
		Limits: LimitsConfig{
			MaxPixels: 40_000_000,
		},
		Predict: PredictConfig{
			BoxThreshold:  0.35,
			TextThreshold: 0.25,
		},
		Dispatch: DispatchConfig{
			EverythingIoU: 0.9,
			TargetedIoU:   0.7,
			MaxCandidates: 64,
		},
		Segmenter: SegmenterConfig{
			Backend: "palette",
			Palette: PaletteConfig{
				MaxSide:        512,
				BlurRadius:     1.5,
				MergeTolerance: 0.06,
				MinAreaRatio:   0.005,
			},
			Contour: ContourConfig{
				MaxSide:      1024,
				KernelSize:   5,
				MinAreaRatio: 0.005,
			},
			Remote: RemoteConfig{
				Timeout: 60 * time.Second,
			},
			OCR: OCRConfig{
				Language: "eng",
			},
		},
		Store: StoreConfig{
			Backend:    "memory",
			TTL:        24 * time.Hour,
			SQLitePath: "./data/maskkit.db",
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
		},
		Log: LogConfig{
			File:       "",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
	}
}
