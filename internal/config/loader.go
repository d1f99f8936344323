package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load 读取并解析 TOML 配置文件，同时注入默认值与校验逻辑。
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.toml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyGlobalDefaults(&cfg.Global)
	applyGitHubDefaults(&cfg.GitHub)
	applyImagesDefaults(&cfg.Images)
	applyClientDefaults(&cfg.Client)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	absStorage, err := filepath.Abs(cfg.Global.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("无法解析缓存目录: %w", err)
	}
	cfg.Global.StoragePath = absStorage

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenPort", 5000)
	v.SetDefault("BasePath", "")
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("StoragePath", "./storage")
	v.SetDefault("CacheTTL", "24h")
	v.SetDefault("UpstreamTimeout", "30s")
	v.SetDefault("GitHub.APIBase", "https://api.github.com")
	v.SetDefault("GitHub.UserAgent", "MoxoPixel-Cache/1.0")
	v.SetDefault("Images.AssetsPath", "./assets")
	v.SetDefault("Images.DumpDir", "img/dump")
	v.SetDefault("Images.CacheDir", "img/cache")
	v.SetDefault("Images.ImagesPerPage", 12)
	v.SetDefault("Images.WebPQuality", 80)
	v.SetDefault("Client.CachePath", "./storage/client-cache.db")
	// 与原站 localStorage 版一致：90000000ms，接近“手动清理前永久有效”。
	v.SetDefault("Client.CacheTTL", "90000000ms")
	v.SetDefault("Client.PlaceholderPath", "img/placeholder.png")
}

func applyGlobalDefaults(g *GlobalConfig) {
	if g.ListenPort == 0 {
		g.ListenPort = 5000
	}
	if g.CacheTTL.DurationValue() == 0 {
		g.CacheTTL = Duration(24 * time.Hour)
	}
	if g.UpstreamTimeout.DurationValue() == 0 {
		g.UpstreamTimeout = Duration(30 * time.Second)
	}
	if g.BasePath != "" {
		g.BasePath = "/" + strings.Trim(g.BasePath, "/")
	}
}

func applyGitHubDefaults(g *GitHubConfig) {
	if g.APIBase == "" {
		g.APIBase = "https://api.github.com"
	}
	g.APIBase = strings.TrimSuffix(g.APIBase, "/")
	if g.UserAgent == "" {
		g.UserAgent = "MoxoPixel-Cache/1.0"
	}
}

func applyImagesDefaults(i *ImagesConfig) {
	if i.ImagesPerPage == 0 {
		i.ImagesPerPage = 12
	}
	if i.WebPQuality == 0 {
		i.WebPQuality = 80
	}
	if i.DumpDir == "" {
		i.DumpDir = "img/dump"
	}
	if i.CacheDir == "" {
		i.CacheDir = "img/cache"
	}
}

func applyClientDefaults(c *ClientConfig) {
	if c.CacheTTL.DurationValue() == 0 {
		c.CacheTTL = Duration(90000000 * time.Millisecond)
	}
	if c.PlaceholderPath == "" {
		c.PlaceholderPath = "img/placeholder.png"
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			var d Duration
			if err := d.UnmarshalText([]byte(v)); err != nil {
				return nil, err
			}
			return d, nil
		case int, int32, int64, float64:
			seconds := reflect.ValueOf(v).Convert(reflect.TypeOf(int64(0))).Int()
			return Duration(time.Duration(seconds) * time.Second), nil
		default:
			return data, nil
		}
	}
}
