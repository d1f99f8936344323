package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"24h" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// GlobalConfig 描述服务端运行时行为，所有 endpoint 共享同一份参数。
type GlobalConfig struct {
	ListenPort      int      `mapstructure:"ListenPort"`
	BasePath        string   `mapstructure:"BasePath"`
	LogLevel        string   `mapstructure:"LogLevel"`
	LogFilePath     string   `mapstructure:"LogFilePath"`
	LogMaxSize      int      `mapstructure:"LogMaxSize"`
	LogMaxBackups   int      `mapstructure:"LogMaxBackups"`
	LogCompress     bool     `mapstructure:"LogCompress"`
	StoragePath     string   `mapstructure:"StoragePath"`
	CacheTTL        Duration `mapstructure:"CacheTTL"`
	UpstreamTimeout Duration `mapstructure:"UpstreamTimeout"`
}

// GitHubConfig 决定 README / Profile 缓存服务如何访问 GitHub API。
type GitHubConfig struct {
	APIBase   string `mapstructure:"APIBase"`
	User      string `mapstructure:"User"`
	UserAgent string `mapstructure:"UserAgent"`
}

// ImagesConfig 控制画廊目录与派生资源缓存。
type ImagesConfig struct {
	AssetsPath    string `mapstructure:"AssetsPath"`
	DumpDir       string `mapstructure:"DumpDir"`
	CacheDir      string `mapstructure:"CacheDir"`
	ImagesPerPage int    `mapstructure:"ImagesPerPage"`
	WebPQuality   int    `mapstructure:"WebPQuality"`
}

// ClientConfig 控制内置客户端库（请求缓存、图片加载器）的行为。
type ClientConfig struct {
	CachePath       string   `mapstructure:"CachePath"`
	CacheTTL        Duration `mapstructure:"CacheTTL"`
	PlaceholderPath string   `mapstructure:"PlaceholderPath"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global GlobalConfig `mapstructure:",squash"`
	GitHub GitHubConfig `mapstructure:"GitHub"`
	Images ImagesConfig `mapstructure:"Images"`
	Client ClientConfig `mapstructure:"Client"`
}
