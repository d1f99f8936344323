package images

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	// 与原站一致，支持 jpeg/gif/png 三种源格式。
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/chai2010/webp"
	"github.com/sirupsen/logrus"
)

// ConversionError 表示源图无法转换（不支持的格式、解码失败等），
// 属终端错误，由 HTTP 层转成 500。
type ConversionError struct {
	Source string
	Err    error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("convert %s: %v", e.Source, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// Converter 按需把源图转成 WebP 并落盘复用：同一源只转一次，之后纯读。
type Converter struct {
	assetsPath string
	cacheDir   string
	quality    float32
	logger     *logrus.Logger

	// encode 可在测试中替换以统计转换次数。
	encode func(w io.Writer, img image.Image, quality float32) error

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewConverter 构造转换器并确保派生缓存目录存在。
func NewConverter(assetsPath, cacheDir string, quality int, logger *logrus.Logger) (*Converter, error) {
	if assetsPath == "" {
		return nil, errors.New("assets path required")
	}
	if quality <= 0 || quality > 100 {
		return nil, fmt.Errorf("invalid webp quality: %d", quality)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	abs, err := filepath.Abs(assetsPath)
	if err != nil {
		return nil, fmt.Errorf("resolve assets path: %w", err)
	}

	derived := filepath.Join(abs, filepath.FromSlash(cacheDir))
	if err := os.MkdirAll(derived, 0o755); err != nil {
		return nil, fmt.Errorf("create image cache dir: %w", err)
	}

	return &Converter{
		assetsPath: abs,
		cacheDir:   derived,
		quality:    float32(quality),
		logger:     logger,
		encode: func(w io.Writer, img image.Image, quality float32) error {
			return webp.Encode(w, img, &webp.Options{Quality: quality})
		},
		locks: make(map[string]*sync.Mutex),
	}, nil
}

// GetOrCreate 返回 src 对应的派生 WebP 的绝对路径。派生文件已存在时直接
// 返回，不做任何新鲜度检查（源文件视为不可变）；不存在时同步解码、转换、
// 原子落盘后返回。同一派生键同时只会有一次转换在进行。
func (c *Converter) GetOrCreate(ctx context.Context, src string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	sourcePath, err := c.resolveSource(src)
	if err != nil {
		return "", err
	}

	stem := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	derivedPath := filepath.Join(c.cacheDir, stem+".webp")

	unlock := c.lockDerived(derivedPath)
	defer unlock()

	if _, err := os.Stat(derivedPath); err == nil {
		return derivedPath, nil
	}

	if err := c.convert(sourcePath, derivedPath); err != nil {
		return "", err
	}

	c.logger.WithFields(logrus.Fields{
		"source":  src,
		"derived": derivedPath,
	}).Info("生成派生 WebP")

	return derivedPath, nil
}

// resolveSource 把相对路径解析到 assets 根目录下，拒绝目录穿越。
func (c *Converter) resolveSource(src string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(strings.TrimPrefix(src, "/")))
	full := filepath.Join(c.assetsPath, cleaned)
	if !strings.HasPrefix(full, c.assetsPath+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid source path: %s", src)
	}
	return full, nil
}

func (c *Converter) convert(sourcePath, derivedPath string) error {
	f, err := os.Open(sourcePath)
	if err != nil {
		return &ConversionError{Source: sourcePath, Err: err}
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return &ConversionError{Source: sourcePath, Err: err}
	}

	tempFile, err := os.CreateTemp(c.cacheDir, ".webp-*")
	if err != nil {
		return &ConversionError{Source: sourcePath, Err: err}
	}
	tempName := tempFile.Name()

	err = c.encode(tempFile, img, c.quality)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		// 转换失败不留半成品。
		os.Remove(tempName)
		return &ConversionError{Source: sourcePath, Err: err}
	}

	if err := os.Rename(tempName, derivedPath); err != nil {
		os.Remove(tempName)
		return &ConversionError{Source: sourcePath, Err: err}
	}
	return nil
}

func (c *Converter) lockDerived(derivedPath string) func() {
	c.mu.Lock()
	lock := c.locks[derivedPath]
	if lock == nil {
		lock = &sync.Mutex{}
		c.locks[derivedPath] = lock
	}
	c.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
