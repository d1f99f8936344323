package server

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/moxopixel/moxo-backend/internal/github"
	"github.com/moxopixel/moxo-backend/internal/images"
	"github.com/moxopixel/moxo-backend/internal/version"
)

// ReadmeProvider 是 /readme-cache 依赖的最小接口，测试可注入假实现。
type ReadmeProvider interface {
	GetReadme(ctx context.Context, owner, repo string) github.ReadmeResult
	ClearCache(ctx context.Context, owner, repo string) error
}

// ProfileProvider 是 /profile-cache 依赖的最小接口。
type ProfileProvider interface {
	GetUser(ctx context.Context) github.ProfileResult
	GetRepos(ctx context.Context) github.ProfileResult
	GetAll(ctx context.Context) github.AllResult
	ClearAll(ctx context.Context) error
}

// ImageConverter 是 /convert-image 依赖的最小接口。
type ImageConverter interface {
	GetOrCreate(ctx context.Context, src string) (string, error)
}

// ImageLister 是 /list-images 依赖的最小接口。
type ImageLister interface {
	List(page int) (images.Listing, error)
}

// AppOptions 汇总构造 Fiber 应用所需的依赖。
type AppOptions struct {
	Logger    *logrus.Logger
	Readme    ReadmeProvider
	Profile   ProfileProvider
	Converter ImageConverter
	Lister    ImageLister

	// BasePath 是部署相关的路径前缀（本地 vs 生产），为空表示挂在根上。
	BasePath string
}

const contextKeyRequestID = "_moxo_request_id"

// NewApp builds the Fiber application with request-ID middleware, CORS and
// structured error handling, and mounts all endpoints under BasePath.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Readme == nil {
		return nil, errors.New("readme provider is required")
	}
	if opts.Profile == nil {
		return nil, errors.New("profile provider is required")
	}
	if opts.Converter == nil {
		return nil, errors.New("image converter is required")
	}
	if opts.Lister == nil {
		return nil, errors.New("image lister is required")
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestIDMiddleware())
	// 与原站 PHP endpoint 的响应头对齐，前端跨域调用不受部署环境影响。
	app.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))

	registerRoutes(app, opts)

	return app, nil
}

// requestIDMiddleware 为每个请求生成 ID，贯穿日志与响应头。
func requestIDMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

// RequestID returns the request identifier stored by the middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if id, ok := value.(string); ok {
			return id
		}
	}
	return ""
}

func registerRoutes(app *fiber.App, opts AppOptions) {
	root := app.Group(opts.BasePath)

	root.Get("/healthz", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"version": version.Full(),
		})
	})

	root.Get("/readme-cache", handleReadme(opts))
	root.Post("/readme-cache", handleReadme(opts))
	root.Get("/profile-cache", handleProfile(opts))
	root.Post("/profile-cache", handleProfile(opts))
	root.Get("/convert-image", handleConvertImage(opts))
	root.Get("/list-images", handleListImages(opts))
}
