package server

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/moxopixel/moxo-backend/internal/images"
)

// readmeRequest / profileRequest 映射 POST JSON body。
type readmeRequest struct {
	RepoURL string `json:"repo_url"`
}

type profileRequest struct {
	Type string `json:"type"`
}

func handleReadme(opts AppOptions) fiber.Handler {
	return func(c fiber.Ctx) error {
		repoURL := strings.TrimSpace(c.Query("repo_url"))
		if repoURL == "" && c.Method() == fiber.MethodPost {
			var req readmeRequest
			if err := json.Unmarshal(c.Body(), &req); err == nil {
				repoURL = strings.TrimSpace(req.RepoURL)
			}
		}
		if repoURL == "" {
			return badRequest(c, "No repository URL provided")
		}

		owner, repo, err := parseRepoURL(repoURL)
		if err != nil {
			return badRequest(c, err.Error())
		}

		if c.Query("clear_cache") == "true" {
			if err := opts.Readme.ClearCache(c.Context(), owner, repo); err != nil {
				opts.Logger.WithFields(logrus.Fields{
					"request_id": RequestID(c),
					"owner":      owner,
					"repo":       repo,
					"error":      err.Error(),
				}).Warn("清除 README 缓存失败")
			}
		}

		return c.JSON(opts.Readme.GetReadme(c.Context(), owner, repo))
	}
}

func handleProfile(opts AppOptions) fiber.Handler {
	return func(c fiber.Ctx) error {
		resourceType := strings.TrimSpace(c.Query("type"))
		if resourceType == "" && c.Method() == fiber.MethodPost {
			var req profileRequest
			if err := json.Unmarshal(c.Body(), &req); err == nil {
				resourceType = strings.TrimSpace(req.Type)
			}
		}
		if resourceType == "" {
			resourceType = "all"
		}

		if c.Query("clear_cache") == "true" {
			if err := opts.Profile.ClearAll(c.Context()); err != nil {
				opts.Logger.WithFields(logrus.Fields{
					"request_id": RequestID(c),
					"error":      err.Error(),
				}).Warn("清除 profile 缓存失败")
			}
		}

		switch resourceType {
		case "user":
			return c.JSON(opts.Profile.GetUser(c.Context()))
		case "repos":
			return c.JSON(opts.Profile.GetRepos(c.Context()))
		default:
			return c.JSON(opts.Profile.GetAll(c.Context()))
		}
	}
}

func handleConvertImage(opts AppOptions) fiber.Handler {
	return func(c fiber.Ctx) error {
		src := strings.TrimSpace(c.Query("src"))
		if src == "" {
			return badRequest(c, "No source image provided")
		}

		derivedPath, err := opts.Converter.GetOrCreate(c.Context(), src)
		if err != nil {
			opts.Logger.WithFields(logrus.Fields{
				"request_id": RequestID(c),
				"src":        src,
				"error":      err.Error(),
			}).Error("图片转换失败")

			var convErr *images.ConversionError
			if errors.As(err, &convErr) {
				return c.Status(fiber.StatusInternalServerError).
					SendString("Failed to convert image to WebP.")
			}
			return badRequest(c, err.Error())
		}

		c.Set(fiber.HeaderContentType, "image/webp")
		return c.SendFile(derivedPath)
	}
}

func handleListImages(opts AppOptions) fiber.Handler {
	return func(c fiber.Ctx) error {
		page := 1
		if raw := c.Query("page"); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil {
				page = parsed
			}
		}

		listing, err := opts.Lister.List(page)
		if err != nil {
			opts.Logger.WithFields(logrus.Fields{
				"request_id": RequestID(c),
				"page":       page,
				"error":      err.Error(),
			}).Error("枚举画廊目录失败")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"error":   "failed to list images",
			})
		}

		return c.JSON(listing)
	}
}

// parseRepoURL 从 GitHub 仓库 URL（或 owner/repo 简写）解析出 owner 与 repo。
func parseRepoURL(repoURL string) (owner, repo string, err error) {
	trimmed := strings.TrimPrefix(repoURL, "https://github.com/")
	trimmed = strings.TrimPrefix(trimmed, "http://github.com/")
	trimmed = strings.Trim(trimmed, "/")

	parts := strings.Split(trimmed, "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.New("Invalid GitHub URL format")
	}
	return parts[0], parts[1], nil
}

func badRequest(c fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}
