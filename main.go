package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/moxopixel/moxo-backend/internal/cache"
	"github.com/moxopixel/moxo-backend/internal/config"
	"github.com/moxopixel/moxo-backend/internal/fetch"
	"github.com/moxopixel/moxo-backend/internal/github"
	"github.com/moxopixel/moxo-backend/internal/images"
	"github.com/moxopixel/moxo-backend/internal/logging"
	"github.com/moxopixel/moxo-backend/internal/render"
	"github.com/moxopixel/moxo-backend/internal/server"
	"github.com/moxopixel/moxo-backend/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["github_user"] = cfg.GitHub.User
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	// 启动遵循“配置 → 磁盘缓存 → Fetcher → 各服务 → Fiber server”顺序，
	// 保证所有 endpoint 共享同一份缓存与上游连接池。
	store, err := cache.NewStore(cfg.Global.StoragePath)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化缓存目录失败: %v\n", err)
		return 1
	}

	fetcher, err := fetch.NewDefaultFetcher(cfg.Global.UpstreamTimeout.DurationValue(), logger)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化上游客户端失败: %v\n", err)
		return 1
	}

	chain := render.NewDefaultChain(fetcher, cfg.GitHub.APIBase, cfg.GitHub.UserAgent, logger)

	readmeService, err := github.NewReadmeService(github.ReadmeOptions{
		Store:     store,
		Fetcher:   fetcher,
		Chain:     chain,
		APIBase:   cfg.GitHub.APIBase,
		UserAgent: cfg.GitHub.UserAgent,
		TTL:       cfg.Global.CacheTTL.DurationValue(),
		Logger:    logger,
	})
	if err != nil {
		fmt.Fprintf(stdErr, "初始化 README 服务失败: %v\n", err)
		return 1
	}

	profileService, err := github.NewProfileService(github.ProfileOptions{
		Store:     store,
		Fetcher:   fetcher,
		APIBase:   cfg.GitHub.APIBase,
		User:      cfg.GitHub.User,
		UserAgent: cfg.GitHub.UserAgent,
		TTL:       cfg.Global.CacheTTL.DurationValue(),
		Logger:    logger,
	})
	if err != nil {
		fmt.Fprintf(stdErr, "初始化 profile 服务失败: %v\n", err)
		return 1
	}

	converter, err := images.NewConverter(cfg.Images.AssetsPath, cfg.Images.CacheDir, cfg.Images.WebPQuality, logger)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化图片转换器失败: %v\n", err)
		return 1
	}

	lister, err := images.NewLister(
		filepath.Join(cfg.Images.AssetsPath, filepath.FromSlash(cfg.Images.DumpDir)),
		cfg.Images.ImagesPerPage,
	)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化画廊失败: %v\n", err)
		return 1
	}

	fields := logging.BaseFields("startup", opts.configPath)
	fields["listen_port"] = cfg.Global.ListenPort
	fields["base_path"] = cfg.Global.BasePath
	fields["github_user"] = cfg.GitHub.User
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if err := startHTTPServer(cfg, readmeService, profileService, converter, lister, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("moxo-backend", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 MOXO_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("MOXO_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
	}, nil
}

func startHTTPServer(
	cfg *config.Config,
	readme server.ReadmeProvider,
	profile server.ProfileProvider,
	converter server.ImageConverter,
	lister server.ImageLister,
	logger *logrus.Logger,
) error {
	app, err := server.NewApp(server.AppOptions{
		Logger:    logger,
		Readme:    readme,
		Profile:   profile,
		Converter: converter,
		Lister:    lister,
		BasePath:  cfg.Global.BasePath,
	})
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   cfg.Global.ListenPort,
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", cfg.Global.ListenPort))
}
