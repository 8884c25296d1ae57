// =============================================================================
// llmbridge 命令行入口
// =============================================================================
// 面向运维与调试的瘦客户端，覆盖常用操作：
//
//	llmbridge chat -provider openai "你好"        # 一次性对话
//	llmbridge chat -stream "讲个笑话"             # 流式输出
//	llmbridge models -provider openrouter        # 列出模型目录
//	llmbridge providers                          # 列出支持与已配置的厂商
//	llmbridge ping -provider ollama              # 连通性检测
//	llmbridge version                            # 显示版本信息
//
// 配置来源：-config 指定的 YAML 文件与 LLMBRIDGE_* 环境变量。
// =============================================================================
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/llmbridge/llmbridge/config"
	"github.com/llmbridge/llmbridge/llm"
	"github.com/llmbridge/llmbridge/llm/factory"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "chat":
		runChat(os.Args[2:])
	case "models":
		runModels(os.Args[2:])
	case "providers":
		runProviders(os.Args[2:])
	case "ping":
		runPing(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// commonFlags 解析各子命令共享的 -config/-provider/-model 参数。
type commonFlags struct {
	fs       *flag.FlagSet
	config   *string
	provider *string
	model    *string
}

func newCommonFlags(name string) *commonFlags {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	return &commonFlags{
		fs:       fs,
		config:   fs.String("config", "", "Path to config file"),
		provider: fs.String("provider", "", "Provider name (defaults to config default_provider)"),
		model:    fs.String("model", "", "Model override"),
	}
}

// resolve 加载配置并构造目标 Provider。
func (cf *commonFlags) resolve(logger *zap.Logger) (llm.Provider, *config.Config) {
	loader := config.NewLoader()
	if *cf.config != "" {
		loader = loader.WithConfigPath(*cf.config)
	}
	cfg, err := loader.Load()
	if err != nil {
		fatal("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		fatal("Invalid config: %v", err)
	}

	name := *cf.provider
	if name == "" {
		name = cfg.DefaultProvider
	}
	opts := cfg.ProviderOptions()[name]
	if *cf.model != "" {
		if opts == nil {
			opts = llm.Options{}
		}
		opts["default_model"] = *cf.model
	}

	p, err := factory.New(name, opts, logger)
	if err != nil {
		fatal("Failed to create provider: %v", err)
	}
	return p, cfg
}

func runChat(args []string) {
	cf := newCommonFlags("chat")
	stream := cf.fs.Bool("stream", false, "Stream the response")
	system := cf.fs.String("system", "", "System prompt")
	cf.fs.Parse(args)

	prompt := strings.Join(cf.fs.Args(), " ")
	if prompt == "" {
		fatal("chat requires a prompt, e.g.: llmbridge chat \"Hello\"")
	}

	logger := initLogger()
	defer logger.Sync()

	p, _ := cf.resolve(logger)
	ctx := context.Background()

	messages := []llm.Message{}
	if *system != "" {
		messages = append(messages, llm.SystemMessage(*system))
	}
	messages = append(messages, llm.UserMessage(prompt))

	if *stream {
		ch, err := p.StreamChatCompletion(ctx, messages, nil)
		if err != nil {
			fatal("Stream failed: %v", err)
		}
		for chunk := range ch {
			if chunk.Err != nil {
				fatal("\nStream interrupted: %v", chunk.Err)
			}
			fmt.Print(chunk.Text)
		}
		fmt.Println()
		return
	}

	resp, err := p.ChatCompletion(ctx, messages, nil)
	if err != nil {
		fatal("Chat failed: %v", err)
	}
	fmt.Println(resp.Content)
	fmt.Fprintf(os.Stderr, "[%s/%s] tokens: %d (prompt %d, completion %d)\n",
		resp.Provider, resp.Model,
		resp.Usage.TotalTokens, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
}

func runModels(args []string) {
	cf := newCommonFlags("models")
	cf.fs.Parse(args)

	logger := initLogger()
	defer logger.Sync()

	p, _ := cf.resolve(logger)
	models, err := p.GetAvailableModels(context.Background())
	if err != nil {
		fatal("Failed to list models: %v", err)
	}
	for _, m := range models {
		caps := []string{}
		if m.SupportsVision {
			caps = append(caps, "vision")
		}
		if m.SupportsTools {
			caps = append(caps, "tools")
		}
		fmt.Printf("%-45s ctx=%-8d %s\n", m.ID, m.ContextLength, strings.Join(caps, ","))
	}
}

func runProviders(args []string) {
	fs := flag.NewFlagSet("providers", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	loader := config.NewLoader()
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		fatal("Failed to load config: %v", err)
	}

	logger := initLogger()
	defer logger.Sync()

	registry, err := factory.NewRegistry(cfg.ProviderOptions(), cfg.DefaultProvider, logger)
	if err != nil {
		fatal("Failed to build registry: %v", err)
	}

	available := map[string]bool{}
	for _, name := range registry.Available() {
		available[name] = true
	}
	for _, name := range factory.Supported() {
		status := "not configured"
		if available[name] {
			status = "configured"
		}
		marker := " "
		if name == cfg.DefaultProvider {
			marker = "*"
		}
		fmt.Printf("%s %-12s %s\n", marker, name, status)
	}
}

func runPing(args []string) {
	cf := newCommonFlags("ping")
	cf.fs.Parse(args)

	logger := initLogger()
	defer logger.Sync()

	p, _ := cf.resolve(logger)
	result, err := p.TestConnection(context.Background())
	if err != nil {
		fatal("Connection test failed: %v", err)
	}
	if !result.Success {
		fatal("Provider unreachable: %s", result.Message)
	}
	fmt.Printf("OK: %s\n", result.Message)
	if len(result.Models) > 0 {
		fmt.Printf("models: %s\n", strings.Join(result.Models, ", "))
	}
}

func printVersion() {
	fmt.Printf("llmbridge %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`llmbridge - unified client for LLM provider APIs

Usage:
  llmbridge chat [-provider NAME] [-model ID] [-stream] [-system PROMPT] "message"
  llmbridge models [-provider NAME]
  llmbridge providers [-config FILE]
  llmbridge ping [-provider NAME]
  llmbridge version

Configuration is read from the file given by -config plus LLMBRIDGE_*
environment variables (e.g. LLMBRIDGE_OPENAI_API_KEY).`)
}

func initLogger() *zap.Logger {
	encoderCfg := zap.NewDevelopmentEncoderConfig()
	encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.Lock(os.Stderr),
		zap.WarnLevel,
	)
	return zap.New(core)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
