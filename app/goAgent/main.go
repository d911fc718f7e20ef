package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/joho/godotenv"
	"github.com/streamersales/goCollectionAgent/business/orchestrator"
	"github.com/streamersales/goCollectionAgent/business/session"
	"github.com/streamersales/goCollectionAgent/business/web"
	"github.com/streamersales/goCollectionAgent/business/worker"
	"github.com/streamersales/goCollectionAgent/foundation/catalog"
	"github.com/streamersales/goCollectionAgent/foundation/config"
	"github.com/streamersales/goCollectionAgent/foundation/external/agent"
	"github.com/streamersales/goCollectionAgent/foundation/external/asr"
	"github.com/streamersales/goCollectionAgent/foundation/external/digitalhuman"
	"github.com/streamersales/goCollectionAgent/foundation/external/llm"
	"github.com/streamersales/goCollectionAgent/foundation/external/retriever"
	"github.com/streamersales/goCollectionAgent/foundation/external/tts"
	"github.com/streamersales/goCollectionAgent/foundation/logger"
	"github.com/streamersales/goCollectionAgent/foundation/pubsub"
	"github.com/streamersales/goCollectionAgent/foundation/redis"
)

var (
	version   string
	buildTime string
)

func main() {
	// =================================================================================================================
	// Configuration

	cfg := struct {
		conf.Version
		Web struct {
			Host            string        `conf:"default:0.0.0.0:8501"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			DisableUpload   bool          `conf:"default:false"`
		}
		Conversation struct {
			ConfigFilePath  string `conf:"default:configs/conversation_cfg.yaml"`
			RoleName        string `conf:"default:乐乐喵"`
			UserAvatar      string `conf:"default:assets/user.png"`
			AssistantAvatar string `conf:"default:assets/avatar.png"`
		}
		Catalog struct {
			FilePath             string `conf:"default:product_info/product_info.yaml"`
			ImageDirectory       string `conf:"default:product_info/images"`
			InstructionDirectory string `conf:"default:product_info/instructions"`
		}
		Llm struct {
			ApiEndpoint string `conf:"default:http://127.0.0.1:23333/v1"`
			ApiKey      string `conf:"noprint"`
			Model       string `conf:"default:internlm2-chat-20b"`
		}
		Tts struct {
			ApiEndpoint string        `conf:"default:http://127.0.0.1:8001/tts"`
			Directory   string        `conf:"default:work_dirs/tts_wavs"`
			Retention   time.Duration `conf:"default:24h"`
			Enabled     bool          `conf:"default:true"`
		}
		DigitalHuman struct {
			ApiEndpoint string        `conf:"default:http://127.0.0.1:8005/digital_human"`
			Directory   string        `conf:"default:work_dirs/digital_human"`
			Retention   time.Duration `conf:"default:24h"`
			Enabled     bool          `conf:"default:true"`
		}
		Asr struct {
			ApiEndpoint string        `conf:"default:http://127.0.0.1:8002/asr"`
			Directory   string        `conf:"default:work_dirs/asr_wavs"`
			Retention   time.Duration `conf:"default:24h"`
		}
		Rag struct {
			ApiEndpoint    string `conf:"default:http://127.0.0.1:8003/retrieve"`
			ConfigFilePath string `conf:"default:configs/rag_cfg.yaml"`
			IndexDirectory string `conf:"default:work_dirs/rag_index"`
			TopK           int    `conf:"default:3"`
			Enabled        bool   `conf:"default:true"`
		}
		Agent struct {
			ApiEndpoint string `conf:"default:http://127.0.0.1:8004/agent"`
			Enabled     bool   `conf:"default:false"`
		}
		Redis struct {
			Address           string `conf:"default:"`
			Password          string `conf:"noprint"`
			TranscriptChannel string `conf:"default:streamerSales:transcript"`
		}
		Housekeeping struct {
			Interval time.Duration `conf:"default:10m"`
		}
		Logger struct {
			LogDirectory string `conf:"default:work_dirs/logs,noprint"`
		}
	}{
		Version: conf.Version{
			Build: version,
			Desc:  buildTime,
		},
	}

	// Environment overrides from a local .env, if present.
	godotenv.Load()

	help, err := conf.Parse("AGENT", &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// =================================================================================================================
	// Application Logger

	log, err := logger.New(cfg.Logger.LogDirectory, "goAgent")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	// =================================================================================================================
	// Conversation Configuration

	conversation, err := config.GetConversation(cfg.Conversation.ConfigFilePath)
	if err != nil {
		log.Errorw("startup", "ERROR", err)
		os.Exit(1)
	}

	systemPrompt, err := conversation.SystemPrompt(cfg.Conversation.RoleName)
	if err != nil {
		log.Errorw("startup", "ERROR", err)
		os.Exit(1)
	}

	// =================================================================================================================
	// Configuration Stringify

	out, err := conf.String(&cfg)
	if err != nil {
		log.Errorw("startup", "ERROR", err)
		os.Exit(1)
	}
	log.Infow("startup", "config", out)

	// =================================================================================================================
	// Working Directories

	directories := []string{
		cfg.Catalog.ImageDirectory,
		cfg.Catalog.InstructionDirectory,
		cfg.Tts.Directory,
		cfg.DigitalHuman.Directory,
		cfg.Asr.Directory,
	}
	for _, dir := range directories {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Errorw("startup", "ERROR", err)
			os.Exit(1)
		}
	}

	// =================================================================================================================
	// Catalog

	catalogStore := catalog.NewStore(cfg.Catalog.FilePath)

	items, err := catalogStore.Load()
	if err != nil {
		log.Errorw("startup", "ERROR", err)
		os.Exit(1)
	}
	log.Infow("startup", "catalogItems", len(items))

	// =================================================================================================================
	// Redis

	var producer worker.Producer

	if cfg.Redis.Address != "" {
		redisClient, err := redis.New(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.TranscriptChannel, log)
		if err != nil {
			log.Errorw("startup", "ERROR", err)
		} else {
			defer redisClient.Close()
			producer = redisClient
		}
	}

	// =================================================================================================================
	// External Services

	llmClient := llm.NewClient(cfg.Llm.ApiEndpoint, cfg.Llm.ApiKey, cfg.Llm.Model)
	if !llmClient.Healthy(context.Background()) {
		log.Errorw("startup", "ERROR", fmt.Errorf("llm backend unreachable: %s", cfg.Llm.ApiEndpoint))
	}

	ttsClient := tts.NewClient(cfg.Tts.ApiEndpoint, cfg.Tts.Directory)
	digitalHumanClient := digitalhuman.NewClient(cfg.DigitalHuman.ApiEndpoint, cfg.DigitalHuman.Directory)
	asrClient := asr.NewClient(cfg.Asr.ApiEndpoint)
	agentClient := agent.NewClient(cfg.Agent.ApiEndpoint)

	registry := retriever.NewRegistry(cfg.Rag.ApiEndpoint)
	if cfg.Rag.Enabled {
		registry.Get("default", cfg.Rag.ConfigFilePath, cfg.Rag.IndexDirectory)
	}

	// =================================================================================================================
	// Broker, Sessions and Orchestrator

	broker := pubsub.NewBroker()
	sessions := session.NewStore()

	orch := orchestrator.New(orchestrator.Settings{
		Logger:      log,
		Generator:   llmClient,
		Synthesizer: ttsClient,
		Animator:    digitalHumanClient,
		ToolAgent:   agentClient,
		Broker:      broker,
		Lookup: func(storeID string) (orchestrator.Retriever, error) {
			h, err := registry.Lookup(storeID)
			if err != nil {
				return nil, err
			}
			return h, nil
		},
		TopK:            cfg.Rag.TopK,
		UserAvatar:      cfg.Conversation.UserAvatar,
		AssistantAvatar: cfg.Conversation.AssistantAvatar,
	})

	// =================================================================================================================
	// Run Worker

	wkr, workerCh := worker.Run(worker.Settings{
		Logger:   log,
		Broker:   broker,
		Producer: producer,
		Registry: registry,
		Config: worker.Config{
			TtsDirectory:          cfg.Tts.Directory,
			TtsRetention:          cfg.Tts.Retention,
			DigitalHumanDirectory: cfg.DigitalHuman.Directory,
			DigitalHumanRetention: cfg.DigitalHuman.Retention,
			AsrDirectory:          cfg.Asr.Directory,
			AsrRetention:          cfg.Asr.Retention,
			HousekeepingInterval:  cfg.Housekeeping.Interval,
			RagConfigPath:         cfg.Rag.ConfigFilePath,
			RagIndexDir:           cfg.Rag.IndexDirectory,
		},
	})

	// =================================================================================================================
	// Start API

	api := web.New(web.Settings{
		Logger:               log,
		Catalog:              catalogStore,
		Conversation:         conversation,
		Sessions:             sessions,
		Orchestrator:         orch,
		Broker:               broker,
		Asr:                  asrClient,
		SystemPrompt:         systemPrompt,
		EnableTts:            cfg.Tts.Enabled,
		EnableDigitalHuman:   cfg.DigitalHuman.Enabled,
		EnableAgent:          cfg.Agent.Enabled,
		EnableRag:            cfg.Rag.Enabled,
		ImageDirectory:       cfg.Catalog.ImageDirectory,
		InstructionDirectory: cfg.Catalog.InstructionDirectory,
		AsrDirectory:         cfg.Asr.Directory,
		DisableUpload:        cfg.Web.DisableUpload,
	})

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- api.Start(cfg.Web.Host)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Blocking main and waiting for error or shutdown.
	select {
	case err := <-workerCh:
		log.Errorw("shutdown", "ERROR", err)

	case err := <-serverErrors:
		log.Errorw("shutdown", "ERROR", err)
		wkr.Shutdown(nil)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete")

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := api.Shutdown(ctx); err != nil {
			log.Errorw("shutdown", "ERROR", err)
			api.Close()
		}

		wkr.Shutdown(nil)
	}
}
