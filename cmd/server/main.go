package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	http_adapter "github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/in/http"
	kafka_adapter "github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/out/kafka"
	memory_adapter "github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/out/memory"
	mysql_adapter "github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/out/mysql"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-bank-ledger/pkg/logger"
	"github.com/JoeShih716/go-bank-ledger/pkg/mysql"
	"github.com/JoeShih716/go-bank-ledger/pkg/wal"
)

type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Store struct {
		// Kind: "mysql" 或 "memory"
		Kind    string `yaml:"kind"`
		WALPath string `yaml:"wal_path"`
	} `yaml:"store"`
	MySQL   mysql.Config `yaml:"mysql"`
	Posting struct {
		LockWait time.Duration `yaml:"lock_wait"`
	} `yaml:"posting"`
	Auth struct {
		Secret   string        `yaml:"secret"`
		TokenTTL time.Duration `yaml:"token_ttl"`
	} `yaml:"auth"`
	Kafka struct {
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
	} `yaml:"kafka"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

func main() {
	// 1. 載入設定 (.env 可覆寫機敏值)
	_ = godotenv.Load()
	cfg := loadConfig()

	zlog, err := logger.New(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zlog.Sync()

	// 2. 初始化儲存層
	var store usecase.Store
	switch cfg.Store.Kind {
	case "mysql":
		dbClient, err := mysql.NewClient(cfg.MySQL)
		if err != nil {
			zlog.Fatal("failed to connect to mysql", zap.Error(err))
		}
		defer dbClient.Close()

		repo := mysql_adapter.NewLedger(dbClient, cfg.Posting.LockWait)
		if err := repo.AutoMigrate(); err != nil {
			zlog.Fatal("failed to migrate schema", zap.Error(err))
		}
		store = repo
		zlog.Info("connected to mysql", zap.String("host", cfg.MySQL.Host))
	case "memory":
		var journal *wal.WAL
		if cfg.Store.WALPath != "" {
			journal, err = wal.NewWAL(cfg.Store.WALPath)
			if err != nil {
				zlog.Fatal("failed to init wal", zap.Error(err))
			}
			defer journal.Close()
		}
		store, err = memory_adapter.NewLedger(journal, cfg.Posting.LockWait)
		if err != nil {
			zlog.Fatal("failed to init memory store", zap.Error(err))
		}
		zlog.Info("using in-memory store", zap.String("wal", cfg.Store.WALPath))
	default:
		zlog.Fatal("invalid store kind", zap.String("kind", cfg.Store.Kind))
	}

	// 3. 事件發布 (未設定 broker 時不發事件)
	var events usecase.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		publisher := kafka_adapter.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer publisher.Close()
		events = publisher
	}

	// 4. 初始化 UseCase
	engine := usecase.NewPostingEngine(store, events, zlog)
	accounts := usecase.NewAccountUseCase(store, store, zlog)
	auth := usecase.NewAuthUseCase(store, usecase.AuthConfig{
		Secret:   cfg.Auth.Secret,
		TokenTTL: cfg.Auth.TokenTTL,
	}, zlog)
	users := usecase.NewUserUseCase(store, zlog)

	// 5. 啟動 HTTP Server
	server := http_adapter.NewServer(engine, accounts, auth, users, zlog)
	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: server.Router(),
	}

	go func() {
		zlog.Info("starting http server", zap.String("addr", cfg.Server.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("failed to serve", zap.Error(err))
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		zlog.Error("forced shutdown", zap.Error(err))
	}
	zlog.Info("server exited")
}

func loadConfig() Config {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config/config.yaml"
	}
	cfgData, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("Failed to read config file: %v", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(cfgData, &cfg); err != nil {
		log.Fatalf("Failed to parse config: %v", err)
	}

	// 環境變數覆寫機敏設定
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.Secret = v
	}
	if v := os.Getenv("MYSQL_PASSWORD"); v != "" {
		cfg.MySQL.Password = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}

	// 補全預設配置 (如果 yaml 沒寫)
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Store.Kind == "" {
		cfg.Store.Kind = "memory"
	}
	if cfg.Posting.LockWait == 0 {
		cfg.Posting.LockWait = 3 * time.Second
	}
	if cfg.Auth.TokenTTL == 0 {
		cfg.Auth.TokenTTL = 7 * 24 * time.Hour
	}
	if cfg.MySQL.MaxOpenConns == 0 {
		cfg.MySQL.MaxOpenConns = 100
	}
	if cfg.MySQL.MaxIdleConns == 0 {
		cfg.MySQL.MaxIdleConns = 10
	}
	if cfg.MySQL.ConnMaxLifetime == 0 {
		cfg.MySQL.ConnMaxLifetime = 30 * time.Minute
	}
	return cfg
}
