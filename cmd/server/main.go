package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	"bookstories/pkg/api"
	"bookstories/pkg/censor"
	"bookstories/pkg/logger"
	"bookstories/pkg/storage"
	"bookstories/pkg/storage/memdb"
	"bookstories/pkg/storage/mongo"
	"bookstories/pkg/storage/postgres"
)

type Config struct {
	ServiceName    string `toml:"serviceName"`
	CensorConfPath string `toml:"censorConfPath"`
	// Storage is one of memdb, mongo, postgres.
	Storage string `toml:"storage"`

	HTTPAddr   string `toml:"httpAddr"`
	LogLevel   string `toml:"logLevel"`
	KafkaAddr  string `toml:"kafkaAddr"`
	KafkaTopic string `toml:"kafkaTopic"`
	KafkaBatch int    `toml:"kafkaBatch"`

	Postgres postgres.Config `toml:"postgres"`
}

func main() {
	var (
		configPath     string
		censorConfPath string
		dev            bool
		httpAddr       string
		logLevel       string
		kafkaAddr      string
		kafkaTopic     string
		kafkaBatch     int
	)

	flag.StringVar(&configPath, "config", "configs/server.toml", "Path to TOML config file")
	flag.StringVar(&censorConfPath, "censconf", "", "Path to JSON file with banned words")
	flag.BoolVar(&dev, "dev", false, "Run the server in development mode with in-memory DB.")
	flag.StringVar(&httpAddr, "http", "", "HTTP server address in the form 'host:port'.")
	flag.StringVar(&logLevel, "log", "", "Log level: debug, info, warn, error.")
	flag.StringVar(&kafkaAddr, "kafka", "", "Kafka server address in the form 'host:port'.")
	flag.StringVar(&kafkaTopic, "topic", "", "Kafka topic.")
	flag.IntVar(&kafkaBatch, "batch", 0, "Kafka batch size.")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warnf("[server] failed to load .env file: %v", err)
	}

	cfg := Config{ServiceName: "comments", HTTPAddr: ":8077", LogLevel: "info", Storage: "mongo"}
	if _, err := toml.DecodeFile(configPath, &cfg); err != nil {
		log.Fatalf("[server] failed to load config file %s: %v", configPath, err)
	}

	// Override config with flags if set
	if censorConfPath != "" {
		cfg.CensorConfPath = censorConfPath
	}
	if dev {
		cfg.Storage = "memdb"
	}
	if httpAddr != "" {
		cfg.HTTPAddr = httpAddr
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if kafkaAddr != "" {
		cfg.KafkaAddr = kafkaAddr
	}
	if kafkaTopic != "" {
		cfg.KafkaTopic = kafkaTopic
	}
	if kafkaBatch != 0 {
		cfg.KafkaBatch = kafkaBatch
	}

	if !strings.Contains(cfg.HTTPAddr, ":") {
		log.Warn("[server] use ':' before port number, e.g. ':8080'")
	}

	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	}

	db, err := openStorage(cfg)
	if err != nil {
		log.Fatalf("[server] failed to initialize storage: %v", err)
	}
	defer db.Close()

	c := censor.New()
	if cfg.CensorConfPath != "" {
		if err := c.LoadFromJSON(cfg.CensorConfPath); err != nil {
			log.Fatalf("[server] failed to load censor config file %s: %v", cfg.CensorConfPath, err)
		}
		log.Infof("[server] %d banned words loaded", c.Len())
	}

	var sink *logger.Sink
	if cfg.KafkaAddr != "" && cfg.KafkaTopic != "" {
		kafkaWriter := &kafka.Writer{
			Addr:      kafka.TCP(cfg.KafkaAddr),
			Topic:     cfg.KafkaTopic,
			BatchSize: cfg.KafkaBatch,
		}
		defer kafkaWriter.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := logger.CreateTopic(ctx, cfg.KafkaAddr, cfg.KafkaTopic); err != nil {
			log.Warnf("[server] failed to create Kafka topic: %v", err)
		}
		cancel()
		sink = logger.NewSink(kafkaWriter, cfg.ServiceName)
	} else {
		log.Warnf("[server] kafka was not configured, logs will not be sent to Kafka")
	}

	api := api.New(cfg.ServiceName, db, c, sink)
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Infof("[server] starting on %v", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[server] failed to start: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	shutdownCtx, shutdownRelease := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownRelease()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("[server] HTTP server shutdown error: %v", err)
	} else {
		log.Info("[server] HTTP server shut down gracefully")
	}
}

func openStorage(cfg Config) (storage.Storage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch cfg.Storage {
	case "memdb":
		log.Info("[server] run with in memory DB")
		return memdb.New(), nil

	case "mongo":
		conf, err := mongo.NewConfig()
		if err != nil {
			return nil, err
		}
		db, err := mongo.New(ctx, conf)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", storage.ErrConnectDB, err)
		}
		if err := db.Ping(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: %v", storage.ErrDBNotResponding, err)
		}
		log.Infof("[server] connected to mongo %s:%s", conf.Host, conf.Port)
		return db, nil

	case "postgres":
		conf := cfg.Postgres
		if conf.Password == "" {
			conf.Password = os.Getenv("POSTGRES_PASSWORD")
		}
		if !conf.IsValid() {
			return nil, fmt.Errorf("invalid postgres config: %s", conf)
		}
		db, err := postgres.New(ctx, conf.ConString())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", storage.ErrConnectDB, err)
		}
		if err := db.Ping(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: %v", storage.ErrDBNotResponding, err)
		}
		if err := db.Init(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
		log.Infof("[server] connected to postgres: %s", conf)
		return db, nil
	}

	return nil, fmt.Errorf("unknown storage %q", cfg.Storage)
}
