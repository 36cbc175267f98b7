package main

import (
	"context"
	"crypto"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarkJaven/thodemy-sub002/internal/approval"
	approvalhandler "github.com/MarkJaven/thodemy-sub002/internal/approval/handler"
	approvalrepo "github.com/MarkJaven/thodemy-sub002/internal/approval/repository"
	approvalservice "github.com/MarkJaven/thodemy-sub002/internal/approval/service"
	"github.com/MarkJaven/thodemy-sub002/internal/audit"
	auditrepo "github.com/MarkJaven/thodemy-sub002/internal/audit/repository"
	"github.com/MarkJaven/thodemy-sub002/internal/config"
	"github.com/MarkJaven/thodemy-sub002/internal/coordinator"
	"github.com/MarkJaven/thodemy-sub002/internal/db"
	"github.com/MarkJaven/thodemy-sub002/internal/notify"
	"github.com/MarkJaven/thodemy-sub002/internal/security"
	"github.com/MarkJaven/thodemy-sub002/internal/server"
	"github.com/MarkJaven/thodemy-sub002/internal/server/middleware"
	sessionhandler "github.com/MarkJaven/thodemy-sub002/internal/session/handler"
	sessionrepo "github.com/MarkJaven/thodemy-sub002/internal/session/repository"
	sessionservice "github.com/MarkJaven/thodemy-sub002/internal/session/service"
	"github.com/MarkJaven/thodemy-sub002/internal/telemetry"
	oteltelemetry "github.com/MarkJaven/thodemy-sub002/internal/telemetry/otel"
	kafkaproducer "github.com/MarkJaven/thodemy-sub002/internal/telemetry/producer"
)

const accessTokenTTL = 15 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer database.Close()

	publicKey, err := security.ParsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		log.Fatalf("jwt public key: %v", err)
	}
	var privateKey crypto.Signer
	if cfg.JWTPrivateKey != "" {
		privateKey, err = security.ParsePrivateKey(cfg.JWTPrivateKey)
		if err != nil {
			log.Fatalf("jwt private key: %v", err)
		}
	}
	tokens := security.NewTokenProvider(privateKey, publicKey, cfg.JWTIssuer, cfg.JWTAudience, accessTokenTTL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := oteltelemetry.NewProviders(ctx, cfg.OTLPEndpoint, "thodemy-session", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()

	brokers := cfg.KafkaBrokersList()

	var channel notify.Channel
	if len(brokers) > 0 {
		kafkaChannel, err := notify.NewKafkaChannel(brokers, cfg.ApprovalKafkaTopic)
		if err != nil {
			log.Fatalf("kafka channel: %v", err)
		}
		defer kafkaChannel.Close()
		channel = kafkaChannel
		log.Printf("approval decisions via kafka topic %s", cfg.ApprovalKafkaTopic)
	} else {
		channel = notify.NewMemoryChannel()
		log.Print("approval decisions via in-process channel")
	}

	kafkaEmitter, err := kafkaproducer.NewKafkaProducer(brokers, cfg.TelemetryKafkaTopic)
	if err != nil {
		log.Fatalf("kafka producer: %v", err)
	}
	if kafkaEmitter != nil {
		defer kafkaEmitter.Close()
	}
	var emitter telemetry.EventEmitter
	if kafkaEmitter != nil {
		emitter = telemetry.Multi(kafkaEmitter, oteltelemetry.NewEventEmitter(providers.LoggerProvider))
	} else {
		emitter = oteltelemetry.NewEventEmitter(providers.LoggerProvider)
	}

	sessions := sessionrepo.NewPostgresRepository(database)
	approvals := approvalrepo.NewPostgresRepository(database)
	auditLogger := audit.NewLogger(auditrepo.NewPostgresRepository(database), middleware.ClientIP)

	approvalSvc := approvalservice.NewService(approvals, sessions, channel, auditLogger)
	coord := coordinator.New(approvalSvc, channel, cfg.ApprovalTimeoutDuration(), cfg.ApprovalPollIntervalDuration())
	lifecycle := sessionservice.NewLifecycleManager(sessions, approvalSvc, coord, auditLogger)

	sweeper := approval.NewSweeper(approvals, cfg.ApprovalRetentionDuration(), cfg.SweepIntervalDuration())
	go sweeper.Run(ctx)

	engine := server.New(server.Deps{
		Tokens:   tokens,
		Approval: approvalhandler.NewHandler(approvalSvc, channel),
		Session:  sessionhandler.NewHandler(lifecycle),
		Emitter:  emitter,
		Health:   database,
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: engine,
	}
	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("serve: %v", err)
		}
	}()

	<-ctx.Done()
	stop()

	log.Print("shutting down HTTP server...")
	// Shutdown waits for in-flight approval waits up to the approval timeout,
	// then leaves async telemetry a drain window before the providers close.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ApprovalTimeoutDuration()+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	time.Sleep(telemetry.ShutdownDrainDuration)
	if err := providers.Shutdown(context.Background()); err != nil {
		log.Printf("telemetry shutdown: %v", err)
	}
	log.Print("HTTP server stopped")
}
