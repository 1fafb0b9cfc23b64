// Command vote-server starts the campus voting gRPC server.
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	pb "github.com/and161185/campus-vote/internal/api/votingv1"
	"github.com/and161185/campus-vote/internal/abac"
	"github.com/and161185/campus-vote/internal/config"
	pkgcrypto "github.com/and161185/campus-vote/internal/crypto"
	"github.com/and161185/campus-vote/internal/keyprovider"
	"github.com/and161185/campus-vote/internal/limiter"
	"github.com/and161185/campus-vote/internal/metrics"
	"github.com/and161185/campus-vote/internal/migrate"
	"github.com/and161185/campus-vote/internal/qrsign"
	"github.com/and161185/campus-vote/internal/repository/postgres"
	grpcserver "github.com/and161185/campus-vote/internal/server/grpc"
	"github.com/and161185/campus-vote/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func newLogger(dev bool) *zap.Logger {
	var (
		l   *zap.Logger
		err error
	)
	if dev {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// main loads configuration, runs migrations, and starts the gRPC server.
func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}

	logger := newLogger(cfg.Dev)
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
		zap.String("keyBackend", cfg.Keys.Backend),
	)

	// SIGINT/SIGTERM cancel ctx.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	schema, err := migrate.Up(ctx, cfg.DSN, logger)
	if err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}
	logger.Info("schema ready", zap.Int64("version", schema))

	// Storage.
	db, err := postgres.New(ctx, cfg.DSN)
	if err != nil {
		logger.Fatal("postgres.New", zap.Error(err))
	}
	defer db.Close()

	reg := metrics.New()

	// Decision cache and verify limiter: shared through Redis when configured.
	var (
		cache   abac.Cache
		lim     limiter.Limiter
		lockout = limiter.Policy{Window: cfg.QRVerifyWindow, MaxFails: cfg.QRVerifyMaxFails, Block: cfg.QRVerifyBlock}
	)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("redis ping", zap.Error(err))
		}
		cache = abac.NewRedisCache(rdb)
		lim = limiter.NewRedis(rdb, lockout)
	} else {
		cache = abac.NewLRUCache(cfg.ABACCacheSize, cfg.ABACCacheTTL)
		lim = limiter.NewPG(db.Pool, lockout)
	}
	defer func() { _ = cache.Close() }()
	engine := abac.NewEngine(cache, logger, abac.WithTTL(cfg.ABACCacheTTL), abac.WithStats(reg))

	keys, err := keyprovider.New(ctx, cfg.Keys)
	if err != nil {
		logger.Fatal("key provider", zap.Error(err))
	}
	ballots := pkgcrypto.NewService(keys)

	signer, err := qrsign.NewSigner([]byte(cfg.QRSecret), cfg.QRMaxAge)
	if err != nil {
		logger.Fatal("qr signer", zap.Error(err))
	}

	profiles := postgres.NewProfileRepo(db)
	tokens := postgres.NewTokenRepo(db)
	votes := postgres.NewVoteRepo(db)
	catalog := postgres.NewCatalogRepo(db)
	qrRepo := postgres.NewQRRepo(db)
	audit := postgres.NewAuditRepo(db)

	// Domain services over the repositories.
	svc := grpcserver.Services{
		Tokens: service.NewTokenService(profiles, tokens, catalog, engine, audit, reg, logger),
		Cast: service.NewCastService(service.CastDeps{
			Profiles: profiles, Tokens: tokens, Votes: votes, Catalog: catalog, QR: qrRepo, Audit: audit,
			Policy: engine, Crypto: ballots, QRTokens: signer, Metrics: reg, Log: logger,
		}),
		QR:       service.NewQRService(profiles, catalog, qrRepo, engine, signer, lim, audit, reg, logger),
		Profiles: service.NewProfileService(profiles, engine, audit, logger),
	}

	// Interceptor order: recover, log, peer ip, auth.
	app := grpcserver.New(svc, []byte(cfg.JWTKey), logger)
	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			grpcserver.RecoverUnary(logger),
			grpcserver.LoggingUnary(logger),
			grpcserver.ClientIPUnary(),
			app.AuthUnary(),
		),
	}
	if cfg.Insecure {
		logger.Warn("TLS disabled (-insecure)")
	} else {
		creds, err := credentials.NewServerTLSFromFile(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			logger.Fatal("failed to load TLS cert/key", zap.Error(err))
		}
		opts = append(opts, grpc.Creds(creds))
	}
	s := grpc.NewServer(opts...)
	pb.RegisterVotingServer(s, app)

	// Reflection is exposed only with -dev.
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	if cfg.Dev {
		reflection.Register(s)
	}

	lis, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		logger.Fatal("listen", zap.Error(err))
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr), zap.Bool("tls", !cfg.Insecure))
		errCh <- s.Serve(lis)
	}()

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", reg.Handler())
		metricsSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Info("metrics listening", zap.String("addr", cfg.MetricsAddr))
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		// Drain in-flight calls, then force after 5s.
		hs.Shutdown()
		done := make(chan struct{})
		go func() {
			s.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			s.Stop()
		}
		if metricsSrv != nil {
			shCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			_ = metricsSrv.Shutdown(shCtx)
			cancel()
		}
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
