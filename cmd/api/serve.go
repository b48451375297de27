package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awssns "github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/member-auth/internal/application/auth"
	"github.com/member-auth/internal/application/memberid"
	"github.com/member-auth/internal/application/notification"
	"github.com/member-auth/internal/application/revocation"
	"github.com/member-auth/internal/config"
	"github.com/member-auth/internal/infrastructure/dynamo"
	jwtinfra "github.com/member-auth/internal/infrastructure/jwt"
	"github.com/member-auth/internal/infrastructure/metrics"
	redisinfra "github.com/member-auth/internal/infrastructure/redis"
	"github.com/member-auth/internal/infrastructure/smtp"
	snsinfra "github.com/member-auth/internal/infrastructure/sns"
	transporthttp "github.com/member-auth/internal/transport/http"
	"github.com/member-auth/internal/transport/http/handler"
	appmiddleware "github.com/member-auth/internal/transport/http/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

const (
	shutdownTimeout   = 10 * time.Second
	backgroundTimeout = 30 * time.Second
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API. DynamoDB tables are created if missing and the
revocation sweeper runs in the background until shutdown.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), loadConfig())
		},
	}
}

func runServe(parent context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dynamoClient, err := dynamo.NewClient(ctx, cfg)
	if err != nil {
		return err
	}
	if err := dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables); err != nil {
		return fmt.Errorf("bootstrap tables: %w", err)
	}

	rdb := redisinfra.NewClient(cfg)
	defer rdb.Close()

	tokens, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		return fmt.Errorf("jwt provider: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	notifierDeps := notification.NotifierDeps{Mailer: smtp.NewMailer(cfg)}
	if cfg.SNSTopicARN != "" {
		publisher, err := newTopicPublisher(ctx, cfg)
		if err != nil {
			return err
		}
		notifierDeps.Publisher = publisher
	}
	dispatcher := notification.NewDispatcher(backgroundTimeout, m)

	members := dynamo.NewMemberRepo(dynamoClient, cfg.DynamoTables.Members)
	revocations := redisinfra.NewRevocationStore(rdb)
	limiter := redisinfra.NewLimiter(rdb, nil)

	authSvc := auth.NewService(auth.ServiceDeps{
		MemberRepo:      members,
		PendingRepo:     dynamo.NewPendingVerificationRepo(dynamoClient, cfg.DynamoTables.PendingVerifications),
		RevocationStore: revocations,
		Limiter:         limiter,
		Tokens:          tokens,
		Notifier:        notification.NewNotifier(notifierDeps),
		IDGenerator:     memberid.NewGenerator(members),
		Background:      dispatcher,
		Metrics:         m,
	})

	router := transporthttp.NewRouter(cfg, &transporthttp.Deps{
		AuthService: authSvc,
		Members:     members,
		Revocations: revocations,
		Tokens:      tokens,
		IPLimiter:   limiter,
		BurstGuard:  appmiddleware.NewBurstGuard(ctx, rate.Limit(5), 10),
		Metrics:     m,
		Gatherer:    reg,
		Probes: []handler.Probe{
			{Name: "redis", Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
			{Name: "dynamodb", Check: func(ctx context.Context) error {
				_, err := dynamoClient.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(cfg.DynamoTables.Members)})
				return err
			}},
		},
	})

	sweeper := revocation.NewSweeper(revocations, cfg.RevocationSweepInterval, m)
	go sweeper.Run(ctx)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	if err := dispatcher.Wait(shutdownCtx); err != nil {
		slog.Warn("background tasks still running at shutdown", "err", err)
	}
	slog.Info("server stopped")
	return nil
}

func newTopicPublisher(ctx context.Context, cfg *config.Config) (*snsinfra.TopicPublisher, error) {
	awsCfg, err := dynamo.LoadAWSConfig(ctx, cfg, cfg.SNSRegion)
	if err != nil {
		return nil, err
	}
	client := awssns.NewFromConfig(awsCfg, func(o *awssns.Options) {
		if cfg.AWSEndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
		}
	})
	return snsinfra.NewTopicPublisher(client, cfg.SNSTopicARN), nil
}
