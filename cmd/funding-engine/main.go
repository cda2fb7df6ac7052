// cmd/funding-engine/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"funding-engine/internal/accounting"
	"funding-engine/internal/alerting"
	"funding-engine/internal/campaign"
	"funding-engine/internal/common/config"
	"funding-engine/internal/common/database"
	"funding-engine/internal/common/logger"
	"funding-engine/internal/distribution"
	"funding-engine/internal/escrow"
	"funding-engine/internal/frctoken"
	"funding-engine/internal/ledger"
	"funding-engine/internal/payrail"

	// Funding Workers (6)
	af "funding-engine/internal/workers/funding/activate-franchise"
	apf "funding-engine/internal/workers/funding/approve-franchise"
	fs "funding-engine/internal/workers/funding/funding-statistics"
	it "funding-engine/internal/workers/funding/investment-tracking"
	pef "funding-engine/internal/workers/funding/process-expired-funding"
	ps "funding-engine/internal/workers/funding/purchase-shares"

	// Revenue Workers (3)
	at "funding-engine/internal/workers/revenue/approve-transaction"
	cd "funding-engine/internal/workers/revenue/claim-dividends"
	rt "funding-engine/internal/workers/revenue/record-transaction"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting funding engine...",
		zap.String("app", cfg.App.Name),
		zap.String("environment", cfg.App.Environment),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Init Zeebe Client with retry ---
	var zeebeClient zbc.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebeClient, err = zbc.NewClient(&zbc.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
		})
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")

	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		// Test the connection with context
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		// Test the connection with context
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Build Domain Services ---
	store := ledger.NewStore(pg.DB)

	var rail payrail.Rail = payrail.NewRetryingRail(
		payrail.NewSimulatedRail(log),
		payrail.RetryConfig{
			MaxRetries: cfg.PaymentRail.MaxRetries,
			BaseDelay:  cfg.PaymentRail.BaseDelay,
			MaxDelay:   cfg.PaymentRail.MaxDelay,
			Timeout:    cfg.PaymentRail.Timeout,
		},
		log,
	)

	var notifier alerting.Notifier = alerting.NopNotifier{}
	if cfg.Alerting.Enabled {
		opsNotifier, err := alerting.NewOpsNotifier(ctx, cfg.Alerting, log)
		if err != nil {
			zapLog.Fatal("alerting notifier initialization failed", zap.Error(err))
		}
		notifier = opsNotifier
		zapLog.Info("Ops alerting enabled", zap.String("region", cfg.Alerting.AWSRegion))
	}

	machine := campaign.NewMachine(store, log)

	processor := escrow.NewProcessor(store, rail, notifier, escrow.Config{
		Concurrency: cfg.Sweep.Concurrency,
		EscrowVault: cfg.Sweep.EscrowVault,
	}, log)

	engine := distribution.NewEngine(store, rail, distribution.Config{
		CapitalRecoveryPercent: int64(cfg.Distribution.CapitalRecoveryPercent),
		FranchiseVault:         cfg.Distribution.FranchiseVault,
	}, log)

	issuer := frctoken.NewIssuer(store, frctoken.Config{
		RevenuePerToken: cfg.Tokens.RevenuePerToken,
	}, log)

	reporter := accounting.NewReporter(store, redis.Client, cfg.Distribution.StatsCacheTTL, log)

	zapLog.Info("Domain services initialized")

	// --- START: Register ALL 9 Workers ---

	// --- 1. Funding Lifecycle Workers (4) ---
	if cfg.Workers[apf.TaskType].Enabled {
		handler := apf.NewHandler(
			&apf.Config{
				Timeout: time.Duration(cfg.Workers[apf.TaskType].Timeout) * time.Millisecond,
			},
			machine, log,
		)
		startWorker(zeebeClient, apf.TaskType, cfg.Workers[apf.TaskType], handler.Handle, zapLog)
	}

	if cfg.Workers[af.TaskType].Enabled {
		afCfg := af.LoadConfig()
		afCfg.Timeout = time.Duration(cfg.Workers[af.TaskType].Timeout) * time.Millisecond
		handler := af.NewHandler(afCfg, machine, issuer, log)
		startWorker(zeebeClient, af.TaskType, cfg.Workers[af.TaskType], handler.Handle, zapLog)
	}

	if cfg.Workers[ps.TaskType].Enabled {
		psCfg := ps.LoadConfig()
		psCfg.Timeout = time.Duration(cfg.Workers[ps.TaskType].Timeout) * time.Millisecond
		handler := ps.NewHandler(psCfg, store, machine, log)
		startWorker(zeebeClient, ps.TaskType, cfg.Workers[ps.TaskType], handler.Handle, zapLog)
	}

	if cfg.Workers[pef.TaskType].Enabled {
		handler := pef.NewHandler(
			&pef.Config{
				Timeout: time.Duration(cfg.Workers[pef.TaskType].Timeout) * time.Millisecond,
			},
			processor, log,
		)
		startWorker(zeebeClient, pef.TaskType, cfg.Workers[pef.TaskType], handler.Handle, zapLog)
	}

	// --- 2. Reporting Workers (2) ---
	if cfg.Workers[fs.TaskType].Enabled {
		handler := fs.NewHandler(
			&fs.Config{
				Timeout: time.Duration(cfg.Workers[fs.TaskType].Timeout) * time.Millisecond,
			},
			reporter, log,
		)
		startWorker(zeebeClient, fs.TaskType, cfg.Workers[fs.TaskType], handler.Handle, zapLog)
	}

	if cfg.Workers[it.TaskType].Enabled {
		handler := it.NewHandler(
			&it.Config{
				Timeout: time.Duration(cfg.Workers[it.TaskType].Timeout) * time.Millisecond,
			},
			reporter, log,
		)
		startWorker(zeebeClient, it.TaskType, cfg.Workers[it.TaskType], handler.Handle, zapLog)
	}

	// --- 3. Revenue Workers (3) ---
	if cfg.Workers[rt.TaskType].Enabled {
		handler := rt.NewHandler(
			&rt.Config{
				Timeout: time.Duration(cfg.Workers[rt.TaskType].Timeout) * time.Millisecond,
			},
			store, log,
		)
		startWorker(zeebeClient, rt.TaskType, cfg.Workers[rt.TaskType], handler.Handle, zapLog)
	}

	if cfg.Workers[at.TaskType].Enabled {
		handler := at.NewHandler(
			&at.Config{
				Timeout: time.Duration(cfg.Workers[at.TaskType].Timeout) * time.Millisecond,
			},
			store, engine, issuer, log,
		)
		startWorker(zeebeClient, at.TaskType, cfg.Workers[at.TaskType], handler.Handle, zapLog)
	}

	if cfg.Workers[cd.TaskType].Enabled {
		handler := cd.NewHandler(
			&cd.Config{
				Timeout: time.Duration(cfg.Workers[cd.TaskType].Timeout) * time.Millisecond,
			},
			engine, log,
		)
		startWorker(zeebeClient, cd.TaskType, cfg.Workers[cd.TaskType], handler.Handle, zapLog)
	}

	zapLog.Info("All 9 workers registered successfully")

	// --- Escrow Sweep Timer ---
	// Expired funding campaigns are resolved on a fixed interval even when no
	// BPMN process asks for it, so refunds never wait on workflow traffic.
	go func() {
		ticker := time.NewTicker(cfg.Sweep.Interval)
		defer ticker.Stop()

		zapLog.Info("Escrow sweep timer started", zap.Duration("interval", cfg.Sweep.Interval))
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				summary, err := processor.ProcessExpiredFunding(ctx, time.Now().UTC())
				if err != nil {
					zapLog.Error("escrow sweep failed", zap.Error(err))
					continue
				}
				if summary.ProcessedCount > 0 {
					zapLog.Info("escrow sweep completed",
						zap.Int("processedCount", summary.ProcessedCount),
					)
				}
			}
		}
	}()

	// --- Health & Metrics Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if err := pg.Ping(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{
					"status": "not ready",
					"error":  err.Error(),
				})
				return
			}
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "ready",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Metrics.Address))
		if err := http.ListenAndServe(cfg.Metrics.Address, nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	cancel()

	if err := zeebeClient.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Funding engine stopped gracefully")
}

func startWorker(client zbc.Client, taskType string, wcfg config.WorkerConfig, handlerFunc func(worker.JobClient, entities.Job), log *zap.Logger) {
	if !wcfg.Enabled {
		log.Info("worker disabled", zap.String("taskType", taskType))
		return
	}

	client.NewJobWorker().
		JobType(taskType).
		Handler(handlerFunc).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(time.Duration(wcfg.Timeout) * time.Millisecond).
		Open()

	log.Info("worker started",
		zap.String("taskType", taskType),
		zap.Int("maxJobsActive", wcfg.MaxJobsActive),
		zap.Int("timeout_ms", wcfg.Timeout),
	)
}
