package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	apppayment "github.com/bookshop-io/payments/internal/application/payment"
	domproduct "github.com/bookshop-io/payments/internal/domain/product"
	"github.com/bookshop-io/payments/internal/infrastructure/cache"
	"github.com/bookshop-io/payments/internal/infrastructure/id"
	"github.com/bookshop-io/payments/internal/infrastructure/memory"
	obsprovider "github.com/bookshop-io/payments/internal/infrastructure/observability"
	"github.com/bookshop-io/payments/internal/infrastructure/observability/oteltrace"
	"github.com/bookshop-io/payments/internal/infrastructure/observability/prometrics"
	"github.com/bookshop-io/payments/internal/infrastructure/observability/zaplogger"
	"github.com/bookshop-io/payments/internal/infrastructure/outbox"
	"github.com/bookshop-io/payments/internal/infrastructure/trigger"
	"github.com/bookshop-io/payments/internal/observability"
	"github.com/bookshop-io/payments/internal/pkg/logging"
	httppresentation "github.com/bookshop-io/payments/internal/presentation/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	serviceName := getenvDefault("SERVICE_NAME", "payments")
	env := getenvDefault("ENV", "dev")
	addr := getenvDefault("ADDR", ":8080")
	thawWindow := getenvDuration("PAYMENT_THAW_WINDOW", apppayment.DefaultThawWindow)

	baseLogger := logging.MustNewLogger(serviceName, env)
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)

	logger := zaplogger.Wrap(baseLogger)

	metricsRegistry := prometrics.New(serviceName, nil)
	counters := map[observability.MetricKey]observability.Counter{
		observability.MUsecaseRequests: metricsRegistry.Counter(
			observability.MUsecaseRequests, "Total number of use case invocations.", "use_case", "outcome"),
		observability.MHTTPRequests: metricsRegistry.Counter(
			observability.MHTTPRequests, "Total number of HTTP requests.", "method", "route", "status"),
		observability.MPaymentTimeouts: metricsRegistry.Counter(
			observability.MPaymentTimeouts, "Payments cancelled by the auto-thaw deadline."),
		observability.MPaymentDebitFails: metricsRegistry.Counter(
			observability.MPaymentDebitFails, "Wallet debit failures after payment completion."),
		observability.MPaymentEvents: metricsRegistry.Counter(
			observability.MPaymentEvents, "Payment lifecycle events observed on the bus.", "event", "cause"),
	}
	histograms := map[observability.MetricKey]observability.Histogram{
		observability.MUsecaseDuration: metricsRegistry.Histogram(
			observability.MUsecaseDuration, "Duration of use case execution in seconds.", nil, "use_case"),
		observability.MHTTPRequestDuration: metricsRegistry.Histogram(
			observability.MHTTPRequestDuration, "Duration of HTTP requests in seconds.", nil, "method", "route", "status"),
	}

	tel := obsprovider.New(oteltrace.New(serviceName), logger, counters, histograms)

	paymentRepo := memory.NewPaymentRepository()
	inventoryStore := memory.NewInventoryStore()
	walletStore := memory.NewWalletStore()
	catalog := memory.NewProductCatalog()
	seedDemoData(catalog, inventoryStore, walletStore)

	var settlements cache.SettlementCache = cache.NewMemoryCache()
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: redisAddr})
		settlements = cache.NewRedisCache(client)
		logger.Info("settlement_cache_redis", observability.F("addr", redisAddr))
	}

	bus := outbox.NewBus(logger)
	bus.Start(context.Background())

	scheduler := trigger.NewScheduler(logger)

	paymentService := apppayment.NewService(
		paymentRepo,
		inventoryStore,
		settlements,
		scheduler,
		id.NewUUIDGenerator(),
		bus,
		thawWindow,
		tel,
	)
	app := apppayment.NewApplicationService(paymentService, catalog, walletStore, settlements, tel)

	auditWorker := apppayment.NewAuditWorker(bus, tel)
	auditWorker.Start()

	handler := httppresentation.NewHandler(app, logger, tel)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", handler.Router())

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		baseLogger.Info("http_server_start",
			zap.String("addr", server.Addr),
			zap.Duration("thaw_window", thawWindow),
		)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Error("http_server_error",
				zap.Error(err),
			)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("http_server_shutdown_error",
			zap.Error(err),
		)
	} else {
		baseLogger.Info("http_server_stopped")
	}

	scheduler.Stop()
	bus.Stop(shutdownCtx)
}

// seedDemoData loads a small catalog, stock, and wallet balance so the service
// is usable out of the box.
func seedDemoData(catalog *memory.ProductCatalog, inv *memory.InventoryStore, wallets *memory.WalletStore) {
	products := []domproduct.Product{
		{ID: "book-understanding-nothing", Title: "Understanding Nothing", Price: 1000},
		{ID: "book-go-in-anger", Title: "Go in Anger", Price: 2500},
		{ID: "book-distributed-regrets", Title: "Distributed Regrets", Price: 4200},
	}
	for _, p := range products {
		catalog.Put(p)
		inv.SetStock(p.ID, 100)
	}
	wallets.SetBalance(1, 100000)
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
