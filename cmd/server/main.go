package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"kasirinaja/posclient/internal/cache"
	"kasirinaja/posclient/internal/config"
	"kasirinaja/posclient/internal/connectivity"
	"kasirinaja/posclient/internal/httpapi"
	"kasirinaja/posclient/internal/queue"
	"kasirinaja/posclient/internal/remote"
	"kasirinaja/posclient/internal/service"
	"kasirinaja/posclient/internal/session"
	"kasirinaja/posclient/internal/state"
	"kasirinaja/posclient/internal/store"
	"kasirinaja/posclient/internal/store/memory"
	pgstore "kasirinaja/posclient/internal/store/postgres"
	"kasirinaja/posclient/internal/syncer"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}
	if cfg.AuthorityURL == "" {
		log.Println("WARN: AUTHORITY_URL is not set; every sale will be queued offline")
	}

	startCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(startCtx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		}
		if err := pg.EnsureSchema(startCtx); err != nil {
			log.Fatalf("postgres schema: %v", err)
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Println("repository: postgres")
	} else {
		repo = memory.New()
		log.Println("repository: in-memory")
	}

	var snapshots store.SnapshotRepository = repo
	if cfg.RedisAddr != "" {
		redisStore := cache.NewRedisSnapshotStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.SnapshotTTL())
		if err := redisStore.Ping(startCtx); err != nil {
			log.Printf("redis unavailable (%v), keeping snapshots in the repository", err)
		} else {
			snapshots = redisStore
			closers = append(closers, redisStore.Close)
			log.Println("snapshot cache: redis")
		}
	}

	sess := session.New("")
	st := state.New()
	authority := remote.NewClient(cfg.AuthorityURL, cfg.AuthorityToken, cfg.RequestTimeout())
	orch := syncer.New(sess, st, cache.New(snapshots), authority)
	monitor := connectivity.New(authority.Ping, cfg.ProbeInterval())
	auth := httpapi.NewAuthManager(cfg.AuthSecret, cfg.ManagerPIN)

	svc := service.New(service.Dependencies{
		Session:      sess,
		State:        st,
		Queue:        queue.New(repo, cfg.ReplayRatePerSecond),
		Authority:    authority,
		Committer:    orch,
		Connectivity: monitor,
		PINs:         auth,
	}, service.Options{
		Defaults:             cfg.DefaultSettings(),
		LoyaltySpendPerPoint: cfg.LoyaltySpendPerPoint,
	})

	monitor.OnReconnect(func(ctx context.Context) {
		results, err := svc.ReplayAllOffline(ctx)
		if err != nil {
			log.Printf("WARN: offline replay: %v", err)
		}
		for storeID, res := range results {
			log.Printf("offline replay for %s: %d synced, %d failed", storeID, res.Synced, res.Errors)
		}
		orch.Fetch(ctx)
	})

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.StoreID != "" {
		if _, err := orch.SwitchStore(runCtx, cfg.StoreID); err != nil {
			log.Printf("WARN: initial store %s: %v", cfg.StoreID, err)
		}
	}

	go monitor.Run(runCtx)
	if cfg.PushURL != "" {
		go remote.Subscribe(runCtx, cfg.PushURL, cfg.AuthorityToken, orch.ApplyPush)
	}

	api := httpapi.New(httpapi.Dependencies{
		Service:      svc,
		Syncer:       orch,
		Session:      sess,
		State:        st,
		Connectivity: monitor,
		Auth:         auth,
	}, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout() + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("POS client listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-runCtx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if isBcryptHash(cfg.ManagerPIN) {
		return nil
	}
	if len(cfg.ManagerPIN) < 6 {
		return fmt.Errorf("MANAGER_PIN must be set and at least 6 digits")
	}
	if err := validatePINStrength(cfg.ManagerPIN); err != nil {
		return fmt.Errorf("MANAGER_PIN is too weak: %w", err)
	}
	return nil
}

func isBcryptHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}

// validatePINStrength rejects PINs that are all the same digit,
// sequential (ascending or descending), or from a known-weak list.
func validatePINStrength(pin string) error {
	known := map[string]bool{
		"123456": true, "654321": true, "000000": true, "111111": true,
		"121212": true, "112233": true, "123123": true,
	}
	if known[pin] {
		return fmt.Errorf("common PIN not allowed")
	}

	for _, r := range pin {
		if r < '0' || r > '9' {
			return fmt.Errorf("PIN must be digits only")
		}
	}

	allSame := true
	for i := 1; i < len(pin); i++ {
		if pin[i] != pin[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return fmt.Errorf("all-same-digit PIN not allowed")
	}

	ascending, descending := true, true
	for i := 1; i < len(pin); i++ {
		diff := int(pin[i]) - int(pin[i-1])
		if diff != 1 {
			ascending = false
		}
		if diff != -1 {
			descending = false
		}
	}
	if ascending || descending {
		return fmt.Errorf("sequential PIN not allowed")
	}

	return nil
}
