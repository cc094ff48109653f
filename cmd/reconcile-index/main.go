// reconcile-index rebuilds the patient_status active/deleted index sets from the
// isDeleted flag of every stored record and prints the report as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"wisefido-patient-status/internal/config"
	"wisefido-patient-status/internal/service"
	"wisefido-patient-status/internal/store"

	"wisefido-patient-status/owl-common/logger"
	owlredis "wisefido-patient-status/owl-common/redis"

	"go.uber.org/zap"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "report planned changes without writing")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall timeout")
	flag.Parse()

	cfg := config.Load()
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "reconcile-index")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client := owlredis.NewRedisClient(&cfg.Redis)
	defer owlredis.Close(client)
	if err := owlredis.Ping(ctx, client); err != nil {
		log.Fatal("Redis not reachable", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}

	var r service.IndexReconciler = service.NewReconciler(store.NewRedisKV(client), nil, log)
	report, err := r.Reconcile(ctx, *dryRun)
	if report != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(report)
	}
	if err != nil {
		log.Error("Reconcile failed", zap.Error(err))
		os.Exit(1)
	}
}
