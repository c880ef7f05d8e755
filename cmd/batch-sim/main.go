package main

import (
	"context"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"pool-gatekeeper/pool/application"
	"pool-gatekeeper/pool/domain"
	"pool-gatekeeper/pool/infra"

	"github.com/google/uuid"
)

// Simulador de batches: dispara N jobs concorrentes contra um coordenador
// local (registry em memória) usando a política de retry do caller. Serve
// para observar admissão, downgrade e espera sem subir redis nem servidor.
func main() {
	jobs := getenvIntDefault("SIM_JOBS", 40)
	hint := getenvIntDefault("SIM_PARALLEL_HINT", 8)
	hold := getenvDurationDefault("SIM_HOLD", 300*time.Millisecond)
	maxAttempts := getenvIntDefault("SIM_MAX_ATTEMPTS", 20)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	catalog, err := infra.NewMemoryCatalog(domain.Limits{
		ResourceID:       4,
		Name:             "ADW",
		DBType:           "oracle",
		MaxConnections:   100,
		ThresholdPercent: 95,
		DefaultParallel:  8,
		MinParallel:      2,
	})
	if err != nil {
		log.Fatalf("catalog error: %v", err)
	}

	registry := infra.NewMemoryRegistry()
	registry.StartJanitor(ctx)

	stats := infra.NewMemoryStatsStore()
	coord := &application.Coordinator{
		Catalog:  catalog,
		Registry: registry,
		Stats:    stats,
		// Esperas curtas para a simulação não durar minutos.
		Estimator: application.WaitEstimator{MinWait: 200 * time.Millisecond, MaxWait: 2 * time.Second},
		TTL:       time.Minute,
	}

	policy := application.RetryPolicy{MaxAttempts: maxAttempts}

	var wg sync.WaitGroup
	for i := 0; i < jobs; i++ {
		wg.Add(1)
		go func(job int) {
			defer wg.Done()

			runID := uuid.NewString()
			dec, err := application.AcquireWithRetry(ctx, coord, application.AcquireRequest{
				ResourceID: 4,
				RunID:      runID,
				OwnerID:    "batch_" + strconv.Itoa(job),
				Label:      "SALES_ORDER",
				Parallel:   hint,
			}, policy)
			if err != nil {
				log.Printf("job %d: acquire failed: %v", job, err)
				return
			}

			if dec.Downgraded {
				log.Printf("job %d: admitted with downgrade %d -> %d (usage %d)",
					job, dec.RequestedParallel, dec.Parallel, dec.CurrentUsage)
			} else {
				log.Printf("job %d: admitted with parallel %d (usage %d)", job, dec.Parallel, dec.CurrentUsage)
			}

			// "Trabalho" do batch.
			time.Sleep(hold + time.Duration(rand.Int63n(int64(hold)+1)))

			res, err := coord.Release(ctx, 4, runID)
			if err != nil {
				log.Printf("job %d: release failed: %v", job, err)
				return
			}
			log.Printf("job %d: released %d connections (usage %d)", job, res.Parallel, res.CurrentUsage)
		}(i)
	}

	wg.Wait()

	total := stats.Total()
	log.Printf("done: admitted=%d downgraded=%d denied=%d", total.Admitted, total.Downgraded, total.Denied)
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
