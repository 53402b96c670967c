package service

import (
	"context"
	"sync"

	"github.com/voxdub/api/internal/client"
	"github.com/voxdub/api/internal/model"
)

// HealthService folds the downstream services' health endpoints into one
// composite status.
type HealthService struct {
	checkers map[string]client.HealthChecker
}

func NewHealthService(asr, tts, wav2lip client.HealthChecker) *HealthService {
	return &HealthService{
		checkers: map[string]client.HealthChecker{
			"asr":     asr,
			"tts":     tts,
			"wav2lip": wav2lip,
		},
	}
}

// Aggregate queries every service concurrently. Overall status is ok only
// when every service reports ok; an unreachable service is reported with
// its error detail and does not abort the probes of the others.
func (s *HealthService) Aggregate(ctx context.Context) *model.HealthReport {
	report := &model.HealthReport{
		Status:   model.HealthOK,
		Services: make(map[string]map[string]any, len(s.checkers)),
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for name, checker := range s.checkers {
		wg.Add(1)
		go func(name string, checker client.HealthChecker) {
			defer wg.Done()

			entry := map[string]any{"status": model.HealthOK}
			payload, err := checker.HealthCheck(ctx)
			if err != nil {
				entry = map[string]any{
					"status": model.HealthUnreachable,
					"error":  err.Error(),
				}
			} else {
				for k, v := range payload {
					if k != "status" {
						entry[k] = v
					}
				}
			}

			mu.Lock()
			report.Services[name] = entry
			if entry["status"] != model.HealthOK {
				report.Status = model.HealthDegraded
			}
			mu.Unlock()
		}(name, checker)
	}
	wg.Wait()

	return report
}
