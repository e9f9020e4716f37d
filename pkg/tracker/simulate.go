package tracker

import (
	"context"
	"math"
	"math/rand/v2"
)

// SimulateTraining logs a synthetic accuracy/loss curve for epochs
// 2..epochs-1. It is used by the demo command to check a backend end to end.
func (t *Tracker) SimulateTraining(ctx context.Context, epochs int) {
	if !t.Active() {
		t.log.Warn("Tracker not active, cannot simulate training")
		return
	}

	lr := 0.02
	if v, ok := Float(t.Config()["learning_rate"]); ok {
		lr = v
	}

	t.log.Info("Starting simulated training", "epochs", epochs)

	offset := rand.Float64() / 5
	for epoch := 2; epoch < epochs; epoch++ {
		if ctx.Err() != nil {
			return
		}
		e := float64(epoch)
		acc := 1 - math.Pow(2, -e) - rand.Float64()/e - offset
		loss := math.Pow(2, -e) + rand.Float64()/e + offset

		t.LogMetrics(ctx, Metrics{
			"epoch":         epoch,
			"accuracy":      acc,
			"loss":          loss,
			"learning_rate": lr,
		})
		t.log.Info("Epoch", "epoch", epoch, "acc", math.Round(acc*1e4)/1e4, "loss", math.Round(loss*1e4)/1e4)
	}
}
