// internal/utils/metrics/metrics.go
package metrics

import (
	"context"
	"time"
)

// ObserveTrade записывает метрики исполненной сделки
func (c *Collector) ObserveTrade(mint, direction string, amountIn, fee, price, progressBps uint64) {
	c.trades.WithLabelValues(mint, direction).Inc()
	c.volume.WithLabelValues(mint, direction).Add(float64(amountIn))
	c.fees.WithLabelValues(mint).Add(float64(fee))
	c.price.WithLabelValues(mint).Set(float64(price))
	c.progress.WithLabelValues(mint).Set(float64(progressBps))
}

// ObserveRejection учитывает отклонённую сделку
func (c *Collector) ObserveRejection(_, direction, reason string) {
	c.rejections.WithLabelValues(direction, reason).Inc()
}

// RecordTask записывает метрики задачи симулятора с учетом контекста
func (c *Collector) RecordTask(ctx context.Context, operation string, duration time.Duration, success bool) {
	select {
	case <-ctx.Done():
		// Если контекст отменен, записываем метрику с пометкой cancelled
		c.tasks.WithLabelValues("cancelled", operation).Inc()
		return
	default:
		status := "success"
		if !success {
			status = "failed"
		}
		c.tasks.WithLabelValues(status, operation).Inc()
		c.taskTime.WithLabelValues(operation).Observe(duration.Seconds())
	}
}
