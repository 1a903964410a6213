package observability

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"sync/atomic"
	"time"
)

var logger = log.New(os.Stdout, "", 0)

var levelRank = map[string]int{"debug": 0, "info": 1, "warn": 2, "error": 3}

var minLevel atomic.Int32

// SetMinLevel filters out LogEvent calls below the given level
// ("debug"|"info"|"warn"|"error"). Unknown levels are treated as "info".
func SetMinLevel(level string) {
	rank, ok := levelRank[level]
	if !ok {
		rank = levelRank["info"]
	}
	minLevel.Store(int32(rank))
}

// LogEvent emits a single structured JSON log line, enriched with the
// RunInfo carried on ctx. fields with key "config" or "payload" are passed
// through RedactValue before being merged in. Calls below the level set by
// SetMinLevel are dropped.
func LogEvent(ctx context.Context, level string, event string, fields map[string]any) {
	if rank, ok := levelRank[level]; ok && int32(rank) < minLevel.Load() {
		return
	}
	payload := map[string]any{
		"ts":    time.Now().UTC().Format(time.RFC3339),
		"level": level,
		"event": event,
	}

	info := RunInfoFromContext(ctx)
	if info.RunID != "" {
		payload["run_id"] = info.RunID
	}
	if info.Symbol != "" {
		payload["symbol"] = info.Symbol
	}

	for key, value := range normalizeFields(fields) {
		payload[key] = value
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		logger.Printf("{\"level\":\"error\",\"event\":\"log_marshal_failed\",\"error\":%q}", err.Error())
		return
	}
	logger.Print(string(raw))
}

// LogTickProcessed logs one event-loop iteration: mark-to-market, fills,
// and any halt or stop-loss decision made for that tick.
func LogTickProcessed(ctx context.Context, symbol string, fillCount int, halted bool) {
	LogEvent(ctx, "info", "tick_processed", map[string]any{
		"symbol":     symbol,
		"fill_count": fillCount,
		"halted":     halted,
	})
}

// LogRunComplete logs the terminal summary of a single backtest run.
func LogRunComplete(ctx context.Context, runName string, duration time.Duration, finalEquity float64, err error) {
	fields := map[string]any{
		"run_name":     runName,
		"duration_ms":  duration.Milliseconds(),
		"final_equity": finalEquity,
		"success":      err == nil,
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	LogEvent(ctx, "info", "run_complete", fields)
}

func normalizeFields(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}
	out := make(map[string]any, len(fields))
	for key, value := range fields {
		switch key {
		case "config", "payload":
			out[key] = RedactValue(value)
			continue
		}
		if err, ok := value.(error); ok {
			out[key] = err.Error()
			continue
		}
		out[key] = value
	}
	return out
}
