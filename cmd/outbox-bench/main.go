// Command outbox-bench drives a syncbox.Outbox + engine.SyncEngine against
// an in-process fake transport and reports throughput, send-latency
// percentiles, and Go runtime memory stats.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/relaysync/syncbox"
	"github.com/relaysync/syncbox/engine"
)

const (
	defaultRecords          = 100000
	defaultPayloadBytes     = 512
	defaultWorkers          = 4
	defaultBatchSize        = 50
	defaultFailRate         = 0.0
	defaultMinSendLatency   = 0
	defaultMaxSendLatency   = 0
	defaultProgressInterval = 10 * time.Second
	defaultDrainTimeout     = 2 * time.Minute
	defaultDrainPoll        = time.Millisecond
	percentileP50           = 0.50
	percentileP95           = 0.95
	percentileP99           = 0.99
	percentScale            = 100
	microsecondsPerSecond   = 1e6
)

var (
	errRecordsRequired   = errors.New("outbox-bench: records must be > 0")
	errDrainTimeout      = errors.New("outbox-bench: drain timeout exceeded")
	errProcessedMismatch = errors.New("outbox-bench: processed count mismatch")
)

type result struct {
	Records             int     `json:"records"`
	Completed           int64   `json:"completed"`
	PermanentFailed     int64   `json:"permanent_failed"`
	Duration            string  `json:"duration"`
	Throughput          float64 `json:"throughput_msg_per_sec"`
	Workers             int     `json:"workers"`
	BatchSize           int     `json:"batch_size"`
	PayloadBytes        int     `json:"payload_bytes"`
	FailRate            float64 `json:"fail_rate"`
	LatencyP50Ms        float64 `json:"latency_p50_ms"`
	LatencyP95Ms        float64 `json:"latency_p95_ms"`
	LatencyP99Ms        float64 `json:"latency_p99_ms"`
	LatencyMaxMs        float64 `json:"latency_max_ms"`
	LatencyMeanMs       float64 `json:"latency_mean_ms"`
	LatencySamples      int     `json:"latency_samples"`
	ProcessUserCPU      float64 `json:"process_user_cpu_seconds"`
	ProcessSystemCPU    float64 `json:"process_system_cpu_seconds"`
	ProcessMaxRSSKB     int64   `json:"process_max_rss_kb"`
	GoHeapAllocBytes    uint64  `json:"go_heap_alloc_bytes"`
	GoHeapSysBytes      uint64  `json:"go_heap_sys_bytes"`
	GoTotalAllocBytes   uint64  `json:"go_total_alloc_bytes"`
	GoNumGC             uint32  `json:"go_num_gc"`
}

func main() {
	var (
		records          int
		payloadBytes     int
		workers          int
		batchSize        int
		failRate         float64
		minSendLatency   time.Duration
		maxSendLatency   time.Duration
		progress         bool
		progressInterval time.Duration
		drainTimeout     time.Duration
		payloadSeed      int64
		jsonOut          bool
	)

	flag.IntVar(&records, "records", defaultRecords, "Number of operations to enqueue and drain")
	flag.IntVar(&payloadBytes, "payload-bytes", defaultPayloadBytes, "Payload size in bytes")
	flag.IntVar(&workers, "workers", defaultWorkers, "SyncEngine worker count")
	flag.IntVar(&batchSize, "batch-size", defaultBatchSize, "Batch size per worker tick")
	flag.Float64Var(&failRate, "fail-rate", defaultFailRate, "Fraction of sends the fake transport fails retryably")
	flag.DurationVar(&minSendLatency, "min-send-latency", defaultMinSendLatency, "Minimum simulated transport latency")
	flag.DurationVar(&maxSendLatency, "max-send-latency", defaultMaxSendLatency, "Maximum simulated transport latency")
	flag.BoolVar(&progress, "progress", true, "Emit progress updates to stderr")
	flag.DurationVar(&progressInterval, "progress-interval", defaultProgressInterval, "Progress update interval")
	flag.DurationVar(&drainTimeout, "drain-timeout", defaultDrainTimeout, "Time to wait for the engine to drain the outbox")
	flag.Int64Var(&payloadSeed, "payload-seed", 1, "Random seed for payload generation")
	flag.BoolVar(&jsonOut, "json", false, "Print JSON result")
	flag.Parse()

	if records <= 0 {
		exitErr(errRecordsRequired)
	}

	res, err := run(benchConfig{
		records:          records,
		payloadBytes:     payloadBytes,
		workers:          workers,
		batchSize:        batchSize,
		failRate:         failRate,
		minSendLatency:   minSendLatency,
		maxSendLatency:   maxSendLatency,
		progress:         progress,
		progressInterval: progressInterval,
		drainTimeout:     drainTimeout,
		payloadSeed:      payloadSeed,
	})
	if err != nil {
		exitErr(err)
	}

	if jsonOut {
		if err := json.NewEncoder(os.Stdout).Encode(res); err != nil {
			exitErr(err)
		}

		return
	}

	fmt.Printf(
		"RESULT records=%d completed=%d permanent_failed=%d duration=%s throughput=%.0f/s workers=%d batch=%d fail_rate=%.3f\n",
		res.Records, res.Completed, res.PermanentFailed, res.Duration, res.Throughput, res.Workers, res.BatchSize, res.FailRate,
	)
}

type benchConfig struct {
	records          int
	payloadBytes     int
	workers          int
	batchSize        int
	failRate         float64
	minSendLatency   time.Duration
	maxSendLatency   time.Duration
	progress         bool
	progressInterval time.Duration
	drainTimeout     time.Duration
	payloadSeed      int64
}

func run(cfg benchConfig) (result, error) {
	if cfg.records <= 0 {
		return result{}, errRecordsRequired
	}

	// #nosec G404 -- deterministic RNG for benchmark payloads and fake transport outcomes.
	rng := rand.New(rand.NewSource(cfg.payloadSeed))
	payload := buildPayload(cfg.payloadBytes, rng)

	store := syncbox.NewMemStore()
	ob, err := syncbox.NewOutbox(store, syncbox.WithRetryPolicy(benchRetryPolicy()))
	if err != nil {
		return result{}, err
	}

	latency := newLatencyStats()
	transport := &fakeTransport{cfg: cfg, rng: rng, latency: latency}
	bm := &benchMetrics{}

	eng, err := engine.NewSyncEngine(engine.Config{
		WorkerCount: cfg.workers,
		BatchLimit:  cfg.batchSize,
		IdleSleepMS: 1,
		Metrics:     bm,
	}, ob, engine.AlwaysOnlineProbe{}, transport)
	if err != nil {
		return result{}, err
	}

	ctx := context.Background()
	nowMS := time.Now().UnixMilli()
	for i := 0; i < cfg.records; i++ {
		if _, err := ob.Enqueue(ctx, syncbox.Operation{Kind: "bench.send", Payload: payload}, nowMS); err != nil {
			return result{}, err
		}
	}

	printer := newProgressPrinter(cfg.progress, cfg.progressInterval)
	runCtx, cancel := context.WithCancel(ctx)
	eng.Start(runCtx)

	if printer.Enabled() {
		progressCtx, progressCancel := context.WithCancel(context.Background())
		go reportProgress(progressCtx, printer, cfg, bm)
		defer func() {
			progressCancel()
			printer.Done(progressLine(cfg, bm.Completed(), bm.PermanentFailed()))
		}()
	}

	usageStart := readResourceUsage()
	start := time.Now()
	err = waitForDrain(runCtx, cfg.drainTimeout, cfg.records, bm)
	eng.Stop()
	cancel()
	duration := time.Since(start)
	if err != nil {
		return result{}, err
	}

	done := bm.Completed()
	dead := bm.PermanentFailed()
	if done+dead < int64(cfg.records) {
		return result{}, fmt.Errorf("%w: got %d, want %d", errProcessedMismatch, done+dead, cfg.records)
	}

	throughput := float64(done+dead) / duration.Seconds()
	snap := latency.Snapshot()
	usage := readResourceUsage()
	usageDelta := deltaUsage(usageStart, usage)

	return result{
		Records:           cfg.records,
		Completed:         done,
		PermanentFailed:   dead,
		Duration:          duration.String(),
		Throughput:        throughput,
		Workers:           cfg.workers,
		BatchSize:         cfg.batchSize,
		PayloadBytes:      cfg.payloadBytes,
		FailRate:          cfg.failRate,
		LatencyP50Ms:      msFloat(snap.P50),
		LatencyP95Ms:      msFloat(snap.P95),
		LatencyP99Ms:      msFloat(snap.P99),
		LatencyMaxMs:      msFloat(snap.Max),
		LatencyMeanMs:     msFloat(snap.Mean),
		LatencySamples:    snap.Count,
		ProcessUserCPU:    usageDelta.UserCPUSeconds,
		ProcessSystemCPU:  usageDelta.SystemCPUSeconds,
		ProcessMaxRSSKB:   usage.MaxRSSKB,
		GoHeapAllocBytes:  usage.GoHeapAllocBytes,
		GoHeapSysBytes:    usage.GoHeapSysBytes,
		GoTotalAllocBytes: usageDelta.GoTotalAllocBytes,
		GoNumGC:           usageDelta.GoNumGC,
	}, nil
}

// benchRetryPolicy shortens the reference backoff schedule so a simulated
// transport failure drains in milliseconds instead of the production
// schedule's tens of seconds.
func benchRetryPolicy() syncbox.RetryPolicy {
	return syncbox.NewRetryPolicy(
		syncbox.WithBaseDelayMS(1),
		syncbox.WithMaxDelayMS(20),
		syncbox.WithFactor(2),
	)
}

func waitForDrain(ctx context.Context, timeout time.Duration, target int, bm *benchMetrics) error {
	drainCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	for bm.Completed()+bm.PermanentFailed() < int64(target) {
		select {
		case <-drainCtx.Done():
			return fmt.Errorf("%w: %w", errDrainTimeout, drainCtx.Err())
		default:
			time.Sleep(defaultDrainPoll)
		}
	}

	return nil
}

// benchMetrics implements syncbox.Metrics, recording only the counters the
// benchmark needs to know when the outbox has drained.
type benchMetrics struct {
	completed       int64
	permanentFailed int64
}

var _ syncbox.Metrics = (*benchMetrics)(nil)

func (m *benchMetrics) ObserveSendDuration(time.Duration) {}
func (m *benchMetrics) AddDispatched(int)                 {}
func (m *benchMetrics) AddCompleted(count int)            { atomic.AddInt64(&m.completed, int64(count)) }
func (m *benchMetrics) AddRetried(int)                    {}
func (m *benchMetrics) AddPermanentFailed(count int) {
	atomic.AddInt64(&m.permanentFailed, int64(count))
}
func (m *benchMetrics) AddSweptInflight(int) {}
func (m *benchMetrics) SetPendingReady(int)  {}

func (m *benchMetrics) Completed() int64 {
	return atomic.LoadInt64(&m.completed)
}

func (m *benchMetrics) PermanentFailed() int64 {
	return atomic.LoadInt64(&m.permanentFailed)
}

// fakeTransport implements engine.Transport with a simulated latency window
// and a configurable retryable-failure rate. It never fails non-retryably,
// since permanent failures only arise here via attempts exhaustion.
type fakeTransport struct {
	cfg     benchConfig
	mu      sync.Mutex
	rng     *rand.Rand
	latency *latencyStats
}

func (f *fakeTransport) Send(ctx context.Context, op syncbox.Operation) engine.SendResult {
	f.mu.Lock()
	delay := f.simulatedLatency()
	fail := f.cfg.failRate > 0 && f.rng.Float64() < f.cfg.failRate
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return engine.SendResult{OK: false, Retryable: true, Error: "ctx cancelled"}
		case <-time.After(delay):
		}
	}
	f.latency.Record(delay)

	if fail {
		return engine.SendResult{OK: false, Retryable: true, Error: "simulated failure"}
	}

	return engine.SendResult{OK: true}
}

func (f *fakeTransport) simulatedLatency() time.Duration {
	if f.cfg.maxSendLatency <= f.cfg.minSendLatency {
		return f.cfg.minSendLatency
	}

	span := f.cfg.maxSendLatency - f.cfg.minSendLatency

	return f.cfg.minSendLatency + time.Duration(f.rng.Int63n(int64(span)))
}

type latencyStats struct {
	mu      sync.Mutex
	samples []time.Duration
}

func newLatencyStats() *latencyStats {
	return &latencyStats{}
}

func (l *latencyStats) Record(d time.Duration) {
	l.mu.Lock()
	l.samples = append(l.samples, d)
	l.mu.Unlock()
}

type latencySnapshot struct {
	P50   time.Duration
	P95   time.Duration
	P99   time.Duration
	Max   time.Duration
	Mean  time.Duration
	Count int
}

func (l *latencyStats) Snapshot() latencySnapshot {
	l.mu.Lock()
	samples := append([]time.Duration(nil), l.samples...)
	l.mu.Unlock()
	if len(samples) == 0 {
		return latencySnapshot{}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })

	return latencySnapshot{
		P50:   percentile(samples, percentileP50),
		P95:   percentile(samples, percentileP95),
		P99:   percentile(samples, percentileP99),
		Max:   samples[len(samples)-1],
		Mean:  meanDuration(samples),
		Count: len(samples),
	}
}

func percentile(samples []time.Duration, p float64) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	idx := int(math.Ceil(p*float64(len(samples)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(samples) {
		idx = len(samples) - 1
	}

	return samples[idx]
}

func meanDuration(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range samples {
		sum += d
	}

	return sum / time.Duration(len(samples))
}

func msFloat(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

type resourceUsage struct {
	UserCPUSeconds    float64
	SystemCPUSeconds  float64
	MaxRSSKB          int64
	GoHeapAllocBytes  uint64
	GoHeapSysBytes    uint64
	GoTotalAllocBytes uint64
	GoNumGC           uint32
}

func readResourceUsage() resourceUsage {
	var usage resourceUsage

	var ru syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &ru); err == nil {
		usage.UserCPUSeconds = float64(ru.Utime.Sec) + float64(ru.Utime.Usec)/microsecondsPerSecond
		usage.SystemCPUSeconds = float64(ru.Stime.Sec) + float64(ru.Stime.Usec)/microsecondsPerSecond
		usage.MaxRSSKB = ru.Maxrss
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	usage.GoHeapAllocBytes = ms.HeapAlloc
	usage.GoHeapSysBytes = ms.HeapSys
	usage.GoTotalAllocBytes = ms.TotalAlloc
	usage.GoNumGC = ms.NumGC

	return usage
}

type usageDelta struct {
	UserCPUSeconds    float64
	SystemCPUSeconds  float64
	GoTotalAllocBytes uint64
	GoNumGC           uint32
}

func deltaUsage(start, end resourceUsage) usageDelta {
	return usageDelta{
		UserCPUSeconds:    end.UserCPUSeconds - start.UserCPUSeconds,
		SystemCPUSeconds:  end.SystemCPUSeconds - start.SystemCPUSeconds,
		GoTotalAllocBytes: end.GoTotalAllocBytes - start.GoTotalAllocBytes,
		GoNumGC:           end.GoNumGC - start.GoNumGC,
	}
}

func buildPayload(size int, rng *rand.Rand) []byte {
	if size <= 0 {
		return []byte(`{"data":""}`)
	}
	overhead := len(`{"data":""}`)
	dataSize := size - overhead
	if dataSize < 0 {
		dataSize = 0
	}
	const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	data := make([]byte, dataSize)
	for i := range data {
		data[i] = alphabet[rng.Intn(len(alphabet))]
	}

	return []byte(fmt.Sprintf(`{"data":%q}`, string(data)))
}

type progressPrinter struct {
	enabled  bool
	interval time.Duration
	isTTY    bool
	mu       sync.Mutex
	lastLen  int
}

func newProgressPrinter(enabled bool, interval time.Duration) *progressPrinter {
	tty := false
	if info, err := os.Stderr.Stat(); err == nil {
		tty = (info.Mode() & os.ModeCharDevice) != 0
	}

	return &progressPrinter{enabled: enabled, interval: interval, isTTY: tty}
}

func (p *progressPrinter) Enabled() bool {
	return p.enabled && p.interval > 0
}

func (p *progressPrinter) Print(line string) {
	if !p.Enabled() || line == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.print(line, false)
}

func (p *progressPrinter) Done(line string) {
	if !p.Enabled() || line == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.print(line, true)
}

func (p *progressPrinter) print(line string, final bool) {
	padding := ""
	if p.lastLen > len(line) {
		padding = strings.Repeat(" ", p.lastLen-len(line))
	}
	switch {
	case p.isTTY && final:
		fmt.Fprintf(os.Stderr, "\r%s%s\n", line, padding)
	case p.isTTY:
		fmt.Fprintf(os.Stderr, "\r%s%s", line, padding)
	case final:
		fmt.Fprintf(os.Stderr, "%s\n", line)
	default:
		fmt.Fprintf(os.Stderr, "\r%s", line)
	}
	p.lastLen = len(line)
}

func reportProgress(ctx context.Context, printer *progressPrinter, cfg benchConfig, bm *benchMetrics) {
	ticker := time.NewTicker(printer.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			printer.Print(progressLine(cfg, bm.Completed(), bm.PermanentFailed()))
		}
	}
}

func progressLine(cfg benchConfig, completed, permanentFailed int64) string {
	done := completed + permanentFailed
	percent := 0.0
	if cfg.records > 0 {
		percent = float64(done) / float64(cfg.records) * percentScale
	}

	return fmt.Sprintf(
		"drain: %d/%d (%.1f%%) completed=%d permanent_failed=%d workers=%d batch=%d",
		done, cfg.records, percent, completed, permanentFailed, cfg.workers, cfg.batchSize,
	)
}

func exitErr(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
