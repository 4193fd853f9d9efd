package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/expirians/orders-ms/internal/transport/tcprpc"
)

const (
	defaultQty    = int32(1)
	resultOK      = "ok"
	resultUnknown = "error"

	// Псевдо-команда для сквозных метрик сценария целиком.
	scenarioCommand = "scenario"
)

type loadMode string

const (
	modeCreate        loadMode = "create"
	modeCreateLookup  loadMode = "create-lookup"
	modeCreateDeliver loadMode = "create-deliver"
)

func parseMode(value string) (loadMode, error) {
	mode := loadMode(strings.TrimSpace(value))
	switch mode {
	case modeCreate, modeCreateLookup, modeCreateDeliver:
		return mode, nil
	}
	return "", fmt.Errorf("unsupported mode: %s", value)
}

type config struct {
	addr        string
	total       int
	totalSet    bool
	duration    time.Duration
	concurrency int
	connections int
	timeout     time.Duration
	mode        loadMode
	clientID    int64
	productID   int64
	qty         int
	outputPath  string
}

func (cfg config) validate() error {
	checks := []struct {
		bad bool
		msg string
	}{
		{cfg.duration < 0, "duration must be >= 0"},
		{cfg.duration == 0 && cfg.total <= 0, "total must be > 0 when duration is not set"},
		{cfg.concurrency <= 0, "concurrency must be > 0"},
		{cfg.connections <= 0, "connections must be > 0"},
		{cfg.timeout <= 0, "timeout must be > 0"},
		{cfg.clientID <= 0, "client-id must be > 0"},
		{cfg.productID <= 0, "product-id must be > 0"},
		{cfg.qty <= 0, "qty must be > 0"},
	}
	for _, check := range checks {
		if check.bad {
			return errors.New(check.msg)
		}
	}
	return nil
}

func parseConfig() (config, error) {
	var (
		cfg           config
		modeValue     string
		timeoutValue  string
		durationValue string
	)

	flag.StringVar(&cfg.addr, "addr", "localhost:4000", "orders service TCP address")
	flag.IntVar(&cfg.total, "total", 400, "total scenarios to execute in count mode; in duration mode only used when explicitly set")
	flag.StringVar(&durationValue, "duration", "0s", "optional time-based run duration (e.g. 10m)")
	flag.IntVar(&cfg.concurrency, "concurrency", 40, "number of concurrent workers")
	flag.IntVar(&cfg.connections, "connections", 20, "number of client connections")
	flag.StringVar(&timeoutValue, "timeout", "5s", "per-command timeout")
	flag.StringVar(&modeValue, "mode", string(modeCreate), "load mode: create | create-lookup | create-deliver")
	flag.Int64Var(&cfg.clientID, "client-id", 1, "client id used for created orders")
	flag.Int64Var(&cfg.productID, "product-id", 1, "product id used for order items")
	flag.IntVar(&cfg.qty, "qty", int(defaultQty), "quantity per order item")
	flag.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	flag.Parse()

	var err error
	if cfg.timeout, err = time.ParseDuration(strings.TrimSpace(timeoutValue)); err != nil {
		return cfg, fmt.Errorf("parse timeout: %w", err)
	}
	if cfg.duration, err = time.ParseDuration(strings.TrimSpace(durationValue)); err != nil {
		return cfg, fmt.Errorf("parse duration: %w", err)
	}
	if cfg.mode, err = parseMode(modeValue); err != nil {
		return cfg, err
	}

	// -total по умолчанию задан, поэтому в duration-режиме различаем
	// явное значение от дефолтного.
	flag.CommandLine.Visit(func(f *flag.Flag) {
		if f.Name == "total" {
			cfg.totalSet = true
		}
	})

	return cfg, cfg.validate()
}

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type commandReport struct {
	Calls     int64            `json:"calls"`
	Success   int64            `json:"success"`
	Failed    int64            `json:"failed"`
	ErrorRate float64          `json:"error_rate"`
	Results   map[string]int64 `json:"results"`
	LatencyMs latencySummary   `json:"latency_ms"`
}

type report struct {
	StartedAt         time.Time                `json:"started_at"`
	DurationSeconds   float64                  `json:"duration_seconds"`
	TotalScenarios    int64                    `json:"total_scenarios"`
	SuccessScenarios  int64                    `json:"success_scenarios"`
	FailedScenarios   int64                    `json:"failed_scenarios"`
	ErrorRate         float64                  `json:"error_rate"`
	RPS               float64                  `json:"rps"`
	ScenarioLatencyMs latencySummary           `json:"scenario_latency_ms"`
	Commands          map[string]commandReport `json:"commands"`
}

type commandStats struct {
	calls     int64
	success   int64
	failed    int64
	results   map[string]int64
	latencies []float64
}

func (s *commandStats) observe(latency time.Duration, result string) {
	s.calls++
	if result == resultOK {
		s.success++
	} else {
		s.failed++
	}
	s.results[result]++
	s.latencies = append(s.latencies, float64(latency.Microseconds())/1000.0)
}

func (s *commandStats) snapshot() commandReport {
	results := make(map[string]int64, len(s.results))
	for key, count := range s.results {
		results[key] = count
	}
	return commandReport{
		Calls:     s.calls,
		Success:   s.success,
		Failed:    s.failed,
		ErrorRate: ratio(s.failed, s.calls),
		Results:   results,
		LatencyMs: buildLatencySummary(s.latencies),
	}
}

type collector struct {
	mu       sync.Mutex
	commands map[string]*commandStats
}

func newCollector() *collector {
	return &collector{commands: make(map[string]*commandStats)}
}

func (c *collector) record(command string, latency time.Duration, result string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, ok := c.commands[command]
	if !ok {
		stats = &commandStats{results: make(map[string]int64)}
		c.commands[command] = stats
	}
	stats.observe(latency, result)
}

func (c *collector) buildReport(startedAt time.Time, duration time.Duration) report {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := report{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: duration.Seconds(),
		Commands:        make(map[string]commandReport, len(c.commands)),
	}
	for name, stats := range c.commands {
		result.Commands[name] = stats.snapshot()
	}

	if scenario, ok := result.Commands[scenarioCommand]; ok {
		result.TotalScenarios = scenario.Calls
		result.SuccessScenarios = scenario.Success
		result.FailedScenarios = scenario.Failed
		result.ErrorRate = scenario.ErrorRate
		result.ScenarioLatencyMs = scenario.LatencyMs
	}
	if duration > 0 {
		result.RPS = float64(result.TotalScenarios) / duration.Seconds()
	}

	return result
}

type orderItemPayload struct {
	ProductID int64 `json:"productId"`
	Quantity  int32 `json:"quantity"`
}

type createOrderPayload struct {
	ClientID   int64              `json:"clientId"`
	OrderItems []orderItemPayload `json:"orderItems"`
}

type findOneOrderPayload struct {
	ID int64 `json:"id"`
}

type changeOrderStatusPayload struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

type orderPayload struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

func main() {
	cfg, err := parseConfig()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	pool := make([]*tcprpc.Client, cfg.connections)
	for i := range pool {
		pool[i] = tcprpc.NewClient(cfg.addr, tcprpc.WithDialTimeout(cfg.timeout))
	}
	defer func() {
		for _, client := range pool {
			_ = client.Close()
		}
	}()

	startedAt := time.Now()
	col := newCollector()
	jobs := make(chan int, cfg.concurrency*2)
	failures := runWorkers(cfg, pool, jobs, col)

	duration := time.Since(startedAt)
	result := col.buildReport(startedAt, duration)
	if result.FailedScenarios == 0 && failures > 0 {
		result.FailedScenarios = failures
		result.ErrorRate = ratio(result.FailedScenarios, result.TotalScenarios)
	}

	printReport(result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			os.Exit(1)
		}
	}
	if result.FailedScenarios > 0 {
		os.Exit(1)
	}
}

// runWorkers раздаёт соединения воркерам round-robin, запускает их и
// блокируется до выработки всех заданий.
func runWorkers(cfg config, pool []*tcprpc.Client, jobs chan int, col *collector) int64 {
	var (
		failures int64
		wg       sync.WaitGroup
	)

	for workerID := 0; workerID < cfg.concurrency; workerID++ {
		wg.Add(1)
		go func(cli *tcprpc.Client) {
			defer wg.Done()
			for range jobs {
				if err := runScenario(cli, cfg, col); err != nil {
					atomic.AddInt64(&failures, 1)
				}
			}
		}(pool[workerID%len(pool)])
	}

	dispatchJobs(jobs, cfg)
	wg.Wait()
	return failures
}

// dispatchJobs наполняет канал заданий: фиксированное количество в
// count-режиме, либо до истечения duration (с опциональным кэпом по
// total, если флаг задан явно).
func dispatchJobs(jobs chan<- int, cfg config) {
	defer close(jobs)

	if cfg.duration <= 0 {
		for i := 0; i < cfg.total; i++ {
			jobs <- i
		}
		return
	}

	timer := time.NewTimer(cfg.duration)
	defer timer.Stop()

	for i := 0; ; i++ {
		if cfg.totalSet && i >= cfg.total {
			return
		}

		select {
		case <-timer.C:
			return
		case jobs <- i:
		}
	}
}

// runScenario прогоняет один сценарий: createOrder, затем в зависимости
// от режима lookup и перевод в delivered.
func runScenario(client *tcprpc.Client, cfg config, col *collector) error {
	scenarioStart := time.Now()
	scenarioResult := resultOK
	defer func() {
		col.record(scenarioCommand, time.Since(scenarioStart), scenarioResult)
	}()

	fail := func(err error) error {
		scenarioResult = resultOf(err)
		return err
	}

	var created orderPayload
	createReq := createOrderPayload{
		ClientID:   cfg.clientID,
		OrderItems: []orderItemPayload{{ProductID: cfg.productID, Quantity: int32(cfg.qty)}},
	}
	if err := invoke(client, cfg.timeout, "createOrder", createReq, &created, col); err != nil {
		return fail(err)
	}
	if created.ID == 0 {
		scenarioResult = resultUnknown
		return errors.New("createOrder returned empty order id")
	}

	if cfg.mode == modeCreateLookup || cfg.mode == modeCreateDeliver {
		var found orderPayload
		if err := invoke(client, cfg.timeout, "findOneOrder", findOneOrderPayload{ID: created.ID}, &found, col); err != nil {
			return fail(err)
		}
	}

	if cfg.mode == modeCreateDeliver {
		var changed orderPayload
		changeReq := changeOrderStatusPayload{ID: created.ID, Status: "delivered"}
		if err := invoke(client, cfg.timeout, "changeOrderStatus", changeReq, &changed, col); err != nil {
			return fail(err)
		}
	}

	return nil
}

func invoke(client *tcprpc.Client, timeout time.Duration, command string, in, out any, col *collector) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := client.Invoke(ctx, command, in, out)
	col.record(command, time.Since(start), resultOf(err))
	return err
}

// resultOf классифицирует ошибку для отчёта: "ok", вид ошибки сервиса
// или "error" для транспортных сбоев.
func resultOf(err error) string {
	if err == nil {
		return resultOK
	}
	var rpcErr *tcprpc.Error
	if errors.As(err, &rpcErr) && rpcErr.Kind != "" {
		return rpcErr.Kind
	}
	return resultUnknown
}

func writeJSONReport(path string, result report) error {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == string(filepath.Separator) {
		return errors.New("output path must point to a file")
	}
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("output path must be inside current directory: %s", path)
	}

	file, err := os.Create(cleanPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func printReport(result report, cfg config) {
	fmt.Println("Load test summary")
	fmt.Printf("mode=%s target=%s total=%d success=%d failed=%d error_rate=%.4f\n",
		cfg.mode, runTarget(cfg), result.TotalScenarios, result.SuccessScenarios,
		result.FailedScenarios, result.ErrorRate)
	fmt.Printf("duration=%.2fs rps=%.2f\n", result.DurationSeconds, result.RPS)

	lat := result.ScenarioLatencyMs
	fmt.Printf("scenario latency ms: min=%.2f avg=%.2f p50=%.2f p95=%.2f p99=%.2f max=%.2f\n",
		lat.Min, lat.Avg, lat.P50, lat.P95, lat.P99, lat.Max)

	names := make([]string, 0, len(result.Commands))
	for name := range result.Commands {
		if name != scenarioCommand {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		stats := result.Commands[name]
		fmt.Printf("%s: calls=%d success=%d failed=%d error_rate=%.4f p95=%.2fms\n",
			name, stats.Calls, stats.Success, stats.Failed, stats.ErrorRate, stats.LatencyMs.P95)
	}
}

func runTarget(cfg config) string {
	switch {
	case cfg.duration <= 0:
		return fmt.Sprintf("count:%d", cfg.total)
	case cfg.totalSet:
		return fmt.Sprintf("duration:%s,max-total:%d", cfg.duration, cfg.total)
	default:
		return fmt.Sprintf("duration:%s", cfg.duration)
	}
}

func buildLatencySummary(values []float64) latencySummary {
	if len(values) == 0 {
		return latencySummary{}
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	var sum float64
	for _, value := range sorted {
		sum += value
	}

	return latencySummary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

// percentile интерполирует значение между соседними точками, когда ранг
// не попадает ровно в элемент выборки.
func percentile(sorted []float64, p float64) float64 {
	switch len(sorted) {
	case 0:
		return 0
	case 1:
		return sorted[0]
	}

	rank := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}

	weight := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight
}

func ratio(failed, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(failed) / float64(total)
}
