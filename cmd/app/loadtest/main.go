// Command loadtest drives a running wallet API with a mixed read/write load
// and prints throughput and latency percentiles.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pvzzle/ethwallet/internal/storage"

	"golang.org/x/time/rate"
)

type opType int

const (
	opWrite opType = iota
	opRead
)

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:3000", "wallet API base URL")
		dur       = flag.Duration("dur", 60*time.Second, "test duration")
		warmup    = flag.Duration("warmup", 5*time.Second, "warmup duration (not counted)")
		avgRPS    = flag.Int("avg-rps", 300, "avg RPS")
		peakRPS   = flag.Int("peak-rps", 1500, "peak RPS (during ramp)")
		ramp      = flag.Duration("ramp", 10*time.Second, "ramp-up duration to peak")
		rwRatio   = flag.Int("rw", 15, "R/W ratio, reads per 1 write (e.g. 15)")
		workers   = flag.Int("workers", 64, "concurrent workers")
		addresses = flag.Int("addresses", 20000, "distinct wallet addresses")
	)
	flag.Parse()

	if *addresses <= 0 || *workers <= 0 || *avgRPS <= 0 {
		fmt.Fprintln(os.Stderr, "addresses, workers and avg-rps must be positive")
		os.Exit(2)
	}

	t := &target{
		base: strings.TrimRight(*baseURL, "/"),
		cl: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        *workers,
				MaxIdleConnsPerHost: *workers,
			},
		},
		addresses: *addresses,
	}

	ctx := context.Background()
	if err := t.ping(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "target not reachable:", err)
		os.Exit(1)
	}

	fmt.Println("starting warmup:", *warmup)
	runPhase(ctx, t, *workers, *avgRPS, *avgRPS, 0, *warmup, *rwRatio, false)

	fmt.Println("starting measured test:", *dur)
	res := runPhase(ctx, t, *workers, *avgRPS, *peakRPS, *ramp, *dur, *rwRatio, true)

	printReport(res)
}
type results struct {
	totalOps   uint64
	readOps    uint64
	writeOps   uint64
	errOps     uint64
	latencies  []time.Duration // measured ops only
	startedAt  time.Time
	finishedAt time.Time
}

func runPhase(
	ctx context.Context,
	t *target,
	workers int,
	avgRPS int,
	peakRPS int,
	ramp time.Duration,
	dur time.Duration,
	rw int,
	collect bool,
) results {
	ctx, cancel := context.WithTimeout(ctx, dur)
	defer cancel()

	// RPS limiter with optional ramp to peak:
	// If ramp == 0 => constant avgRPS
	lim := rate.NewLimiter(rate.Limit(avgRPS), avgRPS)

	type job struct {
		op opType
	}

	jobs := make(chan job, 1024)

	var (
		res results
		mu  sync.Mutex
	)

	res.startedAt = time.Now()

	// workers
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano()))
			for j := range jobs {
				t0 := time.Now()
				err := t.do(ctx, j.op, r)
				dt := time.Since(t0)

				atomic.AddUint64(&res.totalOps, 1)
				if j.op == opRead {
					atomic.AddUint64(&res.readOps, 1)
				} else {
					atomic.AddUint64(&res.writeOps, 1)
				}
				if err != nil {
					atomic.AddUint64(&res.errOps, 1)
					continue
				}
				if collect {
					mu.Lock()
					res.latencies = append(res.latencies, dt)
					mu.Unlock()
				}
			}
		}()
	}

	// producer
	go func() {
		defer close(jobs)

		// pattern: rw reads per 1 write
		// e.g. rw=15 => 15 reads then 1 write
		pattern := make([]opType, 0, rw+1)
		for i := 0; i < rw; i++ {
			pattern = append(pattern, opRead)
		}
		pattern = append(pattern, opWrite)
		idx := 0

		rampStart := time.Now()

		for {
			if err := lim.Wait(ctx); err != nil {
				return
			}

			// ramp logic
			if ramp > 0 {
				el := time.Since(rampStart)
				if el < ramp {
					// linear from avgRPS -> peakRPS
					cur := float64(avgRPS) + (float64(peakRPS-avgRPS) * (float64(el) / float64(ramp)))
					lim.SetLimit(rate.Limit(cur))
				} else {
					lim.SetLimit(rate.Limit(peakRPS))
				}
			}

			jobs <- job{op: pattern[idx]}
			idx++
			if idx == len(pattern) {
				idx = 0
			}
		}
	}()

	wg.Wait()
	res.finishedAt = time.Now()
	return res
}

type target struct {
	base      string
	cl        *http.Client
	addresses int
}

func (t *target) ping(ctx context.Context) error {
	return t.send(ctx, http.MethodGet, "/health", nil, http.StatusOK)
}

func (t *target) do(ctx context.Context, op opType, r *rand.Rand) error {
	switch op {
	case opRead:
		return t.send(ctx, http.MethodGet, "/api/transactions/"+t.address(r), nil, http.StatusOK)
	case opWrite:
		body, err := json.Marshal(fakeTx(r, t.address(r), t.address(r)))
		if err != nil {
			return err
		}
		return t.send(ctx, http.MethodPost, "/api/transactions", body, http.StatusCreated)
	default:
		return nil
	}
}

func (t *target) send(ctx context.Context, method, path string, body []byte, want int) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, t.base+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.cl.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != want {
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	return nil
}

// имитация пользователей: фиксированный пул адресов
func (t *target) address(r *rand.Rand) string {
	return fmt.Sprintf("0x%040x", 1+r.Intn(t.addresses))
}

func fakeTx(r *rand.Rand, from, to string) storage.TxRecord {
	return storage.TxRecord{
		Hash:   fmt.Sprintf("0x%064x", r.Uint64()),
		From:   from,
		To:     to,
		Amount: fmt.Sprintf("0.%03d", 1+r.Intn(999)),
	}
}

func printReport(res results) {
	d := res.finishedAt.Sub(res.startedAt)
	total := atomic.LoadUint64(&res.totalOps)
	errs := atomic.LoadUint64(&res.errOps)
	reads := atomic.LoadUint64(&res.readOps)
	writes := atomic.LoadUint64(&res.writeOps)

	fmt.Printf("\n== REPORT ==\n")
	fmt.Printf("duration: %s\n", d)
	fmt.Printf("ops: total=%d read=%d write=%d errors=%d\n", total, reads, writes, errs)
	if d > 0 {
		fmt.Printf("throughput: %.2f ops/s\n", float64(total)/d.Seconds())
	}
	if len(res.latencies) == 0 {
		fmt.Println("no latency samples")
		return
	}
	sort.Slice(res.latencies, func(i, j int) bool { return res.latencies[i] < res.latencies[j] })
	p := func(q float64) time.Duration {
		i := int(q * float64(len(res.latencies)-1))
		return res.latencies[i]
	}
	fmt.Printf("latency p50=%s p95=%s p99=%s max=%s\n",
		p(0.50), p(0.95), p(0.99), res.latencies[len(res.latencies)-1],
	)
}
