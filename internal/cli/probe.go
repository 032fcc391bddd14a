package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/internxt/drivectl/internal/api"
	"github.com/internxt/drivectl/internal/constants"
	"github.com/internxt/drivectl/internal/progress"
	"github.com/internxt/drivectl/internal/ratelimit"
)

// probeSummary aggregates the outcome of a probe run.
type probeSummary struct {
	Total       int
	OK          int
	RateLimited int // 429s that survived every retry
	Failed      int
	Elapsed     time.Duration
	Latencies   []time.Duration
	LastErr     error
}

func (s *probeSummary) percentile(p float64) time.Duration {
	if len(s.Latencies) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), s.Latencies...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(p * float64(len(sorted)-1))
	return sorted[idx]
}

func (s *probeSummary) print(w io.Writer) {
	fmt.Fprintf(w, "requests: %d  ok: %d  rate-limited: %d  failed: %d  elapsed: %s\n",
		s.Total, s.OK, s.RateLimited, s.Failed, s.Elapsed.Round(time.Millisecond))
	if len(s.Latencies) > 0 {
		fmt.Fprintf(w, "latency p50: %s  p95: %s  max: %s\n",
			s.percentile(0.5).Round(time.Millisecond),
			s.percentile(0.95).Round(time.Millisecond),
			s.percentile(1).Round(time.Millisecond))
	}
	if s.LastErr != nil {
		fmt.Fprintf(w, "last error: %v\n", s.LastErr)
	}
}

// runProbe issues n GETs of path with at most concurrency in flight. Failures
// are counted, not returned; only ctx cancellation stops the run early.
func runProbe(ctx context.Context, client *api.Client, network bool, path string, n, concurrency int, rep progress.Reporter) *probeSummary {
	summary := &probeSummary{Total: n}
	var mu sync.Mutex

	rep.Start(int64(n), "probing "+path)
	start := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			reqStart := time.Now()
			err := client.Get(ctx, network, path, nil, nil)
			took := time.Since(reqStart)

			mu.Lock()
			switch {
			case err == nil:
				summary.OK++
				summary.Latencies = append(summary.Latencies, took)
			case ratelimit.IsRateLimited(err):
				summary.RateLimited++
				summary.LastErr = err
			default:
				summary.Failed++
				summary.LastErr = err
			}
			mu.Unlock()

			rep.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	summary.Elapsed = time.Since(start)
	rep.Finish()
	return summary
}

// newProbeCmd creates the 'probe' command.
func newProbeCmd() *cobra.Command {
	var (
		requests    int
		concurrency int
		network     bool
	)

	cmd := &cobra.Command{
		Use:   "probe <path>",
		Short: "Send a burst of requests and report how the rate limiter coped",
		Long: `Send a burst of GETs to one API path through the SDK client, then print a
summary and the quota table. Throttling waits and 429 retries happen inside
the client; only requests that still failed are counted as rate-limited.

Examples:
  drivectl probe /users/usage -n 50 -c 8
  drivectl probe --network /buckets -n 20`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if requests < 1 {
				return fmt.Errorf("--requests must be at least 1")
			}
			if concurrency < 1 || concurrency > constants.MaxProbeConcurrency {
				return fmt.Errorf("--concurrency must be between 1 and %d", constants.MaxProbeConcurrency)
			}

			client, err := getAPIClient()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), constants.ProbeContextTimeout)
			defer cancel()

			summary := runProbe(ctx, client, network, args[0], requests, concurrency, progress.New())

			out := cmd.OutOrStdout()
			summary.print(out)
			renderQuotaTable(out, client.RateLimiter())

			if ctx.Err() != nil {
				return fmt.Errorf("probe interrupted: %w", ctx.Err())
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&requests, "requests", "n", constants.DefaultProbeRequests, "Number of requests to send")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "p", constants.DefaultProbeConcurrency, "Maximum requests in flight")
	cmd.Flags().BoolVar(&network, "network", false, "Send to the Network API instead of the Drive API")
	return cmd
}
