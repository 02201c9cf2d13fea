// Command loadtest fires N concurrent run_claim envelopes at a running control plane
// and reports claim-accepted latency and the success/Busy split (spec §8 scenario 3,
// generalizing cmd/anvil-load-test's world-spawn load generator from a
// controller-runtime client into an HTTP client of the dispatch envelope).
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/infraweave-io/control-plane/internal/router"
)

func main() {
	var (
		apiURL    string
		project   string
		namespace string
		region    string
		track     string
		module    string
		version   string
		n         int
		token     string
	)
	flag.StringVar(&apiURL, "api-url", envOr("INFRAWEAVE_API_URL", "http://localhost:8080"), "control plane base URL")
	flag.StringVar(&token, "token", os.Getenv("INFRAWEAVE_TOKEN"), "bearer token")
	flag.StringVar(&project, "project", "default", "project scope the token is authorized for")
	flag.StringVar(&namespace, "namespace", "loadtest", "claim metadata.namespace")
	flag.StringVar(&region, "region", "us-east-1", "claim spec.region")
	flag.StringVar(&track, "track", "stable", "catalog track")
	flag.StringVar(&module, "module", "s3-bucket", "module/claim kind name")
	flag.StringVar(&version, "version", "1.0.0", "module version")
	flag.IntVar(&n, "n", 10, "number of concurrent run_claim envelopes to fire")
	flag.Parse()

	fmt.Printf("firing %d concurrent run_claim envelopes at %s\n", n, apiURL)

	results := make(chan result, n)
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			results <- fireOne(apiURL, token, project, namespace, region, track, module, version, id)
		}(i)
	}

	wg.Wait()
	close(results)
	total := time.Since(start)

	report(total, results)
}

type result struct {
	latency time.Duration
	busy    bool
	ok      bool
	err     error
}

func fireOne(apiURL, token, project, namespace, region, track, module, version string, id int) result {
	name := fmt.Sprintf("loadtest-%d-%d", time.Now().UnixNano(), id)
	claim := fmt.Sprintf(`apiVersion: infraweave.io/v1
kind: %s
metadata:
  name: %s
  namespace: %s
spec:
  moduleVersion: %s
  region: %s
  variables: {}
`, module, name, namespace, version, region)

	// project is the router's authorization boundary for run_claim (spec §4.6); the
	// token passed via --token must be scoped to it.
	body, err := json.Marshal(router.Envelope{Event: "run_claim", Payload: map[string]any{
		"claim": claim, "project": project,
	}})
	if err != nil {
		return result{err: err}
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, apiURL+"/api/v1/dispatch", bytes.NewReader(body))
	if err != nil {
		return result{err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return result{latency: time.Since(start), err: err}
	}
	defer resp.Body.Close()

	var env router.Response
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return result{latency: time.Since(start), err: err}
	}
	latency := time.Since(start)
	if !env.OK {
		return result{latency: latency, busy: env.Error != nil && env.Error.Kind == "Busy"}
	}
	return result{latency: latency, ok: true}
}

func report(total time.Duration, results <-chan result) {
	var latencies []time.Duration
	var ok, busy, failed int
	for r := range results {
		latencies = append(latencies, r.latency)
		switch {
		case r.err != nil:
			failed++
		case r.busy:
			busy++
		case r.ok:
			ok++
		default:
			failed++
		}
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	fmt.Printf("completed in %v: %d ok, %d busy, %d failed\n", total, ok, busy, failed)
	fmt.Printf("claim-accepted latency: p50=%v p99=%v\n", percentile(latencies, 0.50), percentile(latencies, 0.99))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)-1))
	return sorted[idx]
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
