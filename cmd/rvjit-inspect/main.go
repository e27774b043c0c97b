package main

// main.go implements the rvjit inspector CLI: it parses command-line flags,
// fetches diagnostic data from a running Engine's debug HTTP endpoint (served
// by the embedding program; no such server ships in this repository), and prints it either as pretty text or JSON. It also
// supports periodic watch mode and pprof snapshot download.
//
// The target process is expected to expose:
//   - GET /debug/rvjit/snapshot    - JSON payload with engine statistics.
//   - GET /debug/pprof/{heap,goroutine} - standard pprof handlers.
//
// The snapshot object is intentionally generic; we decode into map[string]any
// to avoid version skew between CLI and library.
//
// Concurrent watch-mode polls of the same target are deduplicated with
// singleflight, the same thundering-herd guard the teacher repo used for
// concurrent GetOrLoad calls (pkg/loader.go in arena-cache) — here applied to
// repeated HTTP fetches instead of cache loads.
//
// © 2025 rvjit authors. MIT License.

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/singleflight"
)

var version = "dev"

var fetchGroup singleflight.Group

func main() {
	opts := parseFlags()

	if opts.version {
		fmt.Println(version)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()

	if opts.heapProfile != "" {
		if err := downloadProfile(ctx, opts.target, "heap", opts.heapProfile); err != nil {
			fatal(err)
		}
		return
	}
	if opts.goroutineProfile != "" {
		if err := downloadProfile(ctx, opts.target, "goroutine", opts.goroutineProfile); err != nil {
			fatal(err)
		}
		return
	}

	if opts.watch {
		ticker := time.NewTicker(opts.interval)
		defer ticker.Stop()
		for {
			if err := dumpOnce(ctx, opts); err != nil {
				fmt.Fprintln(os.Stderr, "error:", err)
			}
			select {
			case <-ticker.C:
				continue
			case <-ctx.Done():
				return
			}
		}
	}

	if err := dumpOnce(ctx, opts); err != nil {
		fatal(err)
	}
}

type options struct {
	target           string
	json             bool
	watch            bool
	interval         time.Duration
	heapProfile      string
	goroutineProfile string
	version          bool
}

func parseFlags() *options {
	o := &options{}
	fs := flag.NewFlagSet("rvjit-inspect", flag.ExitOnError)
	fs.StringVar(&o.target, "target", "http://127.0.0.1:8080", "base URL of the running rvjit engine's debug endpoint")
	fs.BoolVar(&o.json, "json", false, "print the snapshot as JSON instead of text")
	fs.BoolVar(&o.watch, "watch", false, "poll the snapshot endpoint repeatedly")
	fs.DurationVar(&o.interval, "interval", 2*time.Second, "polling interval in watch mode")
	fs.StringVar(&o.heapProfile, "heap-profile", "", "download a heap pprof profile to this path and exit")
	fs.StringVar(&o.goroutineProfile, "goroutine-profile", "", "download a goroutine pprof profile to this path and exit")
	fs.BoolVar(&o.version, "version", false, "print the inspector's version and exit")
	fs.Parse(os.Args[1:])
	return o
}

func dumpOnce(ctx context.Context, opts *options) error {
	snap, err := fetchSnapshot(ctx, opts.target)
	if err != nil {
		return err
	}

	if opts.json {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}
	return prettyPrint(snap)
}

// fetchSnapshot dedupes concurrent requests to the same target: a slow
// snapshot handler under watch mode with a short interval would otherwise
// pile up overlapping in-flight requests against the target process.
func fetchSnapshot(ctx context.Context, base string) (map[string]any, error) {
	v, err, _ := fetchGroup.Do(base, func() (any, error) {
		url := base + "/debug/rvjit/snapshot"
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		res, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer res.Body.Close()
		if res.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %s", res.Status)
		}
		var data map[string]any
		if err := json.NewDecoder(res.Body).Decode(&data); err != nil {
			return nil, err
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]any), nil
}

func prettyPrint(data map[string]any) error {
	fmt.Printf("LogicalClock:    %v\n", data["logical_clock"])
	fmt.Printf("ModeSwitches:    %v\n", data["mode_switches"])
	fmt.Printf("Lookups:         %v\n", data["lookups_total"])
	fmt.Printf("Promotions:      %v\n", data["promotions_total"])
	fmt.Printf("Residency Hits:  %v\n", data["residency_hits_total"])
	fmt.Printf("Residency Miss:  %v\n", data["residency_misses_total"])
	fmt.Printf("Residency Size:  %v\n", data["residency_size"])
	fmt.Printf("Arena Used MB:   %.2f\n", toFloat(data["arena_bytes_used"])/1_048_576)
	fmt.Printf("Arena Cap MB:    %.2f\n", toFloat(data["arena_bytes_total"])/1_048_576)
	return nil
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int64:
		return float64(t)
	case json.Number:
		f, _ := t.Float64()
		return f
	default:
		return 0
	}
}

func downloadProfile(ctx context.Context, base, name, path string) error {
	url := fmt.Sprintf("%s/debug/pprof/%s", base, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", res.Status)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(f, res.Body); err != nil {
		return err
	}
	fmt.Printf("%s profile saved to %s\n", name, path)
	return nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "rvjit-inspect:", err)
	os.Exit(1)
}
