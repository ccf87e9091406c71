// Command driftwirectl is the operator tool: it queries a running server
// for statistics, publishes one-off messages, and load-tests governor
// thresholds locally before they are deployed.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/driftwire/driftwire"
	"github.com/driftwire/driftwire/client"
	"github.com/driftwire/driftwire/ratelimit"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "stats":
		runStats(os.Args[2:])
	case "publish":
		runPublish(os.Args[2:])
	case "loadtest":
		runLoadTest(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `usage: driftwirectl <command> [flags]

commands:
  stats     print a server's statistics snapshot
  publish   send one message to a channel
  loadtest  replay synthetic traffic against governor thresholds
`)
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	addr := fs.String("addr", "localhost:8080", "server address")
	timeout := fs.Duration("timeout", 5*time.Second, "request timeout")
	fs.Parse(args)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	c, err := client.Dial(ctx, *addr, "/")
	if err != nil {
		fatalf("dial: %v", err)
	}
	defer c.Close()

	if err := c.RequestStats(); err != nil {
		fatalf("request stats: %v", err)
	}

	var stats driftwire.StatsReply
	if err := c.ReceiveJSON(*timeout, &stats); err != nil {
		fatalf("read stats: %v", err)
	}

	out, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		fatalf("format stats: %v", err)
	}
	fmt.Println(string(out))
}

func runPublish(args []string) {
	fs := flag.NewFlagSet("publish", flag.ExitOnError)
	addr := fs.String("addr", "localhost:8080", "server address")
	channelName := fs.String("channel", "", "channel to publish to")
	data := fs.String("data", "", "message payload (JSON, or a bare string)")
	timeout := fs.Duration("timeout", 5*time.Second, "request timeout")
	fs.Parse(args)

	if *channelName == "" {
		fatalf("publish: -channel is required")
	}
	if *data == "" {
		fatalf("publish: -data is required")
	}

	// Bare strings are wrapped so the payload is always valid JSON.
	payload := json.RawMessage(*data)
	if !json.Valid(payload) {
		wrapped, err := json.Marshal(*data)
		if err != nil {
			fatalf("encode data: %v", err)
		}
		payload = wrapped
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	c, err := client.Dial(ctx, *addr, "/")
	if err != nil {
		fatalf("dial: %v", err)
	}
	defer c.Close()

	if err := c.Publish(*channelName, payload); err != nil {
		fatalf("publish: %v", err)
	}
	fmt.Printf("published to %s\n", *channelName)
}

func runLoadTest(args []string) {
	fs := flag.NewFlagSet("loadtest", flag.ExitOnError)
	requests := fs.Int("requests", 1000, "number of admissions to attempt")
	perSecond := fs.Float64("rate", 0, "pace in requests per second (0 = unpaced)")
	maxRequests := fs.Int("max", ratelimit.DefaultMaxRequests, "window threshold")
	window := fs.Duration("window", ratelimit.DefaultWindow, "admission window")
	block := fs.Duration("block", ratelimit.DefaultBlockDuration, "cooldown duration")
	fs.Parse(args)

	cfg := ratelimit.Config{
		MaxRequests:   *maxRequests,
		Window:        *window,
		BlockDuration: *block,
	}

	result, err := ratelimit.RunLoadTest(context.Background(), cfg, *requests, *perSecond)
	if err != nil {
		fatalf("loadtest: %v", err)
	}

	fmt.Printf("requests: %d\nallowed:  %d\nblocked:  %d\nelapsed:  %s\n",
		result.Requests, result.Allowed, result.Blocked, result.Elapsed.Round(time.Millisecond))
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
