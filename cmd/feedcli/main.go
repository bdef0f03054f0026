// Command feedcli is a line-oriented terminal client for the civic feed.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"

	"civicfeed/internal/config"
	"civicfeed/internal/observability"
)

func main() {
	baseURL := flag.String("url", "", "Feed API base URL (defaults to FEED_API_URL)")
	email := flag.String("email", "", "Log in with this email on start")
	password := flag.String("password", "", "Password for -email")
	lat := flag.Float64("lat", 0, "Latitude for distance labels")
	lng := flag.Float64("lng", 0, "Longitude for distance labels")
	verbose := flag.Bool("v", false, "Log engine activity to stderr")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *baseURL != "" {
		cfg.FeedAPIURL = *baseURL
	}

	if *verbose {
		observability.SetLogger(observability.NewLogger(os.Stderr, cfg.Env))
	} else {
		observability.SetLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	}

	a := newApp(cfg, os.Stdout)
	if *lat != 0 || *lng != 0 {
		a.setLocation(*lat, *lng)
	}

	ctx := context.Background()
	if *email != "" {
		a.run(ctx, fmt.Sprintf("login %s %s", *email, *password))
	} else {
		a.printHelp()
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprint(a.out, prompt)
		if !scanner.Scan() {
			fmt.Fprintln(a.out)
			return
		}
		if quit := a.run(ctx, scanner.Text()); quit {
			return
		}
	}
}
