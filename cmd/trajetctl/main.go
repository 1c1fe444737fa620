// Package main provides trajetctl, a command line client for the configured
// geocoding and routing provider.
//
// Usage:
//
//	trajetctl geocode [-v] <address>
//	trajetctl suggest [-v] <partial address>
//	trajetctl route [-v] [-avoid-tolls] -from <lat,lon|address> -to <lat,lon|address>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/kr/pretty"
	"github.com/rs/zerolog"

	"github.com/trajet/trajet/internal/config"
	"github.com/trajet/trajet/internal/provider/resilience"
	"github.com/trajet/trajet/internal/routing"
	"github.com/trajet/trajet/internal/routing/providers"
)

const usage = `usage: trajetctl <command> [flags] [args]

commands:
  geocode   resolve an address to a point
  suggest   list autocomplete suggestions
  route     compute a route between two points or addresses
`

var errUsage = errors.New("invalid usage")

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return errUsage
	}

	config.LoadDotEnv()
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.Kitchen}).
		Level(zerolog.WarnLevel).
		With().Timestamp().Logger()

	provider, err := providers.New(cfg, resilience.NewRegistry(), logger)
	if err != nil {
		return err
	}
	svc := routing.NewService(routing.ServiceConfig{Provider: provider, Logger: logger, CacheTTL: -1})

	ctx, cancel := context.WithTimeout(context.Background(), 2*cfg.ProviderTimeout)
	defer cancel()

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "geocode":
		return geocodeCmd(ctx, svc, rest, stdout, stderr)
	case "suggest":
		return suggestCmd(ctx, svc, rest, stdout, stderr)
	case "route":
		return routeCmd(ctx, svc, rest, stdout, stderr)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", cmd, usage)
		return errUsage
	}
}

func geocodeCmd(ctx context.Context, svc *routing.Service, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("geocode", flag.ContinueOnError)
	fs.SetOutput(stderr)
	verbose := fs.Bool("v", false, "dump the full result")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	text := strings.Join(fs.Args(), " ")

	place, err := svc.Geocode(ctx, text)
	if err != nil {
		return err
	}
	if *verbose {
		pretty.Fprintf(stdout, "%# v\n", place)
		return nil
	}
	fmt.Fprintf(stdout, "%s\t%.6f,%.6f\n", place.Label, place.Position.Lat, place.Position.Lon)
	return nil
}

func suggestCmd(ctx context.Context, svc *routing.Service, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("suggest", flag.ContinueOnError)
	fs.SetOutput(stderr)
	verbose := fs.Bool("v", false, "dump the full result")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	text := strings.Join(fs.Args(), " ")

	suggestions, err := svc.Suggest(ctx, text)
	if err != nil {
		return err
	}
	if *verbose {
		pretty.Fprintf(stdout, "%# v\n", suggestions)
		return nil
	}
	if len(suggestions) == 0 {
		fmt.Fprintf(stderr, "no suggestions (queries need at least %d characters)\n", routing.MinSuggestLength)
	}
	for _, s := range suggestions {
		fmt.Fprintln(stdout, s.Label)
	}
	return nil
}

func routeCmd(ctx context.Context, svc *routing.Service, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("route", flag.ContinueOnError)
	fs.SetOutput(stderr)
	verbose := fs.Bool("v", false, "dump the full result")
	avoidTolls := fs.Bool("avoid-tolls", false, "avoid toll roads")
	from := fs.String("from", "", "origin as lat,lon or an address")
	to := fs.String("to", "", "destination as lat,lon or an address")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *from == "" || *to == "" {
		fmt.Fprintln(stderr, "route needs -from and -to")
		return errUsage
	}

	origin, err := resolve(ctx, svc, *from)
	if err != nil {
		return fmt.Errorf("origin: %w", err)
	}
	destination, err := resolve(ctx, svc, *to)
	if err != nil {
		return fmt.Errorf("destination: %w", err)
	}

	route, err := svc.Directions(ctx, routing.DirectionsRequest{
		Origin:      origin,
		Destination: destination,
		AvoidTolls:  *avoidTolls,
	})
	if err != nil {
		return err
	}
	if *verbose {
		pretty.Fprintf(stdout, "%# v\n", route)
		return nil
	}
	fmt.Fprintf(stdout, "%s\t%s\t%d points\n",
		route.Summary.DistanceText(), route.Summary.DurationText(), len(route.Geometry))
	return nil
}

// resolve parses s as "lat,lon" or geocodes it.
func resolve(ctx context.Context, g routing.Geocoder, s string) (routing.Coordinate, error) {
	if c, ok := parsePoint(s); ok {
		return c, c.Validate()
	}
	place, err := g.Geocode(ctx, s)
	if err != nil {
		return routing.Coordinate{}, err
	}
	return place.Position, nil
}
