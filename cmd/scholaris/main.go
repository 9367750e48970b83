package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/ssemanda/scholaris/internal/bootstrap"
	"github.com/ssemanda/scholaris/internal/pkg/logger"
)

const usage = `Usage: scholaris <command> [flags]

Commands:
  migrate                      apply pending database migrations and exit
  generate-invoices            issue invoices for a billing period
      -year <academic year>    e.g. 2026
      -term <term>             e.g. 1
  auto-allocate                spread a sponsor payment across aided students
      -payment <id>            sponsor payment id
  allocations                  list the allocations recorded against a payment
      -payment <id>            sponsor payment id
`

func main() {
	// Missing .env is fine; configuration falls back to the yaml file and
	// the process environment.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, lgr, err := bootstrap.LoadConfigAndSetupLogger()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	database, err := bootstrap.SetupDatabase(cfg, lgr)
	if err != nil {
		lgr.Error().Err(err).Msg("Failed to set up database")
		os.Exit(1)
	}
	defer database.Close()

	switch os.Args[1] {
	case "migrate":
		// SetupDatabase already ran the migrations.
		lgr.Info().Msg("Migrations up to date")

	case "generate-invoices":
		fs := flag.NewFlagSet("generate-invoices", flag.ExitOnError)
		year := fs.String("year", "", "academic year to invoice")
		term := fs.String("term", "", "term to invoice")
		_ = fs.Parse(os.Args[2:])
		if *year == "" || *term == "" {
			fmt.Fprintln(os.Stderr, "generate-invoices requires -year and -term")
			os.Exit(2)
		}

		deps, err := bootstrap.BuildDependencies(cfg, database, lgr)
		if err != nil {
			lgr.Error().Err(err).Msg("Failed to build dependencies")
			os.Exit(1)
		}
		summary, err := deps.Services.Invoices.GenerateInvoices(context.Background(), *year, *term)
		if err != nil {
			lgr.Error().Err(err).Msg("Invoice generation failed")
			os.Exit(1)
		}
		printJSON(summary)

	case "auto-allocate":
		fs := flag.NewFlagSet("auto-allocate", flag.ExitOnError)
		paymentID := fs.Int64("payment", 0, "sponsor payment id")
		_ = fs.Parse(os.Args[2:])
		if *paymentID <= 0 {
			fmt.Fprintln(os.Stderr, "auto-allocate requires -payment")
			os.Exit(2)
		}

		deps, err := bootstrap.BuildDependencies(cfg, database, lgr)
		if err != nil {
			lgr.Error().Err(err).Msg("Failed to build dependencies")
			os.Exit(1)
		}
		allocations, err := deps.Services.Allocations.AutoAllocate(context.Background(), *paymentID)
		if err != nil {
			lgr.Error().Err(err).Msg("Auto allocation failed")
			os.Exit(1)
		}
		printJSON(allocations)

	case "allocations":
		fs := flag.NewFlagSet("allocations", flag.ExitOnError)
		paymentID := fs.Int64("payment", 0, "sponsor payment id")
		_ = fs.Parse(os.Args[2:])
		if *paymentID <= 0 {
			fmt.Fprintln(os.Stderr, "allocations requires -payment")
			os.Exit(2)
		}

		deps, err := bootstrap.BuildDependencies(cfg, database, lgr)
		if err != nil {
			lgr.Error().Err(err).Msg("Failed to build dependencies")
			os.Exit(1)
		}
		allocations, err := deps.Services.Allocations.Allocations(context.Background(), *paymentID)
		if err != nil {
			lgr.Error().Err(err).Msg("Listing allocations failed")
			os.Exit(1)
		}
		printJSON(allocations)

	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}
}

func printJSON(v interface{}) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		logger.Error().Err(err).Msg("Failed to encode output")
		return
	}
	fmt.Println(string(out))
}
