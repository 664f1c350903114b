package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ilpi-dev/ilpi-store/internal/app"
	"github.com/ilpi-dev/ilpi-store/internal/config"
	"github.com/ilpi-dev/ilpi-store/internal/engine"
	"github.com/ilpi-dev/ilpi-store/internal/insights"
	"github.com/ilpi-dev/ilpi-store/internal/report"
	"github.com/ilpi-dev/ilpi-store/pkg/schema"
	"github.com/ilpi-dev/ilpi-store/pkg/sdk"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		return
	}

	cfg, err := config.Load("")
	if err != nil {
		fatal(err)
	}
	logger := cfg.App.NewLogger(os.Stderr)
	slog.SetDefault(logger)
	ctx := context.Background()

	command := strings.ToUpper(os.Args[1])
	args := os.Args[2:]

	// TRANSFER works on raw backends and must not hold the store open.
	if command == "TRANSFER" {
		if len(args) < 2 {
			fatal("Usage: ilpi TRANSFER <backend> <dir|dsn>")
		}
		transfer(ctx, cfg, args[0], args[1])
		return
	}

	facade, err := sdk.New(ctx, cfg, logger)
	if err != nil {
		fatal(err)
	}
	defer facade.Close()

	state := app.New(facade, app.WithLogger(logger), app.WithRollback(cfg.Sync.Rollback))
	if command != "PING" && command != "IMPORT" && command != "RESET" {
		if err := state.Init(ctx); err != nil {
			fatal(err)
		}
	}

	switch command {
	case "LOAD":
		printJSON(state.Snapshot())

	case "EMPLOYEES":
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tDEPARTMENT\tROLE\tSTATUS")
		for _, e := range state.Employees() {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.ID, e.FullName(), e.Department, e.Role, e.Status)
		}
		w.Flush()

	case "ADD_EMPLOYEE":
		if len(args) < 1 {
			fatal("Usage: ilpi ADD_EMPLOYEE <json>")
		}
		var e schema.Employee
		if err := json.Unmarshal([]byte(args[0]), &e); err != nil {
			fatal(err)
		}
		added, err := state.AddEmployee(ctx, e)
		check(err)
		printJSON(added)

	case "CLOCK_IN":
		if len(args) < 1 {
			fatal("Usage: ilpi CLOCK_IN <employeeID>")
		}
		shift, err := state.ClockIn(ctx, args[0], nil)
		check(err)
		printJSON(shift)

	case "CLOCK_OUT":
		if len(args) < 1 {
			fatal("Usage: ilpi CLOCK_OUT <shiftID>")
		}
		shift, err := state.ClockOut(ctx, args[0])
		check(err)
		printJSON(shift)

	case "VACATION":
		if len(args) < 3 {
			fatal("Usage: ilpi VACATION <employeeID> <start> <end>")
		}
		req, err := state.RequestVacation(ctx, args[0], args[1], args[2])
		check(err)
		printJSON(req)

	case "APPROVE", "REJECT":
		if len(args) < 1 {
			fatal(fmt.Sprintf("Usage: ilpi %s <vacationID>", command))
		}
		req, err := state.DecideVacation(ctx, args[0], command == "APPROVE")
		check(err)
		printJSON(req)

	case "EXPORT":
		dir := "."
		if len(args) > 0 {
			dir = args[0]
		}
		env := state.Snapshot()
		body, err := sdk.Export(env)
		check(err)
		path := filepath.Join(dir, sdk.ExportFileName(env, time.Now()))
		check(os.WriteFile(path, body, 0o644))
		fmt.Println(path)

	case "IMPORT":
		if len(args) < 1 {
			fatal("Usage: ilpi IMPORT <file>")
		}
		raw, err := os.ReadFile(args[0])
		check(err)
		check(state.Import(ctx, raw))
		fmt.Printf("OK: %d employees, %d shifts, %d vacations\n", len(state.Employees()), len(state.Shifts()), len(state.Vacations()))

	case "RESET":
		check(state.Reset(ctx))
		fmt.Println("OK")

	case "REPORT":
		if len(args) < 1 {
			fatal("Usage: ilpi REPORT <file.xlsx>")
		}
		f, err := os.Create(args[0])
		check(err)
		if err := report.WriteXLSX(f, report.Build(state.Snapshot())); err != nil {
			f.Close()
			fatal(err)
		}
		check(f.Close())
		fmt.Println(args[0])

	case "INSIGHTS":
		var gen insights.Generator = insights.Unavailable{}
		if cfg.Insights.APIKey != "" {
			gemini, err := insights.NewGemini(ctx, cfg.Insights.APIKey, cfg.Insights.Model, cfg.Insights.Endpoint)
			check(err)
			gen = gemini
		}
		fmt.Println(insights.NewService(gen, logger).ShiftInsights(ctx, state.Employees(), state.Shifts()))

	case "PING":
		if client, ok := facade.(*sdk.Client); ok {
			check(client.Ping(ctx))
			fmt.Println("PONG")
		} else {
			fmt.Println("PONG (embedded)")
		}

	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
	}
}

func transfer(ctx context.Context, cfg *config.Config, backend, target string) {
	src, err := engine.OpenBackend(ctx, cfg.Storage)
	check(err)
	defer src.Close()

	dstCfg := cfg.Storage
	dstCfg.Backend = backend
	if backend == config.BackendPostgres {
		dstCfg.DatabaseURL = target
	} else {
		dstCfg.DataDir = target
	}
	dst, err := engine.OpenBackend(ctx, dstCfg)
	check(err)
	defer dst.Close()

	check(engine.Transfer(ctx, src, dst, cfg.Storage.Key))
	fmt.Printf("OK: %s copied from %s to %s\n", cfg.Storage.Key, cfg.Storage.Backend, backend)
}

func printUsage() {
	fmt.Println("ILPI CLI - staff console for ilpi-store")
	fmt.Println("\nUsage:")
	fmt.Println("  ilpi LOAD")
	fmt.Println("  ilpi EMPLOYEES")
	fmt.Println("  ilpi ADD_EMPLOYEE <json>")
	fmt.Println("  ilpi CLOCK_IN <employeeID>")
	fmt.Println("  ilpi CLOCK_OUT <shiftID>")
	fmt.Println("  ilpi VACATION <employeeID> <start> <end>")
	fmt.Println("  ilpi APPROVE|REJECT <vacationID>")
	fmt.Println("  ilpi EXPORT [dir]")
	fmt.Println("  ilpi IMPORT <file>")
	fmt.Println("  ilpi RESET")
	fmt.Println("  ilpi REPORT <file.xlsx>")
	fmt.Println("  ilpi INSIGHTS")
	fmt.Println("  ilpi TRANSFER <backend> <dir|dsn>")
	fmt.Println("  ilpi PING")
	fmt.Println("\nEnvironment Variables:")
	fmt.Println("  ILPI_STORE_ADDR    Address of ilpi-stored (empty: embedded store)")
	fmt.Println("  ILPI_DISABLE_TLS   Set to true to disable TLS")
	fmt.Println("  ILPI_BACKEND       file, memory, sqlite, badger or postgres")
	fmt.Println("  ILPI_DATA_DIR      Data directory of the embedded store (default: ./data)")
}

func check(err error) {
	if err != nil {
		fatal(err)
	}
}

func fatal(v any) {
	slog.Error(fmt.Sprint(v))
	os.Exit(1)
}

func printJSON(v any) {
	bytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Println(v)
		return
	}
	fmt.Println(string(bytes))
}
