// Command evdarp builds the dial-a-ride model for the configured instance,
// exports it in LP format, solves it and prints the routes.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"evdarp/internal/buildinfo"
	"evdarp/internal/config"
	"evdarp/internal/lp"
	"evdarp/internal/planner"
	"evdarp/internal/routes"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	in, err := cfg.LoadInstance()
	if err != nil {
		log.Fatalf("instance: %v", err)
	}
	log.Printf("%s instance=%s requests=%d stations=%d vehicles=%d features=[%s]",
		buildinfo.String(), in.Name, in.Requests(), len(in.Stations()), in.NumVehicles(), cfg.Features)

	solver := cfg.NewSolver()
	var opts []planner.Option
	if cfg.LPExport != "" {
		opts = append(opts, planner.WithExport(cfg.LPExport))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	res, err := planner.New(solver, opts...).Run(ctx, in, cfg.Features)
	if err != nil {
		log.Fatalf("solve: %v", err)
	}

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()
	if !res.Status.HasValues() {
		fmt.Fprintln(out, "No solution exists")
		return
	}
	if res.Status == lp.Feasible {
		fmt.Fprintf(out, "objective %.2f (feasible, optimality not proven)\n\n", res.Objective)
	} else {
		fmt.Fprintf(out, "objective %.2f\n\n", res.Objective)
	}
	if err := routes.WriteReport(out, res.Routes); err != nil {
		log.Fatalf("report: %v", err)
	}
	for k := 0; k < in.NumVehicles(); k++ {
		fmt.Fprintln(out)
		if err := routes.WriteMatrix(out, res.Formulation, res.Solution, k); err != nil {
			log.Fatalf("matrix: %v", err)
		}
	}
}
