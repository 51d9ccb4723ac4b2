package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/ChristopherRabotin/lunar"
	"github.com/guptarohit/asciigraph"
	"github.com/soniakeys/meeus/julian"
)

const (
	earthRadius = 6371400.0 // m
	dateFormat  = "2006-01-02 15:04:05"
)

var (
	altitude  float64
	injection float64
	λ1deg     float64
	rf        float64
	departure string
	csvPath   string
	optimize  bool
	conjugate bool
	verbose   bool
)

func init() {
	flag.Float64Var(&altitude, "alt", 185000.0, "parking orbit altitude [m]")
	flag.Float64Var(&injection, "dv", 3225.0, "translunar injection burn above circular speed [m/s]")
	flag.Float64Var(&λ1deg, "lam1", 90.0, "arrival phase angle [deg]")
	flag.Float64Var(&rf, "rf", 1937000.0, "target lunar orbit radius [m]")
	flag.StringVar(&departure, "date", "", "departure date (YYYY-MM-DD, default now)")
	flag.StringVar(&csvPath, "csv", "", "write the accepted iteration history to this CSV file")
	flag.BoolVar(&optimize, "optimize", false, "run the full gradient-restoration optimization after restoring")
	flag.BoolVar(&conjugate, "conjugate", false, "use conjugate directions in the gradient phase")
	flag.BoolVar(&verbose, "v", false, "log each accepted iteration")
}

func main() {
	flag.Parse()
	depDT := time.Now().UTC()
	if departure != "" {
		var err error
		depDT, err = time.Parse("2006-01-02", departure)
		if err != nil {
			log.Fatalf("[error] could not parse -date: %s", err)
		}
	}

	leo := lunar.NewCircularOrbit(lunar.EarthMoon.GMEarth(), earthRadius+altitude)
	pt := lunar.TransferPoint{
		R0: leo.R(),
		V0: leo.V() + injection,
		Φ0: 0,
		Λ1: lunar.Deg2rad(λ1deg),
		Rf: rf,
	}
	sol, err := pt.Perturb(0, 0)
	if err != nil {
		log.Fatalf("[error] initial trajectory: %s", err)
	}
	log.Printf("[info] initial guess: %s", sol)

	opt := lunar.NewSGRA()
	opt.Conjugate = conjugate
	opt.Verbose = verbose

	// Restore the perilune constraint, keeping each accepted state for the
	// convergence plot and the CSV export.
	history := []*lunar.PatchedConic{sol}
	rest := opt.Restore(sol)
	for rest.Next() {
		history = append(history, rest.Solution())
	}
	if err := rest.Err(); err != nil {
		log.Fatalf("[error] restoration failed after %d iterations: %s", rest.Iterations(), err)
	}
	sol = rest.Solution()
	log.Printf("[info] restored in %d iterations: %s", rest.Iterations(), sol)

	if optimize {
		sol, err = opt.OptimizeΔv(sol)
		if err != nil {
			log.Fatalf("[error] optimization failed: %s", err)
		}
		history = append(history, sol)
		log.Printf("[info] optimized: %s (Q=%g)", sol, sol.QOpt)
	}

	if len(history) > 1 {
		gplot := make([]float64, len(history))
		for i, pc := range history {
			gplot[i] = math.Log10(math.Abs(pc.Deficit))
		}
		fmt.Println(asciigraph.Plot(gplot, asciigraph.Height(10),
			asciigraph.Caption("log10 |relative perilune deficit| per accepted iteration")))
	}

	arrDT := depDT.Add(time.Duration(sol.TOF) * time.Second)
	fmt.Printf("=== Transfer summary ===\n")
	fmt.Printf("departure:  %s (JD %.5f)\n", depDT.Format(dateFormat), julian.TimeToJD(depDT))
	fmt.Printf("SOI entry:  %s (JD %.5f)\n", arrDT.Format(dateFormat), julian.TimeToJD(arrDT))
	fmt.Printf("TOF:        %.3f days\n", sol.TOF/86400)
	fmt.Printf("v0:         %.4f m/s (ΔV1 %.4f m/s)\n", sol.Depart.V(), sol.ΔV1)
	fmt.Printf("perilune:   %.1f m at %.4f m/s (ΔV2 %.4f m/s)\n", sol.Rpl, sol.Vpl, sol.ΔV2)
	fmt.Printf("total Δv:   %.4f m/s\n", sol.Cost)

	if csvPath != "" {
		if err := lunar.ExportHistory(csvPath, history); err != nil {
			log.Fatalf("[error] could not export history: %s", err)
		}
		log.Printf("[info] history written to %s", csvPath)
	}
}
