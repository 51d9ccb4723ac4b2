package lunar

import (
	"fmt"
	"os"
)

// ExportHistory writes the accepted iteration history as a CSV file for
// external contour/plot tooling (same column-per-quantity layout as the
// Matlab .dat exports elsewhere in this toolchain). Each row holds the
// snapshot a 2-D renderer needs: the design variables, the arrival triangle,
// the selenocentric entry state and the scalar cost/constraint pair.
func ExportHistory(filename string, states []*PatchedConic) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteString("v0,lam1,gam1,eps2,v2,phi2,rpl,tof,f,g\n"); err != nil {
		return err
	}
	for _, pc := range states {
		_, err := fmt.Fprintf(f, "%.6f,%.9f,%.9f,%.9f,%.6f,%.9f,%.3f,%.3f,%.6f,%.9g\n",
			pc.Depart.v, pc.Λ1, pc.Γ1, pc.Eps2, pc.V2, pc.Φ2, pc.Rpl, pc.TOF, pc.Cost, pc.Deficit)
		if err != nil {
			return err
		}
	}
	return nil
}
