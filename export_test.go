package lunar

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestExportHistory(t *testing.T) {
	pc := leoDeparture(t)
	opt := newTestSGRA()
	history := []*PatchedConic{pc}
	rest := opt.Restore(pc)
	for rest.Next() {
		history = append(history, rest.Solution())
	}
	if err := rest.Err(); err != nil {
		t.Fatal(err)
	}

	fn := filepath.Join(t.TempDir(), "history.csv")
	if err := ExportHistory(fn, history); err != nil {
		t.Fatal(err)
	}
	raw, err := os.ReadFile(fn)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) != len(history)+1 {
		t.Fatalf("expected %d lines, got %d", len(history)+1, len(lines))
	}
	if lines[0] != "v0,lam1,gam1,eps2,v2,phi2,rpl,tof,f,g" {
		t.Fatalf("unexpected header: %s", lines[0])
	}
	for i, line := range lines[1:] {
		if got := len(strings.Split(line, ",")); got != 10 {
			t.Fatalf("row %d has %d columns", i, got)
		}
	}
}
