package scenario

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wondertwin-ai/ecoscan/internal/offers"
)

const walkthrough = `
name: "Earn and unlock"
description: "Points unlock offers in threshold order"
offers:
  - {id: A, title: A, points_required: 0, type: discount, tier: basic}
  - {id: B, title: B, points_required: 10, type: freebie, tier: basic}
  - {id: C, title: C, points_required: 25, type: digital, tier: eco}
steps:
  - name: "seeded"
    op: add_points
    points: 0
    expect:
      available: [A]
      upcoming: [B, C]
      points_needed: {B: 10, C: 25}
  - name: "earn 10"
    op: add_points
    points: 10
    expect:
      total_points: 10
      available: [A, B]
      points_needed: {C: 15}
  - name: "negative rejected"
    op: add_points
    points: -3
    expect:
      error: invalid_input
      total_points: 10
  - name: "carbon"
    op: update_carbon_score
    score: 2.5
    expect:
      carbon_score: 2.5
  - name: "reset"
    op: reset
    expect:
      total_points: 0
      available: []
      upcoming: []
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// --- Loading ---

func TestLoadScenarioYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "walk.yaml", walkthrough)

	s, err := LoadScenario(path)
	if err != nil {
		t.Fatalf("LoadScenario() error: %v", err)
	}
	if s.Name != "Earn and unlock" {
		t.Errorf("expected name 'Earn and unlock', got %q", s.Name)
	}
	if len(s.Steps) != 5 || len(s.Offers) != 3 {
		t.Fatalf("expected 5 steps and 3 offers, got %d / %d", len(s.Steps), len(s.Offers))
	}
	if s.Offers[2].PointsRequired != 25 {
		t.Errorf("expected offer C at 25, got %+v", s.Offers[2])
	}
}

func TestLoadScenarioJSON(t *testing.T) {
	content := `{"name":"json","catalog":"default","steps":[{"op":"add_points","points":20,"expect":{"available":["1"]}}]}`
	path := writeFile(t, t.TempDir(), "s.json", content)

	s, err := LoadScenario(path)
	if err != nil {
		t.Fatalf("LoadScenario() error: %v", err)
	}
	if s.Catalog != "default" || s.Steps[0].Points != 20 {
		t.Errorf("unexpected scenario: %+v", s)
	}
}

func TestLoadScenarioErrors(t *testing.T) {
	dir := t.TempDir()
	tests := map[string]string{
		"noname.yaml":  "steps:\n  - op: reset\n",
		"nosteps.yaml": "name: x\n",
		"badop.yaml":   "name: x\nsteps:\n  - op: spend_points\n",
		"baderr.yaml":  "name: x\nsteps:\n  - op: reset\n    expect: {error: boom}\n",
		"test.toml":    "",
	}
	for name, content := range tests {
		path := writeFile(t, dir, name, content)
		if _, err := LoadScenario(path); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", walkthrough)
	writeFile(t, dir, "b.json", `{"name":"b","steps":[{"op":"reset"}]}`)
	writeFile(t, dir, "readme.txt", "ignore me")

	scenarios, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir() error: %v", err)
	}
	if len(scenarios) != 2 {
		t.Fatalf("expected 2 scenarios, got %d", len(scenarios))
	}
}

func TestLoadDirEmpty(t *testing.T) {
	scenarios, err := LoadDir(t.TempDir())
	if err != nil {
		t.Fatalf("LoadDir() error: %v", err)
	}
	if len(scenarios) != 0 {
		t.Fatalf("expected 0 scenarios, got %d", len(scenarios))
	}
}

// --- Running ---

func TestRunWalkthroughPasses(t *testing.T) {
	s, err := LoadScenario(writeFile(t, t.TempDir(), "walk.yaml", walkthrough))
	if err != nil {
		t.Fatal(err)
	}

	res, err := Run(s, offers.New())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	for _, sr := range res.Steps {
		if !sr.Passed {
			t.Errorf("step %q failed: %s", sr.Name, sr.Error)
		}
	}
	if !res.Passed {
		t.Error("expected scenario to pass")
	}
	if res.Final.TotalPoints != 0 {
		t.Errorf("expected final state after reset, got %+v", res.Final)
	}
}

func TestRunReportsFailures(t *testing.T) {
	content := `
name: "wrong expectation"
catalog: default
steps:
  - op: add_points
    points: 20
    expect:
      available: ["1", "3"]
  - op: add_points
    points: 5
    expect:
      total_points: 25
`
	s, err := LoadScenario(writeFile(t, t.TempDir(), "bad.yaml", content))
	if err != nil {
		t.Fatal(err)
	}
	res, err := Run(s, offers.New())
	if err != nil {
		t.Fatal(err)
	}
	if res.Passed {
		t.Fatal("expected scenario to fail")
	}
	if res.Steps[0].Passed || !strings.Contains(res.Steps[0].Error, "expected available") {
		t.Errorf("expected first step to fail on available, got %+v", res.Steps[0])
	}
	if !res.Steps[1].Passed {
		t.Errorf("expected later steps to keep running, got %+v", res.Steps[1])
	}
	if res.Steps[0].Name != "add_points" {
		t.Errorf("expected op as default step name, got %q", res.Steps[0].Name)
	}
}

func TestRunCatalogFileRelativeToScenario(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "offers.yaml", "offers:\n  - {id: z, title: Z, points_required: 3, type: service, tier: eco}\n")
	s, err := LoadScenario(writeFile(t, dir, "s.yaml", `
name: file catalog
catalog: offers.yaml
steps:
  - op: add_points
    points: 3
    expect: {available: [z]}
`))
	if err != nil {
		t.Fatal(err)
	}
	res, err := Run(s, offers.New())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !res.Passed {
		t.Errorf("expected pass, got %+v", res.Steps)
	}
}

func TestRunInvalidSeed(t *testing.T) {
	s := &Scenario{
		Name:   "dup",
		Offers: []offers.Offer{{ID: "a"}, {ID: "a"}},
		Steps:  []Step{{Op: OpReset}},
	}
	if _, err := Run(s, offers.New()); err == nil {
		t.Fatal("expected setup error for duplicate ids")
	}
}

func TestBundledScenariosPass(t *testing.T) {
	scenarios, err := LoadDir(filepath.Join("..", "..", "scenarios"))
	if err != nil {
		t.Fatalf("LoadDir() error: %v", err)
	}
	if len(scenarios) == 0 {
		t.Fatal("expected bundled scenarios")
	}
	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			result, err := Run(s, offers.New())
			if err != nil {
				t.Fatalf("Run() error: %v", err)
			}
			for _, sr := range result.Steps {
				if !sr.Passed {
					t.Errorf("step %q failed: %s", sr.Name, sr.Error)
				}
			}
		})
	}
}
