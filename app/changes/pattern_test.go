package changes

import (
	"slices"
	"testing"
)

func TestExtractor_Deltas(t *testing.T) {
	e := NewExtractor(DefaultDictionary())

	tests := []struct {
		unit    string
		want    Delta
		percent bool
	}{
		{"Ghost damage 40 → 55", Delta{From: 40, To: 55}, false},
		{"Cooldown 8s -> 6.5s", Delta{From: 8, To: 6.5}, false},
		{"Speed 300 >>> 320", Delta{From: 300, To: 320}, false},
		{"Range 10 => 12", Delta{From: 10, To: 12}, false},
		{"Health goes from 250 to 275", Delta{From: 250, To: 275}, false},
		{"Crit chance 5% → 10%", Delta{From: 5, To: 10, Percent: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.unit, func(t *testing.T) {
			x := e.Run(tt.unit)
			if !x.HasTransition {
				t.Fatal("Expected a transition")
			}
			if len(x.Deltas) != 1 {
				t.Fatalf("Expected 1 delta, got %d", len(x.Deltas))
			}
			if x.Deltas[0] != tt.want {
				t.Errorf("Expected %+v, got %+v", tt.want, x.Deltas[0])
			}
		})
	}
}

func TestExtractor_DeltaNeedsStat(t *testing.T) {
	e := NewExtractor(DefaultDictionary())

	x := e.Run("Prisma cost 100 → 400")
	if x.Counts()[CategorySystems] == 0 {
		t.Error("Expected a systems hint for a currency delta")
	}
	for _, h := range x.Hints {
		if h.Detector == DetectorDelta && h.Category != CategorySystems {
			t.Errorf("Expected delta hint only for systems, got %s", h.Category)
		}
	}

	x = e.Run("Season starts 10 to 12 days later")
	if !x.HasTransition {
		t.Error("Expected a transition")
	}
	for _, h := range x.Hints {
		if h.Detector == DetectorDelta {
			t.Errorf("Expected no delta hint without a stat, got %+v", h)
		}
	}
}

func TestExtractor_Entities(t *testing.T) {
	e := NewExtractor(DefaultDictionary())

	x := e.Run("Beebo and SHIV now share a cooldown")

	if !slices.Equal(x.Entities, []string{"Beebo", "Shiv"}) {
		t.Errorf("Expected Beebo and Shiv, got %v", x.Entities)
	}
	if got := x.Counts()[CategoryHunters]; got != 3 {
		t.Errorf("Expected 3 hunters hints, got %d", got)
	}
}

func TestExtractor_EntityWordBoundary(t *testing.T) {
	e := NewExtractor(DefaultDictionary())

	x := e.Run("The evacuation timer is shorter")
	if len(x.Entities) != 0 {
		t.Errorf("Expected no entities, got %v", x.Entities)
	}
}

func TestExtractor_Abilities(t *testing.T) {
	e := NewExtractor(DefaultDictionary())

	x := e.Run("Jin blink (Shift) and slash (RMB) were adjusted, see (e)")

	if !slices.Equal(x.Abilities, []string{"SHIFT", "RMB"}) {
		t.Errorf("Expected SHIFT and RMB, got %v", x.Abilities)
	}
}

func TestExtractor_VaultAndMode(t *testing.T) {
	e := NewExtractor(DefaultDictionary())

	tests := []struct {
		unit     string
		category Category
		want     int
	}{
		{"Vaults now guarantee a legendary drop", CategoryEquipment, 1},
		{"The vault now guarantees a legendary drop", CategoryEquipment, 1},
		{"Casual queue times shortened", CategoryModes, 1},
		{"Ghost in ranked arena", CategoryModes, 2},
	}

	for _, tt := range tests {
		if got := e.Run(tt.unit).Counts()[tt.category]; got != tt.want {
			t.Errorf("Run(%q): expected %d %s hints, got %d", tt.unit, tt.want, tt.category, got)
		}
	}

	// without dictionary terms the pattern detectors still vote
	d, err := LoadDictionary([]byte(`
types:
  fix: [fixed]
  buff: [increased]
  nerf: [reduced]
  new: [added]
  rework: [reworked]
`))
	if err != nil {
		t.Fatalf("Failed to load dictionary: %v", err)
	}
	x := NewExtractor(d).Run("Casual queue times shortened")
	if len(x.Hints) != 1 || x.Hints[0].Detector != DetectorMode || x.Hints[0].Term != "casual" {
		t.Errorf("Expected a single mode detector hint, got %+v", x.Hints)
	}
}

func TestExtractor_NoSignal(t *testing.T) {
	e := NewExtractor(DefaultDictionary())

	for _, unit := range []string{"", "   ", "Thank you all for playing with us"} {
		x := e.Run(unit)
		if x.HasHints() {
			t.Errorf("Expected no hints for %q, got %+v", unit, x.Hints)
		}
	}
}
