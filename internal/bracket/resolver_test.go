package bracket

import (
	"errors"
	"testing"

	"github.com/Billy-Davies-2/knockout-pool/internal/config"
)

func loadEdition(t *testing.T, name string) *config.Tournament {
	t.Helper()
	tour, err := config.LoadTournament(name)
	if err != nil {
		t.Fatalf("LoadTournament(%q) failed: %v", name, err)
	}
	return tour
}

func TestResolve(t *testing.T) {
	tour := loadEdition(t, "wk2022")
	r, err := NewResolver(tour, map[string]string{
		"WQF1": "Nederland",
		"w8f2": "Argentinië",
		"WQF2": "",
	})
	if err != nil {
		t.Fatalf("NewResolver failed: %v", err)
	}

	tests := []struct {
		code    string
		want    string
		pending bool
	}{
		{"Nederland", "Nederland", false},
		{"WQF1", "Nederland", false},
		{"wqf1", "Nederland", false},
		{"W8F2", "Argentinië", false},
		{"WQF2", "WQF2", true},
		{"LSF1", "LSF1", true},
		{"Atlantis", "Atlantis", false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := r.Resolve(tt.code); got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.code, got, tt.want)
			}
			if got := r.Pending(tt.code); got != tt.pending {
				t.Errorf("Pending(%q) = %v, want %v", tt.code, got, tt.pending)
			}
		})
	}

	if r.Known("Atlantis") {
		t.Error("unknown code reported as known")
	}
	if got := r.Resolved(); got != 2 {
		t.Errorf("expected 2 resolved slots, got %d", got)
	}
}

func TestNewResolverRejectsBadMapping(t *testing.T) {
	tour := loadEdition(t, "ek2021")

	tests := []struct {
		name    string
		mapping map[string]string
		want    error
	}{
		{"unknown slot", map[string]string{"WQF1": "Nederland"}, ErrUnknownSlot},
		{"unknown team", map[string]string{"WINNAAR QF1": "Brazilië"}, ErrUnknownTeam},
		{"team as key", map[string]string{"Nederland": "Nederland"}, ErrUnknownSlot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewResolver(tour, tt.mapping)
			if err == nil {
				t.Fatal("expected error")
			}
			if r != nil {
				t.Error("expected no resolver on error")
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			if !errors.Is(err, ErrInvalidMapping) {
				t.Errorf("expected error to wrap ErrInvalidMapping, got %v", err)
			}
		})
	}
}

func TestMappingIsCopied(t *testing.T) {
	tour := loadEdition(t, "ek2021")
	input := map[string]string{"WINNAAR QF1": "Italië"}

	r, err := NewResolver(tour, input)
	if err != nil {
		t.Fatalf("NewResolver failed: %v", err)
	}

	input["WINNAAR QF1"] = "Spanje"
	if got := r.Resolve("WINNAAR QF1"); got != "Italië" {
		t.Errorf("resolver changed with caller map: %q", got)
	}

	out := r.Mapping()
	out["WINNAAR QF1"] = "Spanje"
	if got := r.Resolve("WINNAAR QF1"); got != "Italië" {
		t.Errorf("resolver changed through Mapping(): %q", got)
	}
	if len(out) != len(tour.Slots()) {
		t.Errorf("expected every slot in mapping, got %d", len(out))
	}
}
