// Package bracket resolves bracket slot codes to the teams that fill them.
package bracket

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/Billy-Davies-2/knockout-pool/internal/config"
	"github.com/Billy-Davies-2/knockout-pool/internal/models"
)

var (
	// ErrInvalidMapping is returned when a slot mapping cannot be loaded
	ErrInvalidMapping = errors.New("invalid slot mapping")
	// ErrUnknownSlot is returned for a mapping key that is not a slot code
	ErrUnknownSlot = fmt.Errorf("%w: unknown slot code", ErrInvalidMapping)
	// ErrUnknownTeam is returned for a mapping value that is not a team
	ErrUnknownTeam = fmt.Errorf("%w: unknown team", ErrInvalidMapping)
)

// Resolver maps slot codes to canonical team names. A Resolver never
// changes after construction; a new mapping means a new Resolver.
type Resolver struct {
	tournament *config.Tournament
	mapping    map[string]string
}

// NewResolver validates mapping against the tournament and returns a resolver
// over a private copy of it. Slots missing from mapping are unresolved.
func NewResolver(t *config.Tournament, mapping map[string]string) (*Resolver, error) {
	r := &Resolver{
		tournament: t,
		mapping:    t.InitialSlotMapping(),
	}

	for _, code := range slices.Sorted(maps.Keys(mapping)) {
		slot := config.NormalizeCode(code)
		if !t.IsSlot(slot) {
			return nil, fmt.Errorf("%w %q", ErrUnknownSlot, code)
		}

		team := models.CleanTeamName(mapping[code])
		if team != "" && !t.IsTeam(team) {
			return nil, fmt.Errorf("%w %q for slot %q", ErrUnknownTeam, mapping[code], code)
		}
		r.mapping[slot] = team
	}

	return r, nil
}

// Resolve returns the canonical identity for a team name or slot code.
// Team names and unknown codes come back unchanged, as does a slot that is
// not resolved yet.
func (r *Resolver) Resolve(code string) string {
	if r.tournament.IsTeam(code) {
		return code
	}
	if team := r.mapping[config.NormalizeCode(code)]; team != "" {
		return team
	}
	return code
}

// IsSlot reports whether code is a bracket slot code
func (r *Resolver) IsSlot(code string) bool {
	return !r.tournament.IsTeam(code) && r.tournament.IsSlot(code)
}

// Pending reports whether code is a slot that has no team yet
func (r *Resolver) Pending(code string) bool {
	return r.IsSlot(code) && r.mapping[config.NormalizeCode(code)] == ""
}

// Known reports whether code is a team or a slot code
func (r *Resolver) Known(code string) bool {
	return r.tournament.IsTeam(code) || r.tournament.IsSlot(code)
}

// Mapping returns a copy of the full slot table
func (r *Resolver) Mapping() map[string]string {
	return maps.Clone(r.mapping)
}

// Resolved returns the number of slots that have a team
func (r *Resolver) Resolved() int {
	n := 0
	for _, team := range r.mapping {
		if team != "" {
			n++
		}
	}
	return n
}
