package brackets

import (
	"context"
	"fmt"
	"math/bits"
	"sort"

	"github.com/Epin-platforms/nadal-server/models"
)

type BuildTableParams struct {
	Tournament *models.Tournament
	// Participants are the seeded roster rows, bye rows included.
	Participants []*models.Participant
}

// TableBuilder materializes the match rows of a freshly seeded tournament.
type TableBuilder interface {
	BuildTable(ctx context.Context, params BuildTableParams) ([]*models.Match, error)

	GetName() string
}

// NewTableBuilder picks the builder for a format.
func NewTableBuilder(format models.TournamentFormat, rules *Ruleset) (TableBuilder, error) {
	switch format {
	case models.FormatRoundRobin:
		return &RoundRobinBuilder{rules: rules}, nil
	case models.FormatElimination:
		return &EliminationBuilder{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// TotalRounds returns ceil(log2(slotCount)).
func TotalRounds(slotCount int) int {
	if slotCount <= 1 {
		return 0
	}
	return bits.Len(uint(slotCount - 1))
}

// seededReal returns the real (non-bye) participants ordered by seed, then uid.
func seededReal(participants []*models.Participant) []*models.Participant {
	out := make([]*models.Participant, 0, len(participants))
	for _, p := range participants {
		if p.IsBye || p.SeedIndex == nil {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if *out[i].SeedIndex != *out[j].SeedIndex {
			return *out[i].SeedIndex < *out[j].SeedIndex
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

type RoundRobinBuilder struct {
	rules *Ruleset
}

func (b *RoundRobinBuilder) GetName() string {
	return "RoundRobin"
}

// BuildTable creates one match per ruleset entry for the exact roster size.
func (b *RoundRobinBuilder) BuildTable(ctx context.Context, params BuildTableParams) ([]*models.Match, error) {
	t := params.Tournament
	members := seededReal(params.Participants)
	n := len(members)

	if t.IsDoubles() {
		if n < MinRoundRobinDoublesSize {
			return nil, fmt.Errorf("%w: round robin doubles needs at least %d, got %d", ErrFieldTooSmall, MinRoundRobinDoublesSize, n)
		}
		table, ok := b.rules.Doubles(n)
		if !ok {
			return nil, fmt.Errorf("%w: doubles round robin with %d participants", ErrRulesetMissing, n)
		}
		matches := make([]*models.Match, len(table))
		for i, entry := range table {
			tableID := entry.TableID
			if tableID <= 0 {
				tableID = i + 1
			}
			matches[i] = &models.Match{
				TournamentID: t.ID,
				TableID:      tableID,
				Lineup: models.DoublesLineup(
					models.Pair{A: members[entry.Team1[0]].UserID, B: members[entry.Team1[1]].UserID},
					models.Pair{A: members[entry.Team2[0]].UserID, B: members[entry.Team2[1]].UserID},
				),
			}
		}
		return matches, nil
	}

	if n < MinRoundRobinSinglesSize {
		return nil, fmt.Errorf("%w: round robin singles needs at least %d, got %d", ErrFieldTooSmall, MinRoundRobinSinglesSize, n)
	}
	table, ok := b.rules.Singles(n)
	if !ok {
		return nil, fmt.Errorf("%w: singles round robin with %d participants", ErrRulesetMissing, n)
	}
	matches := make([]*models.Match, len(table))
	for i, pair := range table {
		matches[i] = &models.Match{
			TournamentID: t.ID,
			TableID:      i + 1,
			Lineup:       models.SinglesLineup(members[pair[0]].UserID, members[pair[1]].UserID),
		}
	}
	return matches, nil
}

type EliminationBuilder struct{}

func (b *EliminationBuilder) GetName() string {
	return "SingleElimination"
}

// BuildTable pairs seed 2k-1 against seed 2k in round 1 and adds empty placeholders for every
// later round. A side without a real participant makes the match a walkover.
func (b *EliminationBuilder) BuildTable(ctx context.Context, params BuildTableParams) ([]*models.Match, error) {
	t := params.Tournament
	bySeed := make(map[int]models.Pair)
	maxSeed := 0
	realTeams := 0
	for _, p := range seededReal(params.Participants) {
		seed := *p.SeedIndex
		pair, seen := bySeed[seed]
		if !seen {
			realTeams++
			pair = models.Pair{A: p.UserID}
		} else if pair.B == "" && t.IsDoubles() {
			pair.B = p.UserID
		} else {
			return nil, fmt.Errorf("%w: seed %d", ErrTeamOversized, seed)
		}
		bySeed[seed] = pair
		maxSeed = max(maxSeed, seed)
	}
	for _, p := range params.Participants {
		if p.IsBye && p.SeedIndex != nil {
			maxSeed = max(maxSeed, *p.SeedIndex)
		}
	}

	if realTeams < MinEliminationField {
		return nil, fmt.Errorf("%w: elimination needs at least %d entries, got %d", ErrFieldTooSmall, MinEliminationField, realTeams)
	}

	slotCount := NextPowerOfTwo(max(maxSeed, realTeams))
	rounds := TotalRounds(slotCount)
	matches := make([]*models.Match, 0, slotCount-1)

	lineup := func(s1, s2 models.Pair) models.Lineup {
		if t.IsDoubles() {
			return models.DoublesLineup(s1, s2)
		}
		return models.SinglesLineup(s1.A, s2.A)
	}

	for k := 1; k <= slotCount/2; k++ {
		side1 := bySeed[2*k-1]
		side2 := bySeed[2*k]
		matches = append(matches, &models.Match{
			TournamentID: t.ID,
			TableID:      models.EliminationTableID(1, k),
			Lineup:       lineup(side1, side2),
			IsWalkover:   side1.Empty() || side2.Empty(),
		})
	}
	for round := 2; round <= rounds; round++ {
		games := slotCount >> uint(round)
		for k := 1; k <= games; k++ {
			matches = append(matches, &models.Match{
				TournamentID: t.ID,
				TableID:      models.EliminationTableID(round, k),
				Lineup:       lineup(models.Pair{}, models.Pair{}),
			})
		}
	}
	return matches, nil
}
