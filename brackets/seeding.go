package brackets

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/Epin-platforms/nadal-server/models"
)

const (
	MinEliminationField      = 2
	MinRoundRobinSinglesSize = 4
	MinRoundRobinDoublesSize = 5

	MaxEliminationSingles = 64
	MaxEliminationTeams   = 32

	soloTeamPrefix = "solo:"
)

// SeedAssignment gives one real participant its 1-based slot.
type SeedAssignment struct {
	ParticipantID string
	SeedIndex     int
}

// SeedPlan is the outcome of seeding: the slot count, the assignments for real participants
// and the slots that go to synthetic byes.
type SeedPlan struct {
	SlotCount   int
	Assignments []SeedAssignment
	ByeSeeds    []int
}

// Team is a doubles entry in an elimination bracket: one or two members under a shared key.
type Team struct {
	Key     string
	Members []string
}

// Seeder assigns seed indices. It is safe for concurrent use.
type Seeder struct {
	rules *Ruleset
	mu    sync.Mutex
	rng   *rand.Rand
}

// NewSeeder builds a seeder; a nil rng seeds from the clock.
func NewSeeder(rules *Ruleset, rng *rand.Rand) *Seeder {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Seeder{rules: rules, rng: rng}
}

// NextPowerOfTwo returns the smallest power of two >= n (1 for n <= 1).
func NextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Seed validates the approved roster for the format and assigns seed slots to it.
// Nothing is written here; the caller persists the plan.
func (s *Seeder) Seed(format models.TournamentFormat, mode models.TournamentMode, approved []*models.Participant) (*SeedPlan, error) {
	switch format {
	case models.FormatRoundRobin:
		return s.seedRoundRobin(mode, approved)
	case models.FormatElimination:
		return s.seedElimination(mode, approved)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func (s *Seeder) seedRoundRobin(mode models.TournamentMode, approved []*models.Participant) (*SeedPlan, error) {
	n := len(approved)
	doubles := mode == models.ModeDoubles
	minSize := MinRoundRobinSinglesSize
	if doubles {
		minSize = MinRoundRobinDoublesSize
	}
	if n < minSize {
		return nil, fmt.Errorf("%w: round robin %s needs at least %d, got %d", ErrFieldTooSmall, mode, minSize, n)
	}
	if !s.rules.Has(doubles, n) {
		return nil, fmt.Errorf("%w: %s round robin with %d participants", ErrRulesetMissing, mode, n)
	}

	perm := s.shuffle(n)
	plan := &SeedPlan{SlotCount: n, Assignments: make([]SeedAssignment, n)}
	for i, p := range approved {
		plan.Assignments[i] = SeedAssignment{ParticipantID: p.UserID, SeedIndex: perm[i]}
	}
	return plan, nil
}

func (s *Seeder) seedElimination(mode models.TournamentMode, approved []*models.Participant) (*SeedPlan, error) {
	var teams []Team
	maxField := MaxEliminationSingles
	if mode == models.ModeDoubles {
		var err error
		if teams, err = GroupTeams(approved); err != nil {
			return nil, err
		}
		maxField = MaxEliminationTeams
	} else {
		teams = make([]Team, len(approved))
		for i, p := range approved {
			teams[i] = Team{Key: p.UserID, Members: []string{p.UserID}}
		}
	}

	field := len(teams)
	if field < MinEliminationField {
		return nil, fmt.Errorf("%w: elimination needs at least %d entries, got %d", ErrFieldTooSmall, MinEliminationField, field)
	}
	if field > maxField {
		return nil, fmt.Errorf("%w: elimination %s allows at most %d entries, got %d", ErrFieldTooLarge, mode, maxField, field)
	}

	slotCount := NextPowerOfTwo(field)
	byeSeeds := ByeSeeds(slotCount, slotCount-field)
	isBye := make(map[int]bool, len(byeSeeds))
	for _, seed := range byeSeeds {
		isBye[seed] = true
	}
	realSlots := make([]int, 0, field)
	for seed := 1; seed <= slotCount; seed++ {
		if !isBye[seed] {
			realSlots = append(realSlots, seed)
		}
	}

	perm := s.closeRandomPermutation(field)
	plan := &SeedPlan{SlotCount: slotCount, ByeSeeds: byeSeeds}
	for i, team := range teams {
		seed := realSlots[perm[i]-1]
		for _, uid := range team.Members {
			plan.Assignments = append(plan.Assignments, SeedAssignment{ParticipantID: uid, SeedIndex: seed})
		}
	}
	return plan, nil
}

// ByeSeeds spreads byes over the first-round matches: bye j goes to the second slot of match
// floor(j*(slotCount/2)/byes). Since byes < slotCount/2 no match ever receives two.
func ByeSeeds(slotCount, byes int) []int {
	if byes <= 0 {
		return nil
	}
	matches := slotCount / 2
	seeds := make([]int, byes)
	for j := 0; j < byes; j++ {
		k := j * matches / byes
		seeds[j] = 2*k + 2
	}
	return seeds
}

// GroupTeams pairs doubles members by team name in roster order. Members without a team name
// form a one-person team of their own.
func GroupTeams(participants []*models.Participant) ([]Team, error) {
	index := make(map[string]int)
	var teams []Team
	for _, p := range participants {
		key := soloTeamPrefix + p.UserID
		if p.TeamName != nil && *p.TeamName != "" {
			key = *p.TeamName
		}
		if i, ok := index[key]; ok {
			if len(teams[i].Members) >= 2 {
				return nil, fmt.Errorf("%w: %q", ErrTeamOversized, key)
			}
			teams[i].Members = append(teams[i].Members, p.UserID)
			continue
		}
		index[key] = len(teams)
		teams = append(teams, Team{Key: key, Members: []string{p.UserID}})
	}
	return teams, nil
}

// shuffle returns a uniform Fisher–Yates permutation of 1..n.
func (s *Seeder) shuffle(n int) []int {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i + 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := n - 1; i > 0; i-- {
		j := s.rng.Intn(i + 1)
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm
}

// closeRandomPermutation shuffles 1..n and then walks it left to right: when a neighbour is more
// than one apart, a later value adjacent to its left neighbour is swapped in. A gap stays
// only where both values next to the left neighbour are already placed.
func (s *Seeder) closeRandomPermutation(n int) []int {
	perm := s.shuffle(n)
	pos := make([]int, n+2)
	for i, v := range perm {
		pos[v] = i
	}
	for i := 1; i < n; i++ {
		prev := perm[i-1]
		if abs(perm[i]-prev) <= 1 {
			continue
		}
		j := -1
		for _, cand := range s.neighbours(prev, n) {
			if pos[cand] > i {
				j = pos[cand]
				break
			}
		}
		if j == -1 {
			continue
		}
		perm[i], perm[j] = perm[j], perm[i]
		pos[perm[i]], pos[perm[j]] = i, j
	}
	return perm
}

// neighbours returns v-1 and v+1 within 1..n in random order.
func (s *Seeder) neighbours(v, n int) []int {
	var out []int
	if v > 1 {
		out = append(out, v-1)
	}
	if v < n {
		out = append(out, v+1)
	}
	if len(out) == 2 {
		s.mu.Lock()
		if s.rng.Intn(2) == 0 {
			out[0], out[1] = out[1], out[0]
		}
		s.mu.Unlock()
	}
	return out
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
