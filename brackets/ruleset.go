package brackets

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
)

// SinglesPairing holds 0-based indices into the seeded participant list.
type SinglesPairing [2]int

// DoublesPairing is one KDK doubles game; each team lists two 0-based member indices.
type DoublesPairing struct {
	TableID int   `json:"tableId"`
	Team1   []int `json:"team1"`
	Team2   []int `json:"team2"`
}

// Ruleset maps a participant count to the KDK pairing table for that size.
// It is loaded once at startup and never mutated afterwards.
type Ruleset struct {
	singles map[int][]SinglesPairing
	doubles map[int][]DoublesPairing
}

// LoadRuleset reads the singles and doubles tables from JSON files.
func LoadRuleset(singlesPath, doublesPath string) (*Ruleset, error) {
	singlesRaw, err := os.ReadFile(singlesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read singles ruleset %s: %w", singlesPath, err)
	}
	doublesRaw, err := os.ReadFile(doublesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read doubles ruleset %s: %w", doublesPath, err)
	}
	return ParseRuleset(singlesRaw, doublesRaw)
}

// ParseRuleset decodes tables of the form {"4": [[0,1],[2,3]]} and
// {"5": [{"tableId":1,"team1":[0,1],"team2":[2,3]}]} and checks every index against its count.
func ParseRuleset(singlesJSON, doublesJSON []byte) (*Ruleset, error) {
	var rawSingles map[string][]SinglesPairing
	if err := json.Unmarshal(singlesJSON, &rawSingles); err != nil {
		return nil, fmt.Errorf("%w: singles: %v", ErrRulesetInvalid, err)
	}
	var rawDoubles map[string][]DoublesPairing
	if err := json.Unmarshal(doublesJSON, &rawDoubles); err != nil {
		return nil, fmt.Errorf("%w: doubles: %v", ErrRulesetInvalid, err)
	}

	rs := &Ruleset{
		singles: make(map[int][]SinglesPairing, len(rawSingles)),
		doubles: make(map[int][]DoublesPairing, len(rawDoubles)),
	}
	for key, table := range rawSingles {
		count, err := parseCount(key)
		if err != nil {
			return nil, err
		}
		for i, p := range table {
			if !validIndex(p[0], count) || !validIndex(p[1], count) || p[0] == p[1] {
				return nil, fmt.Errorf("%w: singles[%d] entry %d: %v", ErrRulesetInvalid, count, i, p)
			}
		}
		rs.singles[count] = table
	}
	for key, table := range rawDoubles {
		count, err := parseCount(key)
		if err != nil {
			return nil, err
		}
		tableIDs := make(map[int]bool, len(table))
		for i, p := range table {
			if p.TableID <= 0 || tableIDs[p.TableID] {
				return nil, fmt.Errorf("%w: doubles[%d] entry %d: table id %d", ErrRulesetInvalid, count, i, p.TableID)
			}
			tableIDs[p.TableID] = true
			if len(p.Team1) != 2 || len(p.Team2) != 2 {
				return nil, fmt.Errorf("%w: doubles[%d] entry %d needs two players per team", ErrRulesetInvalid, count, i)
			}
			seen := make(map[int]bool, 4)
			for _, idx := range append(append([]int{}, p.Team1...), p.Team2...) {
				if !validIndex(idx, count) || seen[idx] {
					return nil, fmt.Errorf("%w: doubles[%d] entry %d: index %d", ErrRulesetInvalid, count, i, idx)
				}
				seen[idx] = true
			}
		}
		rs.doubles[count] = table
	}
	return rs, nil
}

func parseCount(key string) (int, error) {
	count, err := strconv.Atoi(key)
	if err != nil || count <= 0 {
		return 0, fmt.Errorf("%w: bad participant count key %q", ErrRulesetInvalid, key)
	}
	return count, nil
}

func validIndex(idx, count int) bool {
	return idx >= 0 && idx < count
}

// Singles returns a copy of the singles table for count participants.
func (r *Ruleset) Singles(count int) ([]SinglesPairing, bool) {
	table, ok := r.singles[count]
	if !ok {
		return nil, false
	}
	return append([]SinglesPairing(nil), table...), true
}

// Doubles returns a copy of the doubles table for count participants.
func (r *Ruleset) Doubles(count int) ([]DoublesPairing, bool) {
	table, ok := r.doubles[count]
	if !ok {
		return nil, false
	}
	out := make([]DoublesPairing, len(table))
	for i, p := range table {
		out[i] = DoublesPairing{
			TableID: p.TableID,
			Team1:   append([]int(nil), p.Team1...),
			Team2:   append([]int(nil), p.Team2...),
		}
	}
	return out, true
}

// Has reports whether a table exists for count participants in the given mode.
func (r *Ruleset) Has(doubles bool, count int) bool {
	if doubles {
		_, ok := r.doubles[count]
		return ok
	}
	_, ok := r.singles[count]
	return ok
}

// Sizes lists the supported participant counts in ascending order.
func (r *Ruleset) Sizes(doubles bool) []int {
	var sizes []int
	if doubles {
		for k := range r.doubles {
			sizes = append(sizes, k)
		}
	} else {
		for k := range r.singles {
			sizes = append(sizes, k)
		}
	}
	sort.Ints(sizes)
	return sizes
}
