// Package levels provides the fixed level catalog.
package levels

import (
	_ "embed"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed levels.yaml
var catalogYAML []byte

// Level is one playable challenge.
type Level struct {
	ID          int      `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Difficulty  string   `yaml:"difficulty" json:"difficulty"`
	Type        string   `yaml:"type" json:"type"`
	Boss        bool     `yaml:"boss" json:"isBossLevel"`
	Prompt      string   `yaml:"prompt" json:"prompt"`
	Bubble      string   `yaml:"bubble" json:"speechBubbleText"`
	Background  string   `yaml:"background" json:"backgroundImage"`
	Image       string   `yaml:"image" json:"image,omitempty"`
	RewardCoins int      `yaml:"reward_coins" json:"rewardCoins"`
	RewardXP    int      `yaml:"reward_xp" json:"rewardXP"`
	TimeLimit   int      `yaml:"time_limit" json:"timeLimit"`
	Description string   `yaml:"description" json:"description"`
	Skills      []string `yaml:"skills" json:"skills"`
}

// Filter narrows the catalog. Empty fields match everything.
type Filter struct {
	Difficulty  string
	Type        string
	IncludeBoss bool
}

// Interview adds job-interview details to a level prompt.
type Interview struct {
	Type string
	Role string
}

var (
	loadOnce sync.Once
	catalog  []Level
	byID     map[int]Level
	loadErr  error
)

func load() {
	var doc struct {
		Levels []Level `yaml:"levels"`
	}
	if err := yaml.Unmarshal(catalogYAML, &doc); err != nil {
		loadErr = fmt.Errorf("failed to decode level catalog: %w", err)
		return
	}
	sort.SliceStable(doc.Levels, func(i, j int) bool { return doc.Levels[i].ID < doc.Levels[j].ID })
	catalog = doc.Levels
	byID = make(map[int]Level, len(catalog))
	for _, l := range catalog {
		if _, dup := byID[l.ID]; dup {
			loadErr = fmt.Errorf("duplicate level id %d", l.ID)
			return
		}
		byID[l.ID] = l
	}
}

func mustLoad() {
	loadOnce.Do(load)
	if loadErr != nil {
		panic(loadErr)
	}
}

// All returns every level in id order.
func All() []Level {
	mustLoad()
	out := make([]Level, len(catalog))
	copy(out, catalog)
	return out
}

// Count returns the number of levels.
func Count() int {
	mustLoad()
	return len(catalog)
}

// ByID looks up a level.
func ByID(id int) (Level, bool) {
	mustLoad()
	l, ok := byID[id]
	return l, ok
}

// Bosses returns the boss levels.
func Bosses() []Level {
	mustLoad()
	var out []Level
	for _, l := range catalog {
		if l.Boss {
			out = append(out, l)
		}
	}
	return out
}

// Select returns the levels matching f.
func Select(f Filter) []Level {
	mustLoad()
	out := make([]Level, 0, len(catalog))
	for _, l := range catalog {
		if f.Difficulty != "" && l.Difficulty != f.Difficulty {
			continue
		}
		if f.Type != "" && l.Type != f.Type {
			continue
		}
		if !f.IncludeBoss && l.Boss {
			continue
		}
		out = append(out, l)
	}
	return out
}

// Rewards returns the coins and XP earned for an attempt. Failed attempts earn nothing.
func (l Level) Rewards(success bool) (coins, xp int) {
	if !success {
		return 0, 0
	}
	return l.RewardCoins, l.RewardXP
}

// ExpectedText returns the reference text an attempt is scored against.
func (l Level) ExpectedText(iv *Interview) string {
	if iv == nil || (iv.Type == "" && iv.Role == "") {
		return l.Prompt
	}
	return fmt.Sprintf("%s Interview Type: %s, Job Role: %s", l.Prompt, iv.Type, iv.Role)
}

// Next returns the level after completed, given the completed level ids.
func Next(completed []int) int {
	highest := 0
	for _, id := range completed {
		highest = max(highest, id)
	}
	return highest + 1
}
