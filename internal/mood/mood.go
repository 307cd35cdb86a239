// Package mood picks an equalizer preset for a listening mood. It is a
// lookup, resolved against whatever presets the equalizer reports.
package mood

import (
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"

	"github.com/satindergrewal/eqd/internal/effect"
)

var (
	ErrUnknownMood = errors.New("unknown mood")
	ErrNoMatch     = errors.New("no preset matches mood")
)

// Mood is a node in the mood graph.
type Mood struct {
	Name     string
	Presets  []string // preferred preset names, best first
	Adjacent []string
}

// Graph maps mood names to nodes. When none of a mood's presets exist, the
// lookup walks to adjacent moods, nearest first.
var Graph = map[string]*Mood{
	"happy": {
		Name:     "happy",
		Presets:  []string{"Pop", "Dance"},
		Adjacent: []string{"confident", "energetic", "relaxed", "romantic"},
	},
	"relaxed": {
		Name:     "relaxed",
		Presets:  []string{"Jazz", "Classical"},
		Adjacent: []string{"happy", "romantic", "sad", "sleepy"},
	},
	"sad": {
		Name:     "sad",
		Presets:  []string{"Folk", "Classical"},
		Adjacent: []string{"relaxed", "sleepy"},
	},
	"energetic": {
		Name:     "energetic",
		Presets:  []string{"Dance", "Rock", "Heavy Metal"},
		Adjacent: []string{"confident", "happy"},
	},
	"sleepy": {
		Name:     "sleepy",
		Presets:  []string{"Classical", "Normal"},
		Adjacent: []string{"focused", "relaxed", "sad"},
	},
	"focused": {
		Name:     "focused",
		Presets:  []string{"Flat", "Normal"},
		Adjacent: []string{"confident", "sleepy"},
	},
	"confident": {
		Name:     "confident",
		Presets:  []string{"Hip Hop", "Rock"},
		Adjacent: []string{"energetic", "focused", "happy"},
	},
	"romantic": {
		Name:     "romantic",
		Presets:  []string{"Jazz", "Pop"},
		Adjacent: []string{"happy", "relaxed"},
	},
}

// Names returns all mood names, sorted.
func Names() []string {
	names := lo.Keys(Graph)
	sort.Strings(names)
	return names
}

// IsValid checks if a mood exists in the graph.
func IsValid(name string) bool {
	_, ok := Graph[normalize(name)]
	return ok
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Resolve returns the preset from available that best fits mood.
func Resolve(name string, available []effect.Preset) (effect.Preset, error) {
	start, ok := Graph[normalize(name)]
	if !ok {
		return effect.Preset{}, errors.Wrapf(ErrUnknownMood, "%q", name)
	}

	visited := map[string]bool{start.Name: true}
	queue := []*Mood{start}
	for len(queue) > 0 {
		m := queue[0]
		queue = queue[1:]
		for _, want := range m.Presets {
			p, _, found := lo.FindIndexOf(available, func(p effect.Preset) bool {
				return strings.EqualFold(p.Name, want)
			})
			if found {
				return p, nil
			}
		}
		for _, adj := range m.Adjacent {
			if !visited[adj] {
				visited[adj] = true
				queue = append(queue, Graph[adj])
			}
		}
	}
	return effect.Preset{}, errors.Wrapf(ErrNoMatch, "%q", name)
}
