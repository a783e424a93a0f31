package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TournamentSeed describes a tournament the worker should track
type TournamentSeed struct {
	Name     string `yaml:"name"`
	RemoteID int    `yaml:"remote_id"`
}

type tournamentsFile struct {
	Tournaments []TournamentSeed `yaml:"tournaments"`
}

// LoadTournamentSeeds reads tournament seeds from a YAML file.
// An empty path yields no seeds.
func LoadTournamentSeeds(path string) ([]TournamentSeed, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tournaments file: %w", err)
	}

	return ParseTournamentSeeds(data)
}

// ParseTournamentSeeds decodes and validates a tournaments document
func ParseTournamentSeeds(data []byte) ([]TournamentSeed, error) {
	var doc tournamentsFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse tournaments file: %w", err)
	}

	seen := make(map[int]bool, len(doc.Tournaments))
	for i, seed := range doc.Tournaments {
		if seed.Name == "" {
			return nil, fmt.Errorf("tournament %d: name is required", i)
		}
		if seed.RemoteID <= 0 {
			return nil, fmt.Errorf("tournament %q: remote_id must be positive", seed.Name)
		}
		if seen[seed.RemoteID] {
			return nil, fmt.Errorf("tournament %q: duplicate remote_id %d", seed.Name, seed.RemoteID)
		}
		seen[seed.RemoteID] = true
	}

	return doc.Tournaments, nil
}
