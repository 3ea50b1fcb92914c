package directory

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Seed is the JSON document used to preload an in-memory directory.
type Seed struct {
	Companies  []Company   `json:"companies"`
	Candidates []Candidate `json:"candidates"`
	Jobs       []Job       `json:"jobs"`
}

// ReadSeed decodes a seed document. Unknown fields are rejected.
func ReadSeed(r io.Reader) (Seed, error) {
	var seed Seed
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&seed); err != nil {
		return Seed{}, fmt.Errorf("decode directory seed: %w", err)
	}
	return seed, nil
}

// ReadSeedFile opens path and decodes it with ReadSeed.
func ReadSeedFile(path string) (Seed, error) {
	f, err := os.Open(path)
	if err != nil {
		return Seed{}, fmt.Errorf("open directory seed: %w", err)
	}
	defer f.Close()
	return ReadSeed(f)
}

// Load puts every record of seed, replacing records with the same id.
func (s *InMemory) Load(seed Seed) {
	for _, c := range seed.Companies {
		s.PutCompany(c)
	}
	for _, c := range seed.Candidates {
		s.PutCandidate(c)
	}
	for _, j := range seed.Jobs {
		s.PutJob(j)
	}
}
