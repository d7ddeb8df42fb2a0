// Package fixture loads YAML golden test vectors shared by the package's
// own tests: a byte sequence (given as a hex string, since YAML has no
// native bytes scalar) paired with the byte count the codec should consume
// decoding it, or an expected error substring, per §8's worked scenarios.
package fixture

import (
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Case is one named decode/encode vector.
type Case struct {
	Name string `yaml:"name"`
	// HexBytes is the wire form, written as a hex string (e.g. "03 0a 34 12"
	// or "030a3412"); spaces are ignored.
	HexBytes string `yaml:"bytes"`
	// Message is the protocol message or struct name this vector decodes.
	Message string `yaml:"message"`
	// WantConsumed is the expected decoded/extent byte count.
	WantConsumed int `yaml:"want_consumed"`
	// WantErr, if non-empty, is a substring expected in the returned
	// error's message instead of a successful decode.
	WantErr string `yaml:"want_err,omitempty"`
}

// Bytes decodes c.HexBytes into a byte slice.
func (c Case) Bytes() ([]byte, error) {
	clean := make([]byte, 0, len(c.HexBytes))
	for _, r := range c.HexBytes {
		if r == ' ' || r == '\t' || r == '\n' {
			continue
		}
		clean = append(clean, byte(r))
	}
	return hex.DecodeString(string(clean))
}

// Suite is a named collection of Cases loaded from one YAML file.
type Suite struct {
	Cases []Case `yaml:"cases"`
}

// Load reads and parses a YAML fixture file.
func Load(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fixture: %w", err)
	}
	var s Suite
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("fixture: parsing %s: %w", path, err)
	}
	return &s, nil
}
