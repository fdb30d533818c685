package profile

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML profile and returns it with the raw bytes
// ⭐ SSOT: KnownFields(true)로 오타/미사용 필드 즉시 실패
func Load(path string) (*Profile, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read profile: %w", err)
	}

	p, err := Parse(data)
	if err != nil {
		return nil, data, fmt.Errorf("%s: %w", path, err)
	}
	return p, data, nil
}

// Parse decodes and validates a YAML profile
func Parse(data []byte) (*Profile, error) {
	var p Profile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}

	if err := Validate(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Hash returns the sha256 of the profile's canonical JSON
// 주의: struct + slice 만 사용하므로 같은 설정은 항상 같은 해시
func Hash(p *Profile) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
