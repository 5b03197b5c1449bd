// Package catalog holds the built-in block reference data shown next to materials.
//
// The data is static and ships with the binary; it is never read from the remote base.
package catalog

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed blocks.yaml
var blocksYAML []byte

// Rarity is the collectible tier of a block.
type Rarity string

// Rarity tiers, lowest to highest.
const (
	RarityCommon    Rarity = "common"
	RarityUncommon  Rarity = "uncommon"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// Valid reports whether r is one of the known tiers.
func (r Rarity) Valid() bool {
	switch r {
	case RarityCommon, RarityUncommon, RarityRare, RarityEpic, RarityLegendary:
		return true
	}
	return false
}

// Block is one catalog entry.
type Block struct {
	Name        string `yaml:"name" json:"name"`
	Image       string `yaml:"image" json:"image"`
	Emoji       string `yaml:"emoji" json:"emoji"`
	Description string `yaml:"description" json:"description"`
	Trivia      string `yaml:"trivia" json:"trivia"`
	Rarity      Rarity `yaml:"rarity" json:"rarity"`
}

// Default is returned for material names the catalog does not know.
var Default = Block{
	Image:       "block_stone",
	Emoji:       "🧱",
	Description: "A mysterious block waiting to be discovered!",
	Trivia:      "Every block in Minecraft has a story to tell.",
	Rarity:      RarityCommon,
}

type document struct {
	Blocks []Block `yaml:"blocks"`
}

var (
	loadOnce sync.Once
	blocks   []Block
	byName   map[string]Block
	loadErr  error
)

// Parse decodes a catalog document.
func Parse(data []byte) ([]Block, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse block catalog: %w", err)
	}

	seen := make(map[string]struct{}, len(doc.Blocks))
	for i, b := range doc.Blocks {
		if b.Name == "" {
			return nil, fmt.Errorf("block %d: missing name", i)
		}
		if _, dup := seen[b.Name]; dup {
			return nil, fmt.Errorf("block %q: duplicate entry", b.Name)
		}
		if !b.Rarity.Valid() {
			return nil, fmt.Errorf("block %q: unknown rarity %q", b.Name, b.Rarity)
		}
		seen[b.Name] = struct{}{}
	}
	return doc.Blocks, nil
}

func load() {
	blocks, loadErr = Parse(blocksYAML)
	byName = make(map[string]Block, len(blocks))
	for _, b := range blocks {
		byName[b.Name] = b
	}
}

// All returns every catalog entry in file order.
func All() ([]Block, error) {
	loadOnce.Do(load)
	if loadErr != nil {
		return nil, loadErr
	}
	out := make([]Block, len(blocks))
	copy(out, blocks)
	return out, nil
}

// Lookup resolves a material name by exact match, falling back to Default.
func Lookup(name string) Block {
	loadOnce.Do(load)
	if b, ok := byName[name]; ok {
		return b
	}
	d := Default
	d.Name = name
	return d
}
