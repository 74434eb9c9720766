package identity

import (
	"fmt"
	"math/rand"
)

// NameGenerator produces display names for freshly minted identities.
type NameGenerator interface {
	DisplayName() string
}

// RandomSuffixNames appends a random numeric suffix to a fixed prefix,
// e.g. "Stranger-4821".
type RandomSuffixNames struct {
	Prefix string
}

func (g RandomSuffixNames) DisplayName() string {
	return fmt.Sprintf("%s-%04d", g.Prefix, rand.Intn(10000))
}

var (
	adjectives = []string{
		"Amber", "Brisk", "Calm", "Dapper", "Eager", "Foggy", "Gentle",
		"Hasty", "Ivory", "Jolly", "Keen", "Lively", "Mellow", "Nimble",
		"Odd", "Plucky", "Quiet", "Rusty", "Sly", "Tidy", "Vivid", "Witty",
	}
	animals = []string{
		"Badger", "Crane", "Dingo", "Ermine", "Falcon", "Gecko", "Heron",
		"Ibis", "Jackal", "Koala", "Lynx", "Marten", "Newt", "Otter",
		"Puffin", "Quokka", "Raven", "Stoat", "Tapir", "Vole", "Wombat",
	}
)

// DictionaryNames combines a random adjective with a random animal.
type DictionaryNames struct{}

func (DictionaryNames) DisplayName() string {
	return adjectives[rand.Intn(len(adjectives))] + " " + animals[rand.Intn(len(animals))]
}

// StaticNames always returns the same name, for deterministic tests.
type StaticNames struct {
	Name string
}

func (g StaticNames) DisplayName() string {
	return g.Name
}
