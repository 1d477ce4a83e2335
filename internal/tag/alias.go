package tag

import (
	"fmt"
	"strings"
)

// AliasGroup selects which name pool a generated alias comes from. The set
// is closed: an unknown group is a validation error, not a silent default.
type AliasGroup string

const (
	GroupMaleTree    AliasGroup = "male_tree"
	GroupFemaleFruit AliasGroup = "female_fruit"
)

// treeNames and fruitNames are the ordered alias pools. Order matters: the
// generator always hands out the first free name, so the sequence of
// aliases on a site is predictable.
var treeNames = []string{
	"Dab", "Jesion", "Buk", "Grab", "Lipa", "Modrzew", "Sosna", "Swierk",
	"Brzoza", "Olcha", "Wiaz", "Jodla", "Topola", "Jawor", "Kasztan",
	"Platan", "Klon",
}

var fruitNames = []string{
	"Jagoda", "Truskawka", "Malina", "Porzeczka", "Wisnia", "Jablko",
	"Sliwka", "Agrest", "Jezyzna", "Brzoskwinia", "Morela", "Gruszka",
	"Winogrono",
}

// Valid reports whether g is a defined alias group.
func (g AliasGroup) Valid() bool {
	return g == GroupMaleTree || g == GroupFemaleFruit
}

// Pool returns the group's ordered name pool.
func (g AliasGroup) Pool() []string {
	if g == GroupMaleTree {
		return treeNames
	}
	return fruitNames
}

// ParseAliasGroup converts a string to an AliasGroup.
func ParseAliasGroup(s string) (AliasGroup, error) {
	g := AliasGroup(strings.ToLower(strings.TrimSpace(s)))
	if !g.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidAliasGroup, s)
	}
	return g, nil
}

// GenerateAlias picks the first pool name absent from existing. When the
// whole pool is taken it retries with numeric suffixes ("-2", "-3", ...),
// so it always terminates with a free name. The result is unique against
// existing at this instant only; the repository re-checks inside the
// insert transaction.
func GenerateAlias(group AliasGroup, existing map[string]struct{}) string {
	pool := group.Pool()

	for _, name := range pool {
		if _, taken := existing[name]; !taken {
			return name
		}
	}

	for suffix := 2; ; suffix++ {
		for _, name := range pool {
			candidate := fmt.Sprintf("%s-%d", name, suffix)
			if _, taken := existing[candidate]; !taken {
				return candidate
			}
		}
	}
}
