package models

import "fmt"

// Trait is a single attribute from the collectible the agent is bound to.
// Values come from external metadata and may be strings or numbers.
type Trait struct {
	TraitType string `json:"trait_type" yaml:"trait_type"`
	Value     any    `json:"value" yaml:"value"`
}

type TraitList []Trait

// Get returns the trait value for the given type as a string, or "" when
// the trait is absent.
func (tl TraitList) Get(traitType string) string {
	for _, t := range tl {
		if t.TraitType == traitType && t.Value != nil {
			return fmt.Sprintf("%v", t.Value)
		}
	}
	return ""
}

type Agent struct {
	ID         int64     `json:"id" yaml:"id"`
	Wallet     string    `json:"wallet" yaml:"wallet"`
	Mint       string    `json:"mint" yaml:"mint"`
	Traits     TraitList `json:"traits" yaml:"traits"`
	LastPosted *string   `json:"last_posted,omitempty" yaml:"last_posted,omitempty"`
	TotalPosts int       `json:"total_posts" yaml:"total_posts"`
	Created    string    `json:"created" yaml:"created"`
}
