package models

type Post struct {
	ID       int64  `json:"id" yaml:"id"`
	AgentID  int64  `json:"agent_id" yaml:"agent_id"`
	ImageURL string `json:"image_url" yaml:"image_url"`
	Prompt   string `json:"prompt" yaml:"prompt"`
	Created  string `json:"created" yaml:"created"`
	Day      string `json:"day" yaml:"day"`

	// Populated on feed reads, joined from the owning agent.
	Wallet string    `json:"wallet,omitempty" yaml:"wallet,omitempty"`
	Traits TraitList `json:"traits,omitempty" yaml:"traits,omitempty"`
}
