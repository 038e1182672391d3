package model

import "time"

const (
	ModActionWikiRevise = "wikirevise"
	ModActionAddNote    = "addnote"
)

// ModAction is a moderator action delivered by the host platform.
type ModAction struct {
	Action     string    `json:"action"`
	Community  string    `json:"community"`
	Moderator  string    `json:"moderator"`
	TargetUser string    `json:"target_user"`
	ActionedAt time.Time `json:"actioned_at"`
}

type Settings struct {
	ForwardSync bool `json:"forward_sync"`
	ReverseSync bool `json:"reverse_sync"`
}
