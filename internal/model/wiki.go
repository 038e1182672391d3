package model

import "time"

type WikiPermission int

const (
	WikiPermissionDefault WikiPermission = iota
	WikiPermissionApproved
	WikiPermissionModsOnly
)

type WikiPage struct {
	Community  string         `json:"community"`
	Name       string         `json:"name"`
	Content    string         `json:"content"`
	RevisionID string         `json:"revision_id"`
	Reason     string         `json:"reason,omitempty"`
	Listed     bool           `json:"listed"`
	Permission WikiPermission `json:"permission"`
	Mtime      int64          `json:"mtime"`
}

func (p *WikiPage) UpdatedAt() time.Time {
	return time.Unix(p.Mtime, 0)
}
