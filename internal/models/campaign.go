// internal/models/campaign.go
package models

import "time"

// Campaign display modes.
const (
	DisplayInline = "inline"
	DisplayPopup  = "popup"
)

// Campaign is a targeted marketing unit (banner, popup, widget) with
// zone/page/date targeting rules. Created and edited by admin CRUD, read-only
// to the filter.
type Campaign struct {
	ID         string     `json:"id"`
	TenantID   string     `json:"tenantId"`
	Name       string     `json:"name"`
	DisplayAs  string     `json:"displayAs"`
	TargetZone string     `json:"targetZone,omitempty"` // empty = no zone targeting
	// TargetPages is an ordered list of page-name strings. Empty or nil means
	// wildcard: the campaign matches every page.
	TargetPages []string   `json:"targetPages,omitempty"`
	IsActive    bool       `json:"isActive"`
	StartDate   *time.Time `json:"startDate,omitempty"`
	EndDate     *time.Time `json:"endDate,omitempty"`
	Priority    int        `json:"priority"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// ZoneFallback reserves layout space for a zone before campaign data arrives.
type ZoneFallback struct {
	DisplaySize string `json:"displaySize"`
	MinHeight   int    `json:"minHeight,omitempty"` // pixels, 0 = unspecified
}
