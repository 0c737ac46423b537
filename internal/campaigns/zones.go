// internal/campaigns/zones.go
package campaigns

import "marketing-platform/internal/models"

// zoneFallbacks reserves layout space per zone before campaign data arrives.
// Purely presentational defaults, not a correctness concern.
var zoneFallbacks = map[string]models.ZoneFallback{
	"hero-top":       {DisplaySize: "full-width", MinHeight: 320},
	"hero-bottom":    {DisplaySize: "full-width", MinHeight: 240},
	"sidebar":        {DisplaySize: "compact", MinHeight: 250},
	"inline-content": {DisplaySize: "medium", MinHeight: 180},
	"footer":         {DisplaySize: "full-width", MinHeight: 120},
	"popup":          {DisplaySize: "modal"},
}

var defaultZoneFallback = models.ZoneFallback{DisplaySize: "medium", MinHeight: 160}

// ZoneFallback returns the layout reservation for a zone, with a default for
// unknown zone keys.
func ZoneFallback(zone string) models.ZoneFallback {
	if fb, ok := zoneFallbacks[zone]; ok {
		return fb
	}
	return defaultZoneFallback
}
