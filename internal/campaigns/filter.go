// internal/campaigns/filter.go
package campaigns

import (
	"sort"
	"time"

	"marketing-platform/internal/models"
)

// FilterCriteria narrows a tenant's campaign list for one placement.
type FilterCriteria struct {
	Zone      string   // exact zone key, empty = no zone filter
	PageNames []string // pages being rendered, empty = no page filter
	DisplayAs string   // "inline" | "popup", empty = both
}

// FilterCampaigns returns the subset of campaigns eligible under the given
// criteria at the given instant. Pure: deterministic for (campaigns, criteria,
// now), no side effects.
//
// A campaign is eligible only if it is active, its date window contains now,
// its zone matches exactly when a zone filter is given, and its page targeting
// overlaps the requested pages (an empty or nil TargetPages list is a wildcard
// matching every page).
func FilterCampaigns(campaigns []models.Campaign, criteria FilterCriteria, now time.Time) []models.Campaign {
	out := make([]models.Campaign, 0, len(campaigns))
	for _, c := range campaigns {
		if !c.IsActive {
			continue
		}
		if criteria.DisplayAs != "" && c.DisplayAs != criteria.DisplayAs {
			continue
		}
		if criteria.Zone != "" && c.TargetZone != criteria.Zone {
			continue
		}
		if len(criteria.PageNames) > 0 && !pagesMatch(c.TargetPages, criteria.PageNames) {
			continue
		}
		if c.StartDate != nil && c.StartDate.After(now) {
			continue
		}
		// End boundary is strict: a campaign ending exactly now is over.
		if c.EndDate != nil && !c.EndDate.After(now) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func pagesMatch(targetPages, pageNames []string) bool {
	if len(targetPages) == 0 {
		return true // wildcard
	}
	for _, p := range pageNames {
		for _, t := range targetPages {
			if p == t {
				return true
			}
		}
	}
	return false
}

// SortByPriority orders campaigns highest priority first, stable within equal
// priorities so admin ordering survives.
func SortByPriority(campaigns []models.Campaign) {
	sort.SliceStable(campaigns, func(i, j int) bool {
		return campaigns[i].Priority > campaigns[j].Priority
	})
}
