package domain

import (
	"strings"
	"time"
)

// ============================================================
// Filter engine: derives the visible outage list
// ============================================================

// FilterAll disables a selector.
const FilterAll = "all"

// Filters is the client's current filter state.
type Filters struct {
	SearchQuery          string `json:"searchQuery"`
	SelectedService      string `json:"selectedService"`
	SelectedCategory     string `json:"selectedCategory"`
	SelectedType         string `json:"selectedType"`
	ShowOnlyUserDistrict bool   `json:"showOnlyUserDistrict"`
}

// DefaultFilters mirrors the initial client state.
func DefaultFilters() Filters {
	return Filters{
		SelectedService:      FilterAll,
		SelectedCategory:     FilterAll,
		SelectedType:         FilterAll,
		ShowOnlyUserDistrict: true,
	}
}

// FilterInput groups everything the filter engine reads.
type FilterInput struct {
	Outages      []Outage
	User         *User
	Filters      Filters
	Subscription *Subscription
	Now          time.Time
}

// FilterResult is the derived list plus the user's alert subset.
type FilterResult struct {
	Filtered      []Outage
	Notifications []Outage
}

// ApplyFilters runs every predicate over the full outage list and keeps the
// input order. Notifications are the high-severity outages in the user's
// district, and are only computed while the subscription is active.
func ApplyFilters(in FilterInput) FilterResult {
	f := in.Filters
	query := strings.ToLower(strings.TrimSpace(f.SearchQuery))
	userDistrict := ""
	if in.User != nil {
		userDistrict = strings.ToLower(in.User.District)
	}

	filtered := make([]Outage, 0, len(in.Outages))
	for _, o := range in.Outages {
		if in.User != nil && f.ShowOnlyUserDistrict && strings.ToLower(o.District) != userDistrict {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(o.Area), query) &&
			!strings.Contains(strings.ToLower(o.Description), query) &&
			!strings.Contains(strings.ToLower(o.District), query) {
			continue
		}
		if selected(f.SelectedService) && string(o.ServiceType) != f.SelectedService {
			continue
		}
		if selected(f.SelectedCategory) && o.Category != f.SelectedCategory {
			continue
		}
		switch f.SelectedType {
		case CategoryEmergency:
			if !o.IsEmergency() {
				continue
			}
		case CategoryScheduled:
			if o.IsEmergency() {
				continue
			}
		}
		filtered = append(filtered, o)
	}

	notifications := []Outage{}
	if in.User != nil && in.Subscription.ActiveAt(in.Now) {
		for _, o := range filtered {
			if strings.ToLower(o.District) == userDistrict && o.Severity == SeverityHigh {
				notifications = append(notifications, o)
			}
		}
	}

	return FilterResult{Filtered: filtered, Notifications: notifications}
}

func selected(v string) bool {
	return v != "" && v != FilterAll
}
