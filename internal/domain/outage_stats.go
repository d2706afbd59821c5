package domain

// OutageStatistics holds the dashboard counters.
type OutageStatistics struct {
	Total       int              `json:"total"`
	Emergency   int              `json:"emergency"`
	Scheduled   int              `json:"scheduled"`
	Water       int              `json:"water"`
	Electricity int              `json:"electricity"`
	Heating     int              `json:"heating"`
	BySeverity  map[Severity]int `json:"bySeverity"`
}

// Statistics counts outages by classification. Emergency and scheduled come
// from the free-text type, so together they may not add up to Total.
func Statistics(outages []Outage) OutageStatistics {
	s := OutageStatistics{
		Total:      len(outages),
		BySeverity: map[Severity]int{SeverityLow: 0, SeverityMedium: 0, SeverityHigh: 0},
	}
	for _, o := range outages {
		if o.IsEmergency() {
			s.Emergency++
		}
		if o.IsScheduled() {
			s.Scheduled++
		}
		switch o.ServiceType {
		case ServiceWater:
			s.Water++
		case ServiceElectricity:
			s.Electricity++
		case ServiceHeating:
			s.Heating++
		}
		if _, ok := s.BySeverity[o.Severity]; ok {
			s.BySeverity[o.Severity]++
		}
	}
	return s
}
