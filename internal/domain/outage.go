package domain

import "strings"

// ============================================================
// Outage: canonical record served to the web client
// ============================================================

// ServiceType is the utility affected by an outage.
type ServiceType string

const (
	ServiceWater       ServiceType = "water"
	ServiceElectricity ServiceType = "electricity"
	ServiceHeating     ServiceType = "heating"
)

// ParseServiceType reports whether s names a known service type.
func ParseServiceType(s string) (ServiceType, bool) {
	switch ServiceType(strings.ToLower(strings.TrimSpace(s))) {
	case ServiceWater:
		return ServiceWater, true
	case ServiceElectricity:
		return ServiceElectricity, true
	case ServiceHeating:
		return ServiceHeating, true
	}
	return "", false
}

// Severity of an outage.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ParseSeverity reports whether s names a known severity.
func ParseSeverity(s string) (Severity, bool) {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeverityLow:
		return SeverityLow, true
	case SeverityMedium:
		return SeverityMedium, true
	case SeverityHigh:
		return SeverityHigh, true
	}
	return "", false
}

// Categories and localized type labels used by the upstream data.
const (
	CategoryEmergency = "emergency"
	CategoryScheduled = "scheduled"

	TypeEmergency = "Аварийно спиране"
	TypeScheduled = "Планирано спиране"

	UnknownArea    = "Неизвестна зона"
	UnknownValue   = "Неизвестен"
	emergencyToken = "аварийно"
	scheduledToken = "планирано"
)

// Outage is one reported utility disruption.
type Outage struct {
	ID          string        `json:"id"`
	Source      string        `json:"source"`
	Area        string        `json:"area"`
	Type        string        `json:"type"`
	Category    string        `json:"category"`
	Description string        `json:"description"`
	Start       string        `json:"start"`
	End         string        `json:"end"`
	Timestamp   string        `json:"timestamp"`
	ServiceType ServiceType   `json:"serviceType"`
	District    string        `json:"district"`
	Severity    Severity      `json:"severity"`
	Labels      *OutageLabels `json:"labels,omitempty"`
}

// OutageLabels carries the Bulgarian display names for an outage.
type OutageLabels struct {
	Service  string `json:"service"`
	Severity string `json:"severity"`
	Type     string `json:"type"`
}

// IsEmergency reports whether the localized type marks an emergency.
func (o Outage) IsEmergency() bool {
	return strings.Contains(strings.ToLower(o.Type), emergencyToken)
}

// IsScheduled reports whether the localized type marks planned work.
func (o Outage) IsScheduled() bool {
	return strings.Contains(strings.ToLower(o.Type), scheduledToken)
}

// WithLabels returns a copy of o with display labels attached.
func (o Outage) WithLabels() Outage {
	o.Labels = &OutageLabels{
		Service:  ServiceName(string(o.ServiceType)),
		Severity: SeverityName(string(o.Severity)),
		Type:     TypeName(o.Type),
	}
	return o
}

// ServiceName returns the Bulgarian name of a service type.
func ServiceName(serviceType string) string {
	switch ServiceType(serviceType) {
	case ServiceWater:
		return "Вода"
	case ServiceElectricity:
		return "Ток"
	case ServiceHeating:
		return "Топлофикация"
	default:
		return "Неизвестно"
	}
}

// SeverityName returns the Bulgarian name of a severity.
func SeverityName(severity string) string {
	switch Severity(severity) {
	case SeverityHigh:
		return "Висок"
	case SeverityMedium:
		return "Среден"
	case SeverityLow:
		return "Нисък"
	default:
		return UnknownValue
	}
}

// TypeName returns the short Bulgarian label for a localized outage type.
func TypeName(outageType string) string {
	t := strings.ToLower(outageType)
	switch {
	case strings.Contains(t, emergencyToken):
		return "Авария"
	case strings.Contains(t, scheduledToken):
		return "Планирано"
	default:
		return "В ход"
	}
}

// OutageListResponse is returned by GET /api/outages.
type OutageListResponse struct {
	Success       bool     `json:"success"`
	Data          []Outage `json:"data"`
	Total         int      `json:"total"`
	Timestamp     string   `json:"timestamp"`
	Warning       string   `json:"warning,omitempty"`
	Notifications []Outage `json:"notifications,omitempty"`
}

// OutageSnapshot is the merged, normalized outage set produced by a refresh.
type OutageSnapshot struct {
	Outages     []Outage `json:"outages"`
	RefreshedAt string   `json:"refreshedAt"`
	Fallback    bool     `json:"fallback"`
	Warning     string   `json:"warning,omitempty"`
}
