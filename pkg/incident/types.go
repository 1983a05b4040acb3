// Package incident defines the data model served by the incidents API and
// the static dataset used whenever that API cannot be reached.
package incident

import (
	"time"
)

// Cloud is the provider an incident was observed on.
type Cloud string

const (
	CloudAWS   Cloud = "AWS"
	CloudAzure Cloud = "Azure"
	CloudGCP   Cloud = "GCP"
)

// Status is the lifecycle state of an incident.
type Status string

const (
	StatusActive   Status = "Active"
	StatusResolved Status = "Resolved"
)

// Severity ranks how urgent an incident is.
type Severity string

const (
	SeverityLow      Severity = "Low"
	SeverityMedium   Severity = "Medium"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"
)

// Metrics is the aggregate counter block returned by GET /metrics.
type Metrics struct {
	TotalIncidents    int `json:"total_incidents" yaml:"total_incidents"`
	ActiveIncidents   int `json:"active_incidents" yaml:"active_incidents"`
	AWSIncidents      int `json:"aws_incidents" yaml:"aws_incidents"`
	AzureIncidents    int `json:"azure_incidents" yaml:"azure_incidents"`
	ResolvedIncidents int `json:"resolved_incidents" yaml:"resolved_incidents"`

	// AvgResponseTime is measured in seconds.
	AvgResponseTime float64 `json:"avg_response_time" yaml:"avg_response_time"`
}

// Incident is the summary row returned by GET /incidents.
type Incident struct {
	ID          string   `json:"id" yaml:"id"`
	Cloud       Cloud    `json:"cloud" yaml:"cloud"`
	Principal   string   `json:"principal" yaml:"principal"`
	TriggerType string   `json:"trigger_type" yaml:"trigger_type"`
	Timestamp   string   `json:"timestamp" yaml:"timestamp"`
	Status      Status   `json:"status" yaml:"status"`
	Severity    Severity `json:"severity" yaml:"severity"`
	IPAddress   string   `json:"ip_address" yaml:"ip_address"`
	Region      string   `json:"region" yaml:"region"`
}

// Time parses the ISO-8601 timestamp of the incident.
func (i Incident) Time() (time.Time, error) {
	return time.Parse(time.RFC3339, i.Timestamp)
}

// IsActive reports whether the incident still needs attention.
func (i Incident) IsActive() bool {
	return i.Status == StatusActive
}

// ResponseAction is one automated action taken after a trigger.
type ResponseAction struct {
	Action    string `json:"action" yaml:"action"`
	Timestamp string `json:"timestamp" yaml:"timestamp"`
	Status    string `json:"status" yaml:"status"`
}

// TimelineEvent is one step in the incident timeline.
type TimelineEvent struct {
	Event     string `json:"event" yaml:"event"`
	Timestamp string `json:"timestamp" yaml:"timestamp"`
}

// ThreatIndicators describes what is known about the source of the access.
type ThreatIndicators struct {
	IsVPN           bool   `json:"is_vpn" yaml:"is_vpn"`
	IsTor           bool   `json:"is_tor" yaml:"is_tor"`
	IsKnownAttacker bool   `json:"is_known_attacker" yaml:"is_known_attacker"`
	GeoLocation     string `json:"geo_location" yaml:"geo_location"`
}

// Detail is the full incident returned by GET /incident/{id}.
type Detail struct {
	Incident `json:",inline" yaml:",inline"`

	ResourceARN      string            `json:"resource_arn" yaml:"resource_arn"`
	UserAgent        string            `json:"user_agent" yaml:"user_agent"`
	ResponseActions  []ResponseAction  `json:"response_actions" yaml:"response_actions"`
	Evidence         map[string]string `json:"evidence" yaml:"evidence"`
	Timeline         []TimelineEvent   `json:"timeline" yaml:"timeline"`
	ThreatIndicators ThreatIndicators  `json:"threat_indicators" yaml:"threat_indicators"`
}

// Clone returns a deep copy so callers can mutate the result freely.
func (d Detail) Clone() Detail {
	out := d
	if d.ResponseActions != nil {
		out.ResponseActions = append([]ResponseAction(nil), d.ResponseActions...)
	}
	if d.Timeline != nil {
		out.Timeline = append([]TimelineEvent(nil), d.Timeline...)
	}
	if d.Evidence != nil {
		out.Evidence = make(map[string]string, len(d.Evidence))
		for k, v := range d.Evidence {
			out.Evidence[k] = v
		}
	}
	return out
}

// TimeSeriesPoint is one day of GET /incidents/timeseries.
type TimeSeriesPoint struct {
	Date  string `json:"date" yaml:"date"`
	Count int    `json:"count" yaml:"count"`
}
