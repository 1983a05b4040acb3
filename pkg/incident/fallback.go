package incident

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// Dataset is a complete set of offline data: what the dashboard shows when
// it runs in snapshot mode or when a live refresh fails.
type Dataset struct {
	Metrics    Metrics           `yaml:"metrics"`
	Incidents  []Incident        `yaml:"incidents"`
	Detail     Detail            `yaml:"detail"`
	TimeSeries []TimeSeriesPoint `yaml:"timeseries"`
}

// Clone returns a deep copy of the dataset.
func (d Dataset) Clone() Dataset {
	out := Dataset{
		Metrics: d.Metrics,
		Detail:  d.Detail.Clone(),
	}
	if d.Incidents != nil {
		out.Incidents = append([]Incident(nil), d.Incidents...)
	}
	if d.TimeSeries != nil {
		out.TimeSeries = append([]TimeSeriesPoint(nil), d.TimeSeries...)
	}
	return out
}

// Builtin returns a fresh copy of the built-in fallback dataset.
func Builtin() Dataset {
	return builtin.Clone()
}

// LoadFallback reads a YAML dataset from path. Sections missing from the
// file keep their built-in values.
func LoadFallback(path string) (Dataset, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return Dataset{}, fmt.Errorf("read fallback file: %w", err)
	}

	var parsed Dataset
	if err := yaml.Unmarshal(buf, &parsed); err != nil {
		return Dataset{}, fmt.Errorf("parse fallback file %s: %w", path, err)
	}

	ds := Builtin()
	if parsed.Metrics != (Metrics{}) {
		ds.Metrics = parsed.Metrics
	}
	if len(parsed.Incidents) > 0 {
		ds.Incidents = parsed.Incidents
	}
	if parsed.Detail.ID != "" {
		ds.Detail = parsed.Detail
	}
	if len(parsed.TimeSeries) > 0 {
		ds.TimeSeries = parsed.TimeSeries
	}
	return ds, nil
}

var builtin = Dataset{
	Metrics: Metrics{
		TotalIncidents:    47,
		ActiveIncidents:   12,
		AWSIncidents:      28,
		AzureIncidents:    19,
		ResolvedIncidents: 35,
		AvgResponseTime:   142,
	},
	Incidents: []Incident{
		{
			ID:          "inc-001",
			Cloud:       CloudAWS,
			Principal:   "arn:aws:iam::123456789012:user/honeypot-user",
			TriggerType: "S3 Access",
			Timestamp:   "2025-10-27T14:23:45Z",
			Status:      StatusActive,
			Severity:    SeverityHigh,
			IPAddress:   "203.45.67.89",
			Region:      "us-east-1",
		},
		{
			ID:          "inc-002",
			Cloud:       CloudAzure,
			Principal:   "decoy-service-principal@contoso.com",
			TriggerType: "Key Vault Access",
			Timestamp:   "2025-10-27T13:15:22Z",
			Status:      StatusActive,
			Severity:    SeverityCritical,
			IPAddress:   "45.123.78.210",
			Region:      "eastus",
		},
		{
			ID:          "inc-003",
			Cloud:       CloudAWS,
			Principal:   "arn:aws:iam::123456789012:role/trap-role",
			TriggerType: "DynamoDB Query",
			Timestamp:   "2025-10-27T11:42:18Z",
			Status:      StatusResolved,
			Severity:    SeverityMedium,
			IPAddress:   "102.34.56.178",
			Region:      "eu-west-1",
		},
		{
			ID:          "inc-004",
			Cloud:       CloudAzure,
			Principal:   "honeypot-app@tenant.onmicrosoft.com",
			TriggerType: "Storage Blob Read",
			Timestamp:   "2025-10-27T10:18:55Z",
			Status:      StatusResolved,
			Severity:    SeverityLow,
			IPAddress:   "78.92.145.23",
			Region:      "westus2",
		},
		{
			ID:          "inc-005",
			Cloud:       CloudAWS,
			Principal:   "arn:aws:iam::987654321098:user/decoy-admin",
			TriggerType: "Lambda Invocation",
			Timestamp:   "2025-10-27T09:33:12Z",
			Status:      StatusActive,
			Severity:    SeverityHigh,
			IPAddress:   "156.78.90.234",
			Region:      "ap-southeast-1",
		},
	},
	Detail: Detail{
		Incident: Incident{
			ID:          "inc-001",
			Cloud:       CloudAWS,
			Principal:   "arn:aws:iam::123456789012:user/honeypot-user",
			TriggerType: "S3 Access",
			Timestamp:   "2025-10-27T14:23:45Z",
			Status:      StatusActive,
			Severity:    SeverityHigh,
			IPAddress:   "203.45.67.89",
			Region:      "us-east-1",
		},
		ResourceARN: "arn:aws:s3:::honeypot-bucket-prod/sensitive-data.zip",
		UserAgent:   "aws-cli/2.13.5 Python/3.11.4 Linux/5.15.0",
		ResponseActions: []ResponseAction{
			{Action: "Credential Revoked", Timestamp: "2025-10-27T14:24:02Z", Status: "Success"},
			{Action: "Security Team Notified", Timestamp: "2025-10-27T14:24:05Z", Status: "Success"},
			{Action: "CloudTrail Logs Captured", Timestamp: "2025-10-27T14:24:08Z", Status: "Success"},
		},
		Evidence: map[string]string{
			"cloudtrail_log": "https://s3.amazonaws.com/evidence/inc-001-cloudtrail.json",
			"vpc_flow_logs":  "https://s3.amazonaws.com/evidence/inc-001-vpc-flow.log",
			"iam_snapshot":   "https://s3.amazonaws.com/evidence/inc-001-iam-snapshot.json",
		},
		Timeline: []TimelineEvent{
			{Event: "Honeytoken Triggered", Timestamp: "2025-10-27T14:23:45Z"},
			{Event: "Automated Response Initiated", Timestamp: "2025-10-27T14:24:00Z"},
			{Event: "Evidence Collection Started", Timestamp: "2025-10-27T14:24:08Z"},
			{Event: "Evidence Saved to S3", Timestamp: "2025-10-27T14:24:15Z"},
		},
		ThreatIndicators: ThreatIndicators{
			IsKnownAttacker: true,
			GeoLocation:     "Singapore",
		},
	},
	TimeSeries: []TimeSeriesPoint{
		{Date: "2025-10-21", Count: 5},
		{Date: "2025-10-22", Count: 8},
		{Date: "2025-10-23", Count: 3},
		{Date: "2025-10-24", Count: 12},
		{Date: "2025-10-25", Count: 7},
		{Date: "2025-10-26", Count: 9},
		{Date: "2025-10-27", Count: 3},
	},
}
