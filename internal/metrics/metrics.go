// Package metrics holds the security posture values shown on the dashboard
// and the strict decoders for the metrics service wire format.
package metrics

import (
	"encoding/json"
	"fmt"
	"io"
)

// SecurityMetrics is one immutable posture snapshot. The zero value is the
// initial snapshot shown before the first successful poll.
type SecurityMetrics struct {
	Threats         int     `json:"threats"`
	Vulnerabilities int     `json:"vulnerabilities"`
	Incidents       int     `json:"incidents"`
	Compliance      float64 `json:"compliance"`
}

// ThreatSample is one point of the threat timeline.
type ThreatSample struct {
	Time    string `json:"time"`
	Threats int    `json:"threats"`
}

// VulnerabilityBucket is one slice of the vulnerability distribution.
type VulnerabilityBucket struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// wireMetrics uses pointers so a missing field can be told apart from zero.
type wireMetrics struct {
	Threats         *int     `json:"threats"`
	Vulnerabilities *int     `json:"vulnerabilities"`
	Incidents       *int     `json:"incidents"`
	Compliance      *float64 `json:"compliance"`
}

type wireSample struct {
	Time    *string `json:"time"`
	Threats *int    `json:"threats"`
}

type wireBucket struct {
	Name  *string `json:"name"`
	Value *int    `json:"value"`
}

// DecodeSecurityMetrics reads one SecurityMetrics object. Unknown fields are
// ignored; missing fields, negative counts and compliance outside [0,100]
// are errors.
func DecodeSecurityMetrics(r io.Reader) (SecurityMetrics, error) {
	var w wireMetrics
	if err := decodeSingle(r, &w); err != nil {
		return SecurityMetrics{}, err
	}

	if err := requireCount("threats", w.Threats); err != nil {
		return SecurityMetrics{}, err
	}
	if err := requireCount("vulnerabilities", w.Vulnerabilities); err != nil {
		return SecurityMetrics{}, err
	}
	if err := requireCount("incidents", w.Incidents); err != nil {
		return SecurityMetrics{}, err
	}
	if w.Compliance == nil {
		return SecurityMetrics{}, fmt.Errorf("missing field %q", "compliance")
	}
	if *w.Compliance < 0 || *w.Compliance > 100 {
		return SecurityMetrics{}, fmt.Errorf("compliance %v out of range [0,100]", *w.Compliance)
	}

	return SecurityMetrics{
		Threats:         *w.Threats,
		Vulnerabilities: *w.Vulnerabilities,
		Incidents:       *w.Incidents,
		Compliance:      *w.Compliance,
	}, nil
}

// DecodeTimeline reads a JSON array of threat samples, keeping their order.
func DecodeTimeline(r io.Reader) ([]ThreatSample, error) {
	var raw []wireSample
	if err := decodeSingle(r, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("expected an array, got null")
	}

	samples := make([]ThreatSample, 0, len(raw))
	for i, s := range raw {
		if s.Time == nil || *s.Time == "" {
			return nil, fmt.Errorf("sample %d: missing field %q", i, "time")
		}
		if err := requireCount(fmt.Sprintf("sample %d threats", i), s.Threats); err != nil {
			return nil, err
		}
		samples = append(samples, ThreatSample{Time: *s.Time, Threats: *s.Threats})
	}
	return samples, nil
}

// DecodeDistribution reads a JSON array of vulnerability buckets.
func DecodeDistribution(r io.Reader) ([]VulnerabilityBucket, error) {
	var raw []wireBucket
	if err := decodeSingle(r, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("expected an array, got null")
	}

	buckets := make([]VulnerabilityBucket, 0, len(raw))
	for i, b := range raw {
		if b.Name == nil || *b.Name == "" {
			return nil, fmt.Errorf("bucket %d: missing field %q", i, "name")
		}
		if err := requireCount(fmt.Sprintf("bucket %d value", i), b.Value); err != nil {
			return nil, err
		}
		buckets = append(buckets, VulnerabilityBucket{Name: *b.Name, Value: *b.Value})
	}
	return buckets, nil
}

// decodeSingle decodes exactly one JSON value; anything but whitespace
// after it is an error.
func decodeSingle(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("invalid json: unexpected data after top-level value")
	}
	return nil
}

func requireCount(field string, v *int) error {
	if v == nil {
		return fmt.Errorf("missing field %q", field)
	}
	if *v < 0 {
		return fmt.Errorf("field %q must be >= 0, got %d", field, *v)
	}
	return nil
}
