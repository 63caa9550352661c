package metrics

import (
	"strings"
	"testing"
)

func TestDecodeSecurityMetrics(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    SecurityMetrics
		wantErr bool
	}{
		{
			name: "exact shape",
			body: `{"threats":3,"vulnerabilities":12,"incidents":1,"compliance":85}`,
			want: SecurityMetrics{Threats: 3, Vulnerabilities: 12, Incidents: 1, Compliance: 85},
		},
		{
			name: "unknown fields ignored",
			body: `{"threats":5,"vulnerabilities":12,"incidents":3,"compliance":85.5,"extra":"x"}`,
			want: SecurityMetrics{Threats: 5, Vulnerabilities: 12, Incidents: 3, Compliance: 85.5},
		},
		{
			name: "explicit zeros are valid",
			body: `{"threats":0,"vulnerabilities":0,"incidents":0,"compliance":0}`,
			want: SecurityMetrics{},
		},
		{name: "missing compliance", body: `{"threats":1,"vulnerabilities":2,"incidents":3}`, wantErr: true},
		{name: "missing threats", body: `{"vulnerabilities":2,"incidents":3,"compliance":50}`, wantErr: true},
		{name: "negative count", body: `{"threats":-1,"vulnerabilities":2,"incidents":3,"compliance":50}`, wantErr: true},
		{name: "compliance above 100", body: `{"threats":1,"vulnerabilities":2,"incidents":3,"compliance":100.5}`, wantErr: true},
		{name: "fractional count", body: `{"threats":1.5,"vulnerabilities":2,"incidents":3,"compliance":50}`, wantErr: true},
		{name: "wrong type", body: `{"threats":"1","vulnerabilities":2,"incidents":3,"compliance":50}`, wantErr: true},
		{name: "malformed", body: `{"threats":`, wantErr: true},
		{
			name: "trailing newline is valid",
			body: "{\"threats\":3,\"vulnerabilities\":12,\"incidents\":1,\"compliance\":85}\n",
			want: SecurityMetrics{Threats: 3, Vulnerabilities: 12, Incidents: 1, Compliance: 85},
		},
		{name: "trailing garbage", body: `{"threats":3,"vulnerabilities":12,"incidents":1,"compliance":85} <html>oops`, wantErr: true},
		{name: "second object", body: `{"threats":3,"vulnerabilities":12,"incidents":1,"compliance":85}{}`, wantErr: true},
		{name: "not an object", body: `[1,2,3]`, wantErr: true},
		{name: "null", body: `null`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeSecurityMetrics(strings.NewReader(tt.body))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				if got != (SecurityMetrics{}) {
					t.Errorf("expected zero value on error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDecodeTimeline(t *testing.T) {
	body := `[{"time":"2024-05-01T10:00:00","threats":1},{"time":"11:00","threats":4}]`
	got, err := DecodeTimeline(strings.NewReader(body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(got))
	}
	if got[0].Time != "2024-05-01T10:00:00" || got[1].Threats != 4 {
		t.Errorf("unexpected samples: %+v", got)
	}

	empty, err := DecodeTimeline(strings.NewReader(`[]`))
	if err != nil {
		t.Fatalf("empty array should decode: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", empty)
	}

	for _, bad := range []string{`null`, `{}`, `[{"threats":1}]`, `[{"time":"t"}]`, `[{"time":"","threats":1}]`, `[{"time":"t","threats":-2}]`, `[] trailing`} {
		if _, err := DecodeTimeline(strings.NewReader(bad)); err == nil {
			t.Errorf("expected error for %s", bad)
		}
	}
}

func TestDecodeDistribution(t *testing.T) {
	body := `[{"name":"SQL Injection","value":30},{"name":"XSS","value":25}]`
	got, err := DecodeDistribution(strings.NewReader(body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].Name != "SQL Injection" || got[1].Value != 25 {
		t.Errorf("unexpected buckets: %+v", got)
	}

	for _, bad := range []string{`null`, `"x"`, `[{"value":1}]`, `[{"name":"a"}]`, `[{"name":"a","value":-1}]`, `[][]`} {
		if _, err := DecodeDistribution(strings.NewReader(bad)); err == nil {
			t.Errorf("expected error for %s", bad)
		}
	}
}
