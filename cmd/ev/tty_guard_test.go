package main

import "testing"

func TestShouldSuppressTTYQueries(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		envRobot bool
		envTest  bool
		want     bool
	}{
		{"viewer", []string{"view", "runs.csv"}, false, false, false},
		{"json summary", []string{"summary", "runs.csv", "--json"}, false, false, true},
		{"json with value", []string{"summary", "--json=true"}, false, false, true},
		{"version", []string{"version"}, false, false, true},
		{"help flag", []string{"export", "--help"}, false, false, true},
		{"file named version", []string{"view", "version"}, false, false, false},
		{"robot env", []string{"view"}, true, false, true},
		{"test env", nil, false, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldSuppressTTYQueries(tt.args, tt.envRobot, tt.envTest); got != tt.want {
				t.Errorf("shouldSuppressTTYQueries(%v) = %v, want %v", tt.args, got, tt.want)
			}
		})
	}
}
