package services

import "testing"

func TestShouldDeploy(t *testing.T) {
	tests := []struct {
		name       string
		branch     string
		designated string
		want       bool
	}{
		{"designated branch", "main", "main", true},
		{"feature branch", "feature/x", "main", false},
		{"case sensitive", "Main", "main", false},
		{"prefix is not a match", "main-backup", "main", false},
		{"empty branch", "", "main", false},
		{"empty designated", "main", "", false},
		{"both empty", "", "", false},
		{"non-default designated", "release", "release", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldDeploy(tt.branch, tt.designated); got != tt.want {
				t.Errorf("ShouldDeploy(%q, %q) = %v, want %v", tt.branch, tt.designated, got, tt.want)
			}
		})
	}
}
