package asgen

import (
	"errors"
	"testing"
)

func TestSuiteValidate(t *testing.T) {
	tt := []struct {
		name    string
		suite   Suite
		wantErr bool
	}{
		{
			name: "valid",
			suite: Suite{
				Name:          "noble",
				Sections:      []string{"main"},
				Architectures: []string{"amd64"},
			},
			wantErr: false,
		},
		{
			name:    "empty name",
			suite:   Suite{Sections: []string{"main"}, Architectures: []string{"amd64"}},
			wantErr: true,
		},
		{
			name:    "reserved name",
			suite:   Suite{Name: "pool", Sections: []string{"main"}, Architectures: []string{"amd64"}},
			wantErr: true,
		},
		{
			name:    "no sections",
			suite:   Suite{Name: "noble", Architectures: []string{"amd64"}},
			wantErr: true,
		},
		{
			name:    "no architectures",
			suite:   Suite{Name: "noble", Sections: []string{"main"}},
			wantErr: true,
		},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.suite.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate(): got err=%v, wantErr=%v", err, tc.wantErr)
			}
			if err != nil {
				var e *Error
				if !errors.As(err, &e) || e.Kind != ErrConfig {
					t.Errorf("expected ErrConfig, got %v", err)
				}
			}
		})
	}
}

func TestRepoKey(t *testing.T) {
	got := RepoKey("noble", "main", "amd64")
	want := "noble-main-amd64"
	if got != want {
		t.Errorf("RepoKey: got %q, want %q", got, want)
	}
}
