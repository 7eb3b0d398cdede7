package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSourcesFromYAML(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		wantCount   int
		wantErr     bool
		checkSource func(t *testing.T, sources []SourceDescriptor)
	}{
		{
			name: "valid config with all fields",
			content: `sources:
  - type: hidens
    location: rack1
  - type: file
    location: /data/rec.h5
`,
			wantCount: 2,
			checkSource: func(t *testing.T, sources []SourceDescriptor) {
				if sources[0].Type != "hidens" {
					t.Errorf("expected type 'hidens', got %q", sources[0].Type)
				}
				if sources[1].Location != "/data/rec.h5" {
					t.Errorf("expected location '/data/rec.h5', got %q", sources[1].Location)
				}
			},
		},
		{
			name:      "minimal config",
			content:   "sources:\n  - type: mcs\n",
			wantCount: 1,
		},
		{
			name:      "empty sources list",
			content:   "sources: []\n",
			wantCount: 0,
		},
		{
			name:    "missing type",
			content: "sources:\n  - location: /data/rec.h5\n",
			wantErr: true,
		},
		{
			name:    "invalid yaml",
			content: "sources: [invalid",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			tmpFile := filepath.Join(tmpDir, "sources.yaml")
			if err := os.WriteFile(tmpFile, []byte(tt.content), 0644); err != nil {
				t.Fatalf("failed to write temp file: %v", err)
			}

			sources, err := LoadSourcesFromYAML(tmpFile)

			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(sources) != tt.wantCount {
				t.Errorf("expected %d sources, got %d", tt.wantCount, len(sources))
			}
			if tt.checkSource != nil {
				tt.checkSource(t, sources)
			}
		})
	}
}

func TestLoadSourcesFromYAML_FileNotFound(t *testing.T) {
	_, err := LoadSourcesFromYAML("/nonexistent/path/sources.yaml")
	if err == nil {
		t.Error("expected error for non-existent file")
	}
}
