package identity

import (
	"path/filepath"
	"testing"
)

func TestLoadOrCreate_PersistsAcrossCalls(t *testing.T) {
	path := filepath.Join(t.TempDir(), "instance-id.lock")

	id1 := LoadOrCreate(path)
	id2 := LoadOrCreate(path)

	if id1 != id2 {
		t.Errorf("instance id changed between calls: %q -> %q", id1, id2)
	}
	if id1 == "" {
		t.Error("instance id should not be empty")
	}
}

func TestShort(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want string
	}{
		{name: "uuid-like", id: "inst-3f2a9c7e-1111-2222-3333-444455556666", want: "444455556666"[:8]},
		{name: "no dashes", id: "plain", want: "plain"},
		{name: "empty", id: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Short(tt.id); got != tt.want {
				t.Errorf("Short(%q) = %q, want %q", tt.id, got, tt.want)
			}
		})
	}
}
