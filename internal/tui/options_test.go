package tui

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/bossmsg/internal/config"
	"github.com/matheus3301/bossmsg/internal/story"
	"github.com/matheus3301/bossmsg/internal/types"
)

func TestOptionsFromConfigDrivesViewer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := "[story]\nimage_duration = \"2s\"\npress_threshold = \"100ms\"\nframe_interval = \"40ms\"\n"
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	opts := OptionsFromConfig(cfg.Story)
	if opts.FrameInterval != 40*time.Millisecond {
		t.Errorf("FrameInterval = %v, want 40ms", opts.FrameInterval)
	}
	if opts.Story.PressThreshold != 100*time.Millisecond {
		t.Errorf("PressThreshold = %v, want 100ms", opts.Story.PressThreshold)
	}

	start := time.Unix(0, 0)
	stories := []types.Story{{ID: "a", MediaKind: types.MediaImage}, {ID: "b", MediaKind: types.MediaImage}}
	v := story.NewViewer(stories, 0, opts.Story, start)
	if f := v.Tick(start.Add(2 * time.Second)); f.Index != 1 {
		t.Errorf("after image_duration index = %d, want 1", f.Index)
	}
}

func TestOptionsFromDefaultConfig(t *testing.T) {
	opts := OptionsFromConfig(config.Default().Story)
	if opts.FrameInterval != 16*time.Millisecond {
		t.Errorf("FrameInterval = %v, want 16ms", opts.FrameInterval)
	}
	if opts.Story != story.DefaultOptions() {
		t.Errorf("Story = %+v, want %+v", opts.Story, story.DefaultOptions())
	}
}
