package np

import "testing"

func TestPlaybackStatusRoundTrip(t *testing.T) {
	for _, status := range []PlaybackStatus{PlaybackClosed, PlaybackStopped, PlaybackPlaying, PlaybackPaused, PlaybackChanging} {
		parsed, err := ParsePlaybackStatus(status.String())
		if err != nil {
			t.Fatalf("parse %v: %v", status, err)
		}
		if parsed != status {
			t.Fatalf("expected %v, got %v", status, parsed)
		}
	}
	if _, err := ParsePlaybackStatus("bogus"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestParseButtonAliases(t *testing.T) {
	if b, err := ParseButton("prev"); err != nil || b != ButtonPrevious {
		t.Fatalf("expected previous, got %v (%v)", b, err)
	}
	if b, err := ParseButton("ff"); err != nil || b != ButtonFastForward {
		t.Fatalf("expected fastforward, got %v (%v)", b, err)
	}
	if _, err := ParseButton("eject"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestParseMediaTypeFallback(t *testing.T) {
	if ParseMediaType("music") != MediaMusic {
		t.Fatalf("expected music")
	}
	if ParseMediaType("whatever") != MediaUnknown {
		t.Fatalf("expected unknown fallback")
	}
}

func TestNewTimelinePinsSeekRange(t *testing.T) {
	tl := NewTimeline(0, 10000, 5000)
	if tl.MinSeekMS != 0 || tl.MaxSeekMS != 10000 {
		t.Fatalf("expected seek range [0,10000], got [%d,%d]", tl.MinSeekMS, tl.MaxSeekMS)
	}
}
