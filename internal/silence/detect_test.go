package silence

import (
	"testing"
)

func feedLines(p *markerParser, lines ...string) {
	for _, line := range lines {
		p.consume(line)
	}
}

func TestMarkerParser_Pairs(t *testing.T) {
	p := newMarkerParser()
	feedLines(p,
		"[silencedetect @ 0x7f8] silence_start: 1.5",
		"[silencedetect @ 0x7f8] silence_end: 3.25 | silence_duration: 1.75",
		"[silencedetect @ 0x7f8] silence_start: 10",
		"[silencedetect @ 0x7f8] silence_end: 12.5 | silence_duration: 2.5",
	)

	want := []Interval{{1.5, 3.25}, {10, 12.5}}
	if !intervalsEqual(p.intervals, want) {
		t.Fatalf("intervals = %v, want %v", p.intervals, want)
	}
}

func TestMarkerParser_UnpairedStartDropped(t *testing.T) {
	p := newMarkerParser()
	feedLines(p,
		"[silencedetect @ 0x7f8] silence_start: 1.5",
		"[silencedetect @ 0x7f8] silence_end: 3.0 | silence_duration: 1.5",
		"[silencedetect @ 0x7f8] silence_start: 9.0",
	)

	want := []Interval{{1.5, 3.0}}
	if !intervalsEqual(p.intervals, want) {
		t.Fatalf("intervals = %v, want %v", p.intervals, want)
	}
}

func TestMarkerParser_EndWithoutStartDropped(t *testing.T) {
	p := newMarkerParser()
	feedLines(p, "[silencedetect @ 0x7f8] silence_end: 3.0 | silence_duration: 1.5")

	if len(p.intervals) != 0 {
		t.Fatalf("intervals = %v, want empty", p.intervals)
	}
}

func TestMarkerParser_MalformedValuesDropped(t *testing.T) {
	p := newMarkerParser()
	feedLines(p,
		"[silencedetect @ 0x7f8] silence_start: not-a-number",
		"[silencedetect @ 0x7f8] silence_end: 3.0",
		"frame=  100 fps= 25 time=00:00:04.00",
		"[silencedetect @ 0x7f8] silence_start: 5.0",
		"[silencedetect @ 0x7f8] silence_end: garbage",
		"[silencedetect @ 0x7f8] silence_end: 6.0",
	)

	want := []Interval{{5.0, 6.0}}
	if !intervalsEqual(p.intervals, want) {
		t.Fatalf("intervals = %v, want %v", p.intervals, want)
	}
}

func TestMarkerParser_InvertedPairDropped(t *testing.T) {
	p := newMarkerParser()
	feedLines(p,
		"[silencedetect @ 0x7f8] silence_start: 8.0",
		"[silencedetect @ 0x7f8] silence_end: 2.0",
	)

	if len(p.intervals) != 0 {
		t.Fatalf("intervals = %v, want empty", p.intervals)
	}
}
