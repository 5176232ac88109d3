package stream

import "testing"

func TestParseRangeHeader(t *testing.T) {
	cases := []struct {
		header     string
		ok         bool
		start      int64
		end        int64
		hasEnd     bool
		initialCap bool
	}{
		{header: "bytes=0-2097151", ok: true, start: 0, end: 2097151, hasEnd: true},
		{header: "bytes=100-", ok: true, start: 100, initialCap: true},
		{header: "bytes=-500", ok: false},
		{header: "not-bytes=0-1", ok: false},
		{header: "bytes=10-5", ok: false},
	}

	for _, tc := range cases {
		pr, ok := parseRangeHeader(tc.header)
		if ok != tc.ok {
			t.Errorf("parseRangeHeader(%q) ok = %v, want %v", tc.header, ok, tc.ok)
			continue
		}
		if !ok {
			continue
		}
		if pr.start != tc.start {
			t.Errorf("parseRangeHeader(%q).start = %d, want %d", tc.header, pr.start, tc.start)
		}
		if tc.hasEnd && pr.end != tc.end {
			t.Errorf("parseRangeHeader(%q).end = %d, want %d", tc.header, pr.end, tc.end)
		}
		if pr.initialCap != tc.initialCap {
			t.Errorf("parseRangeHeader(%q).initialCap = %v, want %v", tc.header, pr.initialCap, tc.initialCap)
		}
	}
}

func TestInitialRangeCapAppliedToOpenEndedRange(t *testing.T) {
	pr, ok := parseRangeHeader("bytes=0-")
	if !ok {
		t.Fatal("expected parse success")
	}
	end := pr.start
	if pr.initialCap {
		end = pr.start + initialRangeCapBytes - 1
	}
	if end != initialRangeCapBytes-1 {
		t.Errorf("capped end = %d, want %d", end, initialRangeCapBytes-1)
	}
}
