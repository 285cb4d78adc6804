package tinyterm

import "testing"

func TestSGRAttrs(t *testing.T) {
	var a sgrAttrs
	a.reset()
	if a.fgcol != palette[ColorWhite] || a.bgcol != palette[ColorBlack] {
		t.Fatalf("reset: fg=%v bg=%v", a.fgcol, a.bgcol)
	}

	a.setFG(Color(SGRFgRed % 10))
	if a.fgcol != palette[1] {
		t.Fatalf("fg red: %v", a.fgcol)
	}
	a.setBG(Color(9))
	if a.bgcol != palette[1] {
		t.Fatalf("bg index 9 should fold to red: %v", a.bgcol)
	}
}
