package instrument

import "testing"

func TestIgnoreListWholeMatch(t *testing.T) {
	il, err := NewIgnoreList([]string{`jquery.*`, `.*\.min\.js`})
	if err != nil {
		t.Fatalf("NewIgnoreList failed: %v", err)
	}

	tests := []struct {
		name string
		want bool
	}{
		{"jquery-1.12.4.js", true},
		{"jquery.js", true},
		{"vendor/jquery.js", false}, // pattern must match the whole name
		{"app.min.js", true},
		{"http://cdn.example.com/lib.min.js", true},
		{"app.js", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := il.ShouldIgnore(tt.name); got != tt.want {
			t.Errorf("ShouldIgnore(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestIgnoreListBadPattern(t *testing.T) {
	if _, err := NewIgnoreList([]string{`[unclosed`}); err == nil {
		t.Error("expected error for invalid pattern")
	}
}

func TestIgnoreListEmpty(t *testing.T) {
	il, err := NewIgnoreList(nil)
	if err != nil {
		t.Fatalf("NewIgnoreList failed: %v", err)
	}
	if il.ShouldIgnore("anything.js") {
		t.Error("empty list should ignore nothing")
	}
}
