package render

import "testing"

func TestPaletteColor(t *testing.T) {
	p := Palette{"#1", "#2", "#3"}
	tests := []struct {
		lane int
		want string
	}{
		{0, "#1"},
		{2, "#3"},
		{3, "#1"},
		{7, "#2"},
		{-1, "#3"},
	}
	for _, tt := range tests {
		if got := p.Color(tt.lane); got != tt.want {
			t.Errorf("Color(%d) = %q, want %q", tt.lane, got, tt.want)
		}
	}
	if got := (Palette{}).Color(4); got != "" {
		t.Errorf("empty palette Color = %q, want empty", got)
	}
}

func TestPaletteByName(t *testing.T) {
	if got := PaletteByName("mono"); len(got) != 1 {
		t.Errorf("mono palette has %d colors, want 1", len(got))
	}
	def := PaletteByName("nope")
	if len(def) == 0 || def[0] != PaletteByName(DefaultPalette)[0] {
		t.Errorf("unknown palette did not fall back to default")
	}
	def[0] = "changed"
	if PaletteByName(DefaultPalette)[0] == "changed" {
		t.Error("PaletteByName must return a copy")
	}
}

func TestPaletteNames(t *testing.T) {
	names := PaletteNames()
	want := []string{"bright", "mono", "muted"}
	if len(names) != len(want) {
		t.Fatalf("PaletteNames() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("PaletteNames()[%d] = %q, want %q", i, names[i], want[i])
		}
		if !ValidPalette(names[i]) {
			t.Errorf("ValidPalette(%q) = false", names[i])
		}
	}
}
