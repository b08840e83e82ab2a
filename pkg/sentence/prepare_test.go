package sentence

import "testing"

func TestPrepare(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"hello", "Hello."},
		{"  hello   world  ", "Hello world."},
		{"Hello!", "Hello!"},
		{"line one\nline two", "Line one line two."},
		{"42", "42."},
		{"你好", "你好。"},
		{"   ", ""},
		{"", ""},
		{"bad \xff byte", "Bad � byte."},
	}
	for _, tt := range tests {
		if got := Prepare(tt.in); got != tt.want {
			t.Errorf("Prepare(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}

func TestWords(t *testing.T) {
	if got := Words("one two  three\nfour"); got != 4 {
		t.Errorf("Words() = %d; want 4", got)
	}
	if got := Words(""); got != 0 {
		t.Errorf("Words(\"\") = %d; want 0", got)
	}
}
