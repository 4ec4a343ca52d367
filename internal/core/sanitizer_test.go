package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text untouched", "Use =SUM(A1:A10) to add.", "Use =SUM(A1:A10) to add."},
		{"link replaced", "Use =VLOOKUP(...) see http://example.com", "Use =VLOOKUP(...) see [link removed]"},
		{"https with path and query", "Docs: https://a.b/c?d=e&f=g#h", "Docs: [link removed]"},
		{"ftp link", "grab ftp://files.example.org/x.csv now", "grab [link removed] now"},
		{"trailing punctuation kept", "See https://example.com/page.", "See [link removed]."},
		{"parenthesised link", "(see https://example.com/x)", "(see [link removed])"},
		{"balanced parens inside link", "https://en.wikipedia.org/wiki/Join_(SQL)", "[link removed]"},
		{"scheme is case-insensitive", "HTTP://EXAMPLE.COM", "[link removed]"},
		{"link glued to a word", "xhttp://evil.example", "x[link removed]"},
		{"bare scheme left alone", "the http:// prefix", "the http:// prefix"},
		{"script removed with body", "a<script>alert(1)</script>b", "ab"},
		{"button removed", `<button onclick="x()">Click</button>Done`, "Done"},
		{"multi-line iframe", "x<IFRAME\nsrc=\"y\">\n</iframe>z", "xz"},
		{"void input", `name: <input type="text"> end`, "name:  end"},
		{"form with fields", "<form><input name=a><textarea>t</textarea></form>after", "after"},
		{"embed and object", `<object data="a"></object><embed src="b">ok`, "ok"},
		{"nested fragments", "<scr<script></script>ipt>alert(1)</script>", "alert(1)"},
		{"markdown survives", "**bold** and `code`\n\n- item", "**bold** and `code`\n\n- item"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	inputs := []string{
		"see http://example.com and <button>x</button>",
		"<scr<script></script>ipt>alert(1)</script>",
		"<scripthttp://a.b>",
		"ht<input>tp://hidden.example",
		"(https://a.b/c)).",
		"http://.",
		"<form>\n<select><option>1</option></select>\n</form>https://x.y",
	}
	for _, in := range inputs {
		once := Sanitize(in)
		assert.Equal(t, once, Sanitize(once), "input %q", in)
		assert.NotContains(t, once, "://hidden")
	}
}

func TestSanitize_NoLinksOrMarkupRemain(t *testing.T) {
	out := Sanitize("ht<input>tp://hidden.example <scripthttp://a.b>")
	assert.Equal(t, "[link removed] ", out)
}
