package content

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateRejectsDangerousMarkup(t *testing.T) {
	v := NewValidator(0)
	inputs := []string{
		`<p>hi</p><script>alert(1)</script>`,
		`<IFRAME src="https://evil.example"></IFRAME>`,
		`<object data="x"></object>`,
		`<embed src="x.swf">`,
		`<style>body{display:none}</style>`,
		`<a href="javascript:alert(1)">click</a>`,
		`<img src="data:image/png;base64,AAAA">`,
		`see data:text/html,<b>hi</b>`,
		`<a href = 'data:,payload'>x</a>`,
		`<p onclick="steal()">hello</p>`,
		`<img src=x onerror = "steal()">`,
	}

	for _, in := range inputs {
		err := v.Validate(in)
		if !errors.Is(err, ErrDisallowedMarkup) {
			t.Errorf("Validate(%q) = %v, want ErrDisallowedMarkup", in, err)
		}
	}
}

func TestValidateAcceptsOrdinaryRichText(t *testing.T) {
	v := NewValidator(0)
	inputs := []string{
		`<p>Shipping <strong>today</strong> &amp; tomorrow</p>`,
		`<ul><li>one</li><li>two</li></ul>`,
		`<p>Read more at <a href="https://example.com">example.com</a></p>`,
		`Big data: it is everywhere`,
		`Q3 data:10,000 signups`,
		`raw data: 1,2,3; more later`,
		`plain text with an equals sign: online = true`,
	}

	for _, in := range inputs {
		if err := v.Validate(in); err != nil {
			t.Errorf("Validate(%q) = %v", in, err)
		}
	}
}

func TestValidateLength(t *testing.T) {
	v := NewValidator(10)
	if err := v.Validate(strings.Repeat("é", 10)); err != nil {
		t.Fatalf("10 runes rejected: %v", err)
	}
	if err := v.Validate(strings.Repeat("a", 11)); !errors.Is(err, ErrTooLong) {
		t.Fatalf("err = %v, want ErrTooLong", err)
	}
	if err := v.Validate("   "); !errors.Is(err, ErrEmpty) {
		t.Fatalf("err = %v, want ErrEmpty", err)
	}
}

func TestToPlainText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`<p>Hello <em>world</em></p>`, "Hello world"},
		{`<p>One</p><p>Two</p>`, "One\nTwo"},
		{`a<br>b`, "a\nb"},
		{`<p>Tom &amp; Jerry&nbsp;&lt;3</p>`, "Tom & Jerry <3"},
		{`<ul><li>first</li><li>second</li></ul>`, "- first\n- second"},
		{`no markup at all`, "no markup at all"},
	}

	for _, tt := range tests {
		if got := ToPlainText(tt.in); got != tt.want {
			t.Errorf("ToPlainText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeEmptyAfterStrip(t *testing.T) {
	v := NewValidator(0)
	if _, err := v.Sanitize(`<p><br></p>`); !errors.Is(err, ErrEmpty) {
		t.Fatalf("err = %v, want ErrEmpty", err)
	}
}
