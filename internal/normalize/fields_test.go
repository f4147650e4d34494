package normalize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestText(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{name: "collapses and lowercases", input: "  Foo   Bar ", want: "foo bar", wantOK: true},
		{name: "tabs and newlines", input: "Acme\t\nCorp", want: "acme corp", wantOK: true},
		{name: "empty", input: "", wantOK: false},
		{name: "only spaces", input: "   ", wantOK: false},
		{name: "nan placeholder", input: "NaN", wantOK: false},
		{name: "none placeholder", input: " None ", wantOK: false},
		{name: "not-a-time placeholder", input: "NaT", wantOK: false},
		{name: "placeholder inside text is kept", input: "Nan Goldin", want: "nan goldin", wantOK: true},
		{name: "decomposed accent composes", input: "Jose\u0301", want: "jos\u00e9", wantOK: true},
		{name: "composed accent unchanged", input: "JOS\u00c9", want: "jos\u00e9", wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Text(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPhone(t *testing.T) {
	tests := []struct {
		input  string
		want   string
		wantOK bool
	}{
		{input: "+34 600-123.456", want: "34600123456", wantOK: true},
		{input: "(91) 555 01 02", want: "915550102", wantOK: true},
		{input: "n/a", wantOK: false},
		{input: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := Phone(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestURL(t *testing.T) {
	tests := []struct {
		input  string
		want   string
		wantOK bool
	}{
		{input: "HTTPS://WWW.Example.com/in/john/", want: "example.com/in/john", wantOK: true},
		{input: "http://linkedin.com/in/ana", want: "linkedin.com/in/ana", wantOK: true},
		{input: "www.linkedin.com/in/ana//", want: "linkedin.com/in/ana", wantOK: true},
		{input: "linkedin.com/in/ana", want: "linkedin.com/in/ana", wantOK: true},
		{input: "https://https://linkedin.com/in/ana", want: "linkedin.com/in/ana", wantOK: true},
		{input: "https://", wantOK: false},
		{input: "https://www./", wantOK: false},
		{input: "http://nan", wantOK: false},
		{input: "None", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := URL(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestID(t *testing.T) {
	tests := []struct {
		input  string
		want   string
		wantOK bool
	}{
		{input: "1234", want: "1234", wantOK: true},
		{input: "1234.0", want: "1234", wantOK: true},
		{input: " 1234.00 ", want: "1234", wantOK: true},
		{input: "12.5", want: "12.5", wantOK: true},
		{input: "ABC-12", want: "abc-12", wantOK: true},
		{input: "nan", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ID(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPhoneList(t *testing.T) {
	assert.Equal(t, []string{"600111222", "911222333"}, PhoneList("911 222 333; 600-111-222 / 600111222"))
	assert.Empty(t, PhoneList(""))
	assert.Empty(t, PhoneList(" ; / "))
}

func TestNormalizersAreIdempotent(t *testing.T) {
	inputs := []string{
		"", "  Foo   Bar ", "NaN", "nat", "+34 600-123.456", "HTTPS://WWW.Example.com/in/john/",
		"https://https://www.x.com//", "http:// www.a.com /", "1234.0", "1e3", "José Pérez",
		"www.http://nan", "  https://www.  ", "Ünïcödé Spaces", "İstanbul",
	}

	for _, kind := range []Kind{KindText, KindURL, KindPhone, KindID} {
		fn, ok := get(kind)
		if !assert.True(t, ok, "kind %s", kind) {
			continue
		}
		for _, in := range inputs {
			once, ok := fn(in)
			if !ok {
				// Absent has no second application to compare against.
				continue
			}
			twice, ok2 := fn(once)
			assert.True(t, ok2, "%s(%q) became absent on second pass", kind, in)
			assert.Equal(t, once, twice, "%s not idempotent for %q", kind, in)
		}
	}

	for _, in := range inputs {
		once := PhoneList(in)
		assert.Equal(t, once, PhoneList(strings.Join(once, ";")))
	}
}

func TestKeys(t *testing.T) {
	assert.Equal(t, []string{"acme"}, Keys(KindText, " ACME "))
	assert.Nil(t, Keys(KindText, "none"))
	assert.Equal(t, []string{"1", "2"}, Keys(KindPhoneList, "2,1"))
	assert.Panics(t, func() { Keys(Kind("soundex"), "x") })
}
