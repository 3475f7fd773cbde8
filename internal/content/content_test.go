package content

import (
	"testing"
)

func TestExtractIndexableText(t *testing.T) {
	cases := []struct {
		name, in, want string
	}{
		{"empty", "", ""},
		{"inline markup", "<p>Hello <b>World</b></p>", "Hello World"},
		{"headings and paragraphs", "<h1>Title</h1><div>noise</div><p>Body\n  text</p><h6>End</h6>", "Title\nBody text\nEnd"},
		{"unclosed tags", "<p>one<p>two <i>three", "one\ntwo three"},
		{"no body copy", "<div>only a div</div><span>and a span</span>", ""},
		{
			"default namespace",
			`<?xml version="1.0"?><html xmlns="http://www.w3.org/1999/xhtml"><body><p>First</p><ul><li>skip</li></ul><h2>Second</h2></body></html>`,
			"First\nSecond",
		},
		{
			"prefixed namespace",
			`<x:html xmlns:x="http://www.w3.org/1999/xhtml"><x:body><x:p>One</x:p><x:h2>Two</x:h2></x:body></x:html><p>skip</p>`,
			"One\nTwo",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExtractIndexableText(tc.in); got != tc.want {
				t.Errorf("ExtractIndexableText() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestUsesXHTMLNamespace(t *testing.T) {
	withDoc := func(markup string, fn func(Namespace)) {
		doc, err := Parse(markup)
		if err != nil {
			t.Fatal(err)
		}
		fn(UsesXHTMLNamespace(doc))
	}

	withDoc(`<html xmlns="http://www.w3.org/1999/xhtml"><p>x</p></html>`, func(ns Namespace) {
		if !ns.XHTML || ns.Prefix != "" {
			t.Errorf("expected default namespace, got %+v", ns)
		}
	})
	withDoc(`<h:p xmlns:h="http://www.w3.org/1999/xhtml">x</h:p>`, func(ns Namespace) {
		if !ns.XHTML || ns.Prefix != "h" {
			t.Errorf("expected prefix h, got %+v", ns)
		}
	})
	withDoc(`<html><p>plain</p></html>`, func(ns Namespace) {
		if ns.XHTML {
			t.Errorf("plain HTML reported as XHTML")
		}
	})
	withDoc(`<html xmlns="http://www.w3.org/1999/xhtml"><div>no paragraphs</div></html>`, func(ns Namespace) {
		if ns.XHTML {
			t.Errorf("namespace without <p> reported as XHTML")
		}
	})
}

func TestExtractTitle(t *testing.T) {
	if got := ExtractTitle(`<html><head><title> The  Title </title></head><body><h1>Heading</h1></body></html>`); got != "The Title" {
		t.Errorf("got %q", got)
	}
	if got := ExtractTitle(`<body><h1>Heading</h1></body>`); got != "Heading" {
		t.Errorf("got %q", got)
	}
	if got := ExtractTitle(""); got != "" {
		t.Errorf("got %q", got)
	}
}
