package loader

import (
	"strings"
	"testing"
)

func TestExtractTextPassthrough(t *testing.T) {
	content := []byte("plain text stays as is")
	got, err := ExtractText("a.txt", "text/plain; charset=utf-8", content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != string(content) {
		t.Fatalf("passthrough changed content: %q", got)
	}
}

func TestExtractTextHTML(t *testing.T) {
	html := []byte(`<html><head><title>Doc</title></head><body>
		<nav><a href="/">home</a></nav>
		<article><h1>Heading</h1>
		<p>Alice met Bob in Paris. They talked for a long while about the
		weather, their work and everything else that came to mind.</p>
		<p>Later that evening Bob went home and wrote it all down in his
		notebook so that nothing of the conversation would be lost.</p>
		</article></body></html>`)

	got, err := ExtractText("page.html", "text/html", html)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text := string(got)
	if !strings.Contains(text, "Alice met Bob in Paris") {
		t.Errorf("main content missing from extracted text: %q", text)
	}
	if strings.Contains(text, "<p>") || strings.Contains(text, "<article>") {
		t.Errorf("markup leaked into extracted text: %q", text)
	}
}
