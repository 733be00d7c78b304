package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTMLToText(t *testing.T) {
	assert.Equal(t, "Hello world & co", HTMLToText("<p>Hello <b>world</b></p>\n<p>&amp; co</p><script>x()</script>"))
	assert.Equal(t, "plain & simple", HTMLToText("plain &amp;  simple"))
	assert.Equal(t, "", HTMLToText(""))
}

func TestFirstParagraph(t *testing.T) {
	assert.Equal(t, "Second", FirstParagraph("<p> </p><p>Second</p><p>Third</p>"))
	assert.Equal(t, "no paragraphs", FirstParagraph("<div>no   paragraphs</div>"))
}

func TestFirstSentence(t *testing.T) {
	assert.Equal(t, "Rust ships today", FirstSentence("Rust ships today. More later", 280))
	assert.Equal(t, "新版本发布", FirstSentence("新版本发布。详情", 280))
	assert.Equal(t, "abc", FirstSentence("abcdef", 3))
	assert.Equal(t, "no terminator", FirstSentence("no terminator", 280))
}

func TestExternalLinks(t *testing.T) {
	body := `<p><a href="https://news.ycombinator.com/item?id=1">comments</a>
		<a href="https://blog.example.org/post">story</a>
		<a href="/relative">rel</a>
		<a href="https://blog.example.org/post">again</a>
		<a href="mailto:x@y.z">mail</a></p>`
	assert.Equal(t, []string{"https://blog.example.org/post"}, ExternalLinks(body, "www.news.ycombinator.com"))
	assert.Empty(t, ExternalLinks("<p>nothing</p>", "a.com"))
}

func TestHostOf(t *testing.T) {
	assert.Equal(t, "a.com", HostOf("https://a.com/x"))
	assert.Equal(t, "", HostOf("::bad"))
}
