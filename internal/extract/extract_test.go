package extract

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const articlePage = `<!DOCTYPE html>
<html>
<head><title>Tide pools</title><style>body{color:red}</style><script>var tracking = "pixel";</script></head>
<body>
<nav><a href="/">Home navigation link</a><a href="/about">About navigation link</a></nav>
<header><p>Site banner text</p></header>
<article>
<h1>Life in the tide pools</h1>
<p>Tide pools form where the ocean retreats at low tide and leaves seawater trapped among the rocks.
They host anemones, sea stars, and small fish that have adapted to rapidly changing conditions.</p>
<p>Every few hours the pools are flooded again, bringing fresh nutrients and oxygen. Creatures that live
here must tolerate heat, exposure to air, and shifts in salinity between tides.</p>
<table><tr><td>Quarterly table cell</td></tr></table>
</article>
<div class="comments"><p>First comment from a reader who loved the article.</p></div>
<footer><p>Copyright footer text</p></footer>
</body>
</html>`

func TestTextStripsBoilerplate(t *testing.T) {
	t.Parallel()

	pageURL, err := url.Parse("https://example.com/tide-pools")
	require.NoError(t, err)

	text := Text(articlePage, pageURL)

	require.Contains(t, text, "Tide pools form where the ocean retreats")
	require.Contains(t, text, "fresh nutrients and oxygen")
	require.Greater(t, len(text), 100)
	for _, unwanted := range []string{
		"navigation link",
		"Site banner text",
		"Quarterly table cell",
		"First comment",
		"Copyright footer",
		"tracking",
		"color:red",
		"<p>",
	} {
		require.NotContains(t, text, unwanted)
	}
}

func TestTextWithoutURL(t *testing.T) {
	t.Parallel()

	text := Text(articlePage, nil)
	require.Contains(t, text, "Creatures that live")
}

func TestTextPlainInput(t *testing.T) {
	t.Parallel()

	require.Equal(t, "already plain text", Text("  already   plain\ttext  ", nil))
	require.Empty(t, Text("   ", nil))
}

func TestTextTinyPage(t *testing.T) {
	t.Parallel()

	text := Text("<html><body><nav>menu</nav><p>Hi.</p></body></html>", nil)
	require.Less(t, len(text), 100)
	require.NotContains(t, text, "menu")
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	in := "  first   line \r\n\n\n\n second line  \n"
	require.Equal(t, "first line\n\nsecond line", Normalize(in))
	require.False(t, strings.HasSuffix(Normalize("a\n\n\n"), "\n"))
}
