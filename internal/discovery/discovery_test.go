package discovery

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/elections-scraper/internal/election"
)

const testBase = "https://www.volby.cz/pls/ps2017nss/"

func loadDoc(t *testing.T, name string) *goquery.Document {
	t.Helper()
	f, err := os.Open(filepath.Join("testdata", name))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	doc, err := goquery.NewDocumentFromReader(f)
	require.NoError(t, err)
	return doc
}

func TestDiscoverDomesticKeepsDocumentOrder(t *testing.T) {
	t.Parallel()

	d, err := New(Config{BaseURL: testBase})
	require.NoError(t, err)

	urls, err := d.Discover(loadDoc(t, "district.html"), election.DiscoveryDomestic)
	require.NoError(t, err)
	require.Equal(t, []string{
		testBase + "ps311?xjazyk=CZ&xkraj=2&xobec=529303&xvyber=2101",
		testBase + "ps311?xjazyk=CZ&xkraj=2&xobec=532568&xvyber=2101",
		testBase + "ps311?xjazyk=CZ&xkraj=2&xobec=530743&xvyber=2101",
		testBase + "ps311?xjazyk=CZ&xkraj=2&xobec=532380&xvyber=2101",
	}, urls)
	for _, u := range urls {
		assert.True(t, strings.HasPrefix(u, testBase))
	}
}

func TestDiscoverAbroad(t *testing.T) {
	t.Parallel()

	d, err := New(Config{BaseURL: testBase})
	require.NoError(t, err)

	urls, err := d.Discover(loadDoc(t, "abroad.html"), election.DiscoveryAbroad)
	require.NoError(t, err)
	require.Len(t, urls, 2)
	require.Contains(t, urls[0], "xobec=999001")
	require.Contains(t, urls[1], "xobec=999002")

	// The domestic marker does not match the abroad listing.
	_, err = d.Discover(loadDoc(t, "abroad.html"), election.DiscoveryDomestic)
	require.ErrorIs(t, err, election.ErrNoPrecincts)
}

func TestDiscoverCountsEveryMatchingCell(t *testing.T) {
	t.Parallel()

	const k = 25
	var b strings.Builder
	b.WriteString("<html><body><table>")
	for i := 0; i < k; i++ {
		b.WriteString(`<tr><td headers="t1sa1 t1sb1"><a href="ps311?xobec=`)
		b.WriteString(strings.Repeat("1", i+1))
		b.WriteString(`">x</a></td></tr>`)
	}
	b.WriteString("</table></body></html>")
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(b.String()))
	require.NoError(t, err)

	d, err := New(Config{BaseURL: testBase})
	require.NoError(t, err)
	urls, err := d.Discover(doc, election.DiscoveryDomestic)
	require.NoError(t, err)
	require.Len(t, urls, k)
	require.Equal(t, testBase+"ps311?xobec=1", urls[0])
}

func TestDiscoverDropsDuplicateLinks(t *testing.T) {
	t.Parallel()

	html := `<table>
<tr><td headers="t1sa1 t1sb1"><a href="ps311?xobec=1&xjazyk=CZ">1</a></td></tr>
<tr><td headers="t1sa1 t1sb1"><a href="ps311?xjazyk=CZ&xobec=1">1</a></td></tr>
</table>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	d, err := New(Config{BaseURL: testBase})
	require.NoError(t, err)
	urls, err := d.Discover(doc, election.DiscoveryDomestic)
	require.NoError(t, err)
	require.Len(t, urls, 1)
}

func TestDiscoverNoPrecincts(t *testing.T) {
	t.Parallel()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<html><body><p>nothing</p></body></html>"))
	require.NoError(t, err)

	d, err := New(Config{BaseURL: testBase})
	require.NoError(t, err)
	urls, err := d.Discover(doc, election.DiscoveryDomestic)
	require.ErrorIs(t, err, election.ErrNoPrecincts)
	require.Empty(t, urls)
}

func TestNewRejectsBadConfig(t *testing.T) {
	t.Parallel()

	_, err := New(Config{BaseURL: "relative/path/"})
	require.Error(t, err)

	_, err = New(Config{BaseURL: testBase, DomesticPattern: "("})
	require.Error(t, err)

	d, err := New(Config{BaseURL: testBase})
	require.NoError(t, err)
	_, err = d.Discover(&goquery.Document{}, election.DiscoveryMode("mars"))
	require.Error(t, err)
}
