package scrape

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	collyfetcher "github.com/JakeFAU/guide-quotes/internal/fetcher/colly"
	"github.com/JakeFAU/guide-quotes/internal/harvest"
)

const tocHTML = `<html><body>
<nav><ul><li><a href="/about">About</a></li></ul></nav>
<div class="entry-content">
  <h2>Book I</h2>
  <ul>
    <li><a href="https://guide.example/2015/03/25/prologue/">  Prologue </a></li>
    <li><a name="decoration">Ornament</a></li>
    <li><a href="https://guide.example/2015/03/26/chapter-1/">Chapter 1: Squire</a></li>
  </ul>
  <p><a href="https://guide.example/not-a-list-item/">Loose link</a></p>
  <ol><li><a href="/relative/chapter-2/">Chapter 2</a></li></ol>
</div>
</body></html>`

type fakeFetcher struct {
	pages map[string]string
	errs  map[string]error
	calls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (harvest.Page, error) {
	f.calls = append(f.calls, url)
	if err, ok := f.errs[url]; ok {
		return harvest.Page{}, err
	}
	body, ok := f.pages[url]
	if !ok {
		return harvest.Page{}, &harvest.FetchError{URL: url, StatusCode: http.StatusNotFound, Err: errors.New("Not Found")}
	}
	return harvest.Page{URL: url, StatusCode: http.StatusOK, Body: []byte(body)}, nil
}

func TestParseLinks_DocumentOrderAndHreflessSkipped(t *testing.T) {
	t.Parallel()

	links, err := ParseLinks([]byte(tocHTML), DefaultTOCRegion)

	require.NoError(t, err)
	require.Equal(t, []harvest.ChapterLink{
		{Title: "Prologue", URL: "https://guide.example/2015/03/25/prologue/"},
		{Title: "Chapter 1: Squire", URL: "https://guide.example/2015/03/26/chapter-1/"},
		{Title: "Chapter 2", URL: "/relative/chapter-2/"},
	}, links)
}

func TestParseLinks_NoListItemsIsEmptyNotError(t *testing.T) {
	t.Parallel()

	links, err := ParseLinks([]byte(`<div class="entry-content"><p>Moved!</p></div>`), DefaultTOCRegion)

	require.NoError(t, err)
	require.Empty(t, links)
}

func TestCollector_FetchFailurePropagates(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{}
	c := NewCollector(fetcher, CollectorConfig{TOCURL: "https://guide.example/toc/"}, zap.NewNop())

	links, err := c.Collect(context.Background())

	require.Nil(t, links)
	require.ErrorIs(t, err, harvest.ErrFetch)
	require.Equal(t, []string{"https://guide.example/toc/"}, fetcher.calls)
}

func TestCollector_CustomRegion(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{pages: map[string]string{
		"toc": `<div id="chapters"><ul><li><a href="a">A</a></li></ul></div><ul><li><a href="b">B</a></li></ul>`,
	}}
	c := NewCollector(fetcher, CollectorConfig{TOCURL: "toc", Region: "#chapters"}, nil)

	links, err := c.Collect(context.Background())

	require.NoError(t, err)
	require.Equal(t, []harvest.ChapterLink{{Title: "A", URL: "a"}}, links)
}

func TestParseExcerpt(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		body   string
		want   string
		wantOK bool
	}{
		{
			name:   "blockquote first",
			body:   `<div class="entry-content"><blockquote><p> "Never monologue." </p></blockquote><p>Body text</p></div>`,
			want:   `"Never monologue."`,
			wantOK: true,
		},
		{
			name:   "paragraph first",
			body:   `<div class="entry-content"><p>Caption</p><blockquote>Later quote</blockquote></div>`,
			want:   "Caption",
			wantOK: true,
		},
		{
			name: "missing region",
			body: `<article><blockquote>Outside</blockquote></article>`,
		},
		{
			name: "no paragraph",
			body: `<div class="entry-content"><div>Only divs</div></div>`,
		},
		{
			name: "empty paragraph",
			body: `<div class="entry-content"><p>   </p><p>Second</p></div>`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ParseExcerpt([]byte(tc.body), DefaultContentRegion, DefaultExcerptSelector)
			require.Equal(t, tc.wantOK, ok)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestExtractor_FetchFailureIsNoExcerpt(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{errs: map[string]error{"boom": errors.New("connection reset")}}
	e := NewExtractor(fetcher, ExtractorConfig{}, zap.NewNop())

	got, ok := e.Extract(context.Background(), "boom")
	require.False(t, ok)
	require.Empty(t, got)

	got, ok = e.Extract(context.Background(), "missing")
	require.False(t, ok)
	require.Empty(t, got)
}

func TestCollectorAndExtractor_OverHTTP(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/toc/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<div class="entry-content"><ul>
<li><a href="` + srv.URL + `/ch/1">One</a></li>
<li><a href="` + srv.URL + `/ch/2">Two</a></li>
</ul></div>`))
	})
	mux.HandleFunc("/ch/1", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<div class="entry-content"><blockquote>First quote</blockquote></div>`))
	})
	mux.HandleFunc("/ch/2", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	})

	fetcher := collyfetcher.New(collyfetcher.Config{})
	c := NewCollector(fetcher, CollectorConfig{TOCURL: srv.URL + "/toc/"}, zap.NewNop())
	e := NewExtractor(fetcher, ExtractorConfig{}, zap.NewNop())

	links, err := c.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, links, 2)

	quote, ok := e.Extract(context.Background(), links[0].URL)
	require.True(t, ok)
	require.Equal(t, "First quote", quote)

	_, ok = e.Extract(context.Background(), links[1].URL)
	require.False(t, ok)
}
