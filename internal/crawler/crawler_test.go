package crawler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"campus-rag-go/internal/config"
	"campus-rag-go/internal/extract"
	"campus-rag-go/internal/model"
	"campus-rag-go/internal/pipeline"
	"campus-rag-go/pkg/vecindex"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestExtractPDFLinks(t *testing.T) {
	page := `<html><body>
		<a href="/files/results.pdf">Results</a>
		<a href="syllabus.PDF">Syllabus</a>
		<a href="https://other.example.com/notice.pdf">Notice</a>
		<a href="/files/results.pdf">Results again</a>
		<a href="#top">Top</a>
		<a href="mailto:office@college.edu">Mail</a>
		<a href="/about.html">About</a>
	</body></html>`

	links, err := ExtractPDFLinks("https://college.example.com/exams/", strings.NewReader(page))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://college.example.com/files/results.pdf",
		"https://college.example.com/exams/syllabus.PDF",
		"https://other.example.com/notice.pdf",
	}, links)
}

func TestExtractPDFLinksInvalidBaseURL(t *testing.T) {
	_, err := ExtractPDFLinks("://bad", strings.NewReader("<html></html>"))
	assert.Error(t, err)
}

func TestCrawlSiteStaysOnDomain(t *testing.T) {
	mux := http.NewServeMux()
	var srv *httptest.Server

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><body>
			<a href="/page2">More</a>
			<a href="/a.pdf">A</a>
			<a href="https://elsewhere.example.com/page">External</a>
		</body></html>`)
	})
	mux.HandleFunc("/page2", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><body>
			<a href="/b.pdf">B</a>
			<a href="/a.pdf">A again</a>
		</body></html>`)
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	c := NewCrawler(nil, config.CrawlerConfig{MaxPages: 10}, nil, nil)
	pdfs, err := c.CrawlSite(context.Background(), srv.URL+"/")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{srv.URL + "/a.pdf", srv.URL + "/b.pdf"}, pdfs)
}

func TestCrawlSiteHonorsPageLimit(t *testing.T) {
	var pagesServed int
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		pagesServed++
		// Every page links to a fresh one, so only the limit stops the walk.
		fmt.Fprintf(w, `<a href="/p%d">next</a>`, pagesServed)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewCrawler(nil, config.CrawlerConfig{MaxPages: 3}, nil, nil)
	_, err := c.CrawlSite(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	assert.Equal(t, 3, pagesServed)
}

// crawlDocRepo is an in-memory DocumentRepository for link handling tests.
type crawlDocRepo struct {
	nextID      uint
	byURL       map[string]*model.Document
	byHash      map[string]*model.Document
	lastChecked map[uint]time.Time
	updated     []uint
}

func newCrawlDocRepo() *crawlDocRepo {
	return &crawlDocRepo{
		nextID:      1,
		byURL:       make(map[string]*model.Document),
		byHash:      make(map[string]*model.Document),
		lastChecked: make(map[uint]time.Time),
	}
}

func (r *crawlDocRepo) Create(doc *model.Document) error {
	doc.ID = r.nextID
	r.nextID++
	if doc.SourceURL != nil {
		r.byURL[*doc.SourceURL] = doc
	}
	r.byHash[doc.FileHash] = doc
	return nil
}

func (r *crawlDocRepo) FindByID(id uint) (*model.Document, error) { return nil, gorm.ErrRecordNotFound }

func (r *crawlDocRepo) FindByHash(hash string) (*model.Document, error) {
	if doc, ok := r.byHash[hash]; ok {
		return doc, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *crawlDocRepo) FindBySourceURL(url string) (*model.Document, error) {
	if doc, ok := r.byURL[url]; ok {
		return doc, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *crawlDocRepo) FindAll() ([]model.Document, error) { return nil, nil }

func (r *crawlDocRepo) Update(doc *model.Document) error {
	r.updated = append(r.updated, doc.ID)
	r.byHash[doc.FileHash] = doc
	return nil
}

func (r *crawlDocRepo) UpdateLastChecked(id uint, ts time.Time) error {
	r.lastChecked[id] = ts
	return nil
}

func (r *crawlDocRepo) Delete(uint) error { return nil }
func (r *crawlDocRepo) MarkStaleScrapedInactive(time.Time) (int64, error) { return 0, nil }
func (r *crawlDocRepo) Count() (int64, error) { return 0, nil }
func (r *crawlDocRepo) CountInactive() (int64, error) { return 0, nil }

type memFileStore struct {
	objects map[string][]byte
}

func (f *memFileStore) Put(_ context.Context, name string, data []byte) error {
	f.objects[name] = data
	return nil
}

func (f *memFileStore) Get(_ context.Context, name string) ([]byte, error) {
	data, ok := f.objects[name]
	if !ok {
		return nil, fmt.Errorf("object %s not found", name)
	}
	return data, nil
}

func (f *memFileStore) Remove(_ context.Context, name string) error {
	delete(f.objects, name)
	return nil
}

type noopEmbedder struct{}

func (noopEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (noopEmbedder) Dimension() int { return 2 }

type noopChunkRepo struct{}

func (noopChunkRepo) BatchCreate(chunks []*model.DocumentChunk) error {
	for i, c := range chunks {
		c.ID = int64(i + 1)
	}
	return nil
}

func (noopChunkRepo) SetVectorIDs([]int64) error { return nil }
func (noopChunkRepo) DeleteByDocumentID(uint) error { return nil }
func (noopChunkRepo) IDsByDocumentID(uint) ([]int64, error) { return nil, nil }
func (noopChunkRepo) FindByIDs([]int64) ([]model.DocumentChunk, error) { return nil, nil }
func (noopChunkRepo) FilterIDs(*int, string) ([]int64, error) { return nil, nil }
func (noopChunkRepo) Count() (int64, error) { return 0, nil }
func (noopChunkRepo) Sample(int) ([]model.DocumentChunk, error) { return nil, nil }

func newLinkTestCrawler(t *testing.T) (*Crawler, *memFileStore) {
	t.Helper()
	store := &memFileStore{objects: make(map[string][]byte)}
	index, err := vecindex.Open(filepath.Join(t.TempDir(), "crawl.idx"), 2)
	require.NoError(t, err)
	extractor := extract.New(config.ExtractConfig{
		TesseractBin: "/nonexistent/tesseract",
		PdftoppmBin:  "/nonexistent/pdftoppm",
		ConvertBin:   "/nonexistent/convert",
	})
	processor := pipeline.NewProcessor(store, extractor, noopEmbedder{}, index, noopChunkRepo{})
	return NewCrawler(nil, config.CrawlerConfig{}, store, processor), store
}

func TestHandleLinkNewDocument(t *testing.T) {
	body := []byte("%PDF-1.4 fake result sheet")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer srv.Close()

	c, store := newLinkTestCrawler(t)
	repo := newCrawlDocRepo()

	link := srv.URL + "/results.pdf"
	outcome := c.handleLink(context.Background(), repo, link)
	assert.Equal(t, outcomeNew, outcome)

	doc, err := repo.FindBySourceURL(link)
	require.NoError(t, err)
	assert.Equal(t, model.OriginScraped, doc.Origin)
	assert.Equal(t, "results.pdf", doc.Filename)
	assert.Equal(t, model.SemesterUnclassified, doc.Semester)
	require.NotNil(t, doc.LastChecked)

	sum := sha256.Sum256(body)
	assert.Equal(t, hex.EncodeToString(sum[:]), doc.FileHash)
	assert.Contains(t, doc.ObjectName, "scraped/")

	stored, err := store.Get(context.Background(), doc.ObjectName)
	require.NoError(t, err)
	assert.Equal(t, body, stored)
}

func TestHandleLinkUnchangedDocument(t *testing.T) {
	body := []byte("%PDF-1.4 stable content")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer srv.Close()

	c, _ := newLinkTestCrawler(t)
	repo := newCrawlDocRepo()

	link := srv.URL + "/notice.pdf"
	require.Equal(t, outcomeNew, c.handleLink(context.Background(), repo, link))
	doc, err := repo.FindBySourceURL(link)
	require.NoError(t, err)

	// Second pass over identical content only refreshes the timestamp.
	assert.Equal(t, outcomeUnchanged, c.handleLink(context.Background(), repo, link))
	assert.Empty(t, repo.updated)
	assert.False(t, repo.lastChecked[doc.ID].IsZero())
}

func TestHandleLinkUpdatedDocument(t *testing.T) {
	body := []byte("%PDF-1.4 version one")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer srv.Close()

	c, store := newLinkTestCrawler(t)
	repo := newCrawlDocRepo()

	link := srv.URL + "/timetable.pdf"
	require.Equal(t, outcomeNew, c.handleLink(context.Background(), repo, link))
	doc, err := repo.FindBySourceURL(link)
	require.NoError(t, err)
	oldObject := doc.ObjectName
	oldHash := doc.FileHash

	body = []byte("%PDF-1.4 version two, revised")
	assert.Equal(t, outcomeUpdated, c.handleLink(context.Background(), repo, link))

	assert.Contains(t, repo.updated, doc.ID)
	assert.NotEqual(t, oldHash, doc.FileHash)
	assert.NotEqual(t, oldObject, doc.ObjectName)

	// The superseded object is cleaned up.
	_, err = store.Get(context.Background(), oldObject)
	assert.Error(t, err)
}

func TestHandleLinkDownloadFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c, _ := newLinkTestCrawler(t)
	repo := newCrawlDocRepo()

	outcome := c.handleLink(context.Background(), repo, srv.URL+"/gone.pdf")
	assert.Equal(t, outcomeFailed, outcome)
	assert.Empty(t, repo.byURL)
}

func TestHandleLinkDuplicateContentAcrossURLs(t *testing.T) {
	body := []byte("%PDF-1.4 shared file")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer srv.Close()

	c, _ := newLinkTestCrawler(t)
	repo := newCrawlDocRepo()

	require.Equal(t, outcomeNew, c.handleLink(context.Background(), repo, srv.URL+"/a.pdf"))
	// Same bytes behind a second URL do not create a second document.
	assert.Equal(t, outcomeUnchanged, c.handleLink(context.Background(), repo, srv.URL+"/b.pdf"))
	assert.Len(t, repo.byHash, 1)
}

func TestFilenameFromURL(t *testing.T) {
	assert.Equal(t, "results.pdf", filenameFromURL("https://x.example.com/a/b/results.pdf"))
	assert.Equal(t, "sem 5.pdf", filenameFromURL("https://x.example.com/sem%205.pdf"))
	assert.Equal(t, "document.pdf", filenameFromURL("https://x.example.com/"))
}
