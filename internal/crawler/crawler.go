// Package crawler discovers PDF documents on configured college sites and
// feeds new or changed files into the ingestion pipeline.
package crawler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"campus-rag-go/internal/config"
	"campus-rag-go/internal/model"
	"campus-rag-go/internal/pipeline"
	"campus-rag-go/internal/repository"
	"campus-rag-go/pkg/log"
	"campus-rag-go/pkg/storage"
	"campus-rag-go/pkg/tasks"

	"golang.org/x/net/html"
	"gorm.io/gorm"
)

const (
	defaultWorkers   = 5
	defaultMaxPages  = 25
	defaultStaleDays = 30
)

// Stats summarizes one crawl run.
type Stats struct {
	New       int `json:"new"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
	Retired   int `json:"retired"`
}

// Crawler walks scrape sources, detects content changes by hash and hands
// changed documents to the pipeline. Each worker gets its own repository
// session so runs can fan out safely.
type Crawler struct {
	db         *gorm.DB
	cfg        config.CrawlerConfig
	fileStore  storage.FileStore
	processor  *pipeline.Processor
	httpClient *http.Client
}

// NewCrawler builds a crawler with a bounded-timeout HTTP client.
func NewCrawler(db *gorm.DB, cfg config.CrawlerConfig, fileStore storage.FileStore, processor *pipeline.Processor) *Crawler {
	timeout := time.Duration(cfg.FetchTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Crawler{
		db:         db,
		cfg:        cfg,
		fileStore:  fileStore,
		processor:  processor,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ExtractPDFLinks parses an HTML page and returns absolute, deduplicated
// URLs of every anchor pointing at a PDF.
func ExtractPDFLinks(pageURL string, body io.Reader) ([]string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page url %q: %w", pageURL, err)
	}
	root, err := html.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	seen := make(map[string]struct{})
	var links []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				resolved := resolveLink(base, attr.Val)
				if resolved == "" || !isPDFLink(resolved) {
					continue
				}
				if _, dup := seen[resolved]; !dup {
					seen[resolved] = struct{}{}
					links = append(links, resolved)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return links, nil
}

// CrawlSite walks same-domain pages breadth-first from startURL, up to
// maxPages pages, and collects every PDF link found along the way.
func (c *Crawler) CrawlSite(ctx context.Context, startURL string) ([]string, error) {
	start, err := url.Parse(startURL)
	if err != nil {
		return nil, fmt.Errorf("invalid start url %q: %w", startURL, err)
	}
	maxPages := c.cfg.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}

	visited := make(map[string]struct{})
	pdfSeen := make(map[string]struct{})
	var pdfs []string
	queue := []string{startURL}

	for len(queue) > 0 && len(visited) < maxPages {
		if err := ctx.Err(); err != nil {
			return pdfs, err
		}
		pageURL := queue[0]
		queue = queue[1:]
		if _, ok := visited[pageURL]; ok {
			continue
		}
		visited[pageURL] = struct{}{}

		pagePDFs, pageLinks, err := c.fetchPage(ctx, pageURL)
		if err != nil {
			log.Warnf("[crawler] failed to fetch %s: %v", pageURL, err)
			continue
		}
		for _, pdf := range pagePDFs {
			if _, dup := pdfSeen[pdf]; !dup {
				pdfSeen[pdf] = struct{}{}
				pdfs = append(pdfs, pdf)
			}
		}
		for _, link := range pageLinks {
			u, err := url.Parse(link)
			if err != nil || u.Host != start.Host {
				continue
			}
			if _, ok := visited[link]; !ok {
				queue = append(queue, link)
			}
		}
	}
	return pdfs, nil
}

// fetchPage downloads one HTML page and returns its PDF links and its
// follow-able page links.
func (c *Crawler) fetchPage(ctx context.Context, pageURL string) (pdfs, pages []string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, nil, err
	}
	root, err := html.Parse(resp.Body)
	if err != nil {
		return nil, nil, err
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				resolved := resolveLink(base, attr.Val)
				if resolved == "" {
					continue
				}
				if isPDFLink(resolved) {
					pdfs = append(pdfs, resolved)
				} else {
					pages = append(pages, resolved)
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(root)
	return pdfs, pages, nil
}

// RunOnce crawls every active source, processes the discovered links with a
// worker pool and retires scraped documents that have not been seen in the
// staleness window.
func (c *Crawler) RunOnce(ctx context.Context) Stats {
	started := time.Now()
	sourceRepo := repository.NewScrapeSourceRepository(c.db)
	sources, err := sourceRepo.FindActive()
	if err != nil {
		log.Errorf("[crawler] failed to load scrape sources: %v", err)
		return Stats{}
	}
	if len(sources) == 0 {
		log.Info("[crawler] no active scrape sources configured")
		return Stats{}
	}

	seen := make(map[string]struct{})
	var links []string
	for _, source := range sources {
		found, err := c.CrawlSite(ctx, source.URL)
		if err != nil {
			log.Warnf("[crawler] crawl of %s aborted: %v", source.Name, err)
		}
		for _, link := range found {
			if _, dup := seen[link]; !dup {
				seen[link] = struct{}{}
				links = append(links, link)
			}
		}
	}
	log.Infof("[crawler] discovered %d unique PDF links across %d sources", len(links), len(sources))

	workers := c.cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}

	var (
		mu    sync.Mutex
		stats Stats
		wg    sync.WaitGroup
	)
	linkCh := make(chan string)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Each worker carries its own session so statement state is
			// never shared across goroutines.
			session := c.db.Session(&gorm.Session{NewDB: true})
			docRepo := repository.NewDocumentRepository(session)
			for link := range linkCh {
				outcome := c.handleLink(ctx, docRepo, link)
				mu.Lock()
				switch outcome {
				case outcomeNew:
					stats.New++
				case outcomeUpdated:
					stats.Updated++
				case outcomeUnchanged:
					stats.Unchanged++
				default:
					stats.Failed++
				}
				mu.Unlock()
			}
		}()
	}
	for _, link := range links {
		if ctx.Err() != nil {
			break
		}
		linkCh <- link
	}
	close(linkCh)
	wg.Wait()

	stats.Retired = c.retireStale()
	log.Infof("[crawler] run finished in %s: %d new, %d updated, %d unchanged, %d failed, %d retired",
		time.Since(started).Round(time.Millisecond),
		stats.New, stats.Updated, stats.Unchanged, stats.Failed, stats.Retired)
	return stats
}

type linkOutcome int

const (
	outcomeFailed linkOutcome = iota
	outcomeNew
	outcomeUpdated
	outcomeUnchanged
)

// handleLink downloads one PDF and reconciles it against the document store:
// unknown URL ingests as new, known URL with a changed hash re-ingests, a
// matching hash only refreshes the liveness timestamp.
func (c *Crawler) handleLink(ctx context.Context, docRepo repository.DocumentRepository, link string) linkOutcome {
	data, err := c.download(ctx, link)
	if err != nil {
		log.Warnf("[crawler] failed to download %s: %v", link, err)
		return outcomeFailed
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])
	now := time.Now()

	existing, err := docRepo.FindBySourceURL(link)
	switch {
	case err == nil:
		if existing.FileHash == hash {
			if err := docRepo.UpdateLastChecked(existing.ID, now); err != nil {
				log.Warnf("[crawler] failed to touch document %d: %v", existing.ID, err)
			}
			return outcomeUnchanged
		}
		return c.reingest(ctx, docRepo, existing, link, hash, data, now)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return c.ingestNew(ctx, docRepo, link, hash, data, now)
	default:
		log.Warnf("[crawler] lookup failed for %s: %v", link, err)
		return outcomeFailed
	}
}

func (c *Crawler) ingestNew(ctx context.Context, docRepo repository.DocumentRepository, link, hash string, data []byte, now time.Time) linkOutcome {
	// The same file can be linked from several pages; one copy is enough.
	if _, err := docRepo.FindByHash(hash); err == nil {
		return outcomeUnchanged
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Warnf("[crawler] hash lookup failed for %s: %v", link, err)
		return outcomeFailed
	}

	filename := filenameFromURL(link)
	objectName := fmt.Sprintf("scraped/%s_%s", hash[:12], filename)
	if err := c.fileStore.Put(ctx, objectName, data); err != nil {
		log.Warnf("[crawler] failed to store %s: %v", link, err)
		return outcomeFailed
	}

	sourceURL := link
	doc := &model.Document{
		Filename:    filename,
		FileType:    "pdf",
		FileHash:    hash,
		ObjectName:  objectName,
		Origin:      model.OriginScraped,
		SourceURL:   &sourceURL,
		Semester:    model.SemesterUnclassified,
		IsActive:    true,
		LastChecked: &now,
	}
	if err := docRepo.Create(doc); err != nil {
		log.Warnf("[crawler] failed to record %s: %v", link, err)
		return outcomeFailed
	}

	if err := c.runPipeline(ctx, doc); err != nil {
		log.Warnf("[crawler] ingestion failed for %s: %v", link, err)
		return outcomeFailed
	}
	log.Infof("[crawler] new document ingested from %s", link)
	return outcomeNew
}

func (c *Crawler) reingest(ctx context.Context, docRepo repository.DocumentRepository, doc *model.Document, link, hash string, data []byte, now time.Time) linkOutcome {
	oldObject := doc.ObjectName
	objectName := fmt.Sprintf("scraped/%s_%s", hash[:12], doc.Filename)
	if err := c.fileStore.Put(ctx, objectName, data); err != nil {
		log.Warnf("[crawler] failed to store updated %s: %v", link, err)
		return outcomeFailed
	}

	doc.FileHash = hash
	doc.ObjectName = objectName
	doc.IsActive = true
	doc.LastChecked = &now
	if err := docRepo.Update(doc); err != nil {
		log.Warnf("[crawler] failed to update document %d: %v", doc.ID, err)
		return outcomeFailed
	}

	if err := c.runPipeline(ctx, doc); err != nil {
		log.Warnf("[crawler] re-ingestion failed for %s: %v", link, err)
		return outcomeFailed
	}
	if oldObject != objectName {
		if err := c.fileStore.Remove(ctx, oldObject); err != nil {
			log.Warnf("[crawler] failed to remove stale object %s: %v", oldObject, err)
		}
	}
	log.Infof("[crawler] document %d re-ingested after content change at %s", doc.ID, link)
	return outcomeUpdated
}

// runPipeline processes a crawled document synchronously. Insufficient text
// is tolerated: the metadata record stays for the next change check.
func (c *Crawler) runPipeline(ctx context.Context, doc *model.Document) error {
	err := c.processor.Process(ctx, tasks.IngestTask{
		DocumentID: doc.ID,
		ObjectName: doc.ObjectName,
		FileName:   doc.Filename,
		FileType:   doc.FileType,
	})
	if errors.Is(err, pipeline.ErrExtractionInsufficient) {
		log.Warnf("[crawler] document %d kept without text", doc.ID)
		return nil
	}
	return err
}

func (c *Crawler) retireStale() int {
	staleDays := c.cfg.StaleDays
	if staleDays <= 0 {
		staleDays = defaultStaleDays
	}
	cutoff := time.Now().AddDate(0, 0, -staleDays)
	docRepo := repository.NewDocumentRepository(c.db)
	retired, err := docRepo.MarkStaleScrapedInactive(cutoff)
	if err != nil {
		log.Errorf("[crawler] staleness pass failed: %v", err)
		return 0
	}
	return int(retired)
}

func (c *Crawler) download(ctx context.Context, link string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	maxBytes := int64(c.cfg.MaxFileSizeMB) * 1024 * 1024
	if maxBytes <= 0 {
		maxBytes = 32 * 1024 * 1024
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("file exceeds %d MB limit", maxBytes/(1024*1024))
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty response body")
	}
	return data, nil
}

func resolveLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") ||
		strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "javascript:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	resolved.Fragment = ""
	return resolved.String()
}

func isPDFLink(link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.ToLower(u.Path), ".pdf")
}

func filenameFromURL(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return "document.pdf"
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "document.pdf"
	}
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	return name
}
