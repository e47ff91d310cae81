package metadatastore

import "time"

// ContentHashes points at the C3 blobs that back a CacheEntry. A hash is
// empty when that representation was never produced for this URL.
type ContentHashes struct {
	HTML        string
	CleanedHTML string
	Markdown    string
	Extracted   string
	Screenshot  string
}

// MediaItem describes a single discovered image, video, or audio
// reference, scored by the scraper for relevance.
type MediaItem struct {
	Src   string
	Alt   string
	Desc  string
	Score float64
	Type  string
}

// MediaSet partitions discovered media by kind.
type MediaSet struct {
	Images []MediaItem
	Videos []MediaItem
	Audios []MediaItem
}

// Link describes a single extracted anchor.
type Link struct {
	Href  string
	Text  string
	Title string
}

// LinkSet partitions extracted links by same-origin vs cross-origin.
type LinkSet struct {
	Internal []Link
	External []Link
}

// CacheEntry is the C4 row: everything known about one normalized URL
// across all prior crawls. Put performs a last-writer-wins upsert; the
// row is the unit of cache validity, not any individual field.
type CacheEntry struct {
	url             string
	contentHashes   ContentHashes
	media           MediaSet
	links           LinkSet
	metadata        map[string]string
	responseHeaders map[string]string
	downloadedFiles []string
	success         bool
	etag            string
	lastModified    string
	headFingerprint string
	cachedAt        time.Time
}

// NewCacheEntry constructs a CacheEntry. All fields must be known at
// construction; there are no partial or mutable-after-the-fact rows.
func NewCacheEntry(
	url string,
	contentHashes ContentHashes,
	media MediaSet,
	links LinkSet,
	metadata map[string]string,
	responseHeaders map[string]string,
	downloadedFiles []string,
	success bool,
	etag string,
	lastModified string,
	headFingerprint string,
	cachedAt time.Time,
) CacheEntry {
	return CacheEntry{
		url:             url,
		contentHashes:   contentHashes,
		media:           media,
		links:           links,
		metadata:        metadata,
		responseHeaders: responseHeaders,
		downloadedFiles: downloadedFiles,
		success:         success,
		etag:            etag,
		lastModified:    lastModified,
		headFingerprint: headFingerprint,
		cachedAt:        cachedAt,
	}
}

func (c CacheEntry) URL() string                      { return c.url }
func (c CacheEntry) ContentHashes() ContentHashes      { return c.contentHashes }
func (c CacheEntry) Media() MediaSet                  { return c.media }
func (c CacheEntry) Links() LinkSet                    { return c.links }
func (c CacheEntry) Metadata() map[string]string       { return c.metadata }
func (c CacheEntry) ResponseHeaders() map[string]string { return c.responseHeaders }
func (c CacheEntry) DownloadedFiles() []string          { return c.downloadedFiles }
func (c CacheEntry) Success() bool                      { return c.success }
func (c CacheEntry) ETag() string                       { return c.etag }
func (c CacheEntry) LastModified() string               { return c.lastModified }
func (c CacheEntry) HeadFingerprint() string            { return c.headFingerprint }
func (c CacheEntry) CachedAt() time.Time                { return c.cachedAt }

// cacheEntryWire is the JSON-serializable mirror of CacheEntry, since the
// real type keeps its fields unexported to force construction through
// NewCacheEntry.
type cacheEntryWire struct {
	URL             string            `json:"url"`
	ContentHashes   ContentHashes     `json:"content_hashes"`
	Media           MediaSet          `json:"media"`
	Links           LinkSet           `json:"links"`
	Metadata        map[string]string `json:"metadata"`
	ResponseHeaders map[string]string `json:"response_headers"`
	DownloadedFiles []string          `json:"downloaded_files"`
	Success         bool              `json:"success"`
	ETag            string            `json:"etag"`
	LastModified    string            `json:"last_modified"`
	HeadFingerprint string            `json:"head_fingerprint"`
	CachedAt        time.Time         `json:"cached_at"`
}

func toWire(c CacheEntry) cacheEntryWire {
	return cacheEntryWire{
		URL:             c.url,
		ContentHashes:   c.contentHashes,
		Media:           c.media,
		Links:           c.links,
		Metadata:        c.metadata,
		ResponseHeaders: c.responseHeaders,
		DownloadedFiles: c.downloadedFiles,
		Success:         c.success,
		ETag:            c.etag,
		LastModified:    c.lastModified,
		HeadFingerprint: c.headFingerprint,
		CachedAt:        c.cachedAt,
	}
}

func fromWire(w cacheEntryWire) CacheEntry {
	return CacheEntry{
		url:             w.URL,
		contentHashes:   w.ContentHashes,
		media:           w.Media,
		links:           w.Links,
		metadata:        w.Metadata,
		responseHeaders: w.ResponseHeaders,
		downloadedFiles: w.DownloadedFiles,
		success:         w.Success,
		etag:            w.ETag,
		lastModified:    w.LastModified,
		headFingerprint: w.HeadFingerprint,
		cachedAt:        w.CachedAt,
	}
}
