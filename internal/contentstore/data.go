package contentstore

// Kind identifies which blob subdirectory a piece of content belongs to.
// Each kind gets its own subdirectory under the store's base directory so
// listings and cleanup can operate per-kind without scanning the whole
// tree.
type Kind string

const (
	KindHTML        Kind = "html"
	KindCleanedHTML Kind = "cleaned_html"
	KindMarkdown    Kind = "markdown"
	KindExtracted   Kind = "extracted_content"
	KindScreenshot  Kind = "screenshots"
	KindPDF         Kind = "pdf"
)

func (k Kind) dirName() string {
	return string(k)
}

// PutResult reports where a blob landed and whether it was already there.
type PutResult struct {
	hash    string
	path    string
	deduped bool
}

func newPutResult(hash, path string, deduped bool) PutResult {
	return PutResult{hash: hash, path: path, deduped: deduped}
}

// Hash returns the content hash used as the blob's filename.
func (r PutResult) Hash() string {
	return r.hash
}

// Path returns the full path the blob was (or already had been) written to.
func (r PutResult) Path() string {
	return r.path
}

// Deduped reports whether the blob already existed and the write was
// skipped, per the store's write-once, skip-if-exists contract.
func (r PutResult) Deduped() bool {
	return r.deduped
}
