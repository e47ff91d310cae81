// Package cachecontext implements C6: the small policy-arbitration object
// that decides, for a given run, whether the cache may be read, written,
// or validated before use.
package cachecontext

import "strings"

// Mode is the per-run cache_mode enum (§4.6).
type Mode string

const (
	ModeEnabled   Mode = "enabled"
	ModeDisabled  Mode = "disabled"
	ModeReadOnly  Mode = "read_only"
	ModeWriteOnly Mode = "write_only"
	ModeBypass    Mode = "bypass"
	ModeSmart     Mode = "smart"
)

// cacheableSchemes lists the schemes §3/§6 calls "cacheable"; raw:// is
// deliberately excluded, since raw content is never the same across two
// calls with the same URL string.
var cacheableSchemes = map[string]struct{}{
	"http":  {},
	"https": {},
	"file":  {},
}

// IsCacheableScheme reports whether scheme is one the cache is ever
// allowed to read or write for.
func IsCacheableScheme(scheme string) bool {
	_, ok := cacheableSchemes[strings.ToLower(scheme)]
	return ok
}

// Context is built once per run from its Mode and the URL's scheme; it
// never mutates and never touches the cache itself, it only answers
// should-I questions for the pipeline to act on.
type Context struct {
	mode       Mode
	cacheable  bool
}

// New constructs a Context for mode and scheme.
func New(mode Mode, scheme string) Context {
	return Context{mode: mode, cacheable: IsCacheableScheme(scheme)}
}

// Mode returns the cache mode this Context was built with.
func (c Context) Mode() Mode { return c.mode }

// ShouldRead reports whether the pipeline may look the URL up in the
// cache before fetching. Never true for a non-cacheable scheme.
func (c Context) ShouldRead() bool {
	if !c.cacheable {
		return false
	}
	switch c.mode {
	case ModeEnabled, ModeReadOnly, ModeSmart:
		return true
	default:
		return false
	}
}

// ShouldWrite reports whether the pipeline may persist a fresh crawl
// result to the cache. Never true for a non-cacheable scheme.
func (c Context) ShouldWrite() bool {
	if !c.cacheable {
		return false
	}
	switch c.mode {
	case ModeEnabled, ModeWriteOnly, ModeSmart:
		return true
	default:
		return false
	}
}

// ShouldValidate reports whether a cache hit must be revalidated against
// the origin before being trusted. Only SMART mode validates.
func (c Context) ShouldValidate() bool {
	return c.mode == ModeSmart
}

// AlwaysBypass reports whether this run must skip the cache entirely
// regardless of what a stored entry says, per cache_mode=bypass.
func (c Context) AlwaysBypass() bool {
	return c.mode == ModeBypass
}
