// Package library implements the narrow directory-listing surface that
// backs GET /library and POST /library/rescan. Filesystem scanning,
// tag-based enrichment, and metadata persistence are out of scope; only a
// single-level directory listing with optional tag probing for audio
// files is provided, following the music-directory containment check in
// arung-agamani-denpa-radio's internal/radio/server.go
// (isPathInsideMusicDir) and the extension-based format recognition in
// internal/playlist/track.go.
package library

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dhowden/tag"

	"github.com/komorebi-audio/hub/internal/apperr"
)

// SupportedFormats lists the audio file extensions a directory listing
// probes with the tag reader.
var SupportedFormats = []string{".mp3", ".wav", ".flac", ".aac", ".ogg", ".m4a"}

func isSupportedFormat(ext string) bool {
	lower := strings.ToLower(ext)
	for _, f := range SupportedFormats {
		if lower == f {
			return true
		}
	}
	return false
}

// EntryKind distinguishes directories from audio files in a listing.
type EntryKind string

const (
	KindDir   EntryKind = "dir"
	KindAudio EntryKind = "audio"
	KindOther EntryKind = "other"
)

// Entry is one item in a directory listing.
type Entry struct {
	Name   string    `json:"name"`
	Path   string    `json:"path"` // relative to the music root
	Kind   EntryKind `json:"kind"`
	Title  string    `json:"title,omitempty"`
	Artist string    `json:"artist,omitempty"`
	Album  string    `json:"album,omitempty"`
}

// Library resolves listing requests against a single root directory,
// rejecting any path that would escape it.
type Library struct {
	root string
}

func New(root string) (*Library, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	return &Library{root: abs}, nil
}

func (l *Library) Root() string { return l.root }

// ResolvePath exposes the containment-checked absolute path for a
// root-relative file, for callers (the media stream handler) that need to
// open a specific file rather than list a directory.
func (l *Library) ResolvePath(path string) (string, error) {
	return l.resolve(path)
}

// resolve joins dir onto the root and verifies containment, mirroring
// isPathInsideMusicDir's absolute-path-prefix check.
func (l *Library) resolve(dir string) (string, error) {
	clean := filepath.Clean("/" + dir)
	joined := filepath.Join(l.root, clean)

	abs, err := filepath.Abs(joined)
	if err != nil {
		return "", apperr.BadRequest("invalid directory")
	}
	if abs != l.root && !strings.HasPrefix(abs, l.root+string(filepath.Separator)) {
		return "", apperr.BadRequest("directory escapes library root")
	}
	return abs, nil
}

// List returns the entries of dir (relative to the library root), sorted
// with directories first, then files, both alphabetically. Audio files
// are probed for basic tag metadata; probe failures leave Title/Artist/
// Album empty rather than failing the listing.
func (l *Library) List(dir string) ([]Entry, error) {
	abs, err := l.resolve(dir)
	if err != nil {
		return nil, err
	}

	items, err := os.ReadDir(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.BadRequest("no such directory")
		}
		return nil, apperr.Transient("reading directory", err)
	}

	entries := make([]Entry, 0, len(items))
	for _, it := range items {
		name := it.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		relPath := filepath.ToSlash(filepath.Join(dir, name))

		if it.IsDir() {
			entries = append(entries, Entry{Name: name, Path: relPath, Kind: KindDir})
			continue
		}

		ext := filepath.Ext(name)
		if !isSupportedFormat(ext) {
			entries = append(entries, Entry{Name: name, Path: relPath, Kind: KindOther})
			continue
		}

		e := Entry{Name: name, Path: relPath, Kind: KindAudio}
		probeTags(filepath.Join(abs, name), &e)
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool {
		iDir, jDir := entries[i].Kind == KindDir, entries[j].Kind == KindDir
		if iDir != jDir {
			return iDir
		}
		return entries[i].Name < entries[j].Name
	})

	return entries, nil
}

// probeTags reads ID3/Vorbis/FLAC tags best-effort; any failure is
// swallowed, leaving the entry's metadata fields at their zero value.
func probeTags(path string, e *Entry) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return
	}
	e.Title = m.Title()
	e.Artist = m.Artist()
	e.Album = m.Album()
}

// Rescanner is implemented by the collaborator that performs the actual
// (out-of-scope) library indexing; POST /library/rescan just invokes it
// and reports success or failure, per spec.md §1's narrow-interface
// boundary.
type Rescanner interface {
	Rescan() error
}

// NopRescanner satisfies Rescanner for deployments with no external
// indexer configured; rescan is a no-op that always succeeds.
type NopRescanner struct{}

func (NopRescanner) Rescan() error { return nil }
