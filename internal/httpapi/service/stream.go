package service

import (
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/komorebi-audio/hub/internal/apperr"
)

// StreamService serves local media files with HTTP range support for
// GET /stream?path= (spec.md §6/§8 property 9, scenarios S4/S5). Only a
// single "bytes=<start>-<end?>" spec is honored: an open-suffix spec
// ("bytes=-N") is rejected and any comma-separated extra ranges are
// ignored, since no example repo in the pack streams a seekable file (the
// teacher pipes a live MP3 encoder, never serves Range requests) and a
// hand-written parser is the only option.
type StreamService struct {
	resolve func(path string) (string, error)
}

func NewStreamService(resolve func(path string) (string, error)) *StreamService {
	return &StreamService{resolve: resolve}
}

// parsedRange is the single byte range this parser ever produces.
type parsedRange struct {
	start, end int64 // inclusive, both resolved against the file size
}

// parseRange parses a Range header value against size, per the contract
// above. ok is false when there is no Range header (serve the whole file);
// err is non-nil when the header is present but malformed or unsatisfiable
// (the caller should respond 416).
func parseRange(header string, size int64) (rng parsedRange, ok bool, err error) {
	if header == "" {
		return parsedRange{}, false, nil
	}
	if !strings.HasPrefix(header, "bytes=") {
		return parsedRange{}, false, apperr.BadRequest("unsupported range unit")
	}
	spec := strings.TrimPrefix(header, "bytes=")
	if comma := strings.IndexByte(spec, ','); comma >= 0 {
		spec = spec[:comma]
	}

	dash := strings.IndexByte(spec, '-')
	if dash < 0 {
		return parsedRange{}, false, apperr.BadRequest("malformed range spec")
	}
	startStr, endStr := spec[:dash], spec[dash+1:]
	if startStr == "" {
		// Open-prefix ("bytes=-N", suffix length) is explicitly rejected.
		return parsedRange{}, false, apperr.BadRequest("suffix ranges are not supported")
	}

	start, convErr := strconv.ParseInt(startStr, 10, 64)
	if convErr != nil || start < 0 || start >= size {
		return parsedRange{}, false, apperr.BadRequest("range start out of bounds")
	}

	end := size - 1
	if endStr != "" {
		parsedEnd, convErr := strconv.ParseInt(endStr, 10, 64)
		if convErr != nil || parsedEnd < start {
			return parsedRange{}, false, apperr.BadRequest("malformed range end")
		}
		end = parsedEnd
	}
	if end > size-1 {
		end = size - 1
	}
	return parsedRange{start: start, end: end}, true, nil
}

// Serve resolves relPath and writes it to w, honoring a single-range
// request. It returns an apperr-classified error on resolution/open
// failures (mapped to 404 by the handler); an unsatisfiable range is
// answered here with 416 and a nil error.
func (s *StreamService) Serve(w http.ResponseWriter, r *http.Request, relPath string) error {
	abs, err := s.resolve(relPath)
	if err != nil {
		return err
	}

	f, err := os.Open(abs)
	if err != nil {
		return apperr.BadRequest("no such file")
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		return apperr.BadRequest("no such file")
	}
	size := info.Size()

	w.Header().Set("Accept-Ranges", "bytes")

	rng, hasRange, err := parseRange(r.Header.Get("Range"), size)
	if err != nil {
		w.Header().Set("Content-Range", "bytes */"+strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return nil
	}

	w.Header().Set("Content-Type", contentTypeFor(relPath))

	if !hasRange {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		_, copyErr := io.Copy(w, f)
		return copyErr
	}

	length := rng.end - rng.start + 1
	w.Header().Set("Content-Range", "bytes "+strconv.FormatInt(rng.start, 10)+"-"+strconv.FormatInt(rng.end, 10)+"/"+strconv.FormatInt(size, 10))
	w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
	w.WriteHeader(http.StatusPartialContent)

	if _, err := f.Seek(rng.start, io.SeekStart); err != nil {
		return err
	}
	_, copyErr := io.CopyN(w, f, length)
	return copyErr
}

func contentTypeFor(path string) string {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".mp3"):
		return "audio/mpeg"
	case strings.HasSuffix(lower, ".wav"):
		return "audio/wav"
	case strings.HasSuffix(lower, ".flac"):
		return "audio/flac"
	case strings.HasSuffix(lower, ".aac"):
		return "audio/aac"
	case strings.HasSuffix(lower, ".ogg"):
		return "audio/ogg"
	case strings.HasSuffix(lower, ".m4a"):
		return "audio/mp4"
	default:
		return "application/octet-stream"
	}
}
