package asset

import (
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrUnresolvable is returned for image sources the library cannot load.
var ErrUnresolvable = errors.New("unresolvable image source")

// URLPrefix is where stored assets are served.
const URLPrefix = "/assets/"

// Library resolves image sources referenced by documents to decoded
// pixels. Sources are data URLs or stored asset URLs.
type Library struct {
	dir string

	mu     sync.RWMutex
	images map[string]image.Image
}

// NewLibrary creates a library reading stored assets from dir. An empty
// dir disables asset URL resolution.
func NewLibrary(dir string) *Library {
	return &Library{dir: dir, images: make(map[string]image.Image)}
}

// Put caches a decoded image under src.
func (l *Library) Put(src string, img image.Image) {
	l.mu.Lock()
	l.images[src] = img
	l.mu.Unlock()
}

// Len reports how many images are cached.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.images)
}

// Resolve returns the decoded image for src, decoding and caching it on
// first use.
func (l *Library) Resolve(src string) (image.Image, error) {
	l.mu.RLock()
	img, ok := l.images[src]
	l.mu.RUnlock()
	if ok {
		return img, nil
	}

	var data []byte
	var err error
	switch {
	case strings.HasPrefix(src, "data:"):
		_, data, err = ParseDataURL(src)
	case strings.HasPrefix(src, URLPrefix):
		data, err = l.readStored(src)
	default:
		err = fmt.Errorf("%w: %.32q", ErrUnresolvable, src)
	}
	if err != nil {
		return nil, err
	}

	img, err = decodeSafely(sniff, data)
	if err != nil {
		return nil, fmt.Errorf("decode %.32q: %w", src, err)
	}
	l.Put(src, img)
	return img, nil
}

func (l *Library) readStored(src string) ([]byte, error) {
	if l.dir == "" {
		return nil, fmt.Errorf("%w: no asset directory", ErrUnresolvable)
	}
	u, err := url.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnresolvable, err)
	}
	name := filepath.Base(strings.TrimPrefix(u.Path, URLPrefix))
	if name == "." || name == "/" || strings.HasPrefix(name, "..") {
		return nil, fmt.Errorf("%w: %q", ErrUnresolvable, src)
	}
	return os.ReadFile(filepath.Join(l.dir, name))
}

// ParseDataURL splits a base64 data URL into its media type and payload.
func ParseDataURL(s string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return "", nil, fmt.Errorf("%w: not a data URL", ErrUnresolvable)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("%w: malformed data URL", ErrUnresolvable)
	}
	mime, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		unescaped, err := url.PathUnescape(payload)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %v", ErrUnresolvable, err)
		}
		return mime, []byte(unescaped), nil
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrUnresolvable, err)
	}
	return mime, data, nil
}

