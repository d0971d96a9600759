package export

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gogpu/gg/text"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/gomonobolditalic"
	"golang.org/x/image/font/gofont/gomonoitalic"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/certdesk/certdesk/backend-go/internal/document"
)

type fontKey struct {
	mono   bool
	bold   bool
	italic bool
}

var fontData = map[fontKey][]byte{
	{false, false, false}: goregular.TTF,
	{false, true, false}:  gobold.TTF,
	{false, false, true}:  goitalic.TTF,
	{false, true, true}:   gobolditalic.TTF,
	{true, false, false}:  gomono.TTF,
	{true, true, false}:   gomonobold.TTF,
	{true, false, true}:   gomonoitalic.TTF,
	{true, true, true}:    gomonobolditalic.TTF,
}

var (
	fontMu      sync.Mutex
	fontSources = map[fontKey]*text.FontSource{}
)

// face returns a Go font face for the family, weight and style. Families
// without a bundled font fall back to the proportional Go face.
func face(family string, weight document.FontWeight, style document.FontStyle, size float64) (text.Face, error) {
	key := fontKey{
		mono:   strings.Contains(strings.ToLower(family), "mono"),
		bold:   weight == document.FontWeightBold,
		italic: style == document.FontStyleItalic,
	}

	fontMu.Lock()
	defer fontMu.Unlock()
	src, ok := fontSources[key]
	if !ok {
		var err error
		src, err = text.NewFontSource(fontData[key])
		if err != nil {
			return nil, fmt.Errorf("load font %q: %w", family, err)
		}
		fontSources[key] = src
	}
	return src.Face(size), nil
}
