// Package gallery builds example-gallery thumbnails: intro snippets pulled
// from example docstrings, thumbnail markup fragments and scaled images.
package gallery

import (
	"fmt"
	"path"
	"strings"

	"github.com/dgallion1/docgallery/internal/source"
	"golang.org/x/net/html"
)

// DefaultIntroMaxLen is the snippet length ExtractIntro truncates to.
const DefaultIntroMaxLen = 95

// Gallery implements intro extraction, thumbnail markup and image scaling.
type Gallery struct {
	IntroMaxLen int
}

func New() *Gallery {
	return &Gallery{IntroMaxLen: DefaultIntroMaxLen}
}

// ExtractIntro returns the first paragraph after the title in an example's
// module docstring, joined onto one line.
func (g *Gallery) ExtractIntro(filename string) (string, error) {
	text, err := source.ReadFile(filename)
	if err != nil {
		return "", err
	}
	doc, ok := source.LeadingDocstring(text)
	if !ok {
		return "", fmt.Errorf("example %s has no module docstring", filename)
	}

	lines := strings.Split(strings.ReplaceAll(doc, "\r\n", "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	paragraphs := strings.Split(strings.TrimSpace(strings.Join(lines, "\n")), "\n\n")
	if len(paragraphs) < 2 {
		return "", fmt.Errorf("example docstring should have a header for the example title "+
			"and at least a paragraph explaining what the example is about: %s", filename)
	}

	intro := strings.TrimSpace(strings.ReplaceAll(paragraphs[1], "\n", " "))
	limit := g.IntroMaxLen
	if limit <= 0 {
		limit = DefaultIntroMaxLen
	}
	if r := []rune(intro); len(r) > limit {
		intro = string(r[:limit]) + "..."
	}
	return intro, nil
}

// ThumbnailPath is the default thumbnail location for an example, relative
// to the source root.
func ThumbnailPath(dir, basename string) string {
	stem := strings.TrimSuffix(basename, path.Ext(basename))
	return path.Join(dir, "images", "thumb", "sphx_glr_"+stem+"_thumb.png")
}

// RefName is the cross-reference label of an example's generated page.
func RefName(dir, basename string) string {
	return "sphx_glr_" + strings.ReplaceAll(path.Join(dir, basename), "/", "_")
}

const thumbnailTemplate = `
.. raw:: html

    <div class="sphx-glr-thumbcontainer" tooltip="%s">

.. only:: html

    .. figure:: /%s

        :ref:` + "`%s`" + `

.. raw:: html

    </div>
`

// ThumbnailMarkup returns the thumbnail div fragment linking to an example.
func (g *Gallery) ThumbnailMarkup(dir, basename, intro string) string {
	dir = strings.Trim(path.Clean("/"+strings.ReplaceAll(dir, "\\", "/")), "/")
	return fmt.Sprintf(thumbnailTemplate,
		html.EscapeString(intro),
		ThumbnailPath(dir, basename),
		RefName(dir, basename),
	)
}
