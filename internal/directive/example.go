package directive

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docgallery/internal/doctree"
	"github.com/dgallion1/docgallery/internal/markup"
	"github.com/dgallion1/docgallery/internal/render"
	"github.com/dgallion1/docgallery/internal/source"
	"golang.org/x/net/html"
)

// ExamplePage builds the page a gallery item links to: the example's
// docstring title and paragraphs, its code without the docstring and a
// download link to the copied source. rel is the example's path relative to
// the source root.
func ExamplePage(rel, text string) *doctree.DocTree {
	base := path.Base(rel)
	title := base
	var paragraphs []string
	if doc, ok := source.LeadingDocstring(text); ok {
		if t, rest := splitDocstring(doc); t != "" {
			title, paragraphs = t, rest
		}
	}

	sec := &doctree.DocNode{Kind: doctree.KindSection, Title: title}
	sec.SetAttr("level", "1")
	for _, p := range paragraphs {
		sec.Append(&doctree.DocNode{Kind: doctree.KindParagraph, Text: p})
	}

	code := doctree.NewLiteralBlock(source.StripDocstring(text))
	if ext := strings.TrimPrefix(path.Ext(base), "."); ext != "" {
		code.SetAttr("language", languageFor(ext))
	}
	sec.Append(code)

	download := &doctree.DocNode{Kind: doctree.KindParagraph, Text: "Download " + base}
	download.SetAttr("html", fmt.Sprintf(`<p class="download"><a href="%s" download>Download %s</a></p>`,
		html.EscapeString((&url.URL{Path: base}).EscapedPath()), html.EscapeString(base)))
	sec.Append(download)

	return &doctree.DocTree{Title: title, Source: rel, Children: []*doctree.DocNode{sec}}
}

// splitDocstring returns the title block of a docstring (first paragraph,
// minus any RST underline) and the remaining paragraphs.
func splitDocstring(doc string) (string, []string) {
	lines := strings.Split(strings.ReplaceAll(doc, "\r\n", "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	var paragraphs []string
	for _, p := range strings.Split(strings.TrimSpace(strings.Join(lines, "\n")), "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	if len(paragraphs) == 0 {
		return "", nil
	}

	var title []string
	for _, l := range strings.Split(paragraphs[0], "\n") {
		if !isUnderline(l) {
			title = append(title, l)
		}
	}
	return strings.Join(title, " "), paragraphs[1:]
}

func isUnderline(line string) bool {
	if len(line) < 2 {
		return false
	}
	return strings.Trim(line, string(line[0])) == "" && strings.ContainsRune("=-~^\"'`#*+", rune(line[0]))
}

func languageFor(ext string) string {
	if ext == "py" {
		return "python"
	}
	return ext
}

// writeExample renders the example page and copies the example source next
// to it under outRoot. It returns the page's label.
func writeExample(outRoot, rel, text string) (markup.Label, error) {
	tree := ExamplePage(rel, text)
	page, err := render.Page(tree)
	if err != nil {
		return markup.Label{}, err
	}
	pagePath := render.OutputPath(rel)
	dst := filepath.Join(outRoot, filepath.FromSlash(pagePath))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return markup.Label{}, &DirectoryCreationError{Path: filepath.Dir(dst), Err: err}
	}
	if err := writeFileAtomic(dst, page); err != nil {
		return markup.Label{}, err
	}
	if err := writeFileAtomic(filepath.Join(outRoot, filepath.FromSlash(rel)), []byte(text)); err != nil {
		return markup.Label{}, err
	}
	return markup.Label{URI: "/" + pagePath, Title: tree.Title}, nil
}

// writeFileAtomic writes through a temp file and rename, since documents
// built in parallel may link the same example.
func writeFileAtomic(dst string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".example-*")
	if err != nil {
		return fmt.Errorf("write %s: %w", dst, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", dst, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", dst, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", dst, err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", dst, err)
	}
	return nil
}
