package render

import _ "embed"

// Stylesheet is written to StylesheetPath in every build.
//
//go:embed gallery.css
var Stylesheet []byte
