package markup

import (
	"fmt"
	"regexp"
	"strings"
)

var roleRe = regexp.MustCompile(":(ref|doc):`([^`]+)`")

// rewriteRoles turns :ref:`label` and :doc:`path` into Markdown links.
// Both accept the "Title <target>" form. Document links are root-relative.
// Labels known to lookup link to their page; others become in-page anchors.
func rewriteRoles(s string, lookup func(string) (Label, bool)) string {
	return roleRe.ReplaceAllStringFunc(s, func(m string) string {
		sub := roleRe.FindStringSubmatch(m)
		role, target := sub[1], strings.TrimSpace(sub[2])
		label, explicit := target, false
		if i := strings.LastIndex(target, "<"); i > 0 && strings.HasSuffix(target, ">") {
			label, explicit = strings.TrimSpace(target[:i]), true
			target = target[i+1 : len(target)-1]
		}
		if role == "doc" {
			return fmt.Sprintf("[%s](/%s.html)", label, strings.TrimPrefix(target, "/"))
		}
		if l, ok := lookup(target); ok {
			if !explicit && l.Title != "" {
				label = l.Title
			}
			return fmt.Sprintf("[%s](<%s>)", label, l.URI)
		}
		return fmt.Sprintf("[%s](#%s)", label, target)
	})
}
