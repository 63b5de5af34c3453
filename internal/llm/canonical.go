package llm

import (
	"regexp"
	"strings"
)

const defaultCSS = "*,*::before,*::after{box-sizing:border-box}body{margin:0;font-family:system-ui,-apple-system,'Segoe UI',Roboto,Ubuntu,Cantarell,'Noto Sans','Helvetica Neue',Arial,sans-serif}"

var (
	fenceHTMLRe = regexp.MustCompile("(?i)```html\\b\\s*([\\s\\S]*?)```")
	fenceAnyRe  = regexp.MustCompile("(?i)```[\\w-]*\\s*([\\s\\S]*?)```")

	headInnerRe = regexp.MustCompile(`(?i)<head\b[^>]*>([\s\S]*?)</head\s*>`)
	bodyInnerRe = regexp.MustCompile(`(?i)<body\b[^>]*>([\s\S]*?)</body\s*>`)
	styleRe     = regexp.MustCompile(`(?i)<style\b[^>]*>([\s\S]*?)</style\s*>`)
	scriptRe    = regexp.MustCompile(`(?i)<script\b([^>]*)>([\s\S]*?)</script\s*>`)
	srcAttrRe   = regexp.MustCompile(`(?i)\bsrc\s*=`)

	doctypeTagRe  = regexp.MustCompile(`(?i)<!doctype[^>]*>`)
	headElementRe = regexp.MustCompile(`(?i)<head\b[^>]*>[\s\S]*?</head\s*>`)
	wrapperTagRe  = regexp.MustCompile(`(?i)</?(?:html|body)\b[^>]*>`)

	headerOpenRe = regexp.MustCompile(`(?i)<header\b`)
	mainOpenRe   = regexp.MustCompile(`(?i)<main\b`)
	footerOpenRe = regexp.MustCompile(`(?i)<footer\b`)
)

func stripFences(text string) string {
	if m := fenceHTMLRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := fenceAnyRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(text)
}

func collectStyles(doc string) string {
	var parts []string
	for _, m := range styleRe.FindAllStringSubmatch(doc, -1) {
		if css := strings.TrimSpace(m[1]); css != "" {
			parts = append(parts, css)
		}
	}
	return strings.Join(parts, "\n")
}

// collectInlineScripts merges every script body that does not load a src.
func collectInlineScripts(doc string) string {
	var parts []string
	for _, m := range scriptRe.FindAllStringSubmatch(doc, -1) {
		if srcAttrRe.MatchString(m[1]) {
			continue
		}
		if js := strings.TrimSpace(m[2]); js != "" {
			parts = append(parts, js)
		}
	}
	return strings.Join(parts, "\n")
}

// Canonicalize rewrites raw model output into a single document with one
// head, one body, one merged <style>, one merged inline <script> and the
// header/main/footer landmarks. Scripts that load a src are dropped.
func Canonicalize(raw string) string {
	doc := stripFences(raw)

	var fragment string
	if m := bodyInnerRe.FindStringSubmatch(doc); m != nil {
		fragment = m[1]
	} else {
		fragment = headElementRe.ReplaceAllString(doc, "")
		fragment = doctypeTagRe.ReplaceAllString(fragment, "")
		fragment = wrapperTagRe.ReplaceAllString(fragment, "")
	}

	// styles may live in head or body; collect from the whole document
	css := collectStyles(doc)
	js := collectInlineScripts(doc)

	fragment = styleRe.ReplaceAllString(fragment, "")
	fragment = scriptRe.ReplaceAllString(fragment, "")
	fragment = strings.TrimSpace(fragment)

	body := withLandmarks(fragment)
	if css == "" {
		css = defaultCSS
	}

	var b strings.Builder
	b.WriteString("<!doctype html>\n<html lang=\"en\">\n<head>\n")
	b.WriteString("  <meta charset=\"utf-8\" />\n")
	b.WriteString("  <meta name=\"viewport\" content=\"width=device-width,initial-scale=1\" />\n")
	b.WriteString("  <title>")
	b.WriteString(pageTitle(doc))
	b.WriteString("</title>\n  <style>\n")
	b.WriteString(css)
	b.WriteString("\n  </style>\n</head>\n<body>\n")
	b.WriteString(body)
	b.WriteString("\n  <script>\n")
	b.WriteString(js)
	b.WriteString("\n  </script>\n</body>\n</html>")
	return b.String()
}

var titleInnerRe = regexp.MustCompile(`(?i)<title\b[^>]*>([\s\S]*?)</title\s*>`)

// pageTitle keeps the model's title when it has a usable one.
func pageTitle(doc string) string {
	if m := headInnerRe.FindStringSubmatch(doc); m != nil {
		if t := titleInnerRe.FindStringSubmatch(m[1]); t != nil {
			title := strings.TrimSpace(t[1])
			if title != "" && !strings.ContainsAny(title, "<>") {
				return title
			}
		}
	}
	return "Generated Page"
}

func withLandmarks(fragment string) string {
	hasHeader := headerOpenRe.MatchString(fragment)
	hasMain := mainOpenRe.MatchString(fragment)
	hasFooter := footerOpenRe.MatchString(fragment)
	if hasHeader && hasMain && hasFooter {
		return fragment
	}

	content := fragment
	if content == "" {
		content = "<section></section>"
	}
	var parts []string
	if !hasHeader {
		parts = append(parts, "<header></header>")
	}
	if hasMain {
		parts = append(parts, content)
	} else {
		parts = append(parts, "<main>"+content+"</main>")
	}
	if !hasFooter {
		parts = append(parts, "<footer></footer>")
	}
	return strings.Join(parts, "\n")
}

// IsCompleteDocument reports whether doc starts with a doctype and closes </html>.
func IsCompleteDocument(doc string) bool {
	low := strings.ToLower(strings.TrimSpace(doc))
	if low == "" {
		return false
	}
	return strings.HasPrefix(low, "<!doctype html") && strings.Contains(low, "</html>")
}
