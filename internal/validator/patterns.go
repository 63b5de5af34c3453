package validator

import (
	"regexp"
	"strings"
)

const fence = "```"

var (
	fenceHTML = regexp.MustCompile("(?i)" + fence + `html\b\s*([\s\S]*?)` + fence)
	fenceCSS  = regexp.MustCompile("(?i)" + fence + `css\b\s*([\s\S]*?)` + fence)
	fenceJS   = regexp.MustCompile("(?i)" + fence + `(?:js|javascript)\b\s*([\s\S]*?)` + fence)
	fenceAny  = regexp.MustCompile("(?i)" + fence + `[\w-]*\s*([\s\S]*?)` + fence)

	doctypeRe     = regexp.MustCompile(`(?is)<!doctype\s+html\s*>`)
	htmlLangRe    = regexp.MustCompile(`(?is)<\s*html\b[^>]*\blang\s*=\s*['"][^'">]+['"]`)
	metaCharsetRe = regexp.MustCompile(`(?is)<\s*meta\b[^>]*\bcharset\s*=\s*['"]?[^'"\s/>]+`)
	titleRe       = regexp.MustCompile(`(?is)<\s*title\b[^>]*>.*?</\s*title\s*>`)

	styleTagRe  = regexp.MustCompile(`(?is)<\s*style\b[^>]*>(.*?)</\s*style\s*>`)
	scriptTagRe = regexp.MustCompile(`(?is)<\s*script\b[^>]*>(.*?)</\s*script\s*>`)
	cssRuleRe   = regexp.MustCompile(`(?s)[^\s{][^{]+\{[^}]+\}`)

	iframeRe        = regexp.MustCompile(`(?is)<\s*iframe\b`)
	scriptSrcHTTPRe = regexp.MustCompile(`(?is)<\s*script\b[^>]*\bsrc\s*=\s*['"]\s*(?:https?:)?//`)
	remoteURLAttrRe = regexp.MustCompile(`(?is)\b(?:src|href)\s*=\s*['"]\s*(?:https?:)?//`)
	cssRemoteRe     = regexp.MustCompile(`(?is)(?:@import\s+(?:url\(\s*)?|url\(\s*)['"]?\s*(?:https?:)?//`)
	linkStylesheet  = regexp.MustCompile(`(?is)<\s*link\b[^>]*\brel\s*=\s*['"]?\s*stylesheet\b[^>]*>`)

	imgTagRe       = regexp.MustCompile(`(?is)<\s*img\b`)
	svgImageHTTPRe = regexp.MustCompile(`(?is)<\s*image\b[^>]*\b(?:xlink:)?href\s*=\s*['"]\s*(?:https?:)?//`)
	svgBlockRe     = regexp.MustCompile(`(?is)<\s*svg\b[^>]*>(.*?)</\s*svg\s*>`)
	svgShapeRe     = regexp.MustCompile(`(?is)<\s*(?:circle|rect|path|polygon|polyline|line|ellipse|text|use)\b`)

	landmarkRe       = regexp.MustCompile(`(?is)<\s*(?:header|main|footer)\b`)
	nonInteractiveRe = regexp.MustCompile(`(?is)<\s*(?:div|span)\b[^>]*>`)
	eventHandlerRe   = regexp.MustCompile(`(?is)\bon(?:click|keydown|keyup)\s*=`)
	interactiveRole  = regexp.MustCompile(`(?is)\brole\s*=\s*['"]\s*(?:button|link|checkbox|radio|switch|tab|menuitem|option)\s*['"]`)
	tabindexZeroRe   = regexp.MustCompile(`(?is)\btabindex\s*=\s*['"]?\s*0\s*['"]?(?:\s|/|>|$)`)

	unsafeJS = []struct {
		re   *regexp.Regexp
		name string
	}{
		{regexp.MustCompile(`(?i)\beval\s*\(`), "eval()"},
		{regexp.MustCompile(`(?i)\bnew\s+Function\s*\(`), "new Function()"},
		{regexp.MustCompile(`(?i)\bimport\s*\(`), "dynamic import()"},
		{regexp.MustCompile(`(?i)\bdocument\.write(?:ln)?\s*\(`), "document.write()"},
	}

	openTagRes  = map[string]*regexp.Regexp{}
	closeTagRes = map[string]*regexp.Regexp{}
)

func init() {
	for _, tag := range []string{"html", "head", "body", "svg"} {
		openTagRes[tag] = regexp.MustCompile(`(?is)<\s*` + tag + `\b`)
		closeTagRes[tag] = regexp.MustCompile(`(?is)</\s*` + tag + `\s*>`)
	}
}

func countTag(doc, tag string) int {
	return len(openTagRes[tag].FindAllStringIndex(doc, -1))
}

func hasSingleTagPair(doc, tag string) bool {
	return countTag(doc, tag) == 1 && closeTagRes[tag].MatchString(doc)
}

func cssHasRules(css string) bool {
	return cssRuleRe.MatchString(strings.TrimSpace(css))
}

// stripFencesAndMarkers removes fenced code and trivial markdown noise, leaving
// whatever free text the content carries outside its blocks.
func stripFencesAndMarkers(content string) string {
	noFences := fenceAny.ReplaceAllString(content, "")
	var lines []string
	for _, line := range strings.Split(noFences, "\n") {
		l := strings.TrimSpace(line)
		switch {
		case l == "":
			continue
		case strings.EqualFold(l, "[chat]"), strings.EqualFold(l, "[codepacks]"):
			continue
		case strings.HasPrefix(l, "#"):
			continue
		case l == "---", l == "...", l == "===", l == "***":
			continue
		}
		lines = append(lines, l)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
