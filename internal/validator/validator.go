// Package validator scores generated documents against a weighted compliance rubric.
package validator

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// maxLeftoverProse is how many characters of free text may survive outside fences.
const maxLeftoverProse = 8

// Expectations carries per-request knobs for the image policy rule.
type Expectations struct {
	ExpectedSVGs *int
}

// document is the parsed view every rule inspects.
type document struct {
	content string
	html    string // fenced html block when present and non-empty, otherwise content
	css     string
	js      string
	hasHTML bool
	hasJS   bool
	exp     Expectations
}

func parse(content string, exp Expectations) *document {
	d := &document{content: content, exp: exp}
	if m := fenceHTML.FindStringSubmatch(content); m != nil && strings.TrimSpace(m[1]) != "" {
		d.html = m[1]
		d.hasHTML = true
	} else {
		d.html = content
	}
	if m := fenceCSS.FindStringSubmatch(content); m != nil {
		d.css = m[1]
	}
	if m := fenceJS.FindStringSubmatch(content); m != nil {
		d.js = m[1]
		d.hasJS = true
	}
	return d
}

// Score returns a compliance score in [0,1] plus the issues found, in rule order.
// It is pure: the same input always yields the same output.
func Score(content string, exp Expectations) (float64, []string) {
	d := parse(content, exp)

	points := 0
	var issues []string
	for _, r := range rules {
		found := r.check(d)
		if len(found) == 0 {
			points += r.Weight
			continue
		}
		issues = append(issues, found...)
	}

	score := float64(points) / float64(totalWeight)
	return max(0, min(1, score)), issues
}

func checkStructure(d *document) []string {
	ok := doctypeRe.MatchString(d.html) &&
		hasSingleTagPair(d.html, "html") &&
		hasSingleTagPair(d.html, "head") &&
		hasSingleTagPair(d.html, "body")
	if ok {
		return nil
	}
	return []string{"Invalid document structure: missing doctype or single html/head/body."}
}

func checkHeadBasics(d *document) []string {
	var missing []string
	if !htmlLangRe.MatchString(d.html) {
		missing = append(missing, "html[lang]")
	}
	if !metaCharsetRe.MatchString(d.html) {
		missing = append(missing, "meta[charset]")
	}
	if !titleRe.MatchString(d.html) {
		missing = append(missing, "<title>")
	}
	if len(missing) == 0 {
		return nil
	}
	return []string{"Head basics missing: " + strings.Join(missing, ", ")}
}

func checkPrimaryBlock(d *document) []string {
	if d.hasHTML {
		return nil
	}
	return []string{"Missing fenced HTML block."}
}

func checkStyle(d *document) []string {
	if cssHasRules(d.css) {
		return nil
	}
	for _, m := range styleTagRe.FindAllStringSubmatch(d.html, -1) {
		if cssHasRules(m[1]) {
			return nil
		}
	}
	return []string{"CSS block missing or empty (no rules)."}
}

func checkScript(d *document) []string {
	if d.hasJS || scriptTagRe.MatchString(d.html) {
		return nil
	}
	return []string{"Missing JS block."}
}

func checkProse(d *document) []string {
	if utf8.RuneCountInString(stripFencesAndMarkers(d.content)) <= maxLeftoverProse {
		return nil
	}
	return []string{"Prose or extra text outside code fences."}
}

func checkForbidden(d *document) []string {
	var found []string
	if iframeRe.MatchString(d.html) {
		found = append(found, "<iframe>")
	}
	if scriptSrcHTTPRe.MatchString(d.html) {
		found = append(found, "<script src=http(s)>")
	}
	if remoteURLAttrRe.MatchString(d.html) {
		found = append(found, "external http(s) URL in src/href")
	}
	if cssRemoteRe.MatchString(d.html) || cssRemoteRe.MatchString(d.css) {
		found = append(found, "external http(s) URL in CSS")
	}

	scripts := []string{d.js}
	for _, m := range scriptTagRe.FindAllStringSubmatch(d.html, -1) {
		scripts = append(scripts, m[1])
	}
	for _, u := range unsafeJS {
		for _, code := range scripts {
			if u.re.MatchString(code) {
				found = append(found, u.name+" in JS")
				break
			}
		}
	}

	if len(found) == 0 {
		return nil
	}
	return []string{"Forbidden features: " + strings.Join(found, ", ")}
}

func checkSelfContained(d *document) []string {
	if linkStylesheet.MatchString(d.html) {
		return []string{"External <link rel=stylesheet> found."}
	}
	return nil
}

func checkImages(d *document) []string {
	var found []string
	if imgTagRe.MatchString(d.html) {
		found = append(found, "<img> tag found - images must be inline <svg> only.")
	}
	if svgImageHTTPRe.MatchString(d.html) {
		found = append(found, "<svg><image href='http(s)://...'> is not allowed.")
	}

	svgCount := countTag(d.html, "svg")
	withShape := 0
	for _, m := range svgBlockRe.FindAllStringSubmatch(d.html, -1) {
		if svgShapeRe.MatchString(m[1]) {
			withShape++
		}
	}
	if empty := svgCount - withShape; empty > 0 {
		found = append(found, fmt.Sprintf("Found %d <svg> element(s) without a visible shape.", empty))
	}

	if d.exp.ExpectedSVGs != nil && svgCount != *d.exp.ExpectedSVGs {
		found = append(found, fmt.Sprintf("Expected exactly %d <svg> elements, found %d.", *d.exp.ExpectedSVGs, svgCount))
	}
	return found
}

func checkSemantics(d *document) []string {
	var found []string
	if !landmarkRe.MatchString(d.html) {
		found = append(found, "Missing semantic landmarks (header/main/footer).")
	}
	for _, tag := range nonInteractiveRe.FindAllString(d.html, -1) {
		if !eventHandlerRe.MatchString(tag) {
			continue
		}
		if interactiveRole.MatchString(tag) || tabindexZeroRe.MatchString(tag) {
			continue
		}
		found = append(found, "Click handlers on non-interactive elements without an interactive role or tabindex='0'.")
		break
	}
	return found
}
