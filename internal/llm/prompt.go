package llm

import "strings"

// SystemInstruction states the output contract the compliance rubric later checks.
const SystemInstruction = `You are an expert frontend engineer.
Task: produce ONE fully self-contained HTML5 document that runs offline when pasted into an empty .html file.

Hard requirements:
1) Output only HTML, starting with <!doctype html>. No explanations and no text outside the document.
2) Exactly one <html>, one <head> and one <body>, in that order. Every opening tag has a matching closing tag.
3) All CSS goes in a single <style> tag inside <head>.
4) All JavaScript goes in a single <script> tag at the end of <body>. Prefer vanilla JavaScript.
5) Never reference external resources: no <link>, <script src> or <iframe> pointing to the network, no CSS @import or url() to remote hosts.
6) No <img> elements at all, no base64 or data URI images. Graphics are inline <svg> elements or plain CSS shapes.
7) Every <svg> contains at least one visible shape such as <circle>, <rect>, <path> or <polygon>. Empty <svg> is not allowed.
8) When the user asks for a number of things ("6 svg", "3 cards", "2 buttons"), include exactly that many.
9) Output raw tags, never HTML entities such as &lt;div&gt;.
10) Use <header>, <main> and <footer>. Interactive elements are real buttons or links, or carry role and tabindex="0". Support the Escape key for closing dialogs.
11) Never use eval, new Function, dynamic import() or document.write.

If a CURRENT HTML document is provided, treat it as the baseline: apply the new instruction to it and return the whole updated document.

Return the final document wrapped in a single fenced block:
` + "```html\n...full document...\n```\n"

// BuildPrompt assembles the full prompt for one generation request. baseline is
// an earlier document to refine and may be empty.
func BuildPrompt(message, baseline string) string {
	var b strings.Builder
	b.WriteString(SystemInstruction)
	b.WriteString("\n")
	if strings.TrimSpace(baseline) != "" {
		b.WriteString("\n\nCurrent HTML document:\n```html\n")
		b.WriteString(baseline)
		b.WriteString("\n```\n")
	}
	b.WriteString("\nUser instruction:\n")
	b.WriteString(message)
	b.WriteString("\n\nReturn only the final HTML document.")
	return b.String()
}
