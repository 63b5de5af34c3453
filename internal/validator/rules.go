package validator

// Rule is one weighted rubric entry. Weight is in hundredths of the total score.
type Rule struct {
	Name   string
	Weight int
	check  func(*document) []string
}

var rules = []Rule{
	{Name: "document_structure", Weight: 18, check: checkStructure},
	{Name: "head_basics", Weight: 7, check: checkHeadBasics},
	{Name: "primary_content_block", Weight: 18, check: checkPrimaryBlock},
	{Name: "style_block", Weight: 14, check: checkStyle},
	{Name: "script_block", Weight: 6, check: checkScript},
	{Name: "no_stray_prose", Weight: 10, check: checkProse},
	{Name: "no_forbidden_refs", Weight: 12, check: checkForbidden},
	{Name: "self_contained_styling", Weight: 5, check: checkSelfContained},
	{Name: "image_policy", Weight: 5, check: checkImages},
	{Name: "semantic_landmarks", Weight: 5, check: checkSemantics},
}

var totalWeight = func() int {
	n := 0
	for _, r := range rules {
		n += r.Weight
	}
	return n
}()

// Rules lists the rubric in evaluation order.
func Rules() []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}
