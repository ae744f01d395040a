package checkout

import "strings"

// TemplateVars supplies the substitution values for a checkout path
// template.
type TemplateVars struct {
	CommitID string
	SHA256   string
	Branch   string
	Repo     string
	Scanner  string
}

// tokenReplacer returns a strings.Replacer for vars' tokens. Substitution
// is textual and single-pass; an unrecognised token (not one of the five
// below) passes through literally because it is simply never matched.
func (v TemplateVars) tokenReplacer() *strings.Replacer {
	return strings.NewReplacer(
		"{commit-id}", v.CommitID,
		"{sha256}", v.SHA256,
		"{branch}", v.Branch,
		"{repo}", v.Repo,
		"{scanner}", v.Scanner,
	)
}

// Render substitutes vars' tokens into template in a single pass.
func Render(template string, vars TemplateVars) string {
	return vars.tokenReplacer().Replace(template)
}
