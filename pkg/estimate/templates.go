package estimate

import "github.com/harrisonrobin/studyplan/pkg/model"

// Step is one stage of a task template.
type Step struct {
	Title   string
	Minutes int
}

var templates = map[model.Category][]Step{
	model.CategoryReading: {
		{"Skim headings and summaries", 20},
		{"Deep read key sections", 40},
		{"Write notes and questions", 20},
	},
	model.CategoryWriting: {
		{"Outline key points", 25},
		{"Draft main sections", 60},
		{"Edit and format", 25},
	},
	model.CategoryCoding: {
		{"Clarify requirements", 20},
		{"Implement core solution", 60},
		{"Test and polish", 30},
	},
	model.CategoryProblemSet: {
		{"Review formulas", 20},
		{"Solve problems", 60},
		{"Check work", 20},
	},
	model.CategoryProject: {
		{"Define milestones", 30},
		{"Build deliverable", 90},
		{"Finalize and submit", 30},
	},
}

var fallbackSteps = []Step{
	{"Plan task", 15},
	{"Execute", 45},
	{"Review", 15},
}

// Steps returns the default breakdown for a category.
func Steps(c model.Category) []Step {
	if s, ok := templates[c]; ok {
		return append([]Step(nil), s...)
	}
	return append([]Step(nil), fallbackSteps...)
}

// TemplateMinutes is the total of Steps(c), used as the nominal estimate for
// tasks that arrive without one.
func TemplateMinutes(c model.Category) int {
	total := 0
	for _, s := range Steps(c) {
		total += s.Minutes
	}
	return total
}
