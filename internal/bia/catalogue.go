package bia

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed catalogue.yaml
var catalogueYAML []byte

// Category is an impact dimension.
type Category string

const (
	CategoryFinancial    Category = "financial"
	CategoryOperational  Category = "operational"
	CategoryReputational Category = "reputational"
)

// Option is one answer to an impact question.
type Option struct {
	Value  string `yaml:"value" json:"value"`
	Label  string `yaml:"label" json:"label"`
	Impact int    `yaml:"impact" json:"impact"`
}

// Question is an impact question.
type Question struct {
	ID      string   `yaml:"id" json:"id"`
	Text    string   `yaml:"text" json:"text"`
	Options []Option `yaml:"options" json:"options"`
}

// ImpactCatalogue holds the question set of every category.
type ImpactCatalogue struct {
	Financial    []Question `yaml:"financial" json:"financial"`
	Operational  []Question `yaml:"operational" json:"operational"`
	Reputational []Question `yaml:"reputational" json:"reputational"`
}

// RecoveryOption is one answer to a recovery question; Value is in hours.
type RecoveryOption struct {
	Value  float64 `yaml:"value" json:"value"`
	Label  string  `yaml:"label" json:"label"`
	Weight float64 `yaml:"weight" json:"weight"`
}

// RecoveryQuestion is a recovery-time question.
type RecoveryQuestion struct {
	ID      string           `yaml:"id" json:"id"`
	Text    string           `yaml:"text" json:"text"`
	Options []RecoveryOption `yaml:"options" json:"options"`
}

// RecoveryCatalogue is the ordered recovery questionnaire.
type RecoveryCatalogue []RecoveryQuestion

// Catalogue bundles both questionnaires.
type Catalogue struct {
	Impact   ImpactCatalogue   `yaml:"impact" json:"impact"`
	Recovery RecoveryCatalogue `yaml:"recovery" json:"recovery"`
}

// DataCriticalityQuestion is the recovery question whose answer is the RPO.
const DataCriticalityQuestion = "data_criticality"

var defaultCatalogue = mustParseCatalogue(catalogueYAML)

// DefaultCatalogue returns the built-in questionnaire.
func DefaultCatalogue() Catalogue { return defaultCatalogue }

func mustParseCatalogue(data []byte) Catalogue {
	c, err := ParseCatalogue(data)
	if err != nil {
		panic(err)
	}
	return c
}

// ParseCatalogue decodes and checks a catalogue document.
func ParseCatalogue(data []byte) (Catalogue, error) {
	var c Catalogue
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalogue{}, fmt.Errorf("bia: parse catalogue: %w", err)
	}
	seen := map[string]bool{}
	for _, cat := range []Category{CategoryFinancial, CategoryOperational, CategoryReputational} {
		for _, q := range c.Impact.questions(cat) {
			if q.ID == "" || len(q.Options) == 0 || seen[q.ID] {
				return Catalogue{}, fmt.Errorf("bia: impact question %q is malformed or duplicated", q.ID)
			}
			seen[q.ID] = true
			for _, o := range q.Options {
				if o.Impact < 0 || o.Impact > 100 {
					return Catalogue{}, fmt.Errorf("bia: question %q option %q impact %d outside 0-100", q.ID, o.Value, o.Impact)
				}
			}
		}
	}
	for _, q := range c.Recovery {
		if q.ID == "" || len(q.Options) == 0 || seen[q.ID] {
			return Catalogue{}, fmt.Errorf("bia: recovery question %q is malformed or duplicated", q.ID)
		}
		seen[q.ID] = true
	}
	return c, nil
}

func (c ImpactCatalogue) questions(cat Category) []Question {
	switch cat {
	case CategoryFinancial:
		return c.Financial
	case CategoryOperational:
		return c.Operational
	case CategoryReputational:
		return c.Reputational
	default:
		return nil
	}
}

func (c ImpactCatalogue) lookup(questionID string) (Question, bool) {
	for _, cat := range []Category{CategoryFinancial, CategoryOperational, CategoryReputational} {
		for _, q := range c.questions(cat) {
			if q.ID == questionID {
				return q, true
			}
		}
	}
	return Question{}, false
}

// QuestionIDs lists every impact question id in catalogue order.
func (c ImpactCatalogue) QuestionIDs() []string {
	var out []string
	for _, cat := range []Category{CategoryFinancial, CategoryOperational, CategoryReputational} {
		for _, q := range c.questions(cat) {
			out = append(out, q.ID)
		}
	}
	return out
}

func (c RecoveryCatalogue) lookup(questionID string) (RecoveryQuestion, int, bool) {
	for i, q := range c {
		if q.ID == questionID {
			return q, i, true
		}
	}
	return RecoveryQuestion{}, -1, false
}
