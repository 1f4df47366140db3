package services

import (
	"regexp"

	"komugigallery.com/gallery/models"
)

const (
	CategoryDate  = "Date"
	CategoryOther = "Other"
)

// datePattern matches tags such as "2021/07" or "2024年".
var datePattern = regexp.MustCompile(`\d{4}/\d{2}|\d{4}\s?(年|(?i:year))`)

// CategoryRule is a named, fixed tag list.
type CategoryRule struct {
	Name string   `yaml:"name"`
	Tags []string `yaml:"tags"`
}

// DefaultCategoryRules is the reference deployment's vocabulary.
var DefaultCategoryRules = []CategoryRule{
	{Name: "CP", Tags: []string{"akiz", "hiar", "szak", "kmkt"}},
	{Name: "Character", Tags: []string{
		"izumi", "akiyoshi", "aruwo", "hisanobu", "akiko", "suzui",
		"kotori", "kumaki", "rei", "nekochan", "kiroro", "hironobu",
	}},
}

type classifier struct {
	category string
	match    func(tag string) bool
}

// Categorizer assigns each tag to exactly one category. Classifiers run top
// to bottom and the first match wins: the date pattern, then every static
// list in rule order, then Other.
type Categorizer struct {
	classifiers []classifier
	names       []string
}

func NewCategorizer(rules []CategoryRule) *Categorizer {
	c := &Categorizer{}

	c.classifiers = append(c.classifiers, classifier{
		category: CategoryDate,
		match:    datePattern.MatchString,
	})
	for _, rule := range rules {
		if rule.Name == CategoryDate || rule.Name == CategoryOther {
			continue
		}
		members := make(map[string]struct{}, len(rule.Tags))
		for _, t := range rule.Tags {
			members[t] = struct{}{}
		}
		c.classifiers = append(c.classifiers, classifier{
			category: rule.Name,
			match: func(tag string) bool {
				_, ok := members[tag]
				return ok
			},
		})
		c.names = append(c.names, rule.Name)
	}
	c.names = append(c.names, CategoryDate, CategoryOther)
	return c
}

// Categories lists the output keys: static categories in rule order, then Date and Other.
func (c *Categorizer) Categories() []string {
	return append([]string(nil), c.names...)
}

func (c *Categorizer) Classify(tag string) string {
	for _, cl := range c.classifiers {
		if cl.match(tag) {
			return cl.category
		}
	}
	return CategoryOther
}

// Categorize buckets distinct tags, keeping discovery order within each
// bucket. Every category key is present even when empty.
func (c *Categorizer) Categorize(tags []string) models.TagCategories {
	out := make(models.TagCategories, len(c.names))
	for _, name := range c.names {
		out[name] = []string{}
	}
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		category := c.Classify(t)
		out[category] = append(out[category], t)
	}
	return out
}
