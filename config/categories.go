package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"komugigallery.com/gallery/services"
)

type categoriesFile struct {
	Categories []services.CategoryRule `yaml:"categories"`
}

// LoadCategoryRules reads ordered tag category rules from a YAML file:
//
//	categories:
//	  - name: CP
//	    tags: [akiz, hiar]
//
// An empty path yields the built-in rules.
func LoadCategoryRules(path string) ([]services.CategoryRule, error) {
	if path == "" {
		return services.DefaultCategoryRules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f categoriesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i, rule := range f.Categories {
		if rule.Name == "" {
			return nil, fmt.Errorf("parse %s: category %d has no name", path, i)
		}
	}
	return f.Categories, nil
}
