package corpus

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	sigma "github.com/bradleyjkemp/sigma-go"
	"gopkg.in/yaml.v3"

	"honeytrail/internal/similarity"
)

var techniqueTagRegex = regexp.MustCompile(`^attack\.t\d{4}(?:\.\d{3})?$`)

// sigmaDoc holds the rule sections used for the embedded text.
type sigmaDoc struct {
	Description string                 `yaml:"description"`
	References  []string               `yaml:"references"`
	Detection   map[string]interface{} `yaml:"detection"`
}

// LoadSigma reads Sigma rules from a file or directory. Rules without an id
// or title are skipped.
func LoadSigma(path string) ([]similarity.Document, LoadStats, error) {
	var stats LoadStats
	files, err := collectFiles(path, isYAMLFile)
	if err != nil {
		return nil, stats, err
	}
	stats.TotalFiles = len(files)

	docs := make([]similarity.Document, 0, len(files))
	for _, file := range files {
		raw, err := os.ReadFile(file)
		if err != nil {
			stats.SkippedInvalid++
			continue
		}
		rule, err := sigma.ParseRule(raw)
		if err != nil {
			stats.SkippedInvalid++
			continue
		}
		var extra sigmaDoc
		if err := yaml.Unmarshal(raw, &extra); err != nil {
			stats.SkippedInvalid++
			continue
		}
		if strings.TrimSpace(rule.ID) == "" || strings.TrimSpace(rule.Title) == "" {
			stats.SkippedFilter++
			continue
		}
		docs = append(docs, sigmaDocument(rule, extra, raw))
		stats.Loaded++
	}
	return docs, stats, nil
}

func sigmaDocument(rule sigma.Rule, extra sigmaDoc, raw []byte) similarity.Document {
	parts := []string{"Title: " + rule.Title}
	if extra.Description != "" {
		parts = append(parts, "Description:\n"+strings.TrimSpace(extra.Description))
	}
	parts = append(parts, detectionLines(extra.Detection)...)
	if len(extra.References) > 0 {
		parts = append(parts, "References:\n- "+strings.Join(extra.References, "\n- "))
	}

	return similarity.Document{
		ID:   strings.TrimSpace(rule.ID),
		Text: strings.TrimSpace(strings.Join(parts, "\n\n")),
		Metadata: map[string]interface{}{
			"sid":               strings.TrimSpace(rule.ID),
			"title":             strings.TrimSpace(rule.Title),
			"logsource_product": rule.Logsource.Product,
			"logsource_service": rule.Logsource.Service,
			"level":             strings.ToLower(strings.TrimSpace(rule.Level)),
			"mitre_techniques":  strings.Join(attackTechniques(rule.Tags), ", "),
			"raw_tags":          strings.Join(rule.Tags, ", "),
			"yaml_raw":          string(raw),
		},
	}
}

// detectionLines flattens the top level of a detection block. List-valued
// searches contribute one line per item.
func detectionLines(detection map[string]interface{}) []string {
	keys := make([]string, 0, len(detection))
	for k := range detection {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []string
	for _, k := range keys {
		switch val := detection[k].(type) {
		case []interface{}:
			for _, item := range val {
				out = append(out, fmt.Sprintf("Detection pattern: %v", item))
			}
		case string:
			out = append(out, "Detection: "+val)
		}
	}
	return out
}

// attackTechniques returns ATT&CK technique ids (T1059, T1059.004) from rule tags.
func attackTechniques(tags []string) []string {
	var out []string
	for _, raw := range tags {
		tag := strings.ToLower(strings.TrimSpace(raw))
		if !techniqueTagRegex.MatchString(tag) {
			continue
		}
		tid := strings.ToUpper(strings.TrimPrefix(tag, "attack."))
		if !contains(out, tid) {
			out = append(out, tid)
		}
	}
	return out
}

func isYAMLFile(path string) bool {
	return hasSuffixFold(path, ".yml", ".yaml")
}
