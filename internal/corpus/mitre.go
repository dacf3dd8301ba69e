package corpus

import (
	"encoding/json"
	"os"
	"strings"

	"honeytrail/internal/similarity"
)

type stixBundle struct {
	Objects []stixObject `json:"objects"`
}

type stixObject struct {
	Type           string   `json:"type"`
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	Revoked        bool     `json:"revoked"`
	Deprecated     bool     `json:"x_mitre_deprecated"`
	Detection      string   `json:"x_mitre_detection"`
	IsSubtechnique bool     `json:"x_mitre_is_subtechnique"`
	Platforms      []string `json:"x_mitre_platforms"`
	Domains        []string `json:"x_mitre_domains"`

	KillChainPhases []struct {
		KillChainName string `json:"kill_chain_name"`
		PhaseName     string `json:"phase_name"`
	} `json:"kill_chain_phases"`

	ExternalReferences []struct {
		SourceName  string `json:"source_name"`
		ExternalID  string `json:"external_id"`
		URL         string `json:"url"`
		Description string `json:"description"`
	} `json:"external_references"`
}

// LoadMitre reads ATT&CK STIX bundles. Revoked and deprecated attack patterns
// and patterns without a technique id are skipped.
func LoadMitre(path string) ([]similarity.Document, LoadStats, error) {
	var stats LoadStats
	files, err := collectFiles(path, func(p string) bool { return hasSuffixFold(p, ".json") })
	if err != nil {
		return nil, stats, err
	}
	stats.TotalFiles = len(files)

	docs := make([]similarity.Document, 0, 512)
	for _, file := range files {
		raw, err := os.ReadFile(file)
		if err != nil {
			stats.SkippedInvalid++
			continue
		}
		var bundle stixBundle
		if err := json.Unmarshal(raw, &bundle); err != nil {
			stats.SkippedInvalid++
			continue
		}
		for _, obj := range bundle.Objects {
			if obj.Type != "attack-pattern" {
				continue
			}
			if obj.Revoked || obj.Deprecated {
				stats.SkippedFilter++
				continue
			}
			doc, ok := mitreDocument(obj)
			if !ok {
				stats.SkippedFilter++
				continue
			}
			docs = append(docs, doc)
			stats.Loaded++
		}
	}
	return docs, stats, nil
}

func mitreDocument(obj stixObject) (similarity.Document, bool) {
	var tid, url string
	var refs []string
	for _, ref := range obj.ExternalReferences {
		if ref.SourceName == "mitre-attack" {
			if tid == "" {
				tid, url = ref.ExternalID, ref.URL
			}
			continue
		}
		line := ref.SourceName
		if ref.Description != "" {
			line = joinNonEmpty(" - ", line, ref.Description)
		}
		if ref.URL != "" {
			if line != "" {
				line += " (" + ref.URL + ")"
			} else {
				line = ref.URL
			}
		}
		if line != "" {
			refs = append(refs, line)
		}
	}
	if tid == "" {
		return similarity.Document{}, false
	}

	var parts []string
	if obj.Name != "" {
		parts = append(parts, obj.Name)
	}
	if obj.Description != "" {
		parts = append(parts, obj.Description)
	}
	if obj.Detection != "" {
		parts = append(parts, "Detection:\n"+obj.Detection)
	}
	if len(refs) > 0 {
		parts = append(parts, "External References:\n- "+strings.Join(refs, "\n- "))
	}
	text := strings.TrimSpace(strings.Join(parts, "\n\n"))
	if text == "" {
		return similarity.Document{}, false
	}

	var tactics []string
	for _, phase := range obj.KillChainPhases {
		if phase.KillChainName == "mitre-attack" && phase.PhaseName != "" && !contains(tactics, phase.PhaseName) {
			tactics = append(tactics, phase.PhaseName)
		}
	}

	return similarity.Document{
		ID:   tid,
		Text: text,
		Metadata: map[string]interface{}{
			"tid":             tid,
			"name":            obj.Name,
			"tactics":         strings.Join(tactics, ", "),
			"platforms":       strings.Join(obj.Platforms, ", "),
			"domain":          strings.Join(obj.Domains, ", "),
			"is_subtechnique": obj.IsSubtechnique,
			"mitre_url":       url,
			"stix_id":         obj.ID,
		},
	}, true
}

func joinNonEmpty(sep string, parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
