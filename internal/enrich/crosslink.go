package enrich

import (
	"context"
	"strings"

	"honeytrail/pkg/models"
)

// CrosslinkKey holds Sigma rules that share techniques with MITRE candidates.
const CrosslinkKey = "crosslink" + models.CandidateSuffix

// CrosslinkPass lists Sigma candidates whose ATT&CK technique tags overlap the
// technique ids among the MITRE candidates. It must run after both passes.
type CrosslinkPass struct {
	mitreKey string
	sigmaKey string
}

func NewCrosslinkPass() *CrosslinkPass {
	return &CrosslinkPass{
		mitreKey: "mitre" + models.CandidateSuffix,
		sigmaKey: "sigma" + models.CandidateSuffix,
	}
}

func (p *CrosslinkPass) Name() string { return "crosslink" }

func (p *CrosslinkPass) Apply(_ context.Context, rec *models.AnalysisRecord) error {
	tids := make(map[string]struct{})
	for _, c := range rec.Candidates[p.mitreKey] {
		if tid := strings.ToUpper(strings.TrimSpace(c.String("tid"))); tid != "" {
			tids[tid] = struct{}{}
		}
	}

	links := []models.Candidate{}
	for _, c := range rec.Candidates[p.sigmaKey] {
		var shared []string
		for _, t := range strings.Split(c.String("mitre_techniques"), ",") {
			t = strings.ToUpper(strings.TrimSpace(t))
			if _, ok := tids[t]; ok && !contains(shared, t) {
				shared = append(shared, t)
			}
		}
		if len(shared) == 0 {
			continue
		}
		links = append(links, models.Candidate{
			"sid":          c["sid"],
			"title":        c["title"],
			"shared_mitre": strings.Join(shared, ","),
			"distance":     c["distance"],
		})
	}
	rec.SetCandidates(CrosslinkKey, links)
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
