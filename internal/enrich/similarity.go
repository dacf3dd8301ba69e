package enrich

import (
	"context"
	"fmt"

	"honeytrail/internal/similarity"
	"honeytrail/pkg/models"
)

// Projection shapes a search match into the candidate stored on the record.
type Projection func(m similarity.Match) models.Candidate

// SimilarityPass attaches the top-k nearest entries of one corpus under
// "<corpus>_candidates".
type SimilarityPass struct {
	corpus   string
	k        int
	searcher similarity.Searcher
	project  Projection
}

// NewSimilarityPass creates a pass over corpus. A nil projection selects
// the built-in projection for the corpus name, falling back to the raw metadata.
func NewSimilarityPass(corpus string, k int, searcher similarity.Searcher, project Projection) *SimilarityPass {
	if project == nil {
		project = ProjectionFor(corpus)
	}
	if k <= 0 {
		k = 5
	}
	return &SimilarityPass{corpus: corpus, k: k, searcher: searcher, project: project}
}

func (p *SimilarityPass) Name() string { return p.corpus }

// Key is the top-level record key the pass writes.
func (p *SimilarityPass) Key() string { return p.corpus + models.CandidateSuffix }

func (p *SimilarityPass) Apply(ctx context.Context, rec *models.AnalysisRecord) error {
	matches, err := p.searcher.Search(ctx, p.corpus, BuildQuery(rec), p.k)
	if err != nil {
		return fmt.Errorf("search %s: %w", p.corpus, err)
	}
	similarity.SortByDistance(matches)
	if len(matches) > p.k {
		matches = matches[:p.k]
	}

	list := make([]models.Candidate, 0, len(matches))
	for _, m := range matches {
		list = append(list, p.project(m))
	}
	rec.SetCandidates(p.Key(), list)
	return nil
}

// ProjectionFor returns the projection registered for a corpus.
func ProjectionFor(corpus string) Projection {
	switch corpus {
	case "mitre":
		return MitreProjection
	case "sigma":
		return SigmaProjection
	case "suricata":
		return SuricataProjection
	default:
		return MetadataProjection
	}
}

// MitreProjection keeps technique identity, tactics and platform coverage.
func MitreProjection(m similarity.Match) models.Candidate {
	return pick(m, "tid", "name", "tactics", "platforms", "domain", "is_subtechnique", "mitre_url")
}

// SigmaProjection keeps rule identity, log source, level and ATT&CK tags.
func SigmaProjection(m similarity.Match) models.Candidate {
	return pick(m, "sid", "title", "logsource_product", "logsource_service", "level", "mitre_techniques", "raw_tags")
}

// SuricataProjection keeps signature identity, class and severity.
func SuricataProjection(m similarity.Match) models.Candidate {
	return pick(m, "sid", "msg", "classtype", "severity", "metadata")
}

// MetadataProjection copies all metadata and adds id and distance.
func MetadataProjection(m similarity.Match) models.Candidate {
	c := models.Candidate{"id": m.ID, "distance": m.Distance}
	for k, v := range m.Metadata {
		if _, ok := c[k]; !ok {
			c[k] = v
		}
	}
	return c
}

// pick copies the named metadata fields. Missing fields are present as null.
func pick(m similarity.Match, fields ...string) models.Candidate {
	c := make(models.Candidate, len(fields)+1)
	for _, f := range fields {
		c[f] = m.Metadata[f]
	}
	c["distance"] = m.Distance
	return c
}
