package analysisclickhouse

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"honeytrail/pkg/models"
)

// Config configures the ClickHouse HTTP writer.
type Config struct {
	URL      string
	Database string
	Table    string
	Username string
	Password string
	Timeout  time.Duration
	Headers  map[string]string
}

// Writer sends analysis rows to ClickHouse via HTTP JSONEachRow.
type Writer struct {
	endpoint string
	headers  map[string]string
	client   *http.Client
}

// Row is the flattened table shape of one analysis record.
type Row struct {
	SessionID       string   `json:"session_id"`
	Sensor          string   `json:"sensor"`
	Date            string   `json:"date"`
	StartTime       string   `json:"start_time"`
	EndTime         string   `json:"end_time"`
	AttackIntent    string   `json:"attack_intent"`
	Summary         string   `json:"summary"`
	Confidence      float64  `json:"confidence"`
	RiskScore       float64  `json:"risk_score"`
	SrcIP           string   `json:"src_ip"`
	DestIP          string   `json:"dest_ip"`
	DestPorts       []int    `json:"dest_ports"`
	Protocols       []string `json:"protocols"`
	MitreTechniques []string `json:"mitre_techniques"`
	SigmaRules      []string `json:"sigma_rules"`
	SuricataSIDs    []string `json:"suricata_sids"`
	Record          string   `json:"record"`
}

// NewWriter creates a ClickHouse HTTP writer.
func NewWriter(cfg Config) (*Writer, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("clickhouse URL is empty")
	}
	if cfg.Database == "" {
		cfg.Database = "default"
	}
	if cfg.Table == "" {
		cfg.Table = "honeytrail_sessions"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	q := fmt.Sprintf("INSERT INTO %s.%s FORMAT JSONEachRow", quoteIdent(cfg.Database), quoteIdent(cfg.Table))
	base := strings.TrimRight(cfg.URL, "/")
	endpoint := base + "/?query=" + url.QueryEscape(q)

	headers := map[string]string{}
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	if cfg.Username != "" {
		headers["X-ClickHouse-User"] = cfg.Username
	}
	if cfg.Password != "" {
		headers["X-ClickHouse-Key"] = cfg.Password
	}

	return &Writer{
		endpoint: endpoint,
		headers:  headers,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

// NewRow flattens a record for insertion.
func NewRow(rec *models.AnalysisRecord) (Row, error) {
	full, err := json.Marshal(rec)
	if err != nil {
		return Row{}, err
	}
	ki := rec.KeyIndicators
	row := Row{
		SessionID:       rec.SessionID,
		Sensor:          string(rec.Sensor),
		StartTime:       rec.TimestampRange.Start,
		EndTime:         rec.TimestampRange.End,
		AttackIntent:    rec.AttackIntent,
		Summary:         rec.Summary,
		Confidence:      rec.Confidence,
		RiskScore:       rec.RiskScore,
		SrcIP:           ki.SrcIP,
		DestIP:          ki.DestIP,
		DestPorts:       append([]int{}, ki.DestPorts...),
		Protocols:       append([]string{}, ki.Protocols...),
		MitreTechniques: candidateField(rec, "mitre_candidates", "tid"),
		SigmaRules:      candidateField(rec, "sigma_candidates", "sid"),
		SuricataSIDs:    candidateField(rec, "suricata_candidates", "sid"),
		Record:          string(full),
	}
	if len(row.StartTime) >= 10 {
		row.Date = row.StartTime[:10]
	}
	return row, nil
}

func candidateField(rec *models.AnalysisRecord, key, field string) []string {
	out := []string{}
	for _, c := range rec.Candidates[key] {
		if v := c.String(field); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// WriteAnalyses sends a batch of records.
func (w *Writer) WriteAnalyses(records []*models.AnalysisRecord) error {
	if len(records) == 0 {
		return nil
	}

	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for _, rec := range records {
		row, err := NewRow(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal analysis record: %w", err)
		}
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("failed to marshal analysis row: %w", err)
		}
	}

	req, err := http.NewRequest(http.MethodPost, w.endpoint, &body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("clickhouse request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 300 {
		return fmt.Errorf("clickhouse request failed with status %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
	}
	return nil
}

// Close releases resources.
func (w *Writer) Close() error {
	return nil
}

func quoteIdent(v string) string {
	if v == "" {
		return ""
	}
	v = strings.ReplaceAll(v, "`", "")
	return "`" + v + "`"
}
