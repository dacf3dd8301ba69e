package analysishttp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"honeytrail/pkg/models"
)

// SensorPlaceholder in the URL is replaced by the sensor of each batch.
const SensorPlaceholder = "{sensor}"

// Writer posts enriched analyses, one request per sensor in the batch.
type Writer struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// Config configures the HTTP writer.
type Config struct {
	URL     string
	Timeout time.Duration
	Headers map[string]string
}

// NewWriter creates an HTTP writer.
func NewWriter(cfg Config) (*Writer, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("http publish URL is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Writer{
		url:     cfg.URL,
		headers: cfg.Headers,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// URLFor returns the endpoint that receives records of one sensor.
func (w *Writer) URLFor(sensor models.SensorKind) string {
	return strings.ReplaceAll(w.url, SensorPlaceholder, string(sensor))
}

// WriteAnalyses splits the batch by sensor, keeping record order inside each
// group, and posts every group as a JSON array.
func (w *Writer) WriteAnalyses(records []*models.AnalysisRecord) error {
	var order []models.SensorKind
	groups := make(map[models.SensorKind][]*models.AnalysisRecord)
	for _, rec := range records {
		if _, ok := groups[rec.Sensor]; !ok {
			order = append(order, rec.Sensor)
		}
		groups[rec.Sensor] = append(groups[rec.Sensor], rec)
	}
	for _, sensor := range order {
		if err := w.post(sensor, groups[sensor]); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) post(sensor models.SensorKind, records []*models.AnalysisRecord) error {
	body, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis records: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, w.URLFor(sensor), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("X-Honeytrail-Sensor", string(sensor))
	req.Header.Set("X-Honeytrail-Sessions", strconv.Itoa(len(records)))

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request for %s failed: %w", sensor, err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("http request for %s failed with status %s", sensor, resp.Status)
	}
	return nil
}

// Close releases HTTP resources.
func (w *Writer) Close() error {
	return nil
}
