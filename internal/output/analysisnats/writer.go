package analysisnats

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"honeytrail/internal/logger"
	"honeytrail/pkg/models"
)

// Config configures the NATS publisher.
type Config struct {
	URL           string
	Name          string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
	Username      string
	Password      string
	Token         string
}

// Writer publishes one message per analysis record on <prefix>.<sensor>.
type Writer struct {
	conn   *nats.Conn
	prefix string
}

// NewWriter connects to NATS.
func NewWriter(cfg Config) (*Writer, error) {
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.Name == "" {
		cfg.Name = "honeytrail"
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = 2 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warnf("NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Infof("NATS reconnected")
		}),
	}
	if cfg.Username != "" && cfg.Password != "" {
		opts = append(opts, nats.UserInfo(cfg.Username, cfg.Password))
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	logger.Infof("NATS writer connected: %s", cfg.URL)
	return &Writer{conn: conn, prefix: SubjectPrefix(cfg.SubjectPrefix)}, nil
}

// SubjectPrefix normalizes a configured prefix.
func SubjectPrefix(p string) string {
	p = strings.Trim(strings.TrimSpace(p), ".")
	if p == "" {
		return "honeytrail.analysis"
	}
	return p
}

// Subject returns the subject a record is published on.
func Subject(prefix string, rec *models.AnalysisRecord) string {
	sensor := string(rec.Sensor)
	if sensor == "" {
		sensor = "unknown"
	}
	return prefix + "." + sensor
}

// WriteAnalyses publishes each record and flushes the connection.
func (w *Writer) WriteAnalyses(records []*models.AnalysisRecord) error {
	if len(records) == 0 {
		return nil
	}
	for _, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal message: %w", err)
		}
		if err := w.conn.Publish(Subject(w.prefix, rec), data); err != nil {
			return fmt.Errorf("publish %s: %w", rec.SessionID, err)
		}
	}
	if err := w.conn.Flush(); err != nil {
		return fmt.Errorf("flush nats: %w", err)
	}
	return nil
}

// Close drains the connection.
func (w *Writer) Close() error {
	if w.conn == nil {
		return nil
	}
	return w.conn.Drain()
}
