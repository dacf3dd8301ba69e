package corpus

import (
	"bufio"
	"encoding/json"
	"os"
	"regexp"
	"strconv"
	"strings"

	"honeytrail/internal/similarity"
)

var suricataRuleRegex = regexp.MustCompile(`^alert\s+(\w+)\s+(.+?)\s+(\S+)\s+->\s+(.+?)\s+\((.+)\)`)

// SuricataRule is the parsed form of one single-line alert rule.
type SuricataRule struct {
	SID        int
	Rev        int
	Msg        string
	Classtype  string
	Severity   string
	Protocol   string
	SrcAddrs   string
	SrcPorts   string
	DestAddrs  string
	References []string
	Flowbits   []string
	Metadata   map[string]string
	Raw        string
}

// ParseSuricataRule parses an alert rule line. Other lines return false.
func ParseSuricataRule(line string) (SuricataRule, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "alert ") {
		return SuricataRule{}, false
	}
	m := suricataRuleRegex.FindStringSubmatch(line)
	if m == nil {
		return SuricataRule{}, false
	}

	r := SuricataRule{
		Protocol:  m[1],
		SrcAddrs:  m[2],
		SrcPorts:  m[3],
		DestAddrs: m[4],
		Metadata:  map[string]string{},
		Raw:       line,
	}
	for _, opt := range strings.Split(m[5], ";") {
		opt = strings.TrimSpace(opt)
		key, val, ok := strings.Cut(opt, ":")
		if !ok {
			continue
		}
		val = strings.TrimSpace(val)
		switch strings.TrimSpace(key) {
		case "msg":
			r.Msg = strings.Trim(val, `"`)
		case "classtype":
			r.Classtype = val
		case "sid":
			r.SID, _ = strconv.Atoi(val)
		case "rev":
			r.Rev, _ = strconv.Atoi(val)
		case "reference":
			r.References = append(r.References, val)
		case "flowbits":
			r.Flowbits = append(r.Flowbits, val)
		case "metadata":
			for k, v := range parseRuleMetadata(val) {
				r.Metadata[k] = v
			}
		}
	}

	r.Severity = r.Metadata["signature_severity"]
	if r.Severity == "" {
		r.Severity = "Unknown"
	}
	return r, r.SID != 0 && r.Msg != ""
}

// parseRuleMetadata splits "key value, key value" pairs.
func parseRuleMetadata(block string) map[string]string {
	out := map[string]string{}
	for _, item := range strings.Split(strings.TrimRight(strings.TrimSpace(block), ";"), ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(item), " ")
		if ok {
			out[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}
	return out
}

// LoadSuricata reads .rules files. Only alert rules with a sid and msg are kept.
func LoadSuricata(path string) ([]similarity.Document, LoadStats, error) {
	var stats LoadStats
	files, err := collectFiles(path, func(p string) bool { return hasSuffixFold(p, ".rules") })
	if err != nil {
		return nil, stats, err
	}
	stats.TotalFiles = len(files)

	docs := make([]similarity.Document, 0, 1024)
	for _, file := range files {
		f, err := os.Open(file)
		if err != nil {
			stats.SkippedInvalid++
			continue
		}
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(strings.TrimSpace(line), "alert ") {
				continue
			}
			rule, ok := ParseSuricataRule(line)
			if !ok {
				stats.SkippedInvalid++
				continue
			}
			docs = append(docs, suricataDocument(rule))
			stats.Loaded++
		}
		if err := scanner.Err(); err != nil {
			stats.SkippedInvalid++
		}
		f.Close()
	}
	return docs, stats, nil
}

func suricataDocument(r SuricataRule) similarity.Document {
	meta, _ := json.Marshal(r.Metadata)
	return similarity.Document{
		ID:   "suricata-" + strconv.Itoa(r.SID),
		Text: r.Msg + " " + r.Raw,
		Metadata: map[string]interface{}{
			"sid":        r.SID,
			"msg":        r.Msg,
			"classtype":  r.Classtype,
			"severity":   r.Severity,
			"protocol":   r.Protocol,
			"src_addrs":  r.SrcAddrs,
			"src_ports":  r.SrcPorts,
			"dest_addrs": r.DestAddrs,
			"references": strings.Join(r.References, ", "),
			"flowbits":   strings.Join(r.Flowbits, ", "),
			"rev":        r.Rev,
			"metadata":   string(meta),
		},
	}
}
