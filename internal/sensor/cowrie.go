package sensor

import (
	"strings"

	"honeytrail/pkg/models"
)

const (
	cowrieCommandInput = "cowrie.command.input"
	cowrieFileDownload = "cowrie.session.file_download"
	cowrieFileUpload   = "cowrie.session.file_upload"
)

// cowrie is the SSH/Telnet honeypot. It logs a native session id and every
// command the attacker types.
type cowrie struct {
	keyGrouping
}

func (cowrie) Kind() models.SensorKind { return models.SensorCowrie }

func (cowrie) Code() string { return "cow" }

func (cowrie) Normalize(raw models.Raw) (*models.NormalizedEvent, error) {
	event, err := baseEvent(models.SensorCowrie, raw, "t-pot_ip_int", "t-pot_ip_ext", "dest_ip")
	if err != nil {
		return nil, err
	}
	event.SessionKey = models.Str(raw.String("session"))
	event.Protocol = models.Str(raw.String("protocol"))
	event.EventKind = models.Str(raw.String("eventid"))
	event.Message = models.Str(raw.String("message"))
	event.URL = models.Str(raw.String("url"))
	return event, nil
}

func (cowrie) Extract(event *models.NormalizedEvent, c Collector) {
	switch models.Deref(event.EventKind) {
	case cowrieCommandInput:
		input := event.Raw.String("input")
		if strings.TrimSpace(input) == "" {
			return
		}
		c.AddCommand(input)
		scanCommand(input, c)
	case cowrieFileDownload, cowrieFileUpload:
		c.AddFile(event.Raw.String("outfile", "filename"))
		c.AddFile(event.Raw.String("shasum"))
	}
}

// scanCommand pulls URLs and download targets (-O/-o <path>) out of a shell line.
func scanCommand(input string, c Collector) {
	tokens := strings.Fields(input)
	for i, tok := range tokens {
		clean := cleanToken(tok)
		if strings.HasPrefix(clean, "http://") || strings.HasPrefix(clean, "https://") {
			c.AddURL(clean)
			continue
		}
		if (tok == "-O" || tok == "-o") && i+1 < len(tokens) {
			target := cleanToken(tokens[i+1])
			if target != "" && target != "-" {
				c.AddFile(target)
			}
		}
	}
}

func cleanToken(tok string) string {
	tok = strings.TrimRight(tok, ";&|")
	return strings.Trim(tok, `"'`)
}
