package sensor

import (
	"strings"

	"honeytrail/pkg/models"
)

// suricata is the network IDS. Alerts carry the triggered rule's signature id.
type suricata struct {
	windowGrouping
}

func (suricata) Kind() models.SensorKind { return models.SensorSuricata }

func (suricata) Code() string { return "sur" }

func (suricata) Normalize(raw models.Raw) (*models.NormalizedEvent, error) {
	event, err := baseEvent(models.SensorSuricata, raw, "dest_ip", "t-pot_ip_int")
	if err != nil {
		return nil, err
	}
	event.Protocol = models.Str(raw.String("proto"))
	event.EventKind = models.Str(raw.String("event_type"))
	event.Message = models.Str(raw.String("alert.signature"))
	event.URL = models.Str(httpURL(raw))
	return event, nil
}

func (suricata) Extract(event *models.NormalizedEvent, c Collector) {
	for _, sid := range event.Raw.Strings("alert.signature_id") {
		c.AddSignature(sid)
	}
}

func httpURL(raw models.Raw) string {
	path := raw.String("http.url")
	if path == "" {
		return ""
	}
	host := raw.String("http.hostname")
	if host == "" || !strings.HasPrefix(path, "/") {
		return path
	}
	return "http://" + host + path
}
