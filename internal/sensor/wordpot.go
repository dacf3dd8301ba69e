package sensor

import "honeytrail/pkg/models"

// wordpot is the WordPress honeypot; every hit is HTTP.
type wordpot struct {
	windowGrouping
}

func (wordpot) Kind() models.SensorKind { return models.SensorWordpot }

func (wordpot) Code() string { return "wp" }

func (wordpot) Normalize(raw models.Raw) (*models.NormalizedEvent, error) {
	event, err := baseEvent(models.SensorWordpot, raw, "t-pot_ip_int", "dest_ip")
	if err != nil {
		return nil, err
	}
	event.Protocol = models.Str("http")
	event.URL = models.Str(raw.String("url"))
	return event, nil
}

func (wordpot) Extract(*models.NormalizedEvent, Collector) {}
