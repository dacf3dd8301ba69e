package sensor

import "honeytrail/pkg/models"

type dionaea struct {
	windowGrouping
}

func (dionaea) Kind() models.SensorKind { return models.SensorDionaea }

func (dionaea) Code() string { return "dio" }

func (dionaea) Normalize(raw models.Raw) (*models.NormalizedEvent, error) {
	event, err := baseEvent(models.SensorDionaea, raw, "dest_ip", "t-pot_ip_int")
	if err != nil {
		return nil, err
	}
	event.Protocol = models.Str(raw.String("connection.protocol"))
	event.EventKind = models.Str(raw.String("connection.type"))
	return event, nil
}

func (dionaea) Extract(*models.NormalizedEvent, Collector) {}
