package enrich

import (
	"context"
	"net"

	"github.com/oschwald/geoip2-golang"

	"honeytrail/internal/logger"
	"honeytrail/pkg/models"
)

// GeoKey holds the source address location.
const GeoKey = "geo" + models.CandidateSuffix

// CityLookup resolves city-level location for an address.
type CityLookup interface {
	City(ip net.IP) (*geoip2.City, error)
}

// ASNLookup resolves the autonomous system for an address.
type ASNLookup interface {
	ASN(ip net.IP) (*geoip2.ASN, error)
}

// GeoPass locates the session source address with MaxMind databases.
// Private, loopback and unparseable addresses yield an empty list.
type GeoPass struct {
	city CityLookup
	asn  ASNLookup
}

// NewGeoPass creates the pass. Either lookup may be nil.
func NewGeoPass(city CityLookup, asn ASNLookup) *GeoPass {
	return &GeoPass{city: city, asn: asn}
}

// OpenGeoPass opens the City and ASN databases from disk.
func OpenGeoPass(cityPath, asnPath string) (*GeoPass, func(), error) {
	var readers []*geoip2.Reader
	closeAll := func() {
		for _, r := range readers {
			r.Close()
		}
	}

	p := &GeoPass{}
	if cityPath != "" {
		r, err := geoip2.Open(cityPath)
		if err != nil {
			return nil, nil, err
		}
		readers = append(readers, r)
		p.city = r
	}
	if asnPath != "" {
		r, err := geoip2.Open(asnPath)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		readers = append(readers, r)
		p.asn = r
	}
	return p, closeAll, nil
}

func (p *GeoPass) Name() string { return "geo" }

func (p *GeoPass) Apply(_ context.Context, rec *models.AnalysisRecord) error {
	list := []models.Candidate{}
	ip := net.ParseIP(rec.KeyIndicators.SrcIP)
	if ip == nil || ip.IsPrivate() || ip.IsLoopback() || ip.IsUnspecified() {
		rec.SetCandidates(GeoKey, list)
		return nil
	}

	c := models.Candidate{"ip": ip.String()}
	if p.city != nil {
		city, err := p.city.City(ip)
		if err != nil {
			logger.Debugf("GeoIP city lookup failed for %s: %v", ip, err)
		} else {
			c["country"] = city.Country.IsoCode
			c["country_name"] = city.Country.Names["en"]
			c["city"] = city.City.Names["en"]
			c["latitude"] = city.Location.Latitude
			c["longitude"] = city.Location.Longitude
		}
	}
	if p.asn != nil {
		asn, err := p.asn.ASN(ip)
		if err != nil {
			logger.Debugf("GeoIP ASN lookup failed for %s: %v", ip, err)
		} else {
			c["asn"] = asn.AutonomousSystemNumber
			c["as_org"] = asn.AutonomousSystemOrganization
		}
	}
	if len(c) > 1 {
		list = append(list, c)
	}
	rec.SetCandidates(GeoKey, list)
	return nil
}
