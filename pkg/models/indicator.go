package models

import (
	"encoding/json"
	"strconv"
	"strings"
)

// IndicatorSet is the deterministic, duplicate-free observable summary of a session.
// Lists keep first-seen order. Extra holds keys outside the known schema.
type IndicatorSet struct {
	SrcIP      string   `json:"src_ip"`
	DestIP     string   `json:"dest_ip"`
	SrcPorts   PortList `json:"src_ports"`
	DestPorts  PortList `json:"dest_ports"`
	Protocols  []string `json:"protocols"`
	Commands   []string `json:"commands"`
	URLs       []string `json:"urls"`
	Signatures []string `json:"signatures"`
	Files      []string `json:"files"`

	Extra map[string]interface{} `json:"-"`
}

var indicatorKeys = map[string]struct{}{
	"src_ip": {}, "dest_ip": {}, "src_ports": {}, "dest_ports": {}, "protocols": {},
	"commands": {}, "urls": {}, "signatures": {}, "files": {},
}

type indicatorSetAlias IndicatorSet

// MarshalJSON writes empty lists as [] and appends extra keys.
func (s IndicatorSet) MarshalJSON() ([]byte, error) {
	a := indicatorSetAlias(s)
	if a.SrcPorts == nil {
		a.SrcPorts = PortList{}
	}
	if a.DestPorts == nil {
		a.DestPorts = PortList{}
	}
	a.Protocols = nonNil(a.Protocols)
	a.Commands = nonNil(a.Commands)
	a.URLs = nonNil(a.URLs)
	a.Signatures = nonNil(a.Signatures)
	a.Files = nonNil(a.Files)
	return marshalWithExtra(a, s.Extra)
}

// UnmarshalJSON keeps unknown keys in Extra.
func (s *IndicatorSet) UnmarshalJSON(data []byte) error {
	var a indicatorSetAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	extra, err := unmarshalExtra(data, indicatorKeys)
	if err != nil {
		return err
	}
	*s = IndicatorSet(a)
	s.Extra = extra
	return nil
}

// PortList is a list of ports that also accepts numeric strings on decode.
type PortList []int

// UnmarshalJSON accepts numbers and numeric strings; other items are dropped.
func (p *PortList) UnmarshalJSON(data []byte) error {
	var items []interface{}
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	if items == nil {
		*p = nil
		return nil
	}
	out := make(PortList, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case float64:
			out = append(out, int(v))
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				out = append(out, n)
			}
		}
	}
	*p = out
	return nil
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}

func marshalWithExtra(v interface{}, extra map[string]interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return data, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	for k, val := range extra {
		if _, ok := fields[k]; ok {
			continue
		}
		raw, err := json.Marshal(val)
		if err != nil {
			return nil, err
		}
		fields[k] = raw
	}
	return json.Marshal(fields)
}

func unmarshalExtra(data []byte, known map[string]struct{}) (map[string]interface{}, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	var extra map[string]interface{}
	for k, raw := range fields {
		if _, ok := known[k]; ok {
			continue
		}
		var v interface{}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		if extra == nil {
			extra = make(map[string]interface{})
		}
		extra[k] = v
	}
	return extra, nil
}
