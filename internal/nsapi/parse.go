package nsapi

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"golang.org/x/net/html/charset"

	"rosterwatch/pkg/domain"
)

// EntityKind selects the top-level API endpoint.
type EntityKind string

const (
	KindRegion EntityKind = "region"
	KindNation EntityKind = "nation"
)

// Shard names a slice of an entity's data.
type Shard string

const (
	ShardNations    Shard = "nations"
	ShardWANations  Shard = "wanations"
	ShardOfficers   Shard = "officers"
	ShardDelegate   Shard = "delegate"
	ShardLastUpdate Shard = "lastupdate"
	ShardName       Shard = "name"
	ShardRegion     Shard = "region"
)

// Normalized field names. The wanations shard answers in the unnations field.
const (
	FieldNations    = "nations"
	FieldUNNations  = "unnations"
	FieldOfficers   = "officers"
	FieldDelegate   = "delegate"
	FieldLastUpdate = "lastupdate"
	FieldName       = "name"
	FieldRegion     = "region"
)

// regionDocument is the wire schema of a region response. Pointer fields
// distinguish an absent element from an empty one.
type regionDocument struct {
	XMLName    xml.Name         `xml:"REGION"`
	ID         string           `xml:"id,attr"`
	Name       *string          `xml:"NAME"`
	Nations    *string          `xml:"NATIONS"`
	UNNations  *string          `xml:"UNNATIONS"`
	Delegate   *string          `xml:"DELEGATE"`
	Officers   *officersElement `xml:"OFFICERS"`
	LastUpdate *string          `xml:"LASTUPDATE"`
}

// officersElement always decodes OFFICER into a slice, so a region with a
// single officer is not mistaken for a scalar field.
type officersElement struct {
	Officers []officerElement `xml:"OFFICER"`
}

type officerElement struct {
	Nation    string `xml:"NATION"`
	Office    string `xml:"OFFICE"`
	Authority string `xml:"AUTHORITY"`
}

type nationDocument struct {
	XMLName xml.Name `xml:"NATION"`
	ID      string   `xml:"id,attr"`
	Name    *string  `xml:"NAME"`
	Region  *string  `xml:"REGION"`
}

// parseDocument decodes body into normalized fields. Every field becomes a
// sequence, including scalars, so callers address all of them the same way.
func parseDocument(kind EntityKind, body []byte) (map[string][]string, error) {
	switch kind {
	case KindRegion:
		var doc regionDocument
		if err := decode(body, &doc); err != nil {
			return nil, err
		}
		return doc.fields(), nil
	case KindNation:
		var doc nationDocument
		if err := decode(body, &doc); err != nil {
			return nil, err
		}
		return doc.fields(), nil
	default:
		return nil, fmt.Errorf("unsupported entity kind %q", kind)
	}
}

// decode honors the encoding named in the XML declaration.
func decode(body []byte, v any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return fmt.Errorf("empty body")
	}
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.CharsetReader = charset.NewReaderLabel
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode xml: %w", err)
	}
	return nil
}

func (d regionDocument) fields() map[string][]string {
	fields := make(map[string][]string)
	if d.Name != nil {
		fields[FieldName] = []string{strings.TrimSpace(*d.Name)}
	}
	if d.Nations != nil {
		fields[FieldNations] = splitIdentifiers(*d.Nations, ":")
	}
	if d.UNNations != nil {
		fields[FieldUNNations] = splitIdentifiers(*d.UNNations, ",")
	}
	if d.Delegate != nil {
		// The API reports "0" when the region has no delegate.
		delegate := domain.Canonicalize(*d.Delegate)
		if delegate.IsZero() || delegate == "0" {
			fields[FieldDelegate] = []string{}
		} else {
			fields[FieldDelegate] = []string{delegate.String()}
		}
	}
	if d.Officers != nil {
		officers := make([]string, 0, len(d.Officers.Officers))
		for _, o := range d.Officers.Officers {
			if id := domain.Canonicalize(o.Nation); !id.IsZero() {
				officers = append(officers, id.String())
			}
		}
		fields[FieldOfficers] = officers
	}
	if d.LastUpdate != nil {
		fields[FieldLastUpdate] = []string{strings.TrimSpace(*d.LastUpdate)}
	}
	return fields
}

func (d nationDocument) fields() map[string][]string {
	fields := make(map[string][]string)
	if d.Name != nil {
		fields[FieldName] = []string{strings.TrimSpace(*d.Name)}
	}
	if d.Region != nil {
		if region := domain.Canonicalize(*d.Region); !region.IsZero() {
			fields[FieldRegion] = []string{region.String()}
		} else {
			fields[FieldRegion] = []string{}
		}
	}
	return fields
}

// splitIdentifiers splits a delimited roster into canonical identifiers. An
// empty roster yields an empty, non-nil slice.
func splitIdentifiers(raw, sep string) []string {
	out := []string{}
	for _, part := range strings.Split(raw, sep) {
		if id := domain.Canonicalize(part); !id.IsZero() {
			out = append(out, id.String())
		}
	}
	return out
}
