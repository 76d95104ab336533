package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// SourceType tags which dataset an incoming record came from.
type SourceType string

const (
	SourceWarningLetter    SourceType = "warning_letter"
	SourceComplianceReport SourceType = "compliance_report"
)

// NotFound is the placeholder the warning letter scraper writes for absent spans.
const NotFound = "Not found"

var (
	ErrUnknownSource = errors.New("unknown record source")

	// ErrPayloadMismatch always arrives wrapped together with ErrUnknownSource.
	ErrPayloadMismatch = errors.New("record payload does not match its source")
)

// WarningLetter is the company information block of an FDA warning letter.
type WarningLetter struct {
	CompanyName    string `json:"company_name"`
	Address        string `json:"address"`
	AddressLine2   string `json:"address_line2,omitempty"`
	Locality       string `json:"locality"`
	Region         string `json:"region"`
	PostalCode     string `json:"postal_code"`
	Country        string `json:"country"`
	RecipientName  string `json:"recipient_name,omitempty"`
	RecipientTitle string `json:"recipient_title,omitempty"`
}

// UnmarshalJSON accepts both the canonical keys and the raw scraper keys
// (address_line1, administrative_area). Non-string values decode as empty.
func (w *WarningLetter) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*w = WarningLetter{
		CompanyName:    firstString(raw, "company_name"),
		Address:        firstString(raw, "address", "address_line1"),
		AddressLine2:   firstString(raw, "address_line2"),
		Locality:       firstString(raw, "locality"),
		Region:         firstString(raw, "region", "administrative_area"),
		PostalCode:     firstString(raw, "postal_code"),
		Country:        firstString(raw, "country"),
		RecipientName:  firstString(raw, "recipient_name"),
		RecipientTitle: firstString(raw, "recipient_title"),
	}
	return nil
}

// Fields projects the letter into the canonical shape.
func (w WarningLetter) Fields() Fields {
	address := present(w.Address)
	if line2 := present(w.AddressLine2); line2 != "" {
		if address == "" {
			address = line2
		} else {
			address = address + " " + line2
		}
	}
	return Fields{
		Name:       present(w.CompanyName),
		Address:    address,
		Locality:   present(w.Locality),
		Region:     present(w.Region),
		PostalCode: present(w.PostalCode),
		Country:    present(w.Country),
	}
}

// ComplianceReport is the site block of an EU non-compliance report. It has no region.
type ComplianceReport struct {
	SiteName                  string `json:"Site Name"`
	SiteAddress               string `json:"Site Address"`
	City                      string `json:"City"`
	Postcode                  string `json:"Postcode"`
	Country                   string `json:"Country"`
	OMSOrganisationIdentifier string `json:"OMS Organisation Identifier,omitempty"`
	OMSLocationIdentifier     string `json:"OMS Location Identifier,omitempty"`
}

// Fields projects the report into the canonical shape.
func (c ComplianceReport) Fields() Fields {
	return Fields{
		Name:       present(c.SiteName),
		Address:    present(c.SiteAddress),
		Locality:   present(c.City),
		PostalCode: present(c.Postcode),
		Country:    present(c.Country),
	}
}

// Refs returns the OMS identifiers carried by the report.
func (c ComplianceReport) Refs() ExternalRefs {
	return ExternalRefs{
		OrgRef:      strings.TrimSpace(c.OMSOrganisationIdentifier),
		LocationRef: strings.TrimSpace(c.OMSLocationIdentifier),
	}
}

// IncomingRecord is a tagged union over the two source shapes. Exactly one
// payload must be set and it must agree with Source.
type IncomingRecord struct {
	Source           SourceType        `json:"source" validate:"required,oneof=warning_letter compliance_report"`
	RecordID         string            `json:"record_id,omitempty"`
	WarningLetter    *WarningLetter    `json:"warning_letter,omitempty"`
	ComplianceReport *ComplianceReport `json:"compliance_report,omitempty"`
}

// NewWarningLetterRecord wraps a warning letter.
func NewWarningLetterRecord(id string, w WarningLetter) IncomingRecord {
	return IncomingRecord{Source: SourceWarningLetter, RecordID: id, WarningLetter: &w}
}

// NewComplianceReportRecord wraps a non-compliance report.
func NewComplianceReportRecord(id string, c ComplianceReport) IncomingRecord {
	return IncomingRecord{Source: SourceComplianceReport, RecordID: id, ComplianceReport: &c}
}

// Project maps the record into the canonical six fields plus any external refs.
// Field values are raw; normalization happens in the matching engine.
func (r IncomingRecord) Project() (Fields, ExternalRefs, error) {
	switch r.Source {
	case SourceWarningLetter:
		if r.WarningLetter == nil || r.ComplianceReport != nil {
			return Fields{}, ExternalRefs{}, mismatch(r.Source)
		}
		return r.WarningLetter.Fields(), ExternalRefs{}, nil
	case SourceComplianceReport:
		if r.ComplianceReport == nil || r.WarningLetter != nil {
			return Fields{}, ExternalRefs{}, mismatch(r.Source)
		}
		return r.ComplianceReport.Fields(), r.ComplianceReport.Refs(), nil
	default:
		return Fields{}, ExternalRefs{}, fmt.Errorf("%w: %q", ErrUnknownSource, r.Source)
	}
}

func mismatch(source SourceType) error {
	return fmt.Errorf("%w: %w: %s", ErrUnknownSource, ErrPayloadMismatch, source)
}

func present(s string) string {
	if strings.EqualFold(strings.TrimSpace(s), NotFound) {
		return ""
	}
	return s
}

func firstString(raw map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := raw[k].(string); ok && present(s) != "" {
			return s
		}
	}
	return ""
}
