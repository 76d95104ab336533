package models

import "time"

// Field names a canonical identification attribute.
type Field string

const (
	FieldName       Field = "company_name"
	FieldAddress    Field = "address"
	FieldLocality   Field = "locality"
	FieldRegion     Field = "region"
	FieldPostalCode Field = "postal_code"
	FieldCountry    Field = "country"
)

// CanonicalFields lists the six identification fields in export order.
var CanonicalFields = []Field{
	FieldName,
	FieldAddress,
	FieldLocality,
	FieldRegion,
	FieldPostalCode,
	FieldCountry,
}

// Fields is the canonical six-field identification shape shared by
// organizations and projected source records.
type Fields struct {
	Name       string `json:"company_name" db:"company_name"`
	Address    string `json:"address" db:"address"`
	Locality   string `json:"locality" db:"locality"`
	Region     string `json:"region" db:"region"`
	PostalCode string `json:"postal_code" db:"postal_code"`
	Country    string `json:"country" db:"country"`
}

// Get returns the value of the named field, or "" for an unknown field.
func (f Fields) Get(field Field) string {
	switch field {
	case FieldName:
		return f.Name
	case FieldAddress:
		return f.Address
	case FieldLocality:
		return f.Locality
	case FieldRegion:
		return f.Region
	case FieldPostalCode:
		return f.PostalCode
	case FieldCountry:
		return f.Country
	}
	return ""
}

// Map applies fn to every field and returns the result.
func (f Fields) Map(fn func(string) string) Fields {
	return Fields{
		Name:       fn(f.Name),
		Address:    fn(f.Address),
		Locality:   fn(f.Locality),
		Region:     fn(f.Region),
		PostalCode: fn(f.PostalCode),
		Country:    fn(f.Country),
	}
}

// ExternalRefs are optional identifiers from an external master-data system.
type ExternalRefs struct {
	OrgRef      string `json:"external_org_ref,omitempty"`
	LocationRef string `json:"external_location_ref,omitempty"`
}

// IsEmpty reports whether neither reference is set.
func (r ExternalRefs) IsEmpty() bool {
	return r.OrgRef == "" && r.LocationRef == ""
}

// Organization is a canonical entity in the registry. The ID is issued once
// on creation and never changes.
type Organization struct {
	ID  string `json:"organization_id" db:"organization_id"`
	Seq int64  `json:"-" db:"seq"`
	Fields
	ExternalOrgRef      *string   `json:"external_org_ref" db:"external_org_ref"`
	ExternalLocationRef *string   `json:"external_location_ref" db:"external_location_ref"`
	CreatedAt           time.Time `json:"created_at" db:"created_at"`
}

// Refs returns the organization's external references as values.
func (o Organization) Refs() ExternalRefs {
	var refs ExternalRefs
	if o.ExternalOrgRef != nil {
		refs.OrgRef = *o.ExternalOrgRef
	}
	if o.ExternalLocationRef != nil {
		refs.LocationRef = *o.ExternalLocationRef
	}
	return refs
}

// MatchResult is the outcome of resolving one record.
type MatchResult struct {
	OrganizationID string  `json:"organization_id"`
	OverallScore   float64 `json:"overall_score"`
	Matched        bool    `json:"matched"`
	NameScore      float64 `json:"name_score"`
	Ambiguous      bool    `json:"ambiguous"`
	// CandidateID is the best candidate that was evaluated, whether or not it was accepted.
	CandidateID string `json:"candidate_id,omitempty"`
}

// LinkedRecord is an input record annotated with its resolved organization.
type LinkedRecord struct {
	Source         SourceType `json:"source" db:"source"`
	RecordID       string     `json:"record_id" db:"record_id"`
	OrganizationID string     `json:"organization_id" db:"organization_id"`
	Matched        bool       `json:"matched" db:"matched"`
	OverallScore   float64    `json:"overall_score" db:"overall_score"`
	NameScore      float64    `json:"name_score" db:"name_score"`
	Ambiguous      bool       `json:"ambiguous" db:"ambiguous"`
	Fingerprint    string     `json:"fingerprint" db:"fingerprint"`
	Fields         `json:"fields"`
	LinkedAt       time.Time `json:"linked_at" db:"linked_at"`
}
