package domain

import "time"

// CustomerType drives which registration fields are mandatory.
type CustomerType string

const (
	CustomerTypeIndividual CustomerType = "INDIVIDUAL"
	CustomerTypeCorporate  CustomerType = "CORPORATE"
	CustomerTypeConsultant CustomerType = "CONSULTANT"
	CustomerTypeSponsor    CustomerType = "SPONSOR"
)

// Valid reports whether the customer type is known.
func (t CustomerType) Valid() bool {
	switch t {
	case CustomerTypeIndividual, CustomerTypeCorporate, CustomerTypeConsultant, CustomerTypeSponsor:
		return true
	}
	return false
}

// Customer is an external principal who submits service requests.
type Customer struct {
	ID                 string
	Email              string
	PasswordHash       string
	FullName           string
	FullNameAr         string
	Phone              string
	CustomerType       CustomerType
	NationalID         string
	OrganizationName   string
	OrganizationNameAr string
	CommercialRegister string
	Address            string
	City               string
	Status             PrincipalStatus
	EmailVerifiedAt    *time.Time
	LastLoginAt        *time.Time
	LoginCount         int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (c *Customer) SubjectID() string        { return c.ID }
func (c *Customer) SubjectType() SubjectType { return SubjectTypeCustomer }

// MissingRegistrationFields lists the type-specific fields left empty.
func (c *Customer) MissingRegistrationFields() []string {
	var missing []string
	switch c.CustomerType {
	case CustomerTypeIndividual, CustomerTypeConsultant:
		if c.NationalID == "" {
			missing = append(missing, "national_id")
		}
	case CustomerTypeCorporate:
		if c.OrganizationName == "" {
			missing = append(missing, "organization_name")
		}
		if c.CommercialRegister == "" {
			missing = append(missing, "commercial_register")
		}
	case CustomerTypeSponsor:
		if c.OrganizationName == "" {
			missing = append(missing, "organization_name")
		}
	}
	return missing
}
