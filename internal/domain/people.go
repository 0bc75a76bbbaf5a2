package domain

type Technician struct {
	ID             string
	OrganizationID string
	Name           string
}

// Client is a service location. Coordinates is nil until the address
// has been geocoded.
type Client struct {
	ID             string
	OrganizationID string
	Name           string
	Address        string
	Coordinates    *Coordinates
}
