package domain

import "time"

// Rider represents a rider account.
type Rider struct {
	ID        string
	Name      string
	Phone     string
	Active    bool
	CreatedAt time.Time
}

// Driver represents a driver account.
type Driver struct {
	ID             string
	Name           string
	Phone          string
	Vehicle        VehicleType
	Active         bool
	CompletedRides int
	CreatedAt      time.Time
}
