package projects

import "time"

// Project groups documents. Membership and roles live outside this service.
type Project struct {
	ID        string
	Name      string
	CreatedBy string
	CreatedAt time.Time
}
