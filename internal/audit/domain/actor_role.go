package domain

// ActorRole identifies who performed an audited action. The set is closed:
// role dispatch happens through exhaustive switches, so adding a role is a
// compile-time-checked change rather than a scattered string comparison.
type ActorRole string

const (
	RoleDoctor     ActorRole = "doctor"
	RolePatient    ActorRole = "patient"
	RolePharmacist ActorRole = "pharmacist"
	RoleAdmin      ActorRole = "admin"
	RoleSystem     ActorRole = "system"
)

// Valid reports whether the role is one of the closed set.
func (r ActorRole) Valid() bool {
	switch r {
	case RoleDoctor, RolePatient, RolePharmacist, RoleAdmin, RoleSystem:
		return true
	}
	return false
}

// String returns the role as stored in the ledger.
func (r ActorRole) String() string {
	return string(r)
}
