package domain

import "time"

// AuthorizationStatus is the OCPP 1.6 IdTagInfo status vocabulary.
type AuthorizationStatus string

const (
	AuthAccepted     AuthorizationStatus = "Accepted"
	AuthBlocked      AuthorizationStatus = "Blocked"
	AuthExpired      AuthorizationStatus = "Expired"
	AuthInvalid      AuthorizationStatus = "Invalid"
	AuthConcurrentTx AuthorizationStatus = "ConcurrentTx"
)

// AuthorizationRecord is one provisioned id tag. Tags absent from this table
// resolve to Invalid.
type AuthorizationRecord struct {
	IdTag       string              `json:"id_tag" gorm:"primaryKey"`
	Status      AuthorizationStatus `json:"status"`
	ExpiryDate  *time.Time          `json:"expiry_date,omitempty"`
	ParentIdTag string              `json:"parent_id_tag,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// Effective resolves the verdict for this record at the given instant,
// downgrading tags whose expiry has passed.
func (r *AuthorizationRecord) Effective(now time.Time) AuthorizationStatus {
	if r.Status == AuthAccepted && r.ExpiryDate != nil && now.After(*r.ExpiryDate) {
		return AuthExpired
	}
	return r.Status
}

// IdTagInfo is the verdict handed back to the station in Authorize,
// StartTransaction and StopTransaction responses.
type IdTagInfo struct {
	Status      AuthorizationStatus `json:"status"`
	ExpiryDate  *time.Time          `json:"expiry_date,omitempty"`
	ParentIdTag string              `json:"parent_id_tag,omitempty"`
}

// Authorization sources recorded in the audit trail.
const (
	AuthSourceDatabase = "database"
	AuthSourceCache    = "cache"
	AuthSourcePolicy   = "policy"
)

// AuthorizationEvent is one audited authorization decision.
type AuthorizationEvent struct {
	ID        uint                `json:"-" gorm:"primaryKey"`
	StationID string              `json:"station_id" gorm:"index"`
	IdTag     string              `json:"id_tag" gorm:"index"`
	Status    AuthorizationStatus `json:"status"`
	Source    string              `json:"source"`
	DecidedAt time.Time           `json:"decided_at"`
}

// TableName keeps the audit trail under the name the reporting jobs query.
func (AuthorizationEvent) TableName() string { return "authorizations" }
