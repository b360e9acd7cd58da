package domain

import "time"

// ReservationStatus tracks a ReserveNow request through its lifecycle. The
// station's verdict decides between Accepted and Rejected; the sweeper moves
// overdue Accepted reservations to Expired.
type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "Pending"
	ReservationAccepted  ReservationStatus = "Accepted"
	ReservationRejected  ReservationStatus = "Rejected"
	ReservationCancelled ReservationStatus = "Cancelled"
	ReservationExpired   ReservationStatus = "Expired"
)

// Reservation is a connector hold placed via ReserveNow. The id is allocated
// by the database and quoted to the station, which echoes it back in
// StartTransaction when the reserved tag arrives.
type Reservation struct {
	ID          int               `json:"id" gorm:"primaryKey;autoIncrement"`
	StationID   string            `json:"station_id" gorm:"index"`
	ConnectorID int               `json:"connector_id"`
	IdTag       string            `json:"id_tag"`
	ParentIdTag string            `json:"parent_id_tag,omitempty"`
	ExpiryDate  time.Time         `json:"expiry_date" gorm:"index"`
	Status      ReservationStatus `json:"status" gorm:"index"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// IsOverdue reports whether an accepted reservation has outlived its expiry.
func (r *Reservation) IsOverdue(now time.Time) bool {
	return r.Status == ReservationAccepted && now.After(r.ExpiryDate)
}

// ReservationRequest carries an operator ReserveNow into the service layer.
type ReservationRequest struct {
	StationID   string
	ConnectorID int
	IdTag       string
	ParentIdTag string
	ExpiryDate  time.Time
}
