package domain

import "time"

// Append-only event rows. These back the operational history tables; the
// denormalized current state lives on Station and Connector.

// BootEvent records one BootNotification as received.
type BootEvent struct {
	ID              uint      `json:"-" gorm:"primaryKey"`
	StationID       string    `json:"station_id" gorm:"index"`
	Vendor          string    `json:"vendor"`
	Model           string    `json:"model"`
	FirmwareVersion string    `json:"firmware_version"`
	Timestamp       time.Time `json:"timestamp"`
}

// HeartbeatEvent records one Heartbeat arrival.
type HeartbeatEvent struct {
	ID        uint      `json:"-" gorm:"primaryKey"`
	StationID string    `json:"station_id" gorm:"index"`
	Timestamp time.Time `json:"timestamp"`
}

// TableName matches the table provisioned by earlier schema migrations.
func (HeartbeatEvent) TableName() string { return "heartbeats" }

// StatusRecord is one StatusNotification in the per-connector history.
type StatusRecord struct {
	ID              uint            `json:"-" gorm:"primaryKey"`
	StationID       string          `json:"station_id" gorm:"index:idx_status_station"`
	ConnectorID     int             `json:"connector_id" gorm:"index:idx_status_station"`
	Status          ConnectorStatus `json:"status"`
	ErrorCode       string          `json:"error_code"`
	Info            string          `json:"info,omitempty"`
	VendorID        string          `json:"vendor_id,omitempty"`
	VendorErrorCode string          `json:"vendor_error_code,omitempty"`
	Timestamp       time.Time       `json:"timestamp"`
}

// TableName keeps the history under its historical name.
func (StatusRecord) TableName() string { return "status_history" }

// FirmwareStatusEvent records one FirmwareStatusNotification.
type FirmwareStatusEvent struct {
	ID        uint      `json:"-" gorm:"primaryKey"`
	StationID string    `json:"station_id" gorm:"index"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// TableName matches the table provisioned by earlier schema migrations.
func (FirmwareStatusEvent) TableName() string { return "firmware_status" }

// DiagnosticsStatusEvent records one DiagnosticsStatusNotification.
type DiagnosticsStatusEvent struct {
	ID        uint      `json:"-" gorm:"primaryKey"`
	StationID string    `json:"station_id" gorm:"index"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// TableName matches the table provisioned by earlier schema migrations.
func (DiagnosticsStatusEvent) TableName() string { return "diagnostics_status" }

// StatusUpdate carries a validated StatusNotification into the service layer.
type StatusUpdate struct {
	StationID       string
	ConnectorID     int
	Status          ConnectorStatus
	ErrorCode       string
	Info            string
	VendorID        string
	VendorErrorCode string
	Timestamp       time.Time
}

// BootRequest carries a validated BootNotification into the service layer.
type BootRequest struct {
	StationID       string
	Vendor          string
	Model           string
	SerialNumber    string
	FirmwareVersion string
	Timestamp       time.Time
}
