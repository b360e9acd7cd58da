package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// RegistrationStatus is the central system's verdict on a BootNotification.
type RegistrationStatus string

const (
	RegistrationAccepted RegistrationStatus = "Accepted"
	RegistrationPending  RegistrationStatus = "Pending"
	RegistrationRejected RegistrationStatus = "Rejected"
)

// ConnectorStatus is the OCPP 1.6 charge point status reported via
// StatusNotification. Connector id 0 refers to the station as a whole.
type ConnectorStatus string

const (
	StatusAvailable     ConnectorStatus = "Available"
	StatusPreparing     ConnectorStatus = "Preparing"
	StatusCharging      ConnectorStatus = "Charging"
	StatusSuspendedEVSE ConnectorStatus = "SuspendedEVSE"
	StatusSuspendedEV   ConnectorStatus = "SuspendedEV"
	StatusFinishing     ConnectorStatus = "Finishing"
	StatusReserved      ConnectorStatus = "Reserved"
	StatusUnavailable   ConnectorStatus = "Unavailable"
	StatusFaulted       ConnectorStatus = "Faulted"
)

// ConfigMap is the station's reported configuration, persisted as a JSON
// column.
type ConfigMap map[string]string

func (m ConfigMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (m *ConfigMap) Scan(value interface{}) error {
	if value == nil {
		*m = ConfigMap{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("config: unsupported column type %T", value)
	}
	if len(data) == 0 {
		*m = ConfigMap{}
		return nil
	}
	return json.Unmarshal(data, m)
}

// Station is a charge point known to the central system. Rows are created on
// first contact and never destroyed; offline stations keep their last known
// state with liveness derived from heartbeat recency.
type Station struct {
	ID                 string             `json:"id" gorm:"primaryKey"`
	Vendor             string             `json:"vendor"`
	Model              string             `json:"model"`
	SerialNumber       string             `json:"serial_number"`
	FirmwareVersion    string             `json:"firmware_version" gorm:"column:firmware"`
	RegistrationStatus RegistrationStatus `json:"registration_status"`
	Status             ConnectorStatus    `json:"status"`
	LastBootAt         *time.Time         `json:"last_boot_at,omitempty"`
	LastHeartbeatAt    *time.Time         `json:"last_heartbeat_at,omitempty"`
	Config             ConfigMap          `json:"config" gorm:"column:config;type:jsonb"`
	Connectors         []Connector        `json:"connectors,omitempty" gorm:"foreignKey:StationID"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// ConfigEntry is one configuration key as reported by a station.
type ConfigEntry struct {
	Key      string `json:"key"`
	Readonly bool   `json:"readonly"`
	Value    string `json:"value,omitempty"`
}

// StationConfiguration is a station's answer to GetConfiguration.
type StationConfiguration struct {
	Keys        []ConfigEntry `json:"configuration_keys"`
	UnknownKeys []string      `json:"unknown_keys,omitempty"`
}

// Connector is one plug of a station, keyed by (station_id, connector_id).
type Connector struct {
	ID            uint            `json:"-" gorm:"primaryKey"`
	StationID     string          `json:"station_id" gorm:"index:idx_station_connector,unique"`
	ConnectorID   int             `json:"connector_id" gorm:"index:idx_station_connector,unique"`
	Status        ConnectorStatus `json:"status"`
	LastErrorCode string          `json:"last_error_code"`
	LastStatusAt  time.Time       `json:"last_status_at"`
}
