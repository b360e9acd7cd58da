package v16

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/seu-repo/ocpp-central/internal/domain"
)

// Action names an OCPP 1.6 operation.
type Action string

// Station-initiated actions.
const (
	ActionAuthorize                     Action = "Authorize"
	ActionBootNotification              Action = "BootNotification"
	ActionDataTransfer                  Action = "DataTransfer"
	ActionDiagnosticsStatusNotification Action = "DiagnosticsStatusNotification"
	ActionFirmwareStatusNotification    Action = "FirmwareStatusNotification"
	ActionHeartbeat                     Action = "Heartbeat"
	ActionMeterValues                   Action = "MeterValues"
	ActionStartTransaction              Action = "StartTransaction"
	ActionStatusNotification            Action = "StatusNotification"
	ActionStopTransaction               Action = "StopTransaction"
)

// Central-system-initiated actions.
const (
	ActionCancelReservation      Action = "CancelReservation"
	ActionChangeAvailability     Action = "ChangeAvailability"
	ActionChangeConfiguration    Action = "ChangeConfiguration"
	ActionClearCache             Action = "ClearCache"
	ActionGetConfiguration       Action = "GetConfiguration"
	ActionRemoteStartTransaction Action = "RemoteStartTransaction"
	ActionRemoteStopTransaction  Action = "RemoteStopTransaction"
	ActionReserveNow             Action = "ReserveNow"
	ActionReset                  Action = "Reset"
	ActionTriggerMessage         Action = "TriggerMessage"
	ActionUnlockConnector        Action = "UnlockConnector"
)

// knownActions is the complete OCPP 1.6 vocabulary, both directions. Frames
// naming anything else are rejected at decode with NotSupported.
var knownActions = map[string]struct{}{
	"Authorize":                     {},
	"BootNotification":              {},
	"CancelReservation":             {},
	"ChangeAvailability":            {},
	"ChangeConfiguration":           {},
	"ClearCache":                    {},
	"ClearChargingProfile":          {},
	"DataTransfer":                  {},
	"DiagnosticsStatusNotification": {},
	"FirmwareStatusNotification":    {},
	"GetCompositeSchedule":          {},
	"GetConfiguration":              {},
	"GetDiagnostics":                {},
	"GetLocalListVersion":           {},
	"Heartbeat":                     {},
	"MeterValues":                   {},
	"RemoteStartTransaction":        {},
	"RemoteStopTransaction":         {},
	"ReserveNow":                    {},
	"Reset":                         {},
	"SendLocalList":                 {},
	"SetChargingProfile":            {},
	"StartTransaction":              {},
	"StatusNotification":            {},
	"StopTransaction":               {},
	"TriggerMessage":                {},
	"UnlockConnector":               {},
	"UpdateFirmware":                {},
}

// KnownAction reports whether name is part of the OCPP 1.6 vocabulary.
func KnownAction(name string) bool {
	_, ok := knownActions[name]
	return ok
}

// timeWire is the timestamp format stations receive: UTC, millisecond
// precision, Z suffix.
const timeWire = "2006-01-02T15:04:05.000Z07:00"

// naive timestamp layouts seen from real chargers; interpreted as UTC.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// DateTime is an OCPP 1.6 timestamp. Inbound values are accepted with or
// without a zone (zoneless means UTC) and normalized to UTC; outbound values
// are always emitted in millisecond precision with a Z suffix.
type DateTime struct {
	time.Time
}

// NewDateTime normalizes t to UTC.
func NewDateTime(t time.Time) DateTime {
	return DateTime{t.UTC()}
}

func (d DateTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.UTC().Format(timeWire))
}

func (d *DateTime) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		d.Time = t.UTC()
		return nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			d.Time = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("unparseable timestamp %q", raw)
}

// validator is implemented by inbound payloads that carry constraints beyond
// JSON well-formedness.
type validator interface {
	Validate() *CallError
}

// unmarshalPayload decodes an inbound Call payload and runs its validation.
func unmarshalPayload(raw json.RawMessage, dst validator) *CallError {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(dst); err != nil {
		return NewCallError(FormationViolation, err.Error())
	}
	return dst.Validate()
}

func missingField(name string) *CallError {
	return NewCallError(FormationViolation, fmt.Sprintf("%s is required", name))
}

func constraintViolation(format string, args ...interface{}) *CallError {
	return NewCallError(PropertyConstraintViolation, fmt.Sprintf(format, args...))
}

// ciString enforces the OCPP case-insensitive string length classes.
func ciString(name, value string, max int) *CallError {
	if len(value) > max {
		return constraintViolation("%s exceeds %d characters", name, max)
	}
	return nil
}

// BootNotificationRequest announces a station after (re)connect or reboot.
type BootNotificationRequest struct {
	ChargePointVendor       string `json:"chargePointVendor"`
	ChargePointModel        string `json:"chargePointModel"`
	ChargePointSerialNumber string `json:"chargePointSerialNumber,omitempty"`
	ChargeBoxSerialNumber   string `json:"chargeBoxSerialNumber,omitempty"`
	FirmwareVersion         string `json:"firmwareVersion,omitempty"`
	Iccid                   string `json:"iccid,omitempty"`
	Imsi                    string `json:"imsi,omitempty"`
	MeterType               string `json:"meterType,omitempty"`
	MeterSerialNumber       string `json:"meterSerialNumber,omitempty"`
}

func (r *BootNotificationRequest) Validate() *CallError {
	if r.ChargePointVendor == "" {
		return missingField("chargePointVendor")
	}
	if r.ChargePointModel == "" {
		return missingField("chargePointModel")
	}
	if err := ciString("chargePointVendor", r.ChargePointVendor, 20); err != nil {
		return err
	}
	if err := ciString("chargePointModel", r.ChargePointModel, 20); err != nil {
		return err
	}
	if err := ciString("firmwareVersion", r.FirmwareVersion, 50); err != nil {
		return err
	}
	return nil
}

type BootNotificationResponse struct {
	Status      domain.RegistrationStatus `json:"status"`
	CurrentTime DateTime                  `json:"currentTime"`
	Interval    int                       `json:"interval"`
}

type HeartbeatRequest struct{}

func (r *HeartbeatRequest) Validate() *CallError { return nil }

type HeartbeatResponse struct {
	CurrentTime DateTime `json:"currentTime"`
}

// AuthorizeRequest asks whether an id tag may charge.
type AuthorizeRequest struct {
	IdTag string `json:"idTag"`
}

func (r *AuthorizeRequest) Validate() *CallError {
	if r.IdTag == "" {
		return missingField("idTag")
	}
	return ciString("idTag", r.IdTag, 20)
}

type AuthorizeResponse struct {
	IdTagInfo IdTagInfo `json:"idTagInfo"`
}

// IdTagInfo is the wire form of an authorization verdict.
type IdTagInfo struct {
	Status      domain.AuthorizationStatus `json:"status"`
	ExpiryDate  *DateTime                  `json:"expiryDate,omitempty"`
	ParentIdTag string                     `json:"parentIdTag,omitempty"`
}

// wireIdTagInfo converts the domain verdict to its wire form.
func wireIdTagInfo(info *domain.IdTagInfo) IdTagInfo {
	out := IdTagInfo{Status: info.Status, ParentIdTag: info.ParentIdTag}
	if info.ExpiryDate != nil {
		dt := NewDateTime(*info.ExpiryDate)
		out.ExpiryDate = &dt
	}
	return out
}

// chargePointErrorCodes is the StatusNotification errorCode vocabulary.
var chargePointErrorCodes = map[string]struct{}{
	"ConnectorLockFailure": {},
	"EVCommunicationError": {},
	"GroundFailure":        {},
	"HighTemperature":      {},
	"InternalError":        {},
	"LocalListConflict":    {},
	"NoError":              {},
	"OtherError":           {},
	"OverCurrentFailure":   {},
	"OverVoltage":          {},
	"PowerMeterFailure":    {},
	"PowerSwitchFailure":   {},
	"ReaderFailure":        {},
	"ResetFailure":         {},
	"UnderVoltage":         {},
	"WeakSignal":           {},
}

var connectorStatuses = map[domain.ConnectorStatus]struct{}{
	domain.StatusAvailable:     {},
	domain.StatusPreparing:     {},
	domain.StatusCharging:      {},
	domain.StatusSuspendedEVSE: {},
	domain.StatusSuspendedEV:   {},
	domain.StatusFinishing:     {},
	domain.StatusReserved:      {},
	domain.StatusUnavailable:   {},
	domain.StatusFaulted:       {},
}

// StatusNotificationRequest reports a connector state change. Connector id 0
// addresses the station itself.
type StatusNotificationRequest struct {
	ConnectorId     *int      `json:"connectorId"`
	ErrorCode       string    `json:"errorCode"`
	Status          string    `json:"status"`
	Info            string    `json:"info,omitempty"`
	Timestamp       *DateTime `json:"timestamp,omitempty"`
	VendorId        string    `json:"vendorId,omitempty"`
	VendorErrorCode string    `json:"vendorErrorCode,omitempty"`
}

func (r *StatusNotificationRequest) Validate() *CallError {
	if r.ConnectorId == nil {
		return missingField("connectorId")
	}
	if *r.ConnectorId < 0 {
		return constraintViolation("connectorId must not be negative")
	}
	if r.Status == "" {
		return missingField("status")
	}
	if _, ok := connectorStatuses[domain.ConnectorStatus(r.Status)]; !ok {
		return constraintViolation("unknown status %q", r.Status)
	}
	if r.ErrorCode == "" {
		return missingField("errorCode")
	}
	if _, ok := chargePointErrorCodes[r.ErrorCode]; !ok {
		return constraintViolation("unknown errorCode %q", r.ErrorCode)
	}
	return nil
}

type StatusNotificationResponse struct{}

// StartTransactionRequest opens a charging transaction.
type StartTransactionRequest struct {
	ConnectorId   *int      `json:"connectorId"`
	IdTag         string    `json:"idTag"`
	MeterStart    *int64    `json:"meterStart"`
	Timestamp     *DateTime `json:"timestamp"`
	ReservationId *int      `json:"reservationId,omitempty"`
}

func (r *StartTransactionRequest) Validate() *CallError {
	if r.ConnectorId == nil {
		return missingField("connectorId")
	}
	if *r.ConnectorId < 1 {
		return constraintViolation("connectorId must be positive")
	}
	if r.IdTag == "" {
		return missingField("idTag")
	}
	if err := ciString("idTag", r.IdTag, 20); err != nil {
		return err
	}
	if r.MeterStart == nil {
		return missingField("meterStart")
	}
	if *r.MeterStart < 0 {
		return constraintViolation("meterStart must not be negative")
	}
	if r.Timestamp == nil {
		return missingField("timestamp")
	}
	return nil
}

type StartTransactionResponse struct {
	IdTagInfo     IdTagInfo `json:"idTagInfo"`
	TransactionId int       `json:"transactionId"`
}

var stopReasons = map[string]struct{}{
	"DeAuthorized":   {},
	"EmergencyStop":  {},
	"EVDisconnected": {},
	"HardReset":      {},
	"Local":          {},
	"Other":          {},
	"PowerLoss":      {},
	"Reboot":         {},
	"Remote":         {},
	"SoftReset":      {},
	"UnlockCommand":  {},
}

// StopTransactionRequest closes a charging transaction.
type StopTransactionRequest struct {
	TransactionId   *int         `json:"transactionId"`
	IdTag           string       `json:"idTag,omitempty"`
	MeterStop       *int64       `json:"meterStop"`
	Timestamp       *DateTime    `json:"timestamp"`
	Reason          string       `json:"reason,omitempty"`
	TransactionData []MeterValue `json:"transactionData,omitempty"`
}

func (r *StopTransactionRequest) Validate() *CallError {
	if r.TransactionId == nil {
		return missingField("transactionId")
	}
	if r.MeterStop == nil {
		return missingField("meterStop")
	}
	if *r.MeterStop < 0 {
		return constraintViolation("meterStop must not be negative")
	}
	if r.Timestamp == nil {
		return missingField("timestamp")
	}
	if r.Reason != "" {
		if _, ok := stopReasons[r.Reason]; !ok {
			return constraintViolation("unknown reason %q", r.Reason)
		}
	}
	for i := range r.TransactionData {
		if err := r.TransactionData[i].validate(); err != nil {
			return err
		}
	}
	return nil
}

type StopTransactionResponse struct {
	IdTagInfo *IdTagInfo `json:"idTagInfo,omitempty"`
}

var measurands = map[string]struct{}{
	"Current.Export":                  {},
	"Current.Import":                  {},
	"Current.Offered":                 {},
	"Energy.Active.Export.Register":   {},
	"Energy.Active.Import.Register":   {},
	"Energy.Reactive.Export.Register": {},
	"Energy.Reactive.Import.Register": {},
	"Energy.Active.Export.Interval":   {},
	"Energy.Active.Import.Interval":   {},
	"Energy.Reactive.Export.Interval": {},
	"Energy.Reactive.Import.Interval": {},
	"Frequency":                       {},
	"Power.Active.Export":             {},
	"Power.Active.Import":             {},
	"Power.Factor":                    {},
	"Power.Offered":                   {},
	"Power.Reactive.Export":           {},
	"Power.Reactive.Import":           {},
	"RPM":                             {},
	"SoC":                             {},
	"Temperature":                     {},
	"Voltage":                         {},
}

// SampledValue is one reading inside a MeterValue. Value stays a string on
// the wire and in storage; no precision is lost to float parsing.
type SampledValue struct {
	Value     string `json:"value"`
	Context   string `json:"context,omitempty"`
	Format    string `json:"format,omitempty"`
	Measurand string `json:"measurand,omitempty"`
	Phase     string `json:"phase,omitempty"`
	Location  string `json:"location,omitempty"`
	Unit      string `json:"unit,omitempty"`
}

// MeterValue groups the readings taken at one instant.
type MeterValue struct {
	Timestamp    *DateTime      `json:"timestamp"`
	SampledValue []SampledValue `json:"sampledValue"`
}

func (m *MeterValue) validate() *CallError {
	if m.Timestamp == nil {
		return missingField("meterValue.timestamp")
	}
	if len(m.SampledValue) == 0 {
		return missingField("meterValue.sampledValue")
	}
	for _, sv := range m.SampledValue {
		if sv.Value == "" {
			return missingField("sampledValue.value")
		}
		if sv.Measurand != "" {
			if _, ok := measurands[sv.Measurand]; !ok {
				return constraintViolation("unknown measurand %q", sv.Measurand)
			}
		}
	}
	return nil
}

// MeterValuesRequest carries periodic meter readings.
type MeterValuesRequest struct {
	ConnectorId   *int         `json:"connectorId"`
	TransactionId *int         `json:"transactionId,omitempty"`
	MeterValue    []MeterValue `json:"meterValue"`
}

func (r *MeterValuesRequest) Validate() *CallError {
	if r.ConnectorId == nil {
		return missingField("connectorId")
	}
	if *r.ConnectorId < 0 {
		return constraintViolation("connectorId must not be negative")
	}
	if len(r.MeterValue) == 0 {
		return missingField("meterValue")
	}
	for i := range r.MeterValue {
		if err := r.MeterValue[i].validate(); err != nil {
			return err
		}
	}
	return nil
}

type MeterValuesResponse struct{}

// DataTransferRequest is the OCPP escape hatch for vendor extensions.
type DataTransferRequest struct {
	VendorId  string `json:"vendorId"`
	MessageId string `json:"messageId,omitempty"`
	Data      string `json:"data,omitempty"`
}

func (r *DataTransferRequest) Validate() *CallError {
	if r.VendorId == "" {
		return missingField("vendorId")
	}
	if err := ciString("vendorId", r.VendorId, 255); err != nil {
		return err
	}
	return ciString("messageId", r.MessageId, 50)
}

// DataTransfer verdicts.
const (
	DataTransferAccepted        = "Accepted"
	DataTransferRejected        = "Rejected"
	DataTransferUnknownVendorId = "UnknownVendorId"
)

type DataTransferResponse struct {
	Status string `json:"status"`
	Data   string `json:"data,omitempty"`
}

var firmwareStatuses = map[string]struct{}{
	"Downloaded":         {},
	"DownloadFailed":     {},
	"Downloading":        {},
	"Idle":               {},
	"InstallationFailed": {},
	"Installing":         {},
	"Installed":          {},
}

type FirmwareStatusNotificationRequest struct {
	Status string `json:"status"`
}

func (r *FirmwareStatusNotificationRequest) Validate() *CallError {
	if r.Status == "" {
		return missingField("status")
	}
	if _, ok := firmwareStatuses[r.Status]; !ok {
		return constraintViolation("unknown status %q", r.Status)
	}
	return nil
}

type FirmwareStatusNotificationResponse struct{}

var diagnosticsStatuses = map[string]struct{}{
	"Idle":         {},
	"Uploaded":     {},
	"UploadFailed": {},
	"Uploading":    {},
}

type DiagnosticsStatusNotificationRequest struct {
	Status string `json:"status"`
}

func (r *DiagnosticsStatusNotificationRequest) Validate() *CallError {
	if r.Status == "" {
		return missingField("status")
	}
	if _, ok := diagnosticsStatuses[r.Status]; !ok {
		return constraintViolation("unknown status %q", r.Status)
	}
	return nil
}

type DiagnosticsStatusNotificationResponse struct{}

// Shared Accepted/Rejected verdict used by several command responses.
const (
	CommandAccepted = "Accepted"
	CommandRejected = "Rejected"
)

// RemoteStartTransactionRequest asks a station to start charging as if a tag
// had been presented locally. Charging profiles are not supported.
type RemoteStartTransactionRequest struct {
	ConnectorId *int   `json:"connectorId,omitempty"`
	IdTag       string `json:"idTag"`
}

type RemoteStartTransactionResponse struct {
	Status string `json:"status"`
}

type RemoteStopTransactionRequest struct {
	TransactionId int `json:"transactionId"`
}

type RemoteStopTransactionResponse struct {
	Status string `json:"status"`
}

// Reset kinds.
const (
	ResetHard = "Hard"
	ResetSoft = "Soft"
)

type ResetRequest struct {
	Type string `json:"type"`
}

type ResetResponse struct {
	Status string `json:"status"`
}

type UnlockConnectorRequest struct {
	ConnectorId int `json:"connectorId"`
}

type UnlockConnectorResponse struct {
	Status string `json:"status"`
}

type GetConfigurationRequest struct {
	Key []string `json:"key,omitempty"`
}

// ConfigurationKey is one entry of a GetConfiguration response.
type ConfigurationKey struct {
	Key      string  `json:"key"`
	Readonly bool    `json:"readonly"`
	Value    *string `json:"value,omitempty"`
}

type GetConfigurationResponse struct {
	ConfigurationKey []ConfigurationKey `json:"configurationKey,omitempty"`
	UnknownKey       []string           `json:"unknownKey,omitempty"`
}

type ChangeConfigurationRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type ChangeConfigurationResponse struct {
	Status string `json:"status"`
}

type ReserveNowRequest struct {
	ConnectorId   int      `json:"connectorId"`
	ExpiryDate    DateTime `json:"expiryDate"`
	IdTag         string   `json:"idTag"`
	ParentIdTag   string   `json:"parentIdTag,omitempty"`
	ReservationId int      `json:"reservationId"`
}

type ReserveNowResponse struct {
	Status string `json:"status"`
}

type CancelReservationRequest struct {
	ReservationId int `json:"reservationId"`
}

type CancelReservationResponse struct {
	Status string `json:"status"`
}

type TriggerMessageRequest struct {
	RequestedMessage string `json:"requestedMessage"`
	ConnectorId      *int   `json:"connectorId,omitempty"`
}

type TriggerMessageResponse struct {
	Status string `json:"status"`
}
