package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// SimulatorConfig holds the simulator configuration
type SimulatorConfig struct {
	ServerURL       string
	ChargePointID   string
	Vendor          string
	Model           string
	SerialNumber    string
	FirmwareVersion string
	IdTag           string
	ConnectorCount  int
}

// ConnectorState represents a connector's state
type ConnectorState struct {
	ID            int
	Status        string // Available, Preparing, Charging, Finishing, Reserved, Unavailable, Faulted
	MeterWh       int
	ReservationID int
}

// Simulator simulates an OCPP 1.6-J charge point
type Simulator struct {
	config     *SimulatorConfig
	conn       *websocket.Conn
	log        *zap.Logger
	connectors []ConnectorState

	// State
	currentTxID       int
	chargingConnector int
	isCharging        bool
	heartbeatInterval int
	keys              map[string]string // local configuration keys

	// Message handling
	messageID   int
	pendingMsgs map[string]chan []byte
	mu          sync.RWMutex
	writeMu     sync.Mutex

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewSimulator creates a new charge point simulator
func NewSimulator(config *SimulatorConfig, log *zap.Logger) *Simulator {
	connectors := make([]ConnectorState, config.ConnectorCount)
	for i := 0; i < config.ConnectorCount; i++ {
		connectors[i] = ConnectorState{
			ID:     i + 1,
			Status: "Available",
		}
	}

	return &Simulator{
		config:      config,
		log:         log,
		connectors:  connectors,
		pendingMsgs: make(map[string]chan []byte),
		stopChan:    make(chan struct{}),
		keys: map[string]string{
			"HeartbeatInterval":         "30",
			"MeterValueSampleInterval":  "5",
			"NumberOfConnectors":        strconv.Itoa(config.ConnectorCount),
			"AuthorizeRemoteTxRequests": "false",
		},
		heartbeatInterval: 30,
	}
}

// Connect dials the central system and runs the boot handshake
func (s *Simulator) Connect() error {
	url := fmt.Sprintf("%s/%s", strings.TrimRight(s.config.ServerURL, "/"), s.config.ChargePointID)

	dialer := websocket.Dialer{
		Subprotocols:     []string{"ocpp1.6"},
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	s.conn = conn
	s.log.Info("Connected to central system",
		zap.String("url", url),
		zap.String("chargePointID", s.config.ChargePointID),
		zap.String("subprotocol", conn.Subprotocol()),
	)

	s.wg.Add(1)
	go s.readMessages()

	resp, err := s.sendBootNotification()
	if err != nil {
		return fmt.Errorf("boot notification failed: %w", err)
	}
	s.log.Info("BootNotification response", zap.Any("response", resp))
	if interval, ok := resp["interval"].(float64); ok && interval > 0 {
		s.heartbeatInterval = int(interval)
	}

	for _, c := range s.connectors {
		s.sendStatusNotification(c.ID, c.Status, "NoError")
	}

	s.wg.Add(1)
	go s.heartbeatLoop()

	return nil
}

// Stop stops the simulator
func (s *Simulator) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		if s.conn != nil {
			s.writeMu.Lock()
			s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "simulator stopping"))
			s.writeMu.Unlock()
			s.conn.Close()
		}
	})
	s.wg.Wait()
}

// readMessages reads and processes incoming messages
func (s *Simulator) readMessages() {
	defer s.wg.Done()

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.stopChan:
			default:
				s.log.Error("Read error", zap.Error(err))
			}
			return
		}
		s.handleMessage(message)
	}
}

// handleMessage processes an incoming OCPP frame
func (s *Simulator) handleMessage(data []byte) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		s.log.Error("Invalid message", zap.Error(err))
		return
	}

	if len(raw) < 3 {
		return
	}

	var msgType int
	json.Unmarshal(raw[0], &msgType)

	var msgID string
	json.Unmarshal(raw[1], &msgID)

	switch msgType {
	case 2: // Call - request from central system
		var action string
		json.Unmarshal(raw[2], &action)
		var payload json.RawMessage
		if len(raw) > 3 {
			payload = raw[3]
		}
		s.handleServerRequest(msgID, action, payload)

	case 3: // CallResult - response to our request
		s.mu.Lock()
		if ch, ok := s.pendingMsgs[msgID]; ok {
			ch <- raw[2]
			delete(s.pendingMsgs, msgID)
		}
		s.mu.Unlock()

	case 4: // CallError
		var code, desc string
		json.Unmarshal(raw[2], &code)
		if len(raw) > 3 {
			json.Unmarshal(raw[3], &desc)
		}
		s.log.Warn("Call rejected", zap.String("code", code), zap.String("description", desc))
		s.mu.Lock()
		if ch, ok := s.pendingMsgs[msgID]; ok {
			close(ch)
			delete(s.pendingMsgs, msgID)
		}
		s.mu.Unlock()
	}
}

// handleServerRequest answers requests originated by the central system
func (s *Simulator) handleServerRequest(msgID, action string, payload json.RawMessage) {
	s.log.Info("Received server request", zap.String("action", action))

	var response interface{}

	switch action {
	case "RemoteStartTransaction":
		response = s.handleRemoteStart(payload)
	case "RemoteStopTransaction":
		response = s.handleRemoteStop(payload)
	case "Reset":
		response = s.handleReset(payload)
	case "GetConfiguration":
		response = s.handleGetConfiguration(payload)
	case "ChangeConfiguration":
		response = s.handleChangeConfiguration(payload)
	case "ReserveNow":
		response = s.handleReserveNow(payload)
	case "CancelReservation":
		response = s.handleCancelReservation(payload)
	case "TriggerMessage":
		response = s.handleTriggerMessage(payload)
	case "UnlockConnector":
		response = s.handleUnlockConnector(payload)
	case "DataTransfer":
		response = s.handleDataTransfer(payload)
	default:
		s.sendCallError(msgID, "NotImplemented", fmt.Sprintf("Action %s not implemented", action))
		return
	}

	s.sendCallResult(msgID, response)
}

// --- Request Handlers ---

func (s *Simulator) handleRemoteStart(payload json.RawMessage) map[string]interface{} {
	var req struct {
		IdTag       string `json:"idTag"`
		ConnectorId *int   `json:"connectorId"`
	}
	json.Unmarshal(payload, &req)

	connectorID := 1
	if req.ConnectorId != nil {
		connectorID = *req.ConnectorId
	}

	if s.isCharging {
		return map[string]interface{}{"status": "Rejected"}
	}

	s.log.Info("Remote start accepted",
		zap.String("idTag", req.IdTag),
		zap.Int("connectorID", connectorID),
	)

	go func() {
		time.Sleep(100 * time.Millisecond)
		s.startTransaction(connectorID, req.IdTag)
	}()

	return map[string]interface{}{"status": "Accepted"}
}

func (s *Simulator) handleRemoteStop(payload json.RawMessage) map[string]interface{} {
	var req struct {
		TransactionId int `json:"transactionId"`
	}
	json.Unmarshal(payload, &req)

	if !s.isCharging || req.TransactionId != s.currentTxID {
		return map[string]interface{}{"status": "Rejected"}
	}

	s.log.Info("Remote stop accepted", zap.Int("transactionID", req.TransactionId))

	go func() {
		time.Sleep(100 * time.Millisecond)
		s.stopTransaction("Remote")
	}()

	return map[string]interface{}{"status": "Accepted"}
}

func (s *Simulator) handleReset(payload json.RawMessage) map[string]interface{} {
	var req struct {
		Type string `json:"type"`
	}
	json.Unmarshal(payload, &req)

	s.log.Info("Reset requested", zap.String("type", req.Type))

	go func() {
		reason := "SoftReset"
		if req.Type == "Hard" {
			reason = "HardReset"
		}
		if s.isCharging {
			s.stopTransaction(reason)
		}
		time.Sleep(500 * time.Millisecond)

		for i := range s.connectors {
			s.connectors[i].Status = "Available"
		}
		s.sendBootNotification()
		for _, c := range s.connectors {
			s.sendStatusNotification(c.ID, c.Status, "NoError")
		}
	}()

	return map[string]interface{}{"status": "Accepted"}
}

func (s *Simulator) handleGetConfiguration(payload json.RawMessage) map[string]interface{} {
	var req struct {
		Key []string `json:"key"`
	}
	json.Unmarshal(payload, &req)

	var keys []string
	if len(req.Key) == 0 {
		for k := range s.keys {
			keys = append(keys, k)
		}
	} else {
		keys = req.Key
	}

	var known []map[string]interface{}
	var unknown []string
	for _, k := range keys {
		if v, ok := s.keys[k]; ok {
			known = append(known, map[string]interface{}{
				"key":      k,
				"readonly": k == "NumberOfConnectors",
				"value":    v,
			})
		} else {
			unknown = append(unknown, k)
		}
	}

	resp := map[string]interface{}{"configurationKey": known}
	if len(unknown) > 0 {
		resp["unknownKey"] = unknown
	}
	return resp
}

func (s *Simulator) handleChangeConfiguration(payload json.RawMessage) map[string]interface{} {
	var req struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	json.Unmarshal(payload, &req)

	if req.Key == "NumberOfConnectors" {
		return map[string]interface{}{"status": "Rejected"}
	}

	s.keys[req.Key] = req.Value
	if req.Key == "HeartbeatInterval" {
		if v, err := strconv.Atoi(req.Value); err == nil && v > 0 {
			s.heartbeatInterval = v
		}
	}

	s.log.Info("Configuration changed", zap.String("key", req.Key), zap.String("value", req.Value))
	return map[string]interface{}{"status": "Accepted"}
}

func (s *Simulator) handleReserveNow(payload json.RawMessage) map[string]interface{} {
	var req struct {
		ConnectorId   int    `json:"connectorId"`
		IdTag         string `json:"idTag"`
		ReservationId int    `json:"reservationId"`
	}
	json.Unmarshal(payload, &req)

	if req.ConnectorId < 1 || req.ConnectorId > len(s.connectors) {
		return map[string]interface{}{"status": "Unavailable"}
	}

	c := &s.connectors[req.ConnectorId-1]
	switch c.Status {
	case "Charging", "Preparing", "Finishing":
		return map[string]interface{}{"status": "Occupied"}
	case "Faulted":
		return map[string]interface{}{"status": "Faulted"}
	case "Unavailable":
		return map[string]interface{}{"status": "Unavailable"}
	}

	c.Status = "Reserved"
	c.ReservationID = req.ReservationId
	s.log.Info("Connector reserved",
		zap.Int("connectorID", req.ConnectorId),
		zap.Int("reservationID", req.ReservationId),
		zap.String("idTag", req.IdTag),
	)

	go s.sendStatusNotification(req.ConnectorId, "Reserved", "NoError")

	return map[string]interface{}{"status": "Accepted"}
}

func (s *Simulator) handleCancelReservation(payload json.RawMessage) map[string]interface{} {
	var req struct {
		ReservationId int `json:"reservationId"`
	}
	json.Unmarshal(payload, &req)

	for i := range s.connectors {
		if s.connectors[i].ReservationID == req.ReservationId && s.connectors[i].Status == "Reserved" {
			s.connectors[i].Status = "Available"
			s.connectors[i].ReservationID = 0
			go s.sendStatusNotification(s.connectors[i].ID, "Available", "NoError")
			return map[string]interface{}{"status": "Accepted"}
		}
	}

	return map[string]interface{}{"status": "Rejected"}
}

func (s *Simulator) handleTriggerMessage(payload json.RawMessage) map[string]interface{} {
	var req struct {
		RequestedMessage string `json:"requestedMessage"`
		ConnectorId      *int   `json:"connectorId"`
	}
	json.Unmarshal(payload, &req)

	s.log.Info("Trigger message", zap.String("message", req.RequestedMessage))

	switch req.RequestedMessage {
	case "BootNotification", "Heartbeat", "StatusNotification", "MeterValues",
		"FirmwareStatusNotification", "DiagnosticsStatusNotification":
	default:
		return map[string]interface{}{"status": "NotImplemented"}
	}

	go func() {
		time.Sleep(100 * time.Millisecond)
		switch req.RequestedMessage {
		case "BootNotification":
			s.sendBootNotification()
		case "Heartbeat":
			s.sendHeartbeat()
		case "StatusNotification":
			if req.ConnectorId != nil && *req.ConnectorId >= 1 && *req.ConnectorId <= len(s.connectors) {
				c := s.connectors[*req.ConnectorId-1]
				s.sendStatusNotification(c.ID, c.Status, "NoError")
				return
			}
			for _, c := range s.connectors {
				s.sendStatusNotification(c.ID, c.Status, "NoError")
			}
		case "MeterValues":
			if s.isCharging {
				s.sendMeterValues(s.chargingConnector, s.connectors[s.chargingConnector-1].MeterWh)
			}
		case "FirmwareStatusNotification":
			s.sendFirmwareStatus("Idle")
		case "DiagnosticsStatusNotification":
			s.sendDiagnosticsStatus("Idle")
		}
	}()

	return map[string]interface{}{"status": "Accepted"}
}

func (s *Simulator) handleUnlockConnector(payload json.RawMessage) map[string]interface{} {
	var req struct {
		ConnectorId int `json:"connectorId"`
	}
	json.Unmarshal(payload, &req)

	if req.ConnectorId < 1 || req.ConnectorId > len(s.connectors) {
		return map[string]interface{}{"status": "NotSupported"}
	}

	s.log.Info("Unlock connector", zap.Int("connectorID", req.ConnectorId))

	if s.isCharging && s.chargingConnector == req.ConnectorId {
		go func() {
			time.Sleep(100 * time.Millisecond)
			s.stopTransaction("UnlockCommand")
		}()
	}

	return map[string]interface{}{"status": "Unlocked"}
}

func (s *Simulator) handleDataTransfer(payload json.RawMessage) map[string]interface{} {
	var req struct {
		VendorId  string `json:"vendorId"`
		MessageId string `json:"messageId"`
		Data      string `json:"data"`
	}
	json.Unmarshal(payload, &req)

	s.log.Info("Data transfer from central system",
		zap.String("vendorId", req.VendorId),
		zap.String("messageId", req.MessageId),
	)

	return map[string]interface{}{"status": "Accepted", "data": req.Data}
}

// --- Outgoing Messages ---

func (s *Simulator) sendCall(action string, payload interface{}) (map[string]interface{}, error) {
	s.mu.Lock()
	s.messageID++
	msgID := strconv.Itoa(s.messageID)
	responseChan := make(chan []byte, 1)
	s.pendingMsgs[msgID] = responseChan
	s.mu.Unlock()

	msg := []interface{}{2, msgID, action, payload}
	data, _ := json.Marshal(msg)

	if err := s.write(data); err != nil {
		s.mu.Lock()
		delete(s.pendingMsgs, msgID)
		s.mu.Unlock()
		return nil, err
	}

	select {
	case respData, ok := <-responseChan:
		if !ok {
			return nil, fmt.Errorf("%s rejected by central system", action)
		}
		var result map[string]interface{}
		json.Unmarshal(respData, &result)
		return result, nil
	case <-time.After(30 * time.Second):
		s.mu.Lock()
		delete(s.pendingMsgs, msgID)
		s.mu.Unlock()
		return nil, fmt.Errorf("timeout waiting for %s response", action)
	case <-s.stopChan:
		return nil, fmt.Errorf("simulator stopped")
	}
}

func (s *Simulator) sendCallResult(msgID string, payload interface{}) {
	msg := []interface{}{3, msgID, payload}
	data, _ := json.Marshal(msg)
	s.write(data)
}

func (s *Simulator) sendCallError(msgID, code, desc string) {
	msg := []interface{}{4, msgID, code, desc, map[string]interface{}{}}
	data, _ := json.Marshal(msg)
	s.write(data)
}

func (s *Simulator) write(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Simulator) timestamp() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
}

func (s *Simulator) sendBootNotification() (map[string]interface{}, error) {
	payload := map[string]interface{}{
		"chargePointVendor":       s.config.Vendor,
		"chargePointModel":        s.config.Model,
		"chargePointSerialNumber": s.config.SerialNumber,
		"firmwareVersion":         s.config.FirmwareVersion,
	}
	return s.sendCall("BootNotification", payload)
}

func (s *Simulator) sendHeartbeat() (map[string]interface{}, error) {
	return s.sendCall("Heartbeat", map[string]interface{}{})
}

func (s *Simulator) sendAuthorize(tag string) (string, error) {
	resp, err := s.sendCall("Authorize", map[string]interface{}{"idTag": tag})
	if err != nil {
		return "", err
	}
	info, _ := resp["idTagInfo"].(map[string]interface{})
	status, _ := info["status"].(string)
	return status, nil
}

func (s *Simulator) sendStatusNotification(connectorID int, status, errorCode string) {
	payload := map[string]interface{}{
		"connectorId": connectorID,
		"status":      status,
		"errorCode":   errorCode,
		"timestamp":   s.timestamp(),
	}
	if _, err := s.sendCall("StatusNotification", payload); err != nil {
		s.log.Warn("StatusNotification failed", zap.Error(err))
	}
}

func (s *Simulator) startTransaction(connectorID int, tag string) error {
	if connectorID < 1 || connectorID > len(s.connectors) {
		return fmt.Errorf("no such connector %d", connectorID)
	}

	s.sendStatusNotification(connectorID, "Preparing", "NoError")

	resp, err := s.sendCall("StartTransaction", map[string]interface{}{
		"connectorId": connectorID,
		"idTag":       tag,
		"meterStart":  s.connectors[connectorID-1].MeterWh,
		"timestamp":   s.timestamp(),
	})
	if err != nil {
		return err
	}

	if id, ok := resp["transactionId"].(float64); ok {
		s.currentTxID = int(id)
	}
	info, _ := resp["idTagInfo"].(map[string]interface{})
	status, _ := info["status"].(string)
	if status != "Accepted" {
		s.log.Warn("StartTransaction not authorized", zap.String("status", status))
	}

	s.isCharging = true
	s.chargingConnector = connectorID
	s.connectors[connectorID-1].Status = "Charging"
	s.sendStatusNotification(connectorID, "Charging", "NoError")

	s.log.Info("Transaction started",
		zap.Int("transactionID", s.currentTxID),
		zap.Int("connectorID", connectorID),
	)
	return nil
}

func (s *Simulator) stopTransaction(reason string) error {
	if !s.isCharging {
		return fmt.Errorf("not charging")
	}

	connectorID := s.chargingConnector
	meterStop := s.connectors[connectorID-1].MeterWh

	payload := map[string]interface{}{
		"transactionId": s.currentTxID,
		"meterStop":     meterStop,
		"timestamp":     s.timestamp(),
		"idTag":         s.config.IdTag,
	}
	if reason != "" {
		payload["reason"] = reason
	}

	if _, err := s.sendCall("StopTransaction", payload); err != nil {
		return err
	}

	s.isCharging = false
	s.chargingConnector = 0
	s.connectors[connectorID-1].Status = "Available"
	s.sendStatusNotification(connectorID, "Finishing", "NoError")
	s.sendStatusNotification(connectorID, "Available", "NoError")

	s.log.Info("Transaction stopped",
		zap.Int("transactionID", s.currentTxID),
		zap.Int("meterStop", meterStop),
		zap.String("reason", reason),
	)
	return nil
}

func (s *Simulator) sendMeterValues(connectorID, valueWh int) {
	payload := map[string]interface{}{
		"connectorId": connectorID,
		"meterValue": []map[string]interface{}{
			{
				"timestamp": s.timestamp(),
				"sampledValue": []map[string]interface{}{
					{
						"value":     strconv.Itoa(valueWh),
						"measurand": "Energy.Active.Import.Register",
						"unit":      "Wh",
					},
				},
			},
		},
	}
	if s.isCharging {
		payload["transactionId"] = s.currentTxID
	}
	if _, err := s.sendCall("MeterValues", payload); err != nil {
		s.log.Warn("MeterValues failed", zap.Error(err))
	}
}

func (s *Simulator) sendFirmwareStatus(status string) {
	s.sendCall("FirmwareStatusNotification", map[string]interface{}{"status": status})
}

func (s *Simulator) sendDiagnosticsStatus(status string) {
	s.sendCall("DiagnosticsStatusNotification", map[string]interface{}{"status": status})
}

func (s *Simulator) sendDataTransfer(vendorID, messageID, data string) {
	payload := map[string]interface{}{"vendorId": vendorID}
	if messageID != "" {
		payload["messageId"] = messageID
	}
	if data != "" {
		payload["data"] = data
	}
	resp, err := s.sendCall("DataTransfer", payload)
	if err != nil {
		s.log.Warn("DataTransfer failed", zap.Error(err))
		return
	}
	s.log.Info("DataTransfer response", zap.Any("response", resp))
}

func (s *Simulator) heartbeatLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(time.Duration(s.heartbeatInterval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			if _, err := s.sendHeartbeat(); err != nil {
				s.log.Warn("Heartbeat failed", zap.Error(err))
			}
		}
	}
}

// RunScenario walks one full charge session: authorize, start, a ramp of
// meter values, stop.
func (s *Simulator) RunScenario(samples int, period time.Duration) error {
	status, err := s.sendAuthorize(s.config.IdTag)
	if err != nil {
		return fmt.Errorf("authorize: %w", err)
	}
	s.log.Info("Authorize response", zap.String("status", status))
	if status != "Accepted" {
		return fmt.Errorf("id tag %s not accepted: %s", s.config.IdTag, status)
	}

	if err := s.startTransaction(1, s.config.IdTag); err != nil {
		return fmt.Errorf("start transaction: %w", err)
	}

	for i := 1; i <= samples; i++ {
		select {
		case <-s.stopChan:
			return fmt.Errorf("interrupted")
		case <-time.After(period):
		}
		s.connectors[0].MeterWh = i * 1000
		s.sendMeterValues(1, s.connectors[0].MeterWh)
		s.log.Info("Meter value sent", zap.Int("wh", s.connectors[0].MeterWh))
	}

	if err := s.stopTransaction("Local"); err != nil {
		return fmt.Errorf("stop transaction: %w", err)
	}

	s.log.Info("Scenario complete")
	return nil
}

// RunInteractive runs the simulator in interactive mode
func (s *Simulator) RunInteractive() {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		parts := strings.Fields(line)

		if len(parts) == 0 {
			fmt.Print("> ")
			continue
		}

		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "auth":
			tag := s.config.IdTag
			if len(args) > 0 {
				tag = args[0]
			}
			status, err := s.sendAuthorize(tag)
			if err != nil {
				fmt.Printf("Authorize failed: %v\n", err)
			} else {
				fmt.Printf("Authorize %s: %s\n", tag, status)
			}

		case "start":
			connID := 1
			if len(args) > 0 {
				connID, _ = strconv.Atoi(args[0])
			}
			if err := s.startTransaction(connID, s.config.IdTag); err != nil {
				fmt.Printf("Start failed: %v\n", err)
			} else {
				fmt.Printf("Started charging on connector %d, TX: %d\n", connID, s.currentTxID)
			}

		case "stop":
			if err := s.stopTransaction("Local"); err != nil {
				fmt.Printf("Stop failed: %v\n", err)
			} else {
				fmt.Println("Stopped charging")
			}

		case "status":
			if len(args) < 1 {
				fmt.Println("Usage: status <connector> [status]")
			} else {
				connID, _ := strconv.Atoi(args[0])
				status := "Available"
				if len(args) > 1 {
					status = args[1]
				}
				s.sendStatusNotification(connID, status, "NoError")
				fmt.Printf("Sent status %s for connector %d\n", status, connID)
			}

		case "meter":
			if len(args) < 1 {
				fmt.Println("Usage: meter <valueWh>")
			} else {
				value, _ := strconv.Atoi(args[0])
				connID := 1
				if s.isCharging {
					connID = s.chargingConnector
				}
				s.connectors[connID-1].MeterWh = value
				s.sendMeterValues(connID, value)
				fmt.Printf("Sent meter value: %d Wh\n", value)
			}

		case "heartbeat":
			if resp, err := s.sendHeartbeat(); err != nil {
				fmt.Printf("Heartbeat failed: %v\n", err)
			} else {
				fmt.Printf("Heartbeat: %v\n", resp["currentTime"])
			}

		case "fault":
			connID := 1
			if len(args) > 0 {
				connID, _ = strconv.Atoi(args[0])
			}
			s.sendStatusNotification(connID, "Faulted", "OtherError")
			fmt.Printf("Sent fault status for connector %d\n", connID)

		case "firmware":
			status := "Idle"
			if len(args) > 0 {
				status = args[0]
			}
			s.sendFirmwareStatus(status)
			fmt.Printf("Sent firmware status %s\n", status)

		case "diag":
			status := "Idle"
			if len(args) > 0 {
				status = args[0]
			}
			s.sendDiagnosticsStatus(status)
			fmt.Printf("Sent diagnostics status %s\n", status)

		case "dt":
			if len(args) < 1 {
				fmt.Println("Usage: dt <vendorId> [messageId] [data]")
			} else {
				messageID, data := "", ""
				if len(args) > 1 {
					messageID = args[1]
				}
				if len(args) > 2 {
					data = strings.Join(args[2:], " ")
				}
				s.sendDataTransfer(args[0], messageID, data)
			}

		case "boot":
			if resp, err := s.sendBootNotification(); err != nil {
				fmt.Printf("Boot failed: %v\n", err)
			} else {
				fmt.Printf("Boot: %v\n", resp)
			}

		case "quit", "exit":
			fmt.Println("Goodbye!")
			return

		default:
			fmt.Printf("Unknown command: %s\n", cmd)
		}

		fmt.Print("> ")
	}
}
