// Package ocppmsg holds the OCPP 1.6 action type registry: the stable
// mapping between the engine's internal enum and the action names that
// appear on the wire.
package ocppmsg

// Type identifies an OCPP 1.6 action. Values are stable for the lifetime of
// a process but are not guaranteed to be stable across releases; do not
// persist a raw Type value across engine versions without the snapshot's
// own versioning.
type Type int

const (
	Authorize Type = iota
	BootNotification
	ChangeAvailability
	ChangeConfiguration
	ClearCache
	DataTransfer
	GetConfiguration
	Heartbeat
	MeterValues
	RemoteStartTransaction
	RemoteStopTransaction
	Reset
	StartTransaction
	StatusNotification
	StopTransaction
	UnlockConnector
	DiagnosticsStatusNotification
	FirmwareStatusNotification
	GetDiagnostics
	UpdateFirmware
	GetLocalListVersion
	SendLocalList
	CancelReservation
	ReserveNow
	ClearChargingProfile
	GetCompositeSchedule
	SetChargingProfile
	TriggerMessage
	CertificateSigned
	DeleteCertificate
	ExtendedTriggerMessage
	GetInstalledCertificateIds
	GetLog
	InstallCertificate
	LogStatusNotification
	SecurityEventNotification
	SignCertificate
	SignedFirmwareStatusNotification
	SignedUpdateFirmware

	// MsgMax is the sentinel one past the last valid Type; ParseType
	// resolves unknown names to it, and String returns "" for it and for
	// any other out-of-range value.
	MsgMax
)

var names = [MsgMax]string{
	Authorize:                         "Authorize",
	BootNotification:                  "BootNotification",
	ChangeAvailability:                "ChangeAvailability",
	ChangeConfiguration:               "ChangeConfiguration",
	ClearCache:                        "ClearCache",
	DataTransfer:                      "DataTransfer",
	GetConfiguration:                  "GetConfiguration",
	Heartbeat:                         "Heartbeat",
	MeterValues:                       "MeterValues",
	RemoteStartTransaction:            "RemoteStartTransaction",
	RemoteStopTransaction:             "RemoteStopTransaction",
	Reset:                             "Reset",
	StartTransaction:                  "StartTransaction",
	StatusNotification:                "StatusNotification",
	StopTransaction:                   "StopTransaction",
	UnlockConnector:                   "UnlockConnector",
	DiagnosticsStatusNotification:     "DiagnosticsStatusNotification",
	FirmwareStatusNotification:        "FirmwareStatusNotification",
	GetDiagnostics:                    "GetDiagnostics",
	UpdateFirmware:                    "UpdateFirmware",
	GetLocalListVersion:               "GetLocalListVersion",
	SendLocalList:                     "SendLocalList",
	CancelReservation:                 "CancelReservation",
	ReserveNow:                        "ReserveNow",
	ClearChargingProfile:              "ClearChargingProfile",
	GetCompositeSchedule:              "GetCompositeSchedule",
	SetChargingProfile:                "SetChargingProfile",
	TriggerMessage:                    "TriggerMessage",
	CertificateSigned:                 "CertificateSigned",
	DeleteCertificate:                 "DeleteCertificate",
	ExtendedTriggerMessage:            "ExtendedTriggerMessage",
	GetInstalledCertificateIds:        "GetInstalledCertificateIds",
	GetLog:                            "GetLog",
	InstallCertificate:                "InstallCertificate",
	LogStatusNotification:             "LogStatusNotification",
	SecurityEventNotification:         "SecurityEventNotification",
	SignCertificate:                   "SignCertificate",
	SignedFirmwareStatusNotification:  "SignedFirmwareStatusNotification",
	SignedUpdateFirmware:              "SignedUpdateFirmware",
}

var byName map[string]Type

func init() {
	byName = make(map[string]Type, len(names))
	for t, n := range names {
		byName[n] = Type(t)
	}
}

// String returns the wire action name for t, or "" if t is out of range.
func (t Type) String() string {
	if t < 0 || t >= MsgMax {
		return ""
	}
	return names[t]
}

// ParseType returns the Type whose wire name is s, or MsgMax if s is not a
// recognized OCPP 1.6 action.
func ParseType(s string) Type {
	if t, ok := byName[s]; ok {
		return t
	}
	return MsgMax
}

// Transactional reports whether t carries elevated durability as a
// transaction-related message (StartTransaction, StopTransaction,
// MeterValues).
func (t Type) Transactional() bool {
	return t == StartTransaction || t == StopTransaction || t == MeterValues
}

// Undroppable reports whether t must never be freed by capacity pressure or
// by attempt-count exhaustion: BootNotification plus every transactional
// type.
func (t Type) Undroppable() bool {
	return t == BootNotification || t.Transactional()
}

// EvictionProtected reports whether evict_oldest must skip t. Narrower than
// Undroppable: MeterValues may still be evicted under pool pressure even
// though it never drops by attempt count.
func (t Type) EvictionProtected() bool {
	return t == BootNotification || t == StartTransaction || t == StopTransaction
}
