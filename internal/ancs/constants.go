// Package ancs implements Apple's Notification Center Service wire format:
// the three GATT characteristic payloads (Notification Source, Control
// Point, Data Source) as little-endian binary frames with length-prefixed
// UTF-8 strings.
package ancs

// Service and characteristic UUIDs, as defined by Apple's ANCS
// specification.
const (
	ServiceUUID             = "7905f431-b5ce-4e99-a40f-4b1e122d00d0"
	NotificationSourceUUID  = "9fbf120d-6301-42d9-8c58-25e699a21dbd"
	ControlPointUUID        = "69d1d8f3-45e1-49a8-9821-9bbdfdaad9d9"
	DataSourceUUID          = "22eac6e9-24d6-4bb5-be44-b36ace7c7bfb"
)

// CharacteristicUUIDs lists the three characteristics a device must
// expose to be recognized as an ANCS peer.
var CharacteristicUUIDs = [3]string{NotificationSourceUUID, ControlPointUUID, DataSourceUUID}

// CategoryID classifies a notification's source application category.
// The engine itself never branches on category; these are kept for
// callers that want to log or filter on it.
type CategoryID uint8

const (
	CategoryOther CategoryID = iota
	CategoryIncomingCall
	CategoryMissedCall
	CategoryVoicemail
	CategorySocial
	CategorySchedule
	CategoryEmail
	CategoryNews
	CategoryHealthAndFitness
	CategoryBusinessAndFinance
	CategoryLocation
	CategoryEntertainment
)

// EventID identifies the kind of change a Notification Source frame
// reports.
type EventID uint8

const (
	EventAdded EventID = iota
	EventModified
	EventRemoved
)

func (e EventID) String() string {
	switch e {
	case EventAdded:
		return "Added"
	case EventModified:
		return "Modified"
	case EventRemoved:
		return "Removed"
	default:
		return "Unknown"
	}
}

// EventFlag is a bitset carried alongside an EventID.
type EventFlag uint8

const (
	FlagSilent EventFlag = 1 << iota
	FlagImportant
	FlagPreExisting
	FlagPositiveAction
	FlagNegativeAction
)

func (f EventFlag) Has(flag EventFlag) bool { return f&flag != 0 }

// CommandID identifies a Control Point request / Data Source response.
type CommandID uint8

const (
	CommandGetNotificationAttributes CommandID = iota
	CommandGetAppAttributes
	CommandPerformNotificationAction
)

// NotificationAttributeID identifies an attribute requested via
// GetNotificationAttributes. Subtitle, MessageSize and Date are part of
// the ANCS attribute space but this engine never requests them; they are
// named here for completeness.
type NotificationAttributeID uint8

const (
	AttrAppIdentifier NotificationAttributeID = iota
	AttrTitle
	AttrSubtitle
	AttrMessage
	AttrMessageSize
	AttrDate
	AttrPositiveActionLabel
	AttrNegativeActionLabel
)

// ActionID selects which button PerformNotificationAction invokes.
type ActionID uint8

const (
	ActionPositive ActionID = iota
	ActionNegative
)

// AppAttributeID identifies an attribute requested via GetAppAttributes.
type AppAttributeID uint8

const (
	AppAttrDisplayName AppAttributeID = iota
)

// maxAttributeLen is the hint ANCS sends for variable-length string
// attributes that should be truncated by the phone (title, message).
const maxAttributeLen uint16 = 0xFFFF

// notInstalledSentinel is synthesized for GetAppAttributes replies
// where the phone has no display name to offer.
const notInstalledSentinel = "<not installed>"
