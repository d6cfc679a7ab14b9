package natsadapter

import "strings"

// Subjects and streams.
const (
	FixStream        = "GUIDE_FIXES"
	ProximityStream  = "GUIDE_PROXIMITY"
	FixSubjects      = "guide.fix.>"
	ProximitySubject = "guide.proximity.>"
	BroadcastSubject = "guide.updates.broadcast"
	NotifySubjects   = "guide.notify.>"
)

// token makes s safe as a single subject token.
func token(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, s)
}

// FixSubject is where fixes for device are published.
func FixSubject(device string) string {
	return "guide.fix." + token(device)
}

// TransitionSubject is where enter/leave events for device are published.
func TransitionSubject(kind, device string) string {
	return "guide.proximity." + token(kind) + "." + token(device)
}

// DeviceProximitySubject matches enter and leave events for one device.
func DeviceProximitySubject(device string) string {
	return "guide.proximity.*." + token(device)
}

// NotifySubject is where narrations for device are pushed.
func NotifySubject(device string) string {
	return "guide.notify." + token(device)
}
