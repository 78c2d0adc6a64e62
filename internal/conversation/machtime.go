package conversation

import "time"

// appleEpochOffset is the number of seconds between the Unix epoch and
// Apple's 2001-01-01 reference date, which the message store counts from.
const appleEpochOffset = 978307200

// timeFromMach converts a message store date value to UTC.
func timeFromMach(mach int64) time.Time {
	return time.Unix(mach+appleEpochOffset, 0).UTC()
}
