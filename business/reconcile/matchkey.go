package reconcile

import "regexp"

// matchKeyPattern extracts the trailing origin-time and route suffix from a
// static feed trip_id. Static trip ids carry a long service description
// before the suffix, for example
// "SIR-FA2017-SI017-Weekday-08_147100_SI..N03R" where the realtime feed
// names the same trip "147100_SI..N03R".
var matchKeyPattern = regexp.MustCompile(`_(\d{6}_.*)$`)

// DeriveMatchKey produces the join key shared with the realtime feed from a
// static trip id. Returns nil when the trip id does not carry the expected
// suffix, in which case the trip cannot be matched and is joined as
// unscheduled-only context. The realtime feed's own trip_id is already in
// key form and is used verbatim.
func DeriveMatchKey(staticTripID string) *string {
	groups := matchKeyPattern.FindStringSubmatch(staticTripID)
	if groups == nil {
		return nil
	}
	return &groups[1]
}
