package gateway

import (
	"fmt"
	"strconv"
	"time"
)

// futureSlack is how far into the future a reconstructed timestamp may land
// before the year assumption is considered wrong. Covers clock skew between
// the gateway and this host without absorbing a whole year.
const futureSlack = 48 * time.Hour

// ReconstructTransactionTimestamp combines the gateway's two timestamp
// strings, transaction_date ("MMDD") and transaction_time ("HHMMSS"), with
// an assumed year, because the gateway never transmits one.
//
// When the assumed year puts the instant more than 48 hours in the future
// (a December transaction processed in January), the year rolls back by one
// and the result is flagged ambiguous so operations can verify it against
// the gateway statement instead of trusting a silent guess.
func ReconstructTransactionTimestamp(dateCode, timeCode string, now time.Time) (t time.Time, ambiguous bool, err error) {
	if len(dateCode) != 4 {
		return time.Time{}, false, fmt.Errorf("transaction date %q is not MMDD", dateCode)
	}
	if len(timeCode) != 6 {
		return time.Time{}, false, fmt.Errorf("transaction time %q is not HHMMSS", timeCode)
	}

	month, err := atoiField("month", dateCode[0:2], 1, 12)
	if err != nil {
		return time.Time{}, false, err
	}
	day, err := atoiField("day", dateCode[2:4], 1, 31)
	if err != nil {
		return time.Time{}, false, err
	}
	hour, err := atoiField("hour", timeCode[0:2], 0, 23)
	if err != nil {
		return time.Time{}, false, err
	}
	minute, err := atoiField("minute", timeCode[2:4], 0, 59)
	if err != nil {
		return time.Time{}, false, err
	}
	second, err := atoiField("second", timeCode[4:6], 0, 59)
	if err != nil {
		return time.Time{}, false, err
	}

	t = time.Date(now.Year(), time.Month(month), day, hour, minute, second, 0, now.Location())

	// time.Date normalizes an impossible day (e.g. 0230) into the next
	// month instead of failing; reject that.
	if int(t.Month()) != month || t.Day() != day {
		return time.Time{}, false, fmt.Errorf("transaction date %q does not exist", dateCode)
	}

	if t.After(now.Add(futureSlack)) {
		t = t.AddDate(-1, 0, 0)
		ambiguous = true
	}

	return t, ambiguous, nil
}

func atoiField(name, s string, min, max int) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("transaction timestamp %s %q is not numeric", name, s)
	}
	if v < min || v > max {
		return 0, fmt.Errorf("transaction timestamp %s %d out of range", name, v)
	}
	return v, nil
}
