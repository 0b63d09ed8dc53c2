package services

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"gear-rental/shared/models"
)

// DateLayout is the calendar-date format used for booking start and end dates.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD date as midnight UTC.
func ParseDate(value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	return t, nil
}

// Duration is the inclusive number of days from start to end: a booking that
// starts and ends on the same day lasts one day. It is zero or negative when
// end is before start.
func Duration(start, end time.Time) int {
	return int(end.Sub(start).Hours()/24) + 1
}

// Overlaps reports whether the closed ranges [aStart, aEnd] and
// [bStart, bEnd] share at least one day.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aStart.After(bEnd) && !bStart.After(aEnd)
}

// IsAvailable reports whether productID is free on every day of
// [start, end]. Only confirmed and active bookings hold their dates.
func IsAvailable(productID string, start, end time.Time, bookings []models.Booking) bool {
	for _, b := range bookings {
		if b.ProductID != productID || !b.Status.Blocking() {
			continue
		}
		bStart, err := ParseDate(b.StartDate)
		if err != nil {
			zap.S().Warnf("Booking %s has unreadable start date: %v", b.ID, err)
			continue
		}
		bEnd, err := ParseDate(b.EndDate)
		if err != nil {
			zap.S().Warnf("Booking %s has unreadable end date: %v", b.ID, err)
			continue
		}
		if Overlaps(start, end, bStart, bEnd) {
			return false
		}
	}
	return true
}
