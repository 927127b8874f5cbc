package handler

import (
	"time"

	"payout-core/internal/handler/request"
)

const dayLayout = "2006-01-02"

func parseDay(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(dayLayout, s, loc)
}

// dateRange end 当天包含在内；缺省时为零值 (不限)
func dateRange(q request.DateRangeQuery) (from, to time.Time, err error) {
	if q.Start != "" {
		if from, err = parseDay(q.Start, time.UTC); err != nil {
			return
		}
	}
	if q.End != "" {
		if to, err = parseDay(q.End, time.UTC); err != nil {
			return
		}
		to = to.AddDate(0, 0, 1)
	}
	return
}
