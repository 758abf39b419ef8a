package marketclock

import (
	"fmt"
	"time"
)

// KST is Korea Standard Time (UTC+9).
var KST = time.FixedZone("KST", 9*3600)

// KRX regular session in KST.
const (
	OpenHour    = 9
	OpenMinute  = 0
	CloseHour   = 15
	CloseMinute = 30
)

// IsOpen returns true if t falls within the KRX regular session
// (9:00 AM – 3:30 PM KST, Mon–Fri, excluding holidays).
func IsOpen(t time.Time) bool {
	kst := t.In(KST)
	if !IsTradingDay(kst) {
		return false
	}
	hm := kst.Hour()*60 + kst.Minute()
	return hm >= OpenHour*60+OpenMinute && hm < CloseHour*60+CloseMinute
}

// IsWeekday returns true if t is Mon–Fri.
func IsWeekday(t time.Time) bool {
	wd := t.In(KST).Weekday()
	return wd >= time.Monday && wd <= time.Friday
}

// IsTradingDay returns true if t is a weekday and not a market holiday.
func IsTradingDay(t time.Time) bool {
	kst := t.In(KST)
	return IsWeekday(kst) && !IsHoliday(kst)
}

// NextOpen returns the next session open (9:00 AM KST on the next trading
// day). If t is before today's open on a trading day, returns today's open.
func NextOpen(t time.Time) time.Time {
	kst := t.In(KST)

	todayOpen := time.Date(kst.Year(), kst.Month(), kst.Day(), OpenHour, OpenMinute, 0, 0, KST)
	if kst.Before(todayOpen) && IsTradingDay(kst) {
		return todayOpen
	}

	d := kst.AddDate(0, 0, 1)
	for i := 0; i < 15; i++ { // consecutive holidays + weekends
		if IsTradingDay(d) {
			return time.Date(d.Year(), d.Month(), d.Day(), OpenHour, OpenMinute, 0, 0, KST)
		}
		d = d.AddDate(0, 0, 1)
	}
	return time.Date(kst.Year(), kst.Month(), kst.Day()+1, OpenHour, OpenMinute, 0, 0, KST)
}

// TodayClose returns today's session close (3:30 PM KST).
func TodayClose(t time.Time) time.Time {
	kst := t.In(KST)
	return time.Date(kst.Year(), kst.Month(), kst.Day(), CloseHour, CloseMinute, 0, 0, KST)
}

// NextTransition returns the next open/close boundary after t: today's close
// while the session is open, otherwise the next open.
func NextTransition(t time.Time) time.Time {
	if IsOpen(t) {
		return TodayClose(t)
	}
	return NextOpen(t)
}

// TimeUntilOpen returns the duration until the next session open.
func TimeUntilOpen(t time.Time) time.Duration {
	return NextOpen(t).Sub(t.In(KST))
}

// TimeUntilClose returns the duration until today's close, 0 if already past.
func TimeUntilClose(t time.Time) time.Duration {
	d := TodayClose(t).Sub(t.In(KST))
	if d < 0 {
		return 0
	}
	return d
}

// StatusString returns a human-readable market status.
func StatusString(t time.Time) string {
	if IsOpen(t) {
		return fmt.Sprintf("Market Open — closes in %s", fmtDur(TimeUntilClose(t)))
	}
	next := NextOpen(t)
	kst := next.In(KST)
	return fmt.Sprintf("Market Closed — opens %s %s (%s)",
		kst.Weekday().String()[:3], kst.Format("15:04"), fmtDur(next.Sub(t)))
}

func fmtDur(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
