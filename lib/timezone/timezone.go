package timezone

import "time"

var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("Europe/Lisbon")
	if err != nil {
		panic(err)
	}
}

// force the timezone to match the backoffice's locale because the
// sync jobs may land on hosts in arbitrary regions, which disturbs
// date arithmetic based on <time.Time>.Year()/Month()/Day()/Hour()/...
func Now() time.Time {
	return time.Now().In(Location)
}

// GetCurrentWeek returns the Sunday..Saturday bounds of the week
// containing `now`, at midnight in now's location. Used to default
// the date filters of period-scoped sync runs.
func GetCurrentWeek(now time.Time) (time.Time, time.Time) {
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	start := startOfDay.AddDate(0, 0, -int(startOfDay.Weekday()))
	stop := start.AddDate(0, 0, 6)
	return start, stop
}
