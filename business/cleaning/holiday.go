package cleaning

import (
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/us"
)

// HolidayCalendar holds the holidays observed by the transit agency, used
// to populate the holiday feature on cleaned rows.
type HolidayCalendar struct {
	calendar *cal.BusinessCalendar
}

// MakeHolidayCalendar builds a HolidayCalendar.
// TODO:: should be customizable by transit agency rather than being hardcoded as it is now.
func MakeHolidayCalendar() *HolidayCalendar {
	calendar := cal.NewBusinessCalendar()
	calendar.AddHoliday(
		us.NewYear,
		us.MlkDay,
		us.MemorialDay,
		us.IndependenceDay,
		us.LaborDay,
		us.ThanksgivingDay,
		us.ChristmasDay,
		us.Juneteenth,
	)
	return &HolidayCalendar{calendar: calendar}
}

// IsHoliday returns true if at falls on an observed agency holiday.
func (h *HolidayCalendar) IsHoliday(at time.Time) bool {
	if h == nil {
		return false
	}
	_, observed, _ := h.calendar.IsHoliday(at)
	return observed
}
