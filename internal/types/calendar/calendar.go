package calendar

// CalendarDay is one cell of a month grid.
type CalendarDay struct {
	Date       string `json:"date"`
	Day        int    `json:"day"`
	HasEntry   bool   `json:"has_entry"`
	IsToday    bool   `json:"is_today"`
	IsSelected bool   `json:"is_selected"`
}

// CalendarResponse is a month grid. Weeks start on Sunday; LeadingBlanks is the
// number of empty cells before the first day of the month.
type CalendarResponse struct {
	Year          int            `json:"year"`
	Month         int            `json:"month"`
	LeadingBlanks int            `json:"leading_blanks"`
	Days          []*CalendarDay `json:"days"`
}

// Weeks lays the days out in rows of seven, padding with nil cells.
func (c *CalendarResponse) Weeks() [][]*CalendarDay {
	cells := make([]*CalendarDay, 0, c.LeadingBlanks+len(c.Days)+6)
	for i := 0; i < c.LeadingBlanks; i++ {
		cells = append(cells, nil)
	}
	cells = append(cells, c.Days...)
	for len(cells)%7 != 0 {
		cells = append(cells, nil)
	}

	weeks := make([][]*CalendarDay, 0, len(cells)/7)
	for i := 0; i < len(cells); i += 7 {
		weeks = append(weeks, cells[i:i+7])
	}
	return weeks
}

// Today returns the cell flagged as today, or nil.
func (c *CalendarResponse) Today() *CalendarDay {
	for _, d := range c.Days {
		if d.IsToday {
			return d
		}
	}
	return nil
}
