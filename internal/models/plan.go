package models

// Plan holds the study sessions scheduled for one calendar date. One plan
// exists per date, created when the date first receives a session.
type Plan struct {
	Date     string // "2006-01-02"
	Sessions []*Session

	// TotalStudyHours is a progress metric: the sum of allocated hours of
	// sessions counted as finished (done or skipped), not total scheduled
	// hours.
	TotalStudyHours float64
	// AvailableHours is the day's configured capacity at generation time.
	AvailableHours float64
}

// Clone returns a deep copy of the plan.
func (p *Plan) Clone() *Plan {
	c := &Plan{
		Date:            p.Date,
		TotalStudyHours: p.TotalStudyHours,
		AvailableHours:  p.AvailableHours,
	}
	c.Sessions = make([]*Session, 0, len(p.Sessions))
	for _, s := range p.Sessions {
		c.Sessions = append(c.Sessions, s.Clone())
	}
	return c
}

// RecalcTotals recomputes TotalStudyHours from the finished sessions.
func (p *Plan) RecalcTotals() {
	var total float64
	for _, s := range p.Sessions {
		if s.Finished() {
			total += s.AllocatedHours
		}
	}
	p.TotalStudyHours = total
}

// ScheduledHours returns the sum of allocated hours of non-skipped
// sessions, the figure that counts against daily capacity.
func (p *Plan) ScheduledHours() float64 {
	var total float64
	for _, s := range p.Sessions {
		if s.Status != SessionStatusSkipped {
			total += s.AllocatedHours
		}
	}
	return total
}
