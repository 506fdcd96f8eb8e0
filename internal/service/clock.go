package service

import (
	"time"

	"taskflow/internal/model"
)

// Clock supplies the current time in the business time zone
type Clock struct {
	Location *time.Location
	NowFunc  func() time.Time
}

func NewClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.Local
	}
	return Clock{Location: loc, NowFunc: time.Now}
}

func (c Clock) Now() time.Time {
	now := time.Now
	if c.NowFunc != nil {
		now = c.NowFunc
	}
	if c.Location == nil {
		return now()
	}
	return now().In(c.Location)
}

// Today returns the business date as YYYY-MM-DD
func (c Clock) Today() string {
	return c.Now().Format(model.DateLayout)
}

// Zone returns the business time zone
func (c Clock) Zone() *time.Location {
	if c.Location == nil {
		return time.Local
	}
	return c.Location
}

// Date returns midnight of t's calendar day in the clock location
func (c Clock) Date(t time.Time) time.Time {
	loc := c.Zone()
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
