package reservation

import "sort"

// MemoryTimeCard is the reservation ledger of one memory. Reservations are
// sorted by start time and never overlap.
type MemoryTimeCard struct {
	Index        int
	reservations []*Reservation
}

// NewMemoryTimeCard creates an empty time card for the memory at index.
func NewMemoryTimeCard(index int) *MemoryTimeCard {
	return &MemoryTimeCard{Index: index}
}

// Reservations returns the reservations in start-time order.
func (c *MemoryTimeCard) Reservations() []*Reservation {
	return c.reservations
}

// Len returns the number of reservations on the card.
func (c *MemoryTimeCard) Len() int {
	return len(c.reservations)
}

// ScheduleReservation returns the position where r can be inserted, or -1
// if r overlaps a reservation already on the card.
func (c *MemoryTimeCard) ScheduleReservation(r *Reservation) int {
	pos := c.search(r)

	if pos < len(c.reservations) &&
		c.reservations[pos].StartTime < r.EndTime {
		return -1
	}

	if pos > 0 && c.reservations[pos-1].EndTime > r.StartTime {
		return -1
	}

	return pos
}

// Add inserts r. It returns false if r conflicts with the card.
func (c *MemoryTimeCard) Add(r *Reservation) bool {
	pos := c.ScheduleReservation(r)
	if pos < 0 {
		return false
	}

	c.reservations = append(c.reservations, nil)
	copy(c.reservations[pos+1:], c.reservations[pos:])
	c.reservations[pos] = r

	return true
}

// Remove deletes r. It returns false if r is not on the card.
func (c *MemoryTimeCard) Remove(r *Reservation) bool {
	pos := c.search(r)
	if pos >= len(c.reservations) || c.reservations[pos] != r {
		return false
	}

	c.reservations = append(c.reservations[:pos], c.reservations[pos+1:]...)

	return true
}

// Contains reports whether r is on the card.
func (c *MemoryTimeCard) Contains(r *Reservation) bool {
	pos := c.search(r)
	return pos < len(c.reservations) && c.reservations[pos] == r
}

func (c *MemoryTimeCard) search(r *Reservation) int {
	return sort.Search(len(c.reservations), func(i int) bool {
		return c.reservations[i].StartTime >= r.StartTime
	})
}
