package core

// ScheduleEntry is one rung of the preventative maintenance ladder: at the
// given odometer mileage, the listed work is recommended.
type ScheduleEntry struct {
	Mileage     int64
	Recommended string
}

// DefaultPreventativeSchedule returns the static service ladder.
func DefaultPreventativeSchedule() []ScheduleEntry {
	return []ScheduleEntry{
		{Mileage: 10000, Recommended: "Rotate Tires, Change Oil and Filter"},
		{Mileage: 20000, Recommended: "Rotate Tires, Change Oil and Filter"},
		{Mileage: 30000, Recommended: "Replace Air Filter, Rotate Tires, Fuel Filter Replacement, Change Oil and Filter"},
		{Mileage: 40000, Recommended: "Rotate Tires, Change Oil and Filter"},
		{Mileage: 45000, Recommended: "Replace Air Filter, Rotate Tires, Fuel Filter Replacement, Change Oil and Filter"},
		{Mileage: 50000, Recommended: "Rotate Tires, Change Oil and Filter"},
		{Mileage: 60000, Recommended: "Replace Air Filter, Rotate Tires, Fuel Filter Replacement, Clean and Repack Wheel Bearing, Change Oil and Filter"},
	}
}

// NextService returns the first schedule rung strictly above the odometer
// reading. ok is false past the end of the ladder. Entries are expected in
// ascending mileage order.
func NextService(schedule []ScheduleEntry, odometer int64) (ScheduleEntry, bool) {
	for _, e := range schedule {
		if e.Mileage > odometer {
			return e, true
		}
	}
	return ScheduleEntry{}, false
}
