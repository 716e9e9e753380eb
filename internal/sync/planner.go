package sync

// Plan is the set of task operations needed to bring one (calendar, account)
// pair in line with the current feed. It is computed without I/O.
type Plan struct {
	// Updates pairs an event with the record that already links it to a task.
	Updates []Update
	// Creates holds events with no record, or whose record has no task id.
	Creates []Event
	// Deletes holds records whose event disappeared from the feed.
	Deletes []Record
	// Unchanged counts known events whose content matches the record.
	Unchanged int
	// Duplicates lists uids seen more than once in the feed; only the first
	// occurrence is planned.
	Duplicates []string
}

// Update is a planned update of an existing task.
type Update struct {
	Event  Event
	Record Record
}

// Empty reports whether the plan has no operations.
func (p Plan) Empty() bool {
	return len(p.Updates) == 0 && len(p.Creates) == 0 && len(p.Deletes) == 0
}

// BuildPlan compares current events with prior records. Operation order
// within each list follows the order of events and records.
func BuildPlan(events []Event, records []Record) Plan {
	prior := make(map[string]Record, len(records))
	for _, rec := range records {
		prior[rec.EventUID] = rec
	}

	var plan Plan
	seen := make(map[string]bool, len(events))

	for _, ev := range events {
		if seen[ev.UID] {
			plan.Duplicates = append(plan.Duplicates, ev.UID)
			continue
		}
		seen[ev.UID] = true

		rec, ok := prior[ev.UID]
		if ok && rec.ExternalTaskID != "" {
			if rec.Fingerprint != "" && rec.Fingerprint == ev.Fingerprint() {
				plan.Unchanged++
				continue
			}
			plan.Updates = append(plan.Updates, Update{Event: ev, Record: rec})
			continue
		}
		plan.Creates = append(plan.Creates, ev)
	}

	// Iterate records, not the map, so deletes are deterministic.
	for _, rec := range records {
		if seen[rec.EventUID] || rec.ExternalTaskID == "" {
			continue
		}
		plan.Deletes = append(plan.Deletes, rec)
	}

	return plan
}
