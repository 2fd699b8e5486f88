package producer

import "github.com/bestwarehub/SaaS-AICE-sub009/internal/event"

// PriorityFunc assigns an event priority for an entity change.
type PriorityFunc func(entityType string, action event.Action) int

// ManualPriority is used for operator-triggered syncs.
const ManualPriority = 9

const deletePriority = 8

var savePriorities = map[string]map[event.Action]int{
	"invoice":       {event.ActionCreate: 7, event.ActionUpdate: 5},
	"payment":       {event.ActionCreate: 6, event.ActionUpdate: 6},
	"journal_entry": {event.ActionCreate: 4, event.ActionUpdate: 4},
}

// DefaultPriority: deletes are 8, invoice creates 7, invoice updates 5,
// payments 6, journal entries 4 and anything else the default.
func DefaultPriority(entityType string, action event.Action) int {
	if action == event.ActionDelete {
		return deletePriority
	}
	if p, ok := savePriorities[entityType][action]; ok {
		return p
	}
	return event.PriorityDefault
}
