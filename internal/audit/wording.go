package audit

import "fmt"

func TaskCreated(name string) string {
	return fmt.Sprintf("Task %s was created", name)
}

func Assigned(to string) string {
	return "Assigned to " + to
}

func Unassigned(from string) string {
	return "Unassigned from " + from
}

func Reassigned(from, to string) string {
	return fmt.Sprintf("Reassigned from %s to %s", from, to)
}

func StatusChanged(status string) string {
	return "Status changed to " + status
}

func NameChanged(from, to string) string {
	return fmt.Sprintf("Name changed from '%s' to '%s'", from, to)
}

func DescriptionUpdated() string {
	return "Description updated"
}

func PriorityChanged(from, to int) string {
	return fmt.Sprintf("Priority changed from %d to %d", from, to)
}

// AssigneeChange picks the wording for an assignee transition. Empty names
// mean no assignee; ok is false when nothing changed.
func AssigneeChange(from, to string) (desc string, ok bool) {
	switch {
	case from == to:
		return "", false
	case from == "":
		return Assigned(to), true
	case to == "":
		return Unassigned(from), true
	default:
		return Reassigned(from, to), true
	}
}
