package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWording(t *testing.T) {
	assert.Equal(t, "Task Design was created", TaskCreated("Design"))
	assert.Equal(t, "Status changed to Done", StatusChanged("Done"))
	assert.Equal(t, "Name changed from 'Draft' to 'Final'", NameChanged("Draft", "Final"))
	assert.Equal(t, "Description updated", DescriptionUpdated())
	assert.Equal(t, "Priority changed from 1 to 5", PriorityChanged(1, 5))
}

func TestAssigneeChange(t *testing.T) {
	cases := []struct {
		name     string
		from, to string
		want     string
		changed  bool
	}{
		{"none to someone", "", "bob", "Assigned to bob", true},
		{"someone to none", "bob", "", "Unassigned from bob", true},
		{"someone to someone else", "bob", "carol", "Reassigned from bob to carol", true},
		{"unchanged", "bob", "bob", "", false},
		{"still unassigned", "", "", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := AssigneeChange(tc.from, tc.to)
			assert.Equal(t, tc.changed, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}
