package types

import (
	"testing"
	"time"
)

func TestIsOverdue(t *testing.T) {
	now := time.Date(2026, 8, 30, 15, 0, 0, 0, time.UTC)
	yesterday := now.AddDate(0, 0, -1)
	tomorrow := now.AddDate(0, 0, 1)

	cases := []struct {
		name string
		task Task
		want bool
	}{
		{"no due date", Task{Status: TaskTodo}, false},
		{"due in the past", Task{Status: TaskTodo, DueDate: &yesterday}, true},
		{"due in the future", Task{Status: TaskTodo, DueDate: &tomorrow}, false},
		{"past due but done", Task{Status: TaskDone, DueDate: &yesterday}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.task.IsOverdue(now); got != tc.want {
				t.Fatalf("IsOverdue = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestIsAssignedTo(t *testing.T) {
	id := 5
	task := Task{AssignedTo: &id}

	if !task.IsAssignedTo(5) {
		t.Fatal("expected assigned")
	}
	if task.IsAssignedTo(6) {
		t.Fatal("expected not assigned")
	}
	if (Task{}).IsAssignedTo(5) {
		t.Fatal("unassigned task should match nobody")
	}
}

func TestParseRole(t *testing.T) {
	for _, raw := range []string{"admin", "manager", "user"} {
		if _, err := ParseRole(raw); err != nil {
			t.Fatalf("ParseRole(%q): %v", raw, err)
		}
	}
	for _, raw := range []string{"", "root", "Admin", "superuser"} {
		if _, err := ParseRole(raw); err == nil {
			t.Fatalf("ParseRole(%q) accepted unknown role", raw)
		}
	}
}
