// Package access decides whether a caller may perform an operation.
//
// Decisions are pure functions over the caller's role (and, for task
// completion, the task itself). Handlers translate denials into HTTP
// statuses; the page adapter translates missing identities into a login
// redirect instead. The two failure kinds are distinct sentinels and must
// stay distinct.
package access

import (
	"errors"

	"github.com/taskhive/apiserver/types"
)

// ErrUnauthenticated is returned when no identity is established.
var ErrUnauthenticated = errors.New("unauthenticated")

// ErrForbidden is returned when an established identity lacks permission.
var ErrForbidden = errors.New("forbidden")

// Operation names a guarded action.
type Operation int

const (
	// OpViewProjects covers reading projects and their tasks.
	OpViewProjects Operation = iota
	// OpCreateProject and OpUpdateProject require manager or admin.
	OpCreateProject
	OpUpdateProject
	// OpDeleteProject requires admin. Deletion cascades to tasks,
	// comments and attachments.
	OpDeleteProject
	// OpCreateTask, OpUpdateTask and OpDeleteTask require manager or admin.
	OpCreateTask
	OpUpdateTask
	OpDeleteTask
	// OpManageUsers covers listing users, changing roles and deleting
	// accounts; admin only.
	OpManageUsers
	// OpCreateComment is open to any authenticated identity.
	OpCreateComment
	// OpUploadAttachment and OpDeleteAttachment require manager or admin.
	OpUploadAttachment
	OpDeleteAttachment
)

// Can reports whether a caller with the given role may perform op.
// Unknown roles and unknown operations are denied.
func Can(role types.Role, op Operation) bool {
	if !role.Known() {
		return false
	}

	switch op {
	case OpViewProjects, OpCreateComment:
		return true
	case OpCreateProject, OpUpdateProject,
		OpCreateTask, OpUpdateTask, OpDeleteTask,
		OpUploadAttachment, OpDeleteAttachment:
		return role.ManagerOrAbove()
	case OpDeleteProject, OpManageUsers:
		return role.IsAdmin()
	default:
		return false
	}
}

// CanCompleteTask reports whether caller may mark the task done.
//
// A manager or admin may force-complete any task, including an already
// done one (a no-op write). A plain user may complete only a task assigned
// to them that is not already done; once the task is done the predicate is
// false and a repeat call is denied.
func CanCompleteTask(caller types.User, task types.Task) bool {
	if caller.Role.ManagerOrAbove() {
		return true
	}
	return task.IsAssignedTo(caller.ID) && task.Status != types.TaskDone
}

// CanEditComment reports whether caller may update or delete the comment.
// Comments are author-scoped; admins may moderate any comment.
func CanEditComment(caller types.User, comment types.Comment) bool {
	return caller.Role.IsAdmin() || comment.AuthorID == caller.ID
}

// CanSeeTask reports whether the task is visible to the caller. Managers
// and admins see every task; plain users see only tasks assigned to them.
// This scopes reads; mutating operations are gated by Can.
func CanSeeTask(caller types.User, task types.Task) bool {
	if caller.Role.ManagerOrAbove() {
		return true
	}
	return task.IsAssignedTo(caller.ID)
}
