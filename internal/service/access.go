package service

import "github.com/moshiurrahman101/ccit-sub003/internal/models"

// Capability checks live here so each privileged operation asks one
// question instead of re-encoding role lists at every call site.
// Batch-scoped operations are open to admins and to the mentor who owns
// the batch, so callers pass the batch's mentor along.

// CanVerifyPayments reports whether the actor may decide payment claims
// against invoices of the given batch.
func CanVerifyPayments(role models.UserRole, userID string, batchMentorID *string) bool {
	if role == models.RoleAdmin {
		return true
	}
	return role == models.RoleMentor && ownsBatch(userID, batchMentorID)
}

// CanApprove reports whether the actor may move enrollments of the given
// batch through the state machine.
func CanApprove(role models.UserRole, userID string, batchMentorID *string) bool {
	if role == models.RoleAdmin {
		return true
	}
	return role == models.RoleMentor && ownsBatch(userID, batchMentorID)
}

// CanManageCatalog reports whether the role may mutate courses, batches,
// schedules and coupons.
func CanManageCatalog(role models.UserRole) bool {
	return role == models.RoleAdmin
}

// CanMarkAttendance reports whether the actor may record attendance for
// the given batch.
func CanMarkAttendance(role models.UserRole, userID string, batchMentorID *string) bool {
	if role == models.RoleAdmin {
		return true
	}
	return role == models.RoleMentor && ownsBatch(userID, batchMentorID)
}

// CanViewInvoice reports whether the user may read the invoice. Admins see
// everything; students only their own.
func CanViewInvoice(role models.UserRole, userID, invoiceStudentID string) bool {
	if role == models.RoleAdmin {
		return true
	}
	return role == models.RoleStudent && userID == invoiceStudentID
}

func ownsBatch(userID string, batchMentorID *string) bool {
	return batchMentorID != nil && *batchMentorID == userID
}
