package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/moshiurrahman101/ccit-sub003/internal/models"
)

func mentorID(id string) *string { return &id }

func TestCapabilities(t *testing.T) {
	owner := mentorID("mentor-1")

	assert.True(t, CanVerifyPayments(models.RoleAdmin, "admin-1", nil))
	assert.True(t, CanVerifyPayments(models.RoleMentor, "mentor-1", owner))
	assert.False(t, CanVerifyPayments(models.RoleMentor, "mentor-2", owner))
	assert.False(t, CanVerifyPayments(models.RoleMentor, "mentor-1", nil))
	assert.False(t, CanVerifyPayments(models.RoleStudent, "student-1", owner))

	assert.True(t, CanApprove(models.RoleAdmin, "admin-1", nil))
	assert.True(t, CanApprove(models.RoleMentor, "mentor-1", owner))
	assert.False(t, CanApprove(models.RoleMentor, "mentor-2", owner))
	assert.False(t, CanApprove(models.RoleStudent, "student-1", owner))

	assert.True(t, CanManageCatalog(models.RoleAdmin))
	assert.False(t, CanManageCatalog(models.RoleMentor))
	assert.False(t, CanManageCatalog(models.RoleStudent))

	assert.True(t, CanMarkAttendance(models.RoleAdmin, "admin-1", nil))
	assert.True(t, CanMarkAttendance(models.RoleMentor, "mentor-1", owner))
	assert.False(t, CanMarkAttendance(models.RoleMentor, "mentor-2", owner))
	assert.False(t, CanMarkAttendance(models.RoleStudent, "student-1", owner))
}

func TestCanViewInvoice(t *testing.T) {
	assert.True(t, CanViewInvoice(models.RoleAdmin, "admin-1", "student-1"))
	assert.True(t, CanViewInvoice(models.RoleStudent, "student-1", "student-1"))
	assert.False(t, CanViewInvoice(models.RoleStudent, "student-2", "student-1"))
	assert.False(t, CanViewInvoice(models.RoleMentor, "mentor-1", "student-1"))
}
