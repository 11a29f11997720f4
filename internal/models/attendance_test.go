package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAttendancePercentage(t *testing.T) {
	assert.Equal(t, 0, AttendancePercentage(5, 0))
	assert.Equal(t, 100, AttendancePercentage(10, 10))
	assert.Equal(t, 50, AttendancePercentage(5, 10))
	assert.Equal(t, 67, AttendancePercentage(2, 3))
	assert.Equal(t, 33, AttendancePercentage(1, 3))
}

func TestAttendanceStatusValid(t *testing.T) {
	assert.True(t, AttendanceStatusPresent.Valid())
	assert.True(t, AttendanceStatusExcused.Valid())
	assert.False(t, AttendanceStatus("UNKNOWN").Valid())
}
