package database

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSchema_DeclaresAttendanceConstraints(t *testing.T) {
	schema := Schema()

	assert.Contains(t, schema, "CONSTRAINT "+AttendanceUserDateKey+" UNIQUE (user_id, date)")
	assert.Contains(t, schema, "check_out_time > check_in_time")
	assert.Contains(t, schema, "ON DELETE CASCADE")
}

func TestSchema_IsIdempotent(t *testing.T) {
	for _, line := range strings.Split(Schema(), "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "CREATE TABLE") || strings.HasPrefix(trimmed, "CREATE INDEX") {
			assert.Contains(t, trimmed, "IF NOT EXISTS", trimmed)
		}
	}
}
