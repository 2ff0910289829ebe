package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsArePaired(t *testing.T) {
	names, err := fs.Glob(FS, "*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, names)

	ups, downs := map[string]bool{}, map[string]bool{}
	for _, n := range names {
		switch {
		case strings.HasSuffix(n, ".up.sql"):
			ups[strings.TrimSuffix(n, ".up.sql")] = true
		case strings.HasSuffix(n, ".down.sql"):
			downs[strings.TrimSuffix(n, ".down.sql")] = true
		default:
			t.Errorf("unexpected migration file %s", n)
		}
	}
	assert.Equal(t, ups, downs)
}

func TestInitialSchemaGuardsActiveSlots(t *testing.T) {
	b, err := fs.ReadFile(FS, "0001_init.up.sql")
	require.NoError(t, err)

	schema := string(b)
	assert.Contains(t, schema, "CREATE UNIQUE INDEX IF NOT EXISTS appointments_active_slot_uniq")
	assert.Contains(t, schema, "WHERE status NOT IN ('CANCELLED', 'NO_SHOW')")
	assert.Contains(t, schema, "UNIQUE (doctor_id, day_of_week)")
	assert.Contains(t, schema, "UNIQUE (doctor_id, date)")
}

func TestInitialSchemaChecksBreakWindows(t *testing.T) {
	b, err := fs.ReadFile(FS, "0001_init.up.sql")
	require.NoError(t, err)

	schema := string(b)
	assert.Contains(t, schema, "CONSTRAINT weekly_schedules_break_chk")
	assert.Contains(t, schema, "CONSTRAINT special_dates_break_chk")
	assert.Contains(t, schema, "type = 'BREAK' AND break_start IS NOT NULL AND break_end IS NOT NULL AND break_start < break_end")
}
