package dicebattle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boardgame-server/internal/testkit"
)

// Каждый SourceID, встречающийся в игровом коде, обязан иметь резолвер,
// и наоборот. Ломается при добавлении интеракции без резолвера.
func TestInteractionResolversComplete(t *testing.T) {
	report, err := testkit.AuditInteractions(".", NewRegistry().SourceIDs())
	require.NoError(t, err)

	assert.Empty(t, report.Orphans, "interactions without a resolver")
	assert.Empty(t, report.Dangling, "resolvers never referenced in code")
	assert.Empty(t, report.Warnings, "dynamic sourceIds need runtime coverage")
	assert.Equal(t, []string{SourceTransferStatus}, report.Used)
}
