//go:build unit

package constant

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeMetricLabel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "postgres", SanitizeMetricLabel("postgres"))
	assert.Equal(t, "", SanitizeMetricLabel(""))

	long := strings.Repeat("x", MaxMetricLabelLength+10)
	assert.Len(t, SanitizeMetricLabel(long), MaxMetricLabelLength)

	exact := strings.Repeat("y", MaxMetricLabelLength)
	assert.Equal(t, exact, SanitizeMetricLabel(exact))
}
