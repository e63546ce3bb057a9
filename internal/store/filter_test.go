package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobFilter_Limit(t *testing.T) {
	assert.Equal(t, 20, JobFilter{}.limit())
	assert.Equal(t, 5, JobFilter{Limit: 5}.limit())
	assert.Equal(t, 100, JobFilter{Limit: 1000}.limit())
}
