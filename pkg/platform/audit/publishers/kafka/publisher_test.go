package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRequiresBrokersAndTopic(t *testing.T) {
	_, err := New(nil, "ledger.audit.changes")
	assert.ErrorContains(t, err, "at least one broker")

	_, err = New([]string{"localhost:9092"}, "")
	assert.ErrorContains(t, err, "requires a topic")
}
