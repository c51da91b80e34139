package ps_test

import (
	"testing"

	"github.com/captjt/devproc/internal/infrastructure/resources/ps"
	"github.com/stretchr/testify/assert"
)

func TestProber_Probe_Empty(t *testing.T) {
	p := ps.New()
	readings, err := p.Probe(nil)
	assert.NoError(t, err)
	assert.Empty(t, readings)
}
