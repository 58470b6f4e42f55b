package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusForStep(t *testing.T) {
	tests := []struct {
		step StepType
		want Status
	}{
		{StepProduction, StatusProduction},
		{StepShipping, StatusInTransit},
		{StepTransit, StatusInWarehouse},
		{StepDelivery, StatusDelivered},
	}
	for _, tt := range tests {
		t.Run(tt.step.String(), func(t *testing.T) {
			got, err := StatusForStep(tt.step)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := StatusForStep(StepType(9))
	assert.Error(t, err)
	assert.False(t, StepType(4).Valid())
	assert.Equal(t, "Unknown", StepType(9).String())
	assert.Equal(t, "Unknown", Status(7).String())
}

func TestCurrentState(t *testing.T) {
	p := Product{Location: "X", CurrentStatus: StatusProduction, CurrentLocation: "X"}

	status, location := CurrentState(p, nil)
	assert.Equal(t, StatusProduction, status)
	assert.Equal(t, "X", location)

	steps := []Step{
		{StepType: StepShipping, Location: "Y"},
		{StepType: StepTransit, Location: "W"},
	}
	status, location = CurrentState(p, steps)
	assert.Equal(t, StatusInWarehouse, status)
	assert.Equal(t, "W", location)
}
