package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSlot(t *testing.T) {
	tests := []struct {
		in      string
		want    Slot
		wantErr bool
	}{
		{"production", SlotProduction, false},
		{"Production", SlotProduction, false},
		{" STAGING ", SlotStaging, false},
		{"", "", true},
		{"prod", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSlot(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSlot)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewDeploymentTarget(t *testing.T) {
	target, err := NewDeploymentTarget("sub-1", "my-app", "Staging")
	require.NoError(t, err)

	assert.Equal(t, "sub-1", target.Subscription)
	assert.Equal(t, "my-app", target.ServiceName)
	assert.Equal(t, SlotStaging, target.Slot)
	assert.False(t, target.IsProduction())
	assert.Equal(t, "my-app/staging", target.String())
}

func TestNewDeploymentTarget_Errors(t *testing.T) {
	_, err := NewDeploymentTarget("", "my-app", "production")
	assert.ErrorIs(t, err, ErrSubscriptionRequired)

	_, err = NewDeploymentTarget("sub-1", "", "production")
	assert.ErrorIs(t, err, ErrServiceNameRequired)

	_, err = NewDeploymentTarget("sub-1", "my-app", "canary")
	assert.ErrorIs(t, err, ErrInvalidSlot)
}

func TestValidateServiceName(t *testing.T) {
	assert.NoError(t, ValidateServiceName("my-app-01"))
	assert.ErrorIs(t, ValidateServiceName("-app"), ErrInvalidServiceName)
	assert.ErrorIs(t, ValidateServiceName("app-"), ErrInvalidServiceName)
	assert.ErrorIs(t, ValidateServiceName("my_app"), ErrInvalidServiceName)
	assert.ErrorIs(t, ValidateServiceName(strings.Repeat("a", 64)), ErrServiceNameTooLong)
}

func TestNormalizeLocation(t *testing.T) {
	loc, err := NormalizeLocation("north europe")
	require.NoError(t, err)
	assert.Equal(t, "North Europe", loc)

	loc, err = NormalizeLocation("")
	require.NoError(t, err)
	assert.Equal(t, DefaultLocation, loc)

	_, err = NormalizeLocation("Moon Base")
	assert.ErrorIs(t, err, ErrInvalidLocation)
}

func TestLocations_ReturnsCopy(t *testing.T) {
	l := Locations()
	l[0] = "changed"
	assert.NotEqual(t, "changed", Locations()[0])
}
