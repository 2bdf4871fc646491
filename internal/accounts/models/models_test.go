package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProfessionalStatusOrdering(t *testing.T) {
	assert.True(t, ProfessionalBasic.AtLeast(ProfessionalUnverified))
	assert.True(t, ProfessionalPremium.AtLeast(ProfessionalBasic))
	assert.True(t, ProfessionalBasic.AtLeast(ProfessionalBasic))
	assert.False(t, ProfessionalUnverified.AtLeast(ProfessionalBasic))
	assert.False(t, ProfessionalStatus("bogus").AtLeast(ProfessionalUnverified))
}

func TestCompanyStatusCanSend(t *testing.T) {
	assert.True(t, CompanyVerified.CanSend())
	assert.True(t, CompanyPremium.CanSend())
	assert.False(t, CompanyPending.CanSend())
	assert.False(t, CompanyUnverified.CanSend())
}
