package formfill

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/example/agencybot/internal/models"
)

func TestFieldsForSkipsEmptyValues(t *testing.T) {
	profile := models.ApplicantProfile{Name: "Jane Doe", Email: "jane@example.com"}
	specs := fieldsFor(profile)
	assert.Len(t, specs, 2)
	assert.Equal(t, "name", specs[0].key)
	assert.Equal(t, "email", specs[1].key)
}

func TestFieldsForIncludesOptionalFields(t *testing.T) {
	profile := models.ApplicantProfile{
		Name:      "Jane Doe",
		Email:     "jane@example.com",
		Phone:     "+44 7700 900000",
		Instagram: "@janedoe",
		HeightCM:  178,
	}
	specs := fieldsFor(profile)
	assert.Len(t, specs, 5)

	byKey := map[string]string{}
	for _, s := range specs {
		byKey[s.key] = s.value
	}
	assert.Equal(t, "178", byKey["height"])
	assert.Equal(t, "@janedoe", byKey["instagram"])
	assert.Equal(t, "+44 7700 900000", byKey["phone"])
}

func TestFieldsForZeroHeightOmitted(t *testing.T) {
	profile := models.ApplicantProfile{Name: "Jane", Email: "j@example.com", HeightCM: 0}
	for _, s := range fieldsFor(profile) {
		assert.NotEqual(t, "height", s.key)
	}
}
