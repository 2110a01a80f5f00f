package controller

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadloop/models"
)

func TestLeadsFromCSV(t *testing.T) {
	records := [][]string{
		{"Email", "first_name", "Last_Name", "company", "phone"},
		{"Ada@Example.com", "Ada", "Lovelace", "Analytical Engines", "+4420000000"},
		{"grace@example.com", "Grace", "Hopper", "", ""},
	}

	leads, skipped, err := leadsFromCSV(records)
	require.NoError(t, err)
	assert.Zero(t, skipped)
	require.Len(t, leads, 2)

	assert.Equal(t, "ada@example.com", leads[0].Email)
	assert.Equal(t, "Ada", leads[0].FirstName)
	assert.Equal(t, "Lovelace", leads[0].LastName)
	assert.Equal(t, "Analytical Engines", leads[0].Company)
	assert.Equal(t, models.LeadStatusNew, leads[0].Status)
	assert.Equal(t, "import", leads[0].Source)

	assert.Equal(t, "grace@example.com", leads[1].Email)
	assert.Empty(t, leads[1].Company)
}

func TestLeadsFromCSVSkipsBadRows(t *testing.T) {
	records := [][]string{
		{"email", "first_name"},
		{"ada@example.com", "Ada"},
		{"only-one-column"},
		{"", "No Email"},
		{"grace@example.com", "Grace"},
	}

	leads, skipped, err := leadsFromCSV(records)
	require.NoError(t, err)
	assert.Equal(t, 2, skipped)
	require.Len(t, leads, 2)
	assert.Equal(t, "ada@example.com", leads[0].Email)
	assert.Equal(t, "grace@example.com", leads[1].Email)
}

func TestLeadsFromCSVRequiresRows(t *testing.T) {
	_, _, err := leadsFromCSV(nil)
	assert.Error(t, err)

	_, _, err = leadsFromCSV([][]string{{"email"}})
	assert.Error(t, err)
}
