package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"2024-03-05", "2024-03-05"},
		{"2024-03-05T22:30:00Z", "2024-03-05"},
		{"2024-03-05T22:30:00-03:00", "2024-03-06"},
		{"05/03/24", "2024-03-05"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			d, err := ParseDate(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.ISO())
		})
	}

	_, err := ParseDate("yesterday")
	assert.Error(t, err)
}

func TestDateDisplay(t *testing.T) {
	d := NewDate(2024, time.March, 5)
	assert.Equal(t, "05/03/24", d.Display())
	assert.Equal(t, "2024-03-05", d.String())
}

func TestDateJSONRoundTrip(t *testing.T) {
	in := struct {
		OrderDate Date `json:"order_date"`
	}{OrderDate: NewDate(2024, time.March, 5)}

	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"order_date":"05/03/24"}`, string(data))

	var out struct {
		OrderDate Date `json:"order_date"`
	}
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in.OrderDate, out.OrderDate)
}

func TestDateScan(t *testing.T) {
	var d Date
	require.NoError(t, d.Scan(time.Date(2023, time.December, 31, 0, 0, 0, 0, time.Local)))
	assert.Equal(t, "2023-12-31", d.ISO())

	require.NoError(t, d.Scan([]byte("2024-01-02")))
	assert.Equal(t, "2024-01-02", d.ISO())

	assert.Error(t, d.Scan(42))
}
