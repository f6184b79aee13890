package cities

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRecord(t *testing.T) {
	testCases := []struct {
		name    string
		line    string
		want    City
		wantErr bool
	}{
		{name: "north east", line: `"Tokyo" 35°41'N 139°41'E`, want: City{Name: "Tokyo", Lat: 35 + 41.0/60, Lon: 139 + 41.0/60}},
		{name: "south west", line: `  "Rio de Janeiro" 22°54'S 43°12'W`, want: City{Name: "Rio de Janeiro", Lat: -(22 + 54.0/60), Lon: -(43 + 12.0/60)}},
		{name: "unquoted", line: `Tokyo 35°41'N 139°41'E`, wantErr: true},
		{name: "unterminated", line: `"Tokyo 35°41'N 139°41'E`, wantErr: true},
		{name: "missing longitude", line: `"Tokyo" 35°41'N`, wantErr: true},
		{name: "swapped hemisphere", line: `"Tokyo" 139°41'E 35°41'N`, wantErr: true},
		{name: "bad minutes", line: `"Tokyo" 35°75'N 139°41'E`, wantErr: true},
		{name: "out of range", line: `"Nowhere" 95°00'N 10°00'E`, wantErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseRecord(tc.line)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrMalformed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want.Name, got.Name)
			assert.InDelta(t, tc.want.Lat, got.Lat, 1e-9)
			assert.InDelta(t, tc.want.Lon, got.Lon, 1e-9)
		})
	}
}

func TestLoad_SkipsMalformed(t *testing.T) {
	input := strings.Join([]string{
		`"Paris" 48°51'N 2°21'E`,
		``,
		`garbage`,
		`"London" 51°30'N 0°07'W`,
		`"Broken" 51°30'X 0°07'W`,
	}, "\n")
	list, err := Load(strings.NewReader(input), nil)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Paris", list[0].Name)
	assert.Equal(t, "London", list[1].Name)

	c, ok := Find(list, "london")
	assert.True(t, ok)
	assert.Equal(t, "London", c.Name)
	_, ok = Find(list, "Berlin")
	assert.False(t, ok)
}

func TestDistance(t *testing.T) {
	paris := City{Name: "Paris", Lat: 48 + 51.0/60, Lon: 2 + 21.0/60}
	london := City{Name: "London", Lat: 51 + 30.0/60, Lon: -(7.0 / 60)}
	assert.InDelta(t, 344, Distance(paris, london), 5)
	assert.Equal(t, 0.0, Distance(paris, paris))

	d, err := ElementDistance(paris.JSON(), &london)
	require.NoError(t, err)
	assert.InDelta(t, Distance(paris, london), d, 1e-9)

	_, err = ElementDistance(paris, 42)
	assert.Error(t, err)
}
