package location

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNmcliAccessPoints(t *testing.T) {
	out := []byte("00\\:14\\:22\\:01\\:23\\:45:72\n" +
		"not-a-mac:50\n" +
		"AA\\:BB\\:CC\\:DD\\:EE\\:FF:abc\n" +
		"\n" +
		"aa\\:bb\\:cc\\:dd\\:ee\\:0f:100\n")

	aps, err := parseNmcliAccessPoints(out)
	require.NoError(t, err)
	require.Len(t, aps, 2)

	assert.Equal(t, "00:14:22:01:23:45", aps[0].MACAddress)
	assert.Equal(t, -64.0, aps[0].SignalStrength)
	assert.Equal(t, "aa:bb:cc:dd:ee:0f", aps[1].MACAddress)
	assert.Equal(t, -50.0, aps[1].SignalStrength)
}

func TestParseMmcliCell(t *testing.T) {
	out := []byte(`modem.location.3gpp.mcc                 : 262
modem.location.3gpp.mnc                 : 01
modem.location.3gpp.lac                 : 0000
modem.location.3gpp.tac                 : 00AF12
modem.location.3gpp.cid                 : 01A2B3C4
modem.location.gps.nmea                 : --
`)

	tower, err := parseMmcliCell(out)
	require.NoError(t, err)
	assert.Equal(t, 262, tower.MobileCountryCode)
	assert.Equal(t, 1, tower.MobileNetworkCode)
	assert.Equal(t, 0xAF12, tower.LocationAreaCode)
	assert.Equal(t, 0x01A2B3C4, tower.CellID)
}

func TestParseMmcliCell_Incomplete(t *testing.T) {
	_, err := parseMmcliCell([]byte("modem.location.3gpp.mcc : --\n"))
	assert.Error(t, err)
}

func TestScanCellTowers(t *testing.T) {
	var gotArgs []string
	run := func(_ context.Context, name string, args ...string) ([]byte, error) {
		gotArgs = append([]string{name}, args...)
		return []byte("modem.location.3gpp.mcc : 204\nmodem.location.3gpp.mnc : 16\nmodem.location.3gpp.cid : FF\n"), nil
	}

	towers, err := scanCellTowers(context.Background(), run, 2)
	require.NoError(t, err)
	require.Len(t, towers, 1)
	assert.Equal(t, 255, towers[0].CellID)
	assert.Equal(t, []string{"mmcli", "-m", "2", "--location-get", "--output-keyvalue"}, gotArgs)

	failing := func(context.Context, string, ...string) ([]byte, error) { return nil, errors.New("boom") }
	_, err = scanCellTowers(context.Background(), failing, 0)
	assert.Error(t, err)
}

func TestIsValidMAC(t *testing.T) {
	assert.True(t, isValidMAC("00:14:22:01:23:45"))
	assert.True(t, isValidMAC("FF:FF:FF:FF:FF:FF"))
	assert.False(t, isValidMAC("00:14:22:01:23"))
	assert.False(t, isValidMAC("00:14:22:01:23:4G"))
	assert.False(t, isValidMAC("001:14:22:01:23:45"))
}
