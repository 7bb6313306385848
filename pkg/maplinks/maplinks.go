// Package maplinks builds the external URLs shown next to a pin.
package maplinks

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	staticMapBase = "https://static-maps.yandex.ru/1.x/"
	flagBase      = "https://flagcdn.com/w40/"
)

func coord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// StaticMapURL returns a 450x300 street map image at zoom 16 with a red marker on the position.
func StaticMapURL(lat, lon float64) string {
	ll := coord(lon) + "," + coord(lat)
	return fmt.Sprintf("%s?ll=%s&z=16&l=map&pt=%s,pm2rdl&size=450,300", staticMapBase, ll, ll)
}

// NavigateURL opens turn-by-turn navigation search in Google Maps.
func NavigateURL(lat, lon float64) string {
	return "https://www.google.com/maps/search/?api=1&query=" + coord(lat) + "," + coord(lon)
}

// ShareURL is the short Google Maps link used when sharing a pin.
func ShareURL(lat, lon float64) string {
	return "https://www.google.com/maps?q=" + coord(lat) + "," + coord(lon)
}

// ShareText is the message that accompanies ShareURL.
func ShareText(address string, lat, lon float64) string {
	return fmt.Sprintf("I pinned a location at %s. View it here: %s", address, ShareURL(lat, lon))
}

// FlagURL returns the 40px wide flag image for an ISO country code, or "" for unknown codes.
func FlagURL(countryCode string) string {
	cc := strings.ToLower(strings.TrimSpace(countryCode))
	if len(cc) != 2 || cc == "un" {
		return ""
	}
	return flagBase + cc + ".png"
}
