package maplinks

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStaticMapURL(t *testing.T) {
	assert.Equal(t,
		"https://static-maps.yandex.ru/1.x/?ll=4.8926,52.3731&z=16&l=map&pt=4.8926,52.3731,pm2rdl&size=450,300",
		StaticMapURL(52.3731, 4.8926))
}

func TestGoogleLinks(t *testing.T) {
	assert.Equal(t, "https://www.google.com/maps/search/?api=1&query=52.3731,4.8926", NavigateURL(52.3731, 4.8926))
	assert.Equal(t, "https://www.google.com/maps?q=-33.8688,151.2093", ShareURL(-33.8688, 151.2093))
	assert.Equal(t,
		"I pinned a location at Damrak 1, Amsterdam. View it here: https://www.google.com/maps?q=52.3731,4.8926",
		ShareText("Damrak 1, Amsterdam", 52.3731, 4.8926))
}

func TestFlagURL(t *testing.T) {
	assert.Equal(t, "https://flagcdn.com/w40/nl.png", FlagURL("NL"))
	assert.Equal(t, "https://flagcdn.com/w40/de.png", FlagURL(" de "))
	assert.Empty(t, FlagURL("UN"))
	assert.Empty(t, FlagURL(""))
	assert.Empty(t, FlagURL("NLD"))
}
