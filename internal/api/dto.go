package api

import (
	"github.com/benmeehan/pin-locator/internal/models"
	"github.com/benmeehan/pin-locator/pkg/maplinks"
)

type errorResponse struct {
	Error string `json:"error"`
}

type noteRequest struct {
	Note string `json:"note"`
}

type countResponse struct {
	Count int `json:"count"`
}

type healthResponse struct {
	Status   string `json:"status"`
	DeviceID string `json:"device_id"`
	Clients  int    `json:"live_clients"`
}

// PinLinks are the derived URLs shown next to a pin.
type PinLinks struct {
	Navigate  string `json:"navigate"`
	Share     string `json:"share"`
	ShareText string `json:"shareText"`
	Flag      string `json:"flag,omitempty"`
}

// PinResponse is a stored pin plus its derived links.
type PinResponse struct {
	models.Pin
	Links PinLinks `json:"links"`
}

func newPinResponse(p models.Pin) PinResponse {
	return PinResponse{
		Pin: p,
		Links: PinLinks{
			Navigate:  maplinks.NavigateURL(p.Latitude, p.Longitude),
			Share:     maplinks.ShareURL(p.Latitude, p.Longitude),
			ShareText: maplinks.ShareText(p.Address, p.Latitude, p.Longitude),
			Flag:      maplinks.FlagURL(p.CountryCode),
		},
	}
}

func newPinResponses(pins []models.Pin) []PinResponse {
	res := make([]PinResponse, 0, len(pins))
	for _, p := range pins {
		res = append(res, newPinResponse(p))
	}
	return res
}
