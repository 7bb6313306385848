package location

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"googlemaps.github.io/maps"
)

// commandRunner executes an external command and returns its stdout.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	if _, err := exec.LookPath(name); err != nil {
		return nil, fmt.Errorf("%s not found: %w", name, err)
	}
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		return nil, fmt.Errorf("failed to run %s: %w", name, err)
	}
	return out, nil
}

// scanWiFiAccessPoints lists nearby WiFi access points using nmcli.
func scanWiFiAccessPoints(ctx context.Context, run commandRunner) ([]maps.WiFiAccessPoint, error) {
	out, err := run(ctx, "nmcli", "-t", "-f", "BSSID,SIGNAL", "dev", "wifi", "list")
	if err != nil {
		return nil, err
	}
	return parseNmcliAccessPoints(out)
}

// parseNmcliAccessPoints parses terse nmcli output where colons inside the BSSID are escaped,
// e.g. `00\:14\:22\:01\:23\:45:72`.
func parseNmcliAccessPoints(out []byte) ([]maps.WiFiAccessPoint, error) {
	var aps []maps.WiFiAccessPoint
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		i := strings.LastIndex(line, ":")
		if i <= 0 {
			continue
		}
		mac := strings.ReplaceAll(line[:i], `\:`, ":")
		if !isValidMAC(mac) {
			continue
		}
		signal, err := strconv.Atoi(strings.TrimSpace(line[i+1:]))
		if err != nil {
			continue
		}
		aps = append(aps, maps.WiFiAccessPoint{
			MACAddress: mac,
			// nmcli reports signal quality 0-100; the API expects dBm.
			SignalStrength: float64(signal/2 - 100),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan nmcli output: %w", err)
	}
	return aps, nil
}

// scanCellTowers reads the serving cell of the given modem using mmcli.
func scanCellTowers(ctx context.Context, run commandRunner, modemIndex int) ([]maps.CellTower, error) {
	out, err := run(ctx, "mmcli", "-m", strconv.Itoa(modemIndex), "--location-get", "--output-keyvalue")
	if err != nil {
		return nil, err
	}
	tower, err := parseMmcliCell(out)
	if err != nil {
		return nil, fmt.Errorf("modem %d: %w", modemIndex, err)
	}
	return []maps.CellTower{tower}, nil
}

func parseMmcliCell(out []byte) (maps.CellTower, error) {
	var tower maps.CellTower
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch {
		case strings.HasSuffix(key, "3gpp.mcc"):
			if v, err := strconv.Atoi(value); err == nil {
				tower.MobileCountryCode = v
			}
		case strings.HasSuffix(key, "3gpp.mnc"):
			if v, err := strconv.Atoi(value); err == nil {
				tower.MobileNetworkCode = v
			}
		case strings.HasSuffix(key, "3gpp.lac"), strings.HasSuffix(key, "3gpp.tac"):
			if v, err := strconv.ParseInt(value, 16, 64); err == nil && v != 0 {
				tower.LocationAreaCode = int(v)
			}
		case strings.HasSuffix(key, "3gpp.cid"):
			if v, err := strconv.ParseInt(value, 16, 64); err == nil {
				tower.CellID = int(v)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return maps.CellTower{}, fmt.Errorf("failed to scan mmcli output: %w", err)
	}

	if tower.MobileCountryCode == 0 || tower.MobileNetworkCode == 0 {
		return maps.CellTower{}, errors.New("incomplete cell tower data")
	}
	return tower, nil
}

// isValidMAC checks if the MAC address is in a valid format (e.g., "00:14:22:01:23:45").
func isValidMAC(mac string) bool {
	parts := strings.Split(mac, ":")
	if len(parts) != 6 {
		return false
	}
	for _, part := range parts {
		if len(part) != 2 {
			return false
		}
		if _, err := strconv.ParseUint(part, 16, 8); err != nil {
			return false
		}
	}
	return true
}
