package identity

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/benmeehan/pin-locator/pkg/file"
	"github.com/google/uuid"
)

// Identity holds the installation's unique identifier.
type Identity struct {
	ID   string `json:"device_id,omitempty"`
	Name string `json:"device_name,omitempty"`
}

// DeviceInfoInterface defines methods for managing device identity.
type DeviceInfoInterface interface {
	LoadOrCreate(name string) error
	GetDeviceID() string
	GetDeviceIdentity() *Identity
}

// DeviceInfo manages the device identity file.
type DeviceInfo struct {
	DeviceInfoFile string
	Identity       Identity
	fileOps        file.FileOperations
}

// NewDeviceInfo initializes a new DeviceInfo instance.
func NewDeviceInfo(filePath string, fileOps file.FileOperations) *DeviceInfo {
	return &DeviceInfo{
		DeviceInfoFile: filePath,
		fileOps:        fileOps,
	}
}

// LoadOrCreate reads the identity file. When the file is missing or holds no ID,
// a new random ID is generated and written back.
func (d *DeviceInfo) LoadOrCreate(name string) error {
	err := d.fileOps.ReadJsonFile(d.DeviceInfoFile, &d.Identity)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("read identity file %s: %w", d.DeviceInfoFile, err)
	}
	if d.Identity.ID != "" {
		return nil
	}

	d.Identity.ID = uuid.NewString()
	if d.Identity.Name == "" {
		d.Identity.Name = name
	}
	if err := d.fileOps.WriteJsonFile(d.DeviceInfoFile, d.Identity); err != nil {
		return fmt.Errorf("write identity file %s: %w", d.DeviceInfoFile, err)
	}
	return nil
}

// GetDeviceIdentity returns the current device Identity.
func (d *DeviceInfo) GetDeviceIdentity() *Identity {
	return &d.Identity
}

// GetDeviceID returns the current device ID.
func (d *DeviceInfo) GetDeviceID() string {
	return d.Identity.ID
}
