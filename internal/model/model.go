package model

import (
	"tomgalvin.uk/p31print/internal/response"
)

type DeviceInfoResponse struct {
	Address         string `json:"address"`
	State           string `json:"state"`
	Resolution      int    `json:"resolution,omitempty"`
	HardwareVersion string `json:"hardwareVersion,omitempty"`
	FirmwareVersion string `json:"firmwareVersion,omitempty"`
}

func FromDeviceInfo(address, state string, cfg *response.Config) DeviceInfoResponse {
	r := DeviceInfoResponse{
		Address: address,
		State:   state,
	}
	if cfg != nil {
		r.Resolution = cfg.Resolution
		r.HardwareVersion = cfg.HardwareVersion.String()
		r.FirmwareVersion = cfg.FirmwareVersion.String()
	}
	return r
}

type BatteryResponse struct {
	Level    int  `json:"level"`
	Charging bool `json:"charging"`
}

func FromBattery(b response.Battery) BatteryResponse {
	return BatteryResponse{Level: b.Level, Charging: b.Charging}
}

type ErrorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}
