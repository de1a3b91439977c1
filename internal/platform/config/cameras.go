package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Cameras is the camera catalogue file.
type Cameras struct {
	Cameras []CameraConfig `yaml:"cameras"`
}

// CameraConfig describes one camera known to the timeline service.
type CameraConfig struct {
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"` // IANA name, empty means UTC
}

// LoadCameras reads and validates a camera catalogue.
func LoadCameras(path string) (*Cameras, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading cameras file: %w", err)
	}

	var c Cameras
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing cameras: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cameras: %w", err)
	}
	return &c, nil
}

// Validate checks names are present and unique and timezones resolve.
func (c *Cameras) Validate() error {
	seen := make(map[string]bool, len(c.Cameras))
	for i, cam := range c.Cameras {
		if cam.Name == "" {
			return fmt.Errorf("cameras[%d]: name is required", i)
		}
		if seen[cam.Name] {
			return fmt.Errorf("camera %s: duplicate name", cam.Name)
		}
		seen[cam.Name] = true
		if _, err := time.LoadLocation(cam.Timezone); err != nil {
			return fmt.Errorf("camera %s: %w", cam.Name, err)
		}
	}
	return nil
}

// Locations maps camera names to their time zone.
func (c *Cameras) Locations() map[string]*time.Location {
	out := make(map[string]*time.Location, len(c.Cameras))
	for _, cam := range c.Cameras {
		loc, err := time.LoadLocation(cam.Timezone)
		if err != nil {
			loc = time.UTC
		}
		out[cam.Name] = loc
	}
	return out
}
